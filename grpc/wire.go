package ledgergrpc

import "github.com/blockberries/govledger/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.

// CheckTxRequest wraps the parameters for Lifecycle.CheckTx.
type CheckTxRequest struct {
	Tx      types.Tx             `cramberry:"1"`
	Context types.MempoolContext `cramberry:"2"`
}

// CommitRequest is the (empty) request for Lifecycle.Commit.
type CommitRequest struct{}

// SimulateRequest wraps the parameter for Simulator.Simulate.
type SimulateRequest struct {
	Tx types.Tx `cramberry:"1"`
}
