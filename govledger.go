// Package govledger defines the boundary between a block engine and the
// governance ledger application.
//
// The core [Lifecycle] interface is required. [Simulator] is optional
// and discovered via type assertion at handshake time.
package govledger

import (
	"context"

	"github.com/blockberries/govledger/types"
)

// Lifecycle is the interface the ledger application implements for the
// engine.
//
// The engine guarantees the following call order:
//  1. Handshake is called exactly once, before anything else.
//  2. ExecuteBlock(h) is called exactly once per committed height h.
//  3. Commit is called exactly once after each ExecuteBlock.
//  4. CheckTx, Query may be called concurrently at any time after Handshake.
type Lifecycle interface {
	// Handshake is called once on every startup (cold start or restart).
	//
	// The engine communicates the last block it committed. If LastCommitted
	// is nil, this is a fresh genesis and Genesis will be populated. The
	// ledger answers with the checkpoint it holds so the engine can
	// detect divergence.
	Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error)

	// CheckTx gate-checks an instruction before it enters the mempool.
	// Only stateless checks run here; state-dependent failures surface
	// in ExecuteBlock.
	//
	// This method MUST be safe for concurrent use.
	CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error)

	// ExecuteBlock executes every instruction of a finalized block in
	// order. A failing instruction leaves no record behind and is
	// reported in its TxOutcome; it does not fail the block.
	//
	// Effects are staged and MUST NOT reach the record store until
	// Commit. The returned AppHash is a pure function of ledger state.
	ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error)

	// Commit persists the staged effects of the last ExecuteBlock,
	// together with the block checkpoint, in one atomic step.
	Commit(ctx context.Context) (types.CommitResult, error)

	// Query reads committed ledger state.
	//
	// This method MUST be safe for concurrent use, including concurrent
	// with ExecuteBlock (reads see the last committed state).
	Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error)
}

// Simulator dry-runs instructions.
//
// Declared via: types.CapSimulation in HandshakeResponse.Capabilities
type Simulator interface {
	// Simulate runs tx against committed state and discards its
	// effects. Returns the outcome the instruction would have, events
	// included.
	//
	// This method MUST be safe for concurrent use.
	Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error)
}

// Connection represents a transport-agnostic connection to the ledger.
// Both the gRPC client and the in-process server implement it.
type Connection interface {
	Lifecycle

	// Capabilities returns the capabilities discovered at handshake.
	// Must only be called after Handshake completes.
	Capabilities() types.Capabilities

	// AsSimulator returns the Simulator interface if available.
	AsSimulator() Simulator

	// Close terminates the connection.
	Close() error
}
