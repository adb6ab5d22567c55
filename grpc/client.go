package ledgergrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/server"
	"github.com/blockberries/govledger/types"
)

// Compile-time interface checks.
var (
	_ govledger.Connection = (*Client)(nil)
	_ govledger.Simulator  = (*Client)(nil)
)

// Client implements govledger.Connection for a remote ledger over gRPC
// using cramberry serialization. It tracks the lifecycle locally so
// out-of-order calls fail without a round trip.
type Client struct {
	cc    *grpc.ClientConn
	caps  types.Capabilities
	guard *server.LifecycleGuard
}

// Dial connects to a remote ledger.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("ledger client: dial %s: %w", addr, err)
	}
	return &Client{
		cc:    cc,
		guard: server.NewLifecycleGuard(),
	}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// --- Lifecycle ---

func (c *Client) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	if err := c.guard.AcquireHandshake(); err != nil {
		return types.HandshakeResponse{}, err
	}
	resp := new(types.HandshakeResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Handshake"), &req, resp); err != nil {
		c.guard.FailHandshake()
		return types.HandshakeResponse{}, err
	}
	c.caps = resp.Capabilities
	c.guard.CompleteHandshake()
	return *resp, nil
}

func (c *Client) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	if err := c.guard.CheckConcurrent("CheckTx"); err != nil {
		return types.GateVerdict{}, err
	}
	req := &CheckTxRequest{Tx: tx, Context: mctx}
	resp := new(types.GateVerdict)
	if err := c.cc.Invoke(ctx, fullMethod("CheckTx"), req, resp); err != nil {
		return types.GateVerdict{}, err
	}
	return *resp, nil
}

func (c *Client) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	if err := c.guard.AcquireExecute(); err != nil {
		return types.BlockOutcome{}, err
	}
	resp := new(types.BlockOutcome)
	if err := c.cc.Invoke(ctx, fullMethod("ExecuteBlock"), &block, resp); err != nil {
		c.guard.FailExecute()
		// The server reports a halt as Aborted.
		if status.Code(err) == codes.Aborted {
			return types.BlockOutcome{}, govledger.NewHaltError(block.Height, status.Convert(err).Message())
		}
		return types.BlockOutcome{}, err
	}
	c.guard.CompleteExecute()
	return *resp, nil
}

func (c *Client) Commit(ctx context.Context) (types.CommitResult, error) {
	if err := c.guard.AcquireCommit(); err != nil {
		return types.CommitResult{}, err
	}
	resp := new(types.CommitResult)
	if err := c.cc.Invoke(ctx, fullMethod("Commit"), &CommitRequest{}, resp); err != nil {
		c.guard.FailCommit()
		return types.CommitResult{}, err
	}
	c.guard.CompleteCommit()
	return *resp, nil
}

func (c *Client) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	if err := c.guard.CheckConcurrent("Query"); err != nil {
		return types.StateQueryResult{}, err
	}
	resp := new(types.StateQueryResult)
	if err := c.cc.Invoke(ctx, fullMethod("Query"), &req, resp); err != nil {
		return types.StateQueryResult{}, err
	}
	return *resp, nil
}

// --- Capability Accessors ---

func (c *Client) Capabilities() types.Capabilities { return c.caps }

func (c *Client) AsSimulator() govledger.Simulator {
	if c.caps.Has(types.CapSimulation) {
		return c
	}
	return nil
}

// --- Simulator ---

// Simulate dry-runs tx on the remote ledger. It lets a Client stand in
// for an application behind a local server.Server.
func (c *Client) Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error) {
	if err := c.guard.CheckConcurrent("Simulate"); err != nil {
		return types.TxOutcome{}, err
	}
	req := &SimulateRequest{Tx: tx}
	resp := new(types.TxOutcome)
	if err := c.cc.Invoke(ctx, fullMethod("Simulate"), req, resp); err != nil {
		return types.TxOutcome{}, err
	}
	return *resp, nil
}
