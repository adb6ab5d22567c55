// Package ledgertest drives a ledger application through the lifecycle
// server for tests.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/server"
	"github.com/blockberries/govledger/types"
)

// Harness provides a convenient test harness that drives an
// application through the lifecycle state machine.
type Harness struct {
	t      *testing.T
	srv    *server.Server
	height uint64
}

// NewHarness creates a test harness wrapping the given application.
func NewHarness(t *testing.T, app govledger.Lifecycle) *Harness {
	t.Helper()
	return &Harness{t: t, srv: server.New(app)}
}

// Server returns the underlying server for direct access.
func (h *Harness) Server() *server.Server {
	return h.srv
}

// Height returns the last height committed through the harness.
func (h *Harness) Height() uint64 { return h.height }

// Genesis performs a genesis handshake with the given genesis doc.
func (h *Harness) Genesis(genesis types.GenesisDoc) types.HandshakeResponse {
	h.t.Helper()
	resp, err := h.srv.Handshake(context.Background(), types.HandshakeRequest{
		Genesis: &genesis,
	})
	if err != nil {
		h.t.Fatalf("Handshake (genesis) failed: %v", err)
	}
	return resp
}

// GenesisDefault performs a genesis handshake with a default
// genesis document.
func (h *Harness) GenesisDefault() types.HandshakeResponse {
	h.t.Helper()
	return h.Genesis(DefaultGenesis())
}

// Restart performs a restart handshake at the given block.
func (h *Harness) Restart(block types.BlockID) types.HandshakeResponse {
	h.t.Helper()
	resp, err := h.srv.Handshake(context.Background(), types.HandshakeRequest{
		LastCommitted: &block,
	})
	if err != nil {
		h.t.Fatalf("Handshake (restart) failed: %v", err)
	}
	if resp.LastBlock != nil {
		h.height = resp.LastBlock.Height
	}
	return resp
}

// ExecuteBlock executes a block without committing.
func (h *Harness) ExecuteBlock(block types.FinalizedBlock) types.BlockOutcome {
	h.t.Helper()
	outcome, err := h.srv.ExecuteBlock(context.Background(), block)
	if err != nil {
		h.t.Fatalf("ExecuteBlock (height=%d) failed: %v", block.Height, err)
	}
	return outcome
}

// Commit commits the last executed block.
func (h *Harness) Commit() types.CommitResult {
	h.t.Helper()
	result, err := h.srv.Commit(context.Background())
	if err != nil {
		h.t.Fatalf("Commit failed: %v", err)
	}
	h.height = result.Height
	return result
}

// ExecuteAndCommit is a convenience that executes a block and
// commits, returning the block outcome.
func (h *Harness) ExecuteAndCommit(block types.FinalizedBlock) types.BlockOutcome {
	h.t.Helper()
	outcome := h.ExecuteBlock(block)
	h.Commit()
	return outcome
}

// Submit executes and commits the given transactions as the next
// block.
func (h *Harness) Submit(txs ...types.Tx) []types.TxOutcome {
	h.t.Helper()
	return h.ExecuteAndCommit(MakeBlock(h.height+1, txs...)).TxOutcomes
}

// MustSubmit is Submit that fails the test unless every instruction
// succeeds.
func (h *Harness) MustSubmit(txs ...types.Tx) []types.TxOutcome {
	h.t.Helper()
	outcomes := h.Submit(txs...)
	for _, o := range outcomes {
		if !o.OK() {
			h.t.Fatalf("tx %d failed: code=%d info=%q", o.Index, o.Code, o.Info)
		}
	}
	return outcomes
}

// CheckTx submits a transaction for mempool gate-checking.
func (h *Harness) CheckTx(tx types.Tx) types.GateVerdict {
	h.t.Helper()
	verdict, err := h.srv.CheckTx(context.Background(), tx, types.MempoolFirstSeen)
	if err != nil {
		h.t.Fatalf("CheckTx failed: %v", err)
	}
	return verdict
}

// RecheckTx re-validates a previously admitted transaction.
func (h *Harness) RecheckTx(tx types.Tx) types.GateVerdict {
	h.t.Helper()
	verdict, err := h.srv.CheckTx(context.Background(), tx, types.MempoolRevalidation)
	if err != nil {
		h.t.Fatalf("RecheckTx failed: %v", err)
	}
	return verdict
}

// Simulate dry-runs a transaction.
func (h *Harness) Simulate(tx types.Tx) types.TxOutcome {
	h.t.Helper()
	outcome, err := h.srv.Simulate(context.Background(), tx)
	if err != nil {
		h.t.Fatalf("Simulate failed: %v", err)
	}
	return outcome
}

// Query reads ledger state at the latest height.
func (h *Harness) Query(path types.QueryPath, data []byte) types.StateQueryResult {
	h.t.Helper()
	result, err := h.srv.Query(context.Background(), types.StateQuery{
		Path: path,
		Data: data,
	})
	if err != nil {
		h.t.Fatalf("Query failed: %v", err)
	}
	return result
}

// MustAcceptTx asserts that a transaction is accepted.
func (h *Harness) MustAcceptTx(tx types.Tx) {
	h.t.Helper()
	v := h.CheckTx(tx)
	if !v.Accepted() {
		h.t.Fatalf("expected tx accepted, got code=%d info=%q", v.Code, v.Info)
	}
}

// MustRejectTx asserts that a transaction is rejected.
func (h *Harness) MustRejectTx(tx types.Tx) {
	h.t.Helper()
	v := h.CheckTx(tx)
	if v.Accepted() {
		h.t.Fatal("expected tx rejected, got accepted")
	}
}

// --- Record queries ---

// DAO queries the DAO record at dao.
func (h *Harness) DAO(dao address.Address) types.DaoAccount {
	h.t.Helper()
	var acc types.DaoAccount
	h.queryRecord(types.QueryDao, dao.Bytes(), &acc)
	return acc
}

// Proposal queries the proposal record at addr.
func (h *Harness) Proposal(addr address.Address) types.Proposal {
	h.t.Helper()
	var p types.Proposal
	h.queryRecord(types.QueryProposal, addr.Bytes(), &p)
	return p
}

// Voter queries user's receipt for proposal.
func (h *Harness) Voter(proposal, user address.Address) types.Voter {
	h.t.Helper()
	var v types.Voter
	h.queryRecord(types.QueryVoter, concat(proposal, user), &v)
	return v
}

// Reward queries user's reward record in dao.
func (h *Harness) Reward(dao, user address.Address) types.RewardAccount {
	h.t.Helper()
	var r types.RewardAccount
	h.queryRecord(types.QueryReward, concat(dao, user), &r)
	return r
}

func (h *Harness) queryRecord(path types.QueryPath, data []byte, out any) {
	h.t.Helper()
	res := h.Query(path, data)
	if !res.OK() {
		h.t.Fatalf("query %s failed: code=%d info=%q", path, res.Code, res.Info)
	}
	if err := cramberry.Unmarshal(res.Value, out); err != nil {
		h.t.Fatalf("decode %s: %v", path, err)
	}
}

func concat(keys ...address.Address) []byte {
	out := make([]byte, 0, len(keys)*address.Length)
	for _, k := range keys {
		out = append(out, k[:]...)
	}
	return out
}

// --- Helper Factories ---

// DefaultGenesis returns a minimal genesis document suitable
// for testing.
func DefaultGenesis() types.GenesisDoc {
	return types.GenesisDoc{
		ChainID:       "test-chain",
		GenesisTime:   types.TimeToTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		InitialHeight: 1,
		MaxTxBytes:    64 * 1024,
	}
}

// MakeBlock creates a FinalizedBlock at the given height with
// the provided transactions.
func MakeBlock(height uint64, txs ...types.Tx) types.FinalizedBlock {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(height) * 5 * time.Second)
	return types.FinalizedBlock{
		Height: height,
		Time:   types.TimeToTimestamp(t),
		Txs:    txs,
	}
}

// MakeEmptyBlock creates an empty FinalizedBlock at the given height.
func MakeEmptyBlock(height uint64) types.FinalizedBlock {
	return MakeBlock(height)
}
