package ledgertest

import (
	"context"
	"sync"
	"testing"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/ledger"
	"github.com/blockberries/govledger/types"
)

// Key returns a deterministic non-zero key for tests.
func Key(n byte) address.Address {
	var a address.Address
	a[0] = n
	a[31] = 0xa5
	return a
}

// Tx encodes ix, failing the test on error.
func Tx(t testing.TB, ix types.Instruction) types.Tx {
	t.Helper()
	tx, err := types.EncodeInstruction(ix)
	if err != nil {
		t.Fatalf("encode %s: %v", ix.Method(), err)
	}
	return tx
}

// scenario is a block exercising every instruction: a DAO, a proposal
// and two votes, plus one failing duplicate vote.
func scenario(t *testing.T, programID address.Address) []types.Tx {
	t.Helper()
	dao, owner := Key(1), Key(2)
	prop, _, err := ledger.New(programID).ProposalAddress(dao, "treasury")
	if err != nil {
		t.Fatalf("derive proposal: %v", err)
	}
	return []types.Tx{
		Tx(t, types.Initialize{Dao: dao, Payer: owner, Name: "compliance"}),
		Tx(t, types.CreateProposal{Dao: dao, Payer: owner, Title: "treasury", Description: "move funds"}),
		Tx(t, types.Vote{Proposal: prop, Dao: dao, User: Key(3), Choice: true}),
		Tx(t, types.Vote{Proposal: prop, Dao: dao, User: Key(4), Choice: false}),
		Tx(t, types.Vote{Proposal: prop, Dao: dao, User: Key(3), Choice: false}),
	}
}

// RunComplianceSuite runs the standard lifecycle compliance tests
// against a ledger application.
//
// The factory function should return a fresh application instance
// over an empty record store for each test.
func RunComplianceSuite(t *testing.T, factory func() govledger.Lifecycle) {
	t.Helper()

	t.Run("genesis_handshake", func(t *testing.T) {
		h := NewHarness(t, factory())
		resp := h.GenesisDefault()
		if resp.LastBlock != nil {
			t.Error("genesis handshake should return nil LastBlock")
		}
		if resp.AppHash == nil {
			t.Error("genesis handshake should return a non-nil AppHash")
		}
		if resp.ProgramID.IsZero() {
			t.Error("genesis handshake should report the program id")
		}
	})

	t.Run("execute_commit_cycle", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.GenesisDefault()

		var prev types.AppHash
		for i := uint64(1); i <= 5; i++ {
			outcome := h.ExecuteAndCommit(MakeEmptyBlock(i))
			if outcome.AppHash == (types.AppHash{}) {
				t.Errorf("height %d: zero app hash", i)
			}
			if outcome.AppHash == prev {
				t.Errorf("height %d: app hash did not change with height", i)
			}
			prev = outcome.AppHash
		}
	})

	t.Run("empty_blocks_deterministic", func(t *testing.T) {
		h1 := NewHarness(t, factory())
		h1.GenesisDefault()
		h2 := NewHarness(t, factory())
		h2.GenesisDefault()

		for i := uint64(1); i <= 3; i++ {
			block := MakeEmptyBlock(i)
			o1 := h1.ExecuteAndCommit(block)
			o2 := h2.ExecuteAndCommit(block)
			if o1.AppHash != o2.AppHash {
				t.Errorf("height %d: non-deterministic: %x != %x",
					i, o1.AppHash, o2.AppHash)
			}
		}
	})

	t.Run("deterministic_with_txs", func(t *testing.T) {
		h1 := NewHarness(t, factory())
		resp := h1.GenesisDefault()
		h2 := NewHarness(t, factory())
		h2.GenesisDefault()

		block := MakeBlock(1, scenario(t, resp.ProgramID)...)
		o1 := h1.ExecuteAndCommit(block)
		o2 := h2.ExecuteAndCommit(block)

		if o1.AppHash != o2.AppHash {
			t.Errorf("non-deterministic with txs: %x != %x", o1.AppHash, o2.AppHash)
		}
		if len(o1.TxOutcomes) != len(o2.TxOutcomes) {
			t.Fatalf("outcome count mismatch: %d != %d", len(o1.TxOutcomes), len(o2.TxOutcomes))
		}
		for i := range o1.TxOutcomes {
			if o1.TxOutcomes[i].Code != o2.TxOutcomes[i].Code {
				t.Errorf("tx %d: code mismatch: %d != %d", i, o1.TxOutcomes[i].Code, o2.TxOutcomes[i].Code)
			}
		}
	})

	t.Run("scenario_outcomes", func(t *testing.T) {
		h := NewHarness(t, factory())
		resp := h.GenesisDefault()
		outcome := h.ExecuteAndCommit(MakeBlock(1, scenario(t, resp.ProgramID)...))

		want := []uint32{0, 0, 0, 0, ledger.ErrVotedTwice.Code}
		for i, o := range outcome.TxOutcomes {
			if o.Code != want[i] {
				t.Errorf("tx %d: expected code %d, got %d (%s)", i, want[i], o.Code, o.Info)
			}
		}
		p, _, _ := ledger.New(resp.ProgramID).ProposalAddress(Key(1), "treasury")
		prop := h.Proposal(p)
		if prop.VotesYes != 1 || prop.VotesNo != 1 {
			t.Errorf("expected 1/1 votes, got %d/%d", prop.VotesYes, prop.VotesNo)
		}
	})

	t.Run("failed_tx_changes_nothing", func(t *testing.T) {
		h1 := NewHarness(t, factory())
		h1.GenesisDefault()
		h2 := NewHarness(t, factory())
		h2.GenesisDefault()

		bad := Tx(t, types.CreateProposal{Dao: Key(9), Payer: Key(2), Title: "orphan"})
		o1 := h1.ExecuteAndCommit(MakeBlock(1, bad))
		o2 := h2.ExecuteAndCommit(MakeEmptyBlock(1))
		if o1.TxOutcomes[0].OK() {
			t.Fatal("proposal under a missing DAO should fail")
		}
		if o1.AppHash != o2.AppHash {
			t.Errorf("failed tx changed the app hash: %x != %x", o1.AppHash, o2.AppHash)
		}
	})

	t.Run("height_gap_halts", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.GenesisDefault()
		h.ExecuteAndCommit(MakeEmptyBlock(1))

		_, err := h.Server().ExecuteBlock(context.Background(), MakeEmptyBlock(3))
		if _, ok := govledger.IsHalt(err); !ok {
			t.Fatalf("expected HaltError for height gap, got %v", err)
		}
		h.ExecuteAndCommit(MakeEmptyBlock(2))
	})

	t.Run("concurrent_checktx_after_handshake", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.GenesisDefault()
		tx := Tx(t, types.Initialize{Dao: Key(1), Payer: Key(2), Name: "x"})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := h.Server().CheckTx(context.Background(), tx, types.MempoolFirstSeen)
				if err != nil {
					t.Errorf("concurrent CheckTx failed: %v", err)
					return
				}
				if !v.Accepted() {
					t.Errorf("concurrent CheckTx rejected: %s", v.Info)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("concurrent_query_after_handshake", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.GenesisDefault()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.Server().Query(context.Background(), types.StateQuery{
					Path: types.QueryDao,
					Data: Key(1).Bytes(),
				})
				if err != nil {
					t.Errorf("concurrent Query failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("query_returns_height", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.GenesisDefault()
		h.ExecuteAndCommit(MakeEmptyBlock(1))
		h.ExecuteAndCommit(MakeEmptyBlock(2))

		result := h.Query("/test", nil)
		if result.OK() {
			t.Error("unknown query path should fail")
		}
		if result.Height != 2 {
			t.Errorf("query height should be 2 after committing, got %d", result.Height)
		}
	})

	t.Run("tx_outcome_indices", func(t *testing.T) {
		h := NewHarness(t, factory())
		h.GenesisDefault()

		txs := []types.Tx{
			{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			{0x02, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			{0x7f},
		}
		outcome := h.ExecuteAndCommit(MakeBlock(1, txs...))
		if len(outcome.TxOutcomes) != 3 {
			t.Fatalf("expected 3 tx outcomes, got %d", len(outcome.TxOutcomes))
		}
		for i, o := range outcome.TxOutcomes {
			if o.Index != uint32(i) {
				t.Errorf("tx %d: expected index %d, got %d", i, i, o.Index)
			}
			if o.OK() {
				t.Errorf("tx %d: garbage instruction succeeded", i)
			}
		}
	})
}
