package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/ledger"
	"github.com/blockberries/govledger/ledgertest"
	"github.com/blockberries/govledger/store"
	"github.com/blockberries/govledger/types"
)

func TestApp_Compliance(t *testing.T) {
	ledgertest.RunComplianceSuite(t, func() govledger.Lifecycle {
		return NewMemory()
	})
}

func TestApp_ComplianceBolt(t *testing.T) {
	ledgertest.RunComplianceSuite(t, func() govledger.Lifecycle {
		s, err := store.OpenBolt(filepath.Join(t.TempDir(), "ledger.db"), 3)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return New(ledger.DefaultProgramID, s)
	})
}

// world is a DAO with one proposal, committed at height 2.
type world struct {
	h        *ledgertest.Harness
	app      *App
	dao      address.Address
	owner    address.Address
	proposal address.Address
}

func newWorld(t *testing.T, opts ...Option) *world {
	t.Helper()
	a := NewMemory(opts...)
	h := ledgertest.NewHarness(t, a)
	h.GenesisDefault()

	w := &world{h: h, app: a, dao: ledgertest.Key(1), owner: ledgertest.Key(2)}
	h.MustSubmit(InitializeTx(w.dao, w.owner, "Builders Guild"))
	outcomes := h.MustSubmit(CreateProposalTx(w.dao, w.owner, "Fund the bridge", "Allocate 10k to the bridge audit"))

	addr, err := address.FromBytes(outcomes[0].Data)
	require.NoError(t, err)
	w.proposal = addr
	return w
}

func TestApp_Capabilities(t *testing.T) {
	h := ledgertest.NewHarness(t, NewMemory())
	resp := h.GenesisDefault()

	assert.True(t, resp.Capabilities.Has(types.CapSimulation))
	assert.Equal(t, ledger.DefaultProgramID, resp.ProgramID)
	assert.NotNil(t, h.Server().AsSimulator())
}

func TestApp_InitializeAndCreateProposal(t *testing.T) {
	w := newWorld(t)

	dao := w.h.DAO(w.dao)
	assert.Equal(t, "Builders Guild", dao.Name)
	assert.Equal(t, w.owner, dao.Owner)

	prop := w.h.Proposal(w.proposal)
	assert.Equal(t, types.Proposal{
		Title:       "Fund the bridge",
		Description: "Allocate 10k to the bridge audit",
		Dao:         w.dao,
	}, prop)

	want, _, err := w.app.Program().ProposalAddress(w.dao, "Fund the bridge")
	require.NoError(t, err)
	assert.Equal(t, want, w.proposal)
}

func TestApp_Vote(t *testing.T) {
	w := newWorld(t)
	yes, no := ledgertest.Key(10), ledgertest.Key(11)

	outcomes := w.h.MustSubmit(
		VoteTx(w.proposal, w.dao, yes, true),
		VoteTx(w.proposal, w.dao, no, false),
	)

	ev := outcomes[0].Events
	require.Len(t, ev, 1)
	assert.Equal(t, types.EventVoteCast, ev[0].Kind)
	user, ok := ev[0].Attr("user")
	assert.True(t, ok)
	assert.Equal(t, yes.String(), user)
	choice, _ := ev[0].Attr("choice")
	assert.Equal(t, "true", choice)

	prop := w.h.Proposal(w.proposal)
	assert.Equal(t, uint64(1), prop.VotesYes)
	assert.Equal(t, uint64(1), prop.VotesNo)

	for _, u := range []address.Address{yes, no} {
		assert.True(t, w.h.Voter(w.proposal, u).HasVoted)
		r := w.h.Reward(w.dao, u)
		assert.Equal(t, uint64(1), r.RewardPoints)
		assert.Equal(t, u, r.User)
	}
}

func TestApp_VotedTwice(t *testing.T) {
	w := newWorld(t)
	user := ledgertest.Key(10)
	w.h.MustSubmit(VoteTx(w.proposal, w.dao, user, true))
	before := w.h.Query(types.QueryProposal, w.proposal.Bytes())

	outcomes := w.h.Submit(
		VoteTx(w.proposal, w.dao, user, false),
		VoteTx(w.proposal, w.dao, user, true),
	)
	for _, o := range outcomes {
		assert.Equal(t, ledger.ErrVotedTwice.Code, o.Code)
		assert.Contains(t, o.Info, "The user has already voted")
		assert.Empty(t, o.Events)
	}

	after := w.h.Query(types.QueryProposal, w.proposal.Bytes())
	assert.Equal(t, before.Value, after.Value)
	assert.Equal(t, uint64(1), w.h.Reward(w.dao, user).RewardPoints)
}

func TestApp_SameBlockDoubleVote(t *testing.T) {
	w := newWorld(t)
	user := ledgertest.Key(10)

	outcomes := w.h.Submit(
		VoteTx(w.proposal, w.dao, user, true),
		VoteTx(w.proposal, w.dao, user, false),
	)
	assert.True(t, outcomes[0].OK())
	assert.Equal(t, ledger.ErrVotedTwice.Code, outcomes[1].Code)
	assert.Equal(t, uint64(1), w.h.Proposal(w.proposal).TotalVotes())
}

func TestApp_FailedInstructions(t *testing.T) {
	w := newWorld(t)
	other := ledgertest.Key(20)
	w.h.MustSubmit(InitializeTx(other, w.owner, "Other"))

	cases := []struct {
		name string
		tx   types.Tx
		code uint32
	}{
		{"name too long", InitializeTx(ledgertest.Key(30), w.owner, strings.Repeat("n", ledger.MaxNameLen+1)), ledger.ErrTextTooLong.Code},
		{"dao exists", InitializeTx(w.dao, w.owner, "again"), ledger.ErrAlreadyExists.Code},
		{"title too long", CreateProposalTx(w.dao, w.owner, strings.Repeat("t", ledger.MaxTitleLen+1), ""), ledger.ErrTextTooLong.Code},
		{"description too long", CreateProposalTx(w.dao, w.owner, "t", strings.Repeat("d", ledger.MaxDescriptionLen+1)), ledger.ErrTextTooLong.Code},
		{"duplicate title", CreateProposalTx(w.dao, w.owner, "Fund the bridge", "again"), ledger.ErrAlreadyExists.Code},
		{"missing dao", CreateProposalTx(ledgertest.Key(40), w.owner, "t", "d"), ledger.ErrNotFound.Code},
		{"missing proposal", VoteTx(ledgertest.Key(41), w.dao, ledgertest.Key(10), true), ledger.ErrNotFound.Code},
		{"dao mismatch", VoteTx(w.proposal, other, ledgertest.Key(10), true), ledger.ErrDaoMismatch.Code},
		{"zero user", VoteTx(w.proposal, w.dao, address.Zero, true), ledger.ErrInvalidInstruction.Code},
		{"garbage", types.Tx{0x09, 0x01}, ledger.ErrInvalidInstruction.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcomes := w.h.Submit(tc.tx)
			require.Len(t, outcomes, 1)
			assert.Equal(t, tc.code, outcomes[0].Code, outcomes[0].Info)
			assert.Empty(t, outcomes[0].Data)
		})
	}

	// None of the failures touched the proposal or created rewards.
	assert.Zero(t, w.h.Proposal(w.proposal).TotalVotes())
	res := w.h.Query(types.QueryReward, append(w.dao.Bytes(), ledgertest.Key(10).Bytes()...))
	assert.Equal(t, ledger.ErrNotFound.Code, res.Code)
}

func TestApp_CheckTx(t *testing.T) {
	h := ledgertest.NewHarness(t, NewMemory())
	g := ledgertest.DefaultGenesis()
	g.MaxTxBytes = 256
	h.Genesis(g)

	v := h.CheckTx(VoteTx(ledgertest.Key(1), ledgertest.Key(2), ledgertest.Key(3), true))
	assert.True(t, v.Accepted())
	assert.Equal(t, ledgertest.Key(3).String(), v.Sender)
	assert.Equal(t, priorityVote, v.Priority)

	v = h.CheckTx(InitializeTx(ledgertest.Key(1), ledgertest.Key(2), "dao"))
	assert.True(t, v.Accepted())
	assert.Equal(t, ledgertest.Key(2).String(), v.Sender)
	assert.Equal(t, priorityAdmin, v.Priority)

	// Stateless failures are caught at the gate.
	v = h.CheckTx(InitializeTx(ledgertest.Key(1), ledgertest.Key(2), strings.Repeat("n", ledger.MaxNameLen+1)))
	assert.Equal(t, ledger.ErrTextTooLong.Code, v.Code)
	v = h.CheckTx(types.Tx{0x03})
	assert.Equal(t, ledger.ErrInvalidInstruction.Code, v.Code)
	v = h.CheckTx(make(types.Tx, 257))
	assert.Equal(t, CodeRejected, v.Code)

	// State-dependent failures are not: the DAO does not exist yet.
	h.MustAcceptTx(CreateProposalTx(ledgertest.Key(1), ledgertest.Key(2), "t", "d"))
	v = h.RecheckTx(VoteTx(ledgertest.Key(1), ledgertest.Key(2), ledgertest.Key(3), false))
	assert.True(t, v.Accepted())
}

func TestApp_Simulate(t *testing.T) {
	w := newWorld(t)
	user := ledgertest.Key(10)
	tx := VoteTx(w.proposal, w.dao, user, true)

	before := w.h.Query(types.QueryProposal, w.proposal.Bytes())
	out := w.h.Simulate(tx)
	require.True(t, out.OK(), out.Info)
	require.Len(t, out.Events, 1)

	// Simulation leaves committed state alone and can be repeated.
	after := w.h.Query(types.QueryProposal, w.proposal.Bytes())
	assert.Equal(t, before.Value, after.Value)
	assert.True(t, w.h.Simulate(tx).OK())

	w.h.MustSubmit(tx)
	assert.Equal(t, ledger.ErrVotedTwice.Code, w.h.Simulate(tx).Code)
}

func TestApp_Queries(t *testing.T) {
	w := newWorld(t)
	user := ledgertest.Key(10)
	w.h.MustSubmit(VoteTx(w.proposal, w.dao, user, false))
	prog := w.app.Program()

	res := w.h.Query(types.QueryProposalAddress, append(w.dao.Bytes(), []byte("Fund the bridge")...))
	require.True(t, res.OK(), res.Info)
	require.Len(t, res.Value, address.Length+1)
	assert.Equal(t, w.proposal.Bytes(), res.Key)
	_, bump, _ := prog.ProposalAddress(w.dao, "Fund the bridge")
	assert.Equal(t, bump, res.Value[address.Length])

	res = w.h.Query(types.QueryVoterAddress, append(w.proposal.Bytes(), user.Bytes()...))
	require.True(t, res.OK(), res.Info)
	voter, _, _ := prog.VoterAddress(w.proposal, user)
	assert.Equal(t, voter.Bytes(), res.Key)

	res = w.h.Query(types.QueryRewardAddress, append(w.dao.Bytes(), user.Bytes()...))
	require.True(t, res.OK(), res.Info)
	reward, _, _ := prog.RewardAddress(w.dao, user)
	assert.Equal(t, reward.Bytes(), res.Key)

	res = w.h.Query(types.QueryVoter, append(w.proposal.Bytes(), user.Bytes()...))
	require.True(t, res.OK(), res.Info)
	assert.Equal(t, voter.Bytes(), res.Key)
	var v types.Voter
	require.NoError(t, cramberry.Unmarshal(res.Value, &v))
	assert.True(t, v.HasVoted)
	assert.Equal(t, uint64(3), res.Height)

	res = w.h.Query(types.QueryProposalAddress, append(w.dao.Bytes(), []byte(strings.Repeat("t", 33))...))
	assert.Equal(t, ledger.ErrTextTooLong.Code, res.Code)
	res = w.h.Query(types.QueryDao, []byte{1, 2, 3})
	assert.Equal(t, CodeRejected, res.Code)
	res = w.h.Query(types.QueryDao, ledgertest.Key(99).Bytes())
	assert.Equal(t, ledger.ErrNotFound.Code, res.Code)
	res = w.h.Query(types.QueryDao, w.proposal.Bytes())
	assert.Equal(t, ledger.ErrAccountKindMismatch.Code, res.Code)
}

func TestApp_RestartFromBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	dao, owner, user := ledgertest.Key(1), ledgertest.Key(2), ledgertest.Key(3)

	s, err := store.OpenBolt(path, 3)
	require.NoError(t, err)
	a := New(ledger.DefaultProgramID, s)
	h := ledgertest.NewHarness(t, a)
	h.GenesisDefault()
	h.MustSubmit(InitializeTx(dao, owner, "Persistent"))
	prop, err := address.FromBytes(h.MustSubmit(CreateProposalTx(dao, owner, "p", "d"))[0].Data)
	require.NoError(t, err)
	last := h.ExecuteAndCommit(ledgertest.MakeBlock(3, VoteTx(prop, dao, user, true)))
	require.NoError(t, s.Close())

	s, err = store.OpenBolt(path, 3)
	require.NoError(t, err)
	defer s.Close()
	h = ledgertest.NewHarness(t, New(ledger.DefaultProgramID, s))
	resp := h.Restart(types.BlockID{Height: 3})
	require.NotNil(t, resp.LastBlock)
	assert.Equal(t, uint64(3), resp.LastBlock.Height)
	require.NotNil(t, resp.AppHash)
	assert.Equal(t, last.AppHash, *resp.AppHash)

	assert.Equal(t, uint64(1), h.Proposal(prop).VotesYes)
	outcomes := h.Submit(VoteTx(prop, dao, user, false))
	assert.Equal(t, ledger.ErrVotedTwice.Code, outcomes[0].Code)
	assert.Equal(t, uint64(4), h.Height())
}

func TestApp_UncommittedBlockInvisible(t *testing.T) {
	w := newWorld(t)
	w.h.ExecuteBlock(ledgertest.MakeBlock(3, VoteTx(w.proposal, w.dao, ledgertest.Key(10), true)))

	res := w.h.Query(types.QueryVoter, append(w.proposal.Bytes(), ledgertest.Key(10).Bytes()...))
	assert.Equal(t, ledger.ErrNotFound.Code, res.Code)
	assert.Equal(t, uint64(2), res.Height)

	w.h.Commit()
	assert.True(t, w.h.Voter(w.proposal, ledgertest.Key(10)).HasVoted)
}

func TestApp_CommitWithoutExecute(t *testing.T) {
	a := NewMemory()
	_, err := a.Handshake(context.Background(), types.HandshakeRequest{})
	require.NoError(t, err)
	_, err = a.Commit(context.Background())
	assert.Error(t, err)
}

func TestApp_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := newWorld(t, WithRegisterer(reg))
	w.h.Submit(
		VoteTx(w.proposal, w.dao, ledgertest.Key(10), true),
		VoteTx(w.proposal, w.dao, ledgertest.Key(11), false),
		VoteTx(w.proposal, w.dao, ledgertest.Key(10), false),
	)

	m := w.app.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("yes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("no")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.txs.WithLabelValues("vote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txs.WithLabelValues("vote", "VotedTwice")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.height))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestApp_SimulateIsNotCounted(t *testing.T) {
	w := newWorld(t, WithRegisterer(prometheus.NewRegistry()))
	m := w.app.metrics
	okBefore := testutil.ToFloat64(m.txs.WithLabelValues("vote", "ok"))

	for i := byte(0); i < 5; i++ {
		out := w.h.Simulate(VoteTx(w.proposal, w.dao, ledgertest.Key(20+i), true))
		require.True(t, out.OK(), out.Info)
	}
	w.h.Simulate(types.Tx{0xee})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.votes.WithLabelValues("yes")))
	assert.Equal(t, okBefore, testutil.ToFloat64(m.txs.WithLabelValues("vote", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.txs.WithLabelValues("unknown", ledger.ErrInvalidInstruction.Name)))
}
