// Package app is the governance ledger as a block application.
//
// Transactions carry one instruction each (see types.EncodeInstruction):
//
//	0x01 = initialize:      {dao, payer, name}
//	0x02 = create_proposal: {dao, payer, title, description}
//	0x03 = vote:            {proposal, dao, user, choice}
//
// ExecuteBlock stages a block transaction over the committed record
// store; every instruction runs as its own nested ledger transaction,
// so a failing instruction leaves nothing behind. Commit hands the
// staged ops and the block checkpoint to the backend in one atomic
// step.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/ledger"
	"github.com/blockberries/govledger/log"
	"github.com/blockberries/govledger/store"
	"github.com/blockberries/govledger/types"
)

// Compile-time interface checks.
var (
	_ govledger.Lifecycle = (*App)(nil)
	_ govledger.Simulator = (*App)(nil)
)

// CodeRejected is the gate and query code for failures that are not
// ledger errors (unknown query path, malformed query data, oversized tx).
const CodeRejected uint32 = 1

// Gate priorities. Votes are cheap and time-sensitive.
const (
	priorityVote  int64 = 10
	priorityAdmin int64 = 5
)

// staged is the effect of an executed, uncommitted block.
type staged struct {
	txn     *store.Txn
	height  uint64
	time    types.Timestamp
	appHash types.AppHash
}

// App implements the ledger lifecycle over a store.Backend.
type App struct {
	prog    *ledger.Program
	backend store.Backend
	logger  *zap.Logger
	metrics *metrics

	mu            sync.RWMutex
	height        uint64
	appHash       types.AppHash
	initialHeight uint64
	maxTxBytes    uint64
	pending       *staged
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the app logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithRegisterer registers the app metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.metrics.register(reg) }
}

// New creates a ledger app deriving addresses under programID and
// keeping records in backend. The committed height and app hash are
// loaded from the backend checkpoint at Handshake.
func New(programID address.Address, backend store.Backend, opts ...Option) *App {
	a := &App{
		prog:          ledger.New(programID),
		backend:       backend,
		logger:        log.Logger("app"),
		metrics:       newMetrics(),
		initialHeight: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewMemory creates an app over a fresh in-memory store under the
// default program id.
func NewMemory(opts ...Option) *App {
	return New(ledger.DefaultProgramID, store.NewMemoryStore(), opts...)
}

// Program returns the ledger program the app runs.
func (a *App) Program() *ledger.Program { return a.prog }

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (a *App) Handshake(_ context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cp, ok, err := a.backend.Checkpoint()
	if err != nil {
		return types.HandshakeResponse{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if ok {
		a.height = cp.Height
		a.appHash = types.AppHash(cp.AppHash)
	} else {
		// Empty ledger: the hash of no records at height 0.
		a.appHash, err = computeAppHash(a.backend, 0)
		if err != nil {
			return types.HandshakeResponse{}, err
		}
	}
	if req.Genesis != nil {
		if req.Genesis.InitialHeight > 0 {
			a.initialHeight = req.Genesis.InitialHeight
		}
		a.maxTxBytes = req.Genesis.MaxTxBytes
	}
	a.metrics.height.Set(float64(a.height))

	h := a.appHash
	resp := types.HandshakeResponse{
		AppHash:      &h,
		Capabilities: types.CapSimulation,
		ProgramID:    a.prog.ID(),
	}
	if ok {
		resp.LastBlock = &types.BlockID{Height: a.height}
	}
	a.logger.Info("ledger loaded",
		zap.Uint64("height", a.height),
		zap.Bool("genesis", req.LastCommitted == nil),
		zap.Stringer("program", a.prog.ID()))
	return resp, nil
}

func (a *App) CheckTx(_ context.Context, tx types.Tx, _ types.MempoolContext) (types.GateVerdict, error) {
	a.mu.RLock()
	maxTxBytes := a.maxTxBytes
	a.mu.RUnlock()

	if maxTxBytes > 0 && uint64(len(tx)) > maxTxBytes {
		return types.GateVerdict{
			Code: CodeRejected,
			Info: fmt.Sprintf("tx is %d bytes, max %d", len(tx), maxTxBytes),
		}, nil
	}
	ix, err := types.DecodeInstruction(tx)
	if err != nil {
		return types.GateVerdict{Code: ledger.ErrInvalidInstruction.Code, Info: err.Error()}, nil
	}
	if err := ledger.Validate(ix); err != nil {
		code, info := outcomeOf(err)
		return types.GateVerdict{Code: code, Info: info}, nil
	}
	priority := priorityAdmin
	if ix.Prefix() == types.TxVote {
		priority = priorityVote
	}
	return types.GateVerdict{Priority: priority, Sender: ix.Signer().String()}, nil
}

func (a *App) ExecuteBlock(_ context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	a.mu.RLock()
	want := a.height + 1
	if a.height == 0 {
		want = a.initialHeight
	}
	a.mu.RUnlock()

	if block.Height != want {
		return types.BlockOutcome{}, govledger.NewHaltError(block.Height,
			fmt.Sprintf("expected block height %d", want))
	}

	txn := store.NewTxn(a.backend)
	outcomes := make([]types.TxOutcome, len(block.Txs))
	for i, tx := range block.Txs {
		outcome, err := a.execute(txn, uint32(i), tx, true)
		if err != nil {
			txn.Discard()
			return types.BlockOutcome{}, govledger.Halt(block.Height, err)
		}
		outcomes[i] = outcome
	}

	h, err := computeAppHash(txn, block.Height)
	if err != nil {
		txn.Discard()
		return types.BlockOutcome{}, govledger.Halt(block.Height, err)
	}

	a.mu.Lock()
	a.pending = &staged{txn: txn, height: block.Height, time: block.Time, appHash: h}
	a.mu.Unlock()

	return types.BlockOutcome{TxOutcomes: outcomes, AppHash: h}, nil
}

func (a *App) Commit(_ context.Context) (types.CommitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending
	if p == nil {
		return types.CommitResult{}, fmt.Errorf("no executed block to commit")
	}
	cp := store.Checkpoint{Height: p.height, AppHash: p.appHash}
	if err := a.backend.Commit(p.txn.Ops(), cp); err != nil {
		return types.CommitResult{}, fmt.Errorf("commit height %d: %w", p.height, err)
	}
	p.txn.Discard()
	a.pending = nil
	a.height = p.height
	a.appHash = p.appHash
	a.metrics.height.Set(float64(p.height))

	a.logger.Info("committed block",
		zap.Uint64("height", p.height),
		zap.Stringer("time", p.time),
		zap.String("appHash", fmt.Sprintf("%x", p.appHash[:])))
	return types.CommitResult{Height: p.height, RetainHeight: p.height}, nil
}

// ---------------------------------------------------------------------------
// Simulator
// ---------------------------------------------------------------------------

func (a *App) Simulate(_ context.Context, tx types.Tx) (types.TxOutcome, error) {
	txn := store.NewTxn(a.backend)
	defer txn.Discard()
	return a.execute(txn, 0, tx, false)
}

// ---------------------------------------------------------------------------
// Internal: instruction execution
// ---------------------------------------------------------------------------

// execute runs one instruction against s. Ledger failures become the
// outcome's code; any other error (backend I/O) is returned. Metrics
// are recorded only when count is set, so simulations stay uncounted.
func (a *App) execute(s store.Store, index uint32, tx types.Tx, count bool) (types.TxOutcome, error) {
	ix, err := types.DecodeInstruction(tx)
	if err != nil {
		a.metrics.countTx(count, "unknown", ledger.ErrInvalidInstruction.Name)
		return types.TxOutcome{
			Index: index,
			Code:  ledger.ErrInvalidInstruction.Code,
			Info:  err.Error(),
		}, nil
	}

	var (
		data   []byte
		events []types.Event
	)
	switch ix := ix.(type) {
	case types.Initialize:
		err = a.prog.Initialize(s, ix.Dao, ix.Payer, ix.Name)
		if err == nil {
			data = ix.Dao.Bytes()
			events = []types.Event{daoInitialized(ix)}
		}
	case types.CreateProposal:
		var addr address.Address
		addr, err = a.prog.CreateProposal(s, ix.Dao, ix.Payer, ix.Title, ix.Description)
		if err == nil {
			data = addr.Bytes()
			events = []types.Event{proposalCreated(ix, addr)}
		}
	case types.Vote:
		var res ledger.VoteResult
		res, err = a.prog.Vote(s, ix.Proposal, ix.Dao, ix.User, ix.Choice)
		if err == nil {
			data = res.Voter.Bytes()
			events = []types.Event{voteCast(ix)}
			if count {
				a.metrics.votes.WithLabelValues(choiceLabel(ix.Choice)).Inc()
			}
		}
	}

	if err != nil {
		if _, ok := ledger.AsError(err); !ok {
			return types.TxOutcome{}, fmt.Errorf("%s: %w", ix.Method(), err)
		}
		code, info := outcomeOf(err)
		e, _ := ledger.ErrorByCode(code)
		a.metrics.countTx(count, ix.Method(), e.Name)
		a.logger.Debug("instruction failed",
			zap.Uint32("index", index),
			zap.String("instruction", ix.Method()),
			zap.Uint32("code", code),
			zap.String("info", info))
		return types.TxOutcome{Index: index, Code: code, Info: info}, nil
	}
	a.metrics.countTx(count, ix.Method(), "ok")
	return types.TxOutcome{Index: index, Data: data, Events: events}, nil
}

// outcomeOf returns the code and message reported for a ledger error.
func outcomeOf(err error) (uint32, string) {
	e, ok := ledger.AsError(err)
	if !ok {
		return CodeRejected, err.Error()
	}
	return e.Code, err.Error()
}

// computeAppHash hashes every (address, record) pair in address order,
// then the height.
func computeAppHash(r store.Reader, height uint64) (types.AppHash, error) {
	h := sha256.New()
	var n [8]byte
	err := r.Iterate(func(addr address.Address, value []byte) error {
		h.Write(addr[:])
		binary.BigEndian.PutUint64(n[:], uint64(len(value)))
		h.Write(n[:])
		h.Write(value)
		return nil
	})
	if err != nil {
		return types.AppHash{}, fmt.Errorf("hash state: %w", err)
	}
	binary.BigEndian.PutUint64(n[:], height)
	h.Write(n[:])
	var out types.AppHash
	copy(out[:], h.Sum(nil))
	return out, nil
}

func choiceLabel(choice bool) string {
	if choice {
		return "yes"
	}
	return "no"
}
