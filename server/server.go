package server

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/log"
	"github.com/blockberries/govledger/types"
)

// Compile-time interface check.
var _ govledger.Connection = (*Server)(nil)

// Server wraps the ledger application with lifecycle enforcement and
// capability routing. The engine talks to the application only
// through this server, either in process or behind the gRPC service.
type Server struct {
	app    govledger.Lifecycle
	guard  *LifecycleGuard
	caps   types.Capabilities
	logger *zap.Logger

	// nil if not supported.
	simulator govledger.Simulator

	// Held between ExecuteBlock and Commit.
	mu             sync.Mutex
	lastOutcome    *types.BlockOutcome
	lastExecHeight uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new Server wrapping the given application.
func New(app govledger.Lifecycle, opts ...Option) *Server {
	s := &Server{
		app:    app,
		guard:  NewLifecycleGuard(),
		logger: log.Logger("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.simulator, _ = app.(govledger.Simulator)
	return s
}

// Handshake performs the startup handshake, validates capability
// declarations, and transitions the state machine to Ready.
func (s *Server) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	if err := s.guard.AcquireHandshake(); err != nil {
		s.logger.Warn("rejected lifecycle call", zap.Error(err))
		return types.HandshakeResponse{}, err
	}

	resp, err := s.app.Handshake(ctx, req)
	if err != nil {
		s.guard.FailHandshake()
		return resp, err
	}

	if err := s.discoverCapabilities(resp.Capabilities); err != nil {
		s.guard.FailHandshake()
		return resp, err
	}

	s.caps = resp.Capabilities
	s.guard.CompleteHandshake()
	s.logger.Info("handshake complete",
		zap.Stringer("capabilities", resp.Capabilities),
		zap.Stringer("program", resp.ProgramID))
	return resp, nil
}

// CheckTx gate-checks an instruction for mempool admission.
// Safe for concurrent use.
func (s *Server) CheckTx(ctx context.Context, tx types.Tx, mctx types.MempoolContext) (types.GateVerdict, error) {
	if err := s.guard.CheckConcurrent("CheckTx"); err != nil {
		return types.GateVerdict{}, err
	}
	return s.app.CheckTx(ctx, tx, mctx)
}

// ExecuteBlock executes a finalized block.
func (s *Server) ExecuteBlock(ctx context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	if err := s.guard.AcquireExecute(); err != nil {
		s.logger.Warn("rejected lifecycle call", zap.Uint64("height", block.Height), zap.Error(err))
		return types.BlockOutcome{}, err
	}

	outcome, err := s.app.ExecuteBlock(ctx, block)
	if err != nil {
		s.guard.FailExecute()
		if h, ok := govledger.IsHalt(err); ok {
			s.logger.Error("ledger requested halt", zap.Uint64("height", h.Height), zap.String("reason", h.Reason))
		}
		return outcome, err
	}

	s.mu.Lock()
	s.lastOutcome = &outcome
	s.lastExecHeight = block.Height
	s.mu.Unlock()

	s.guard.CompleteExecute()
	return outcome, nil
}

// Commit persists the staged effects of the last ExecuteBlock. On
// failure the block stays executed and Commit may be retried.
func (s *Server) Commit(ctx context.Context) (types.CommitResult, error) {
	if err := s.guard.AcquireCommit(); err != nil {
		s.logger.Warn("rejected lifecycle call", zap.Error(err))
		return types.CommitResult{}, err
	}

	result, err := s.app.Commit(ctx)
	if err != nil {
		s.logger.Error("commit failed", zap.Uint64("height", s.lastExecHeight), zap.Error(err))
		s.guard.FailCommit()
		return result, err
	}

	s.mu.Lock()
	s.lastOutcome = nil
	s.mu.Unlock()

	s.guard.CompleteCommit()
	return result, nil
}

// Query reads committed state. Safe for concurrent use.
func (s *Server) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	if err := s.guard.CheckConcurrent("Query"); err != nil {
		return types.StateQueryResult{}, err
	}
	return s.app.Query(ctx, req)
}

// Capabilities returns the application's declared capabilities.
// Only valid after Handshake completes.
func (s *Server) Capabilities() types.Capabilities {
	return s.caps
}

// Simulate delegates to Simulator if supported.
// Safe for concurrent use.
func (s *Server) Simulate(ctx context.Context, tx types.Tx) (types.TxOutcome, error) {
	if s.simulator == nil {
		return types.TxOutcome{}, fmt.Errorf("govledger: Simulator not supported")
	}
	if err := s.guard.CheckConcurrent("Simulate"); err != nil {
		return types.TxOutcome{}, err
	}
	return s.simulator.Simulate(ctx, tx)
}

// AsSimulator returns the Simulator interface or nil.
func (s *Server) AsSimulator() govledger.Simulator {
	if s.caps.Has(types.CapSimulation) {
		return s
	}
	return nil
}

// LastOutcome returns the most recent BlockOutcome (between
// ExecuteBlock and Commit). Returns nil if no outcome is pending.
func (s *Server) LastOutcome() *types.BlockOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// State returns the lifecycle state name.
func (s *Server) State() string { return s.guard.State() }

// Close is a no-op for the server wrapper.
func (s *Server) Close() error { return nil }

// discoverCapabilities checks the declared capabilities against the
// interfaces the app implements.
func (s *Server) discoverCapabilities(declared types.Capabilities) error {
	_, hasSimulator := s.app.(govledger.Simulator)

	if declared.Has(types.CapSimulation) && !hasSimulator {
		return fmt.Errorf("govledger: app declared CapSimulation but does not implement Simulator")
	}
	if !declared.Has(types.CapSimulation) && hasSimulator {
		s.logger.Warn("app implements Simulator but did not declare it; capability will not be used")
	}
	return nil
}
