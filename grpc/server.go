package ledgergrpc

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/log"
	"github.com/blockberries/govledger/server"
	"github.com/blockberries/govledger/types"
)

// Compile-time interface check.
var _ LedgerServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes the ledger application as a gRPC service. Calls
// go through a lifecycle server, so ordering violations are rejected
// before they reach the application.
type GRPCServer struct {
	srv    *server.Server
	logger *zap.Logger
}

// NewGRPCServer creates a gRPC server wrapping the given application.
func NewGRPCServer(app govledger.Lifecycle) *GRPCServer {
	logger := log.Logger("grpc")
	return &GRPCServer{
		srv:    server.New(app, server.WithLogger(logger)),
		logger: logger,
	}
}

// NewServer returns a grpc.Server with the ledger service registered
// and a logging interceptor installed.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logCalls))
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

// Register adds the ledger service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterLedgerServiceServer(gs, s)
}

// Serve starts the gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	return s.NewServer(opts...).Serve(lis)
}

// Server returns the underlying lifecycle server.
func (s *GRPCServer) Server() *server.Server {
	return s.srv
}

func (s *GRPCServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{zap.String("method", info.FullMethod), zap.Duration("took", time.Since(start))}
	if err != nil {
		s.logger.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("rpc", fields...)
	}
	return resp, err
}

// toStatus maps lifecycle errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, server.ErrOutOfOrder) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	if h, ok := govledger.IsHalt(err); ok {
		return status.Error(codes.Aborted, h.Reason)
	}
	return status.Error(codes.Internal, err.Error())
}

// --- Lifecycle RPCs ---

func (s *GRPCServer) Handshake(ctx context.Context, req *types.HandshakeRequest) (*types.HandshakeResponse, error) {
	resp, err := s.srv.Handshake(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func (s *GRPCServer) CheckTx(ctx context.Context, req *CheckTxRequest) (*types.GateVerdict, error) {
	verdict, err := s.srv.CheckTx(ctx, req.Tx, req.Context)
	if err != nil {
		return nil, toStatus(err)
	}
	return &verdict, nil
}

func (s *GRPCServer) ExecuteBlock(ctx context.Context, block *types.FinalizedBlock) (*types.BlockOutcome, error) {
	outcome, err := s.srv.ExecuteBlock(ctx, *block)
	if err != nil {
		return nil, toStatus(err)
	}
	return &outcome, nil
}

func (s *GRPCServer) Commit(ctx context.Context, _ *CommitRequest) (*types.CommitResult, error) {
	result, err := s.srv.Commit(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &result, nil
}

func (s *GRPCServer) Query(ctx context.Context, req *types.StateQuery) (*types.StateQueryResult, error) {
	result, err := s.srv.Query(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &result, nil
}

// --- Simulator RPC ---

func (s *GRPCServer) Simulate(ctx context.Context, req *SimulateRequest) (*types.TxOutcome, error) {
	outcome, err := s.srv.Simulate(ctx, req.Tx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &outcome, nil
}
