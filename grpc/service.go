package ledgergrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/govledger/types"
)

const serviceName = "govledger.v1.LedgerService"

// LedgerServiceServer is the server-side interface for the ledger gRPC
// service.
type LedgerServiceServer interface {
	Handshake(context.Context, *types.HandshakeRequest) (*types.HandshakeResponse, error)
	CheckTx(context.Context, *CheckTxRequest) (*types.GateVerdict, error)
	ExecuteBlock(context.Context, *types.FinalizedBlock) (*types.BlockOutcome, error)
	Commit(context.Context, *CommitRequest) (*types.CommitResult, error)
	Query(context.Context, *types.StateQuery) (*types.StateQueryResult, error)
	Simulate(context.Context, *SimulateRequest) (*types.TxOutcome, error)
}

// RegisterLedgerServiceServer registers srv on a gRPC server.
func RegisterLedgerServiceServer(s *grpc.Server, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts a typed handler to grpc.MethodDesc, running the
// server's interceptor chain.
func unary[Req any, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Handshake", LedgerServiceServer.Handshake),
		unary("CheckTx", LedgerServiceServer.CheckTx),
		unary("ExecuteBlock", LedgerServiceServer.ExecuteBlock),
		unary("Commit", LedgerServiceServer.Commit),
		unary("Query", LedgerServiceServer.Query),
		unary("Simulate", LedgerServiceServer.Simulate),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "govledger/v1/service.cram",
}
