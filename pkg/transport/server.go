package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/cuemby/raft/pkg/log"
	"github.com/cuemby/raft/pkg/raft"
	"google.golang.org/grpc"
)

// Server hosts the gRPC endpoint that receives RPC envelopes for one local
// Raft instance and hands them to its Receive method.
type Server struct {
	grpcServer *grpc.Server
	local      *raft.Raft
}

// NewServer wraps local so inbound envelopes reach its Receive method, and
// exposes its leader-only client entrypoints as ClusterAPI.
func NewServer(local *raft.Raft) *Server {
	s := &Server{local: local}
	s.grpcServer = grpc.NewServer(
		grpc.ForceCodec(GobCodec{}),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(), MetricsInterceptor()),
	)
	s.grpcServer.RegisterService(&ServiceDesc, s)
	s.grpcServer.RegisterService(&ClusterServiceDesc, &clusterAdapter{local: local})
	return s
}

// Deliver implements Handler.
func (s *Server) Deliver(msg raft.Message) {
	s.local.Receive(msg)
}

// clusterAdapter implements ClusterHandler by calling straight into a
// local *raft.Raft, translating its leader-only methods into the
// ClusterAPI request/response shapes carried over the wire.
type clusterAdapter struct {
	local *raft.Raft
}

func (a *clusterAdapter) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error) {
	result, err := a.local.Apply(ctx, req.Payload)
	if err != nil {
		return nil, err
	}
	b, _ := result.([]byte)
	return &ApplyResponse{Result: b}, nil
}

func (a *clusterAdapter) Barrier(ctx context.Context, _ *BarrierRequest) (*BarrierResponse, error) {
	if err := a.local.Barrier(ctx); err != nil {
		return nil, err
	}
	return &BarrierResponse{}, nil
}

func (a *clusterAdapter) Add(ctx context.Context, req *AddRequest) (*AddResponse, error) {
	if err := a.local.Add(ctx, req.ID, req.Role); err != nil {
		return nil, err
	}
	return &AddResponse{}, nil
}

func (a *clusterAdapter) Assign(ctx context.Context, req *AssignRequest) (*AssignResponse, error) {
	if err := a.local.Assign(ctx, req.ID, req.Role); err != nil {
		return nil, err
	}
	return &AssignResponse{}, nil
}

func (a *clusterAdapter) JointPromote(ctx context.Context, req *JointPromoteRequest) (*JointPromoteResponse, error) {
	if err := a.local.JointPromote(ctx, req.ID, req.Role, req.RemoveID); err != nil {
		return nil, err
	}
	return &JointPromoteResponse{}, nil
}

func (a *clusterAdapter) Remove(ctx context.Context, req *RemoveRequest) (*RemoveResponse, error) {
	if err := a.local.Remove(ctx, req.ID); err != nil {
		return nil, err
	}
	return &RemoveResponse{}, nil
}

func (a *clusterAdapter) Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	if err := a.local.Transfer(ctx, req.Target); err != nil {
		return nil, err
	}
	return &TransferResponse{}, nil
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	log.Info(fmt.Sprintf("raft transport listening on %s", lis.Addr()))
	return s.grpcServer.Serve(lis)
}

// GracefulStop drains in-flight RPCs before returning.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
