package transport

import (
	"context"

	"github.com/cuemby/raft/pkg/raft"
	"google.golang.org/grpc"
)

// ClusterAPI is the client-facing counterpart to RaftTransport: the
// leader-only entrypoints a caller uses to submit commands and change
// cluster membership, carried over the same GobCodec wire format.

type ApplyRequest struct{ Payload []byte }

// ApplyResponse carries the FSM's return value re-encoded as bytes: gob
// can only carry an interface value across the wire if its concrete type
// was registered up front, which would tie this package to whichever FSM
// is plugged in. The default KVStore FSM always returns nil, so Result is
// only populated for FSMs whose Apply returns a []byte-able value.
type ApplyResponse struct{ Result []byte }

type BarrierRequest struct{}
type BarrierResponse struct{}

type AddRequest struct {
	ID   raft.ServerID
	Role raft.Role
}
type AddResponse struct{}

type AssignRequest struct {
	ID   raft.ServerID
	Role raft.Role
}
type AssignResponse struct{}

type JointPromoteRequest struct {
	ID       raft.ServerID
	Role     raft.Role
	RemoveID raft.ServerID
}
type JointPromoteResponse struct{}

type RemoveRequest struct{ ID raft.ServerID }
type RemoveResponse struct{}

type TransferRequest struct{ Target raft.ServerID }
type TransferResponse struct{}

const clusterServiceName = "raft.ClusterAPI"

// ClusterHandler receives the client-facing RPCs and routes them to a
// local Raft instance's leader-only methods.
type ClusterHandler interface {
	Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error)
	Barrier(ctx context.Context, req *BarrierRequest) (*BarrierResponse, error)
	Add(ctx context.Context, req *AddRequest) (*AddResponse, error)
	Assign(ctx context.Context, req *AssignRequest) (*AssignResponse, error)
	JointPromote(ctx context.Context, req *JointPromoteRequest) (*JointPromoteResponse, error)
	Remove(ctx context.Context, req *RemoveRequest) (*RemoveResponse, error)
	Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error)
}

func applyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ApplyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.Apply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/Apply"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.Apply(ctx, req.(*ApplyRequest))
	})
}

func barrierHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BarrierRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.Barrier(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/Barrier"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.Barrier(ctx, req.(*BarrierRequest))
	})
}

func addHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.Add(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/Add"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.Add(ctx, req.(*AddRequest))
	})
}

func assignHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AssignRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.Assign(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/Assign"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.Assign(ctx, req.(*AssignRequest))
	})
}

func jointPromoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(JointPromoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.JointPromote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/JointPromote"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.JointPromote(ctx, req.(*JointPromoteRequest))
	})
}

func removeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RemoveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.Remove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/Remove"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.Remove(ctx, req.(*RemoveRequest))
	})
}

func transferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(ClusterHandler)
	if interceptor == nil {
		return h.Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + clusterServiceName + "/Transfer"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return h.Transfer(ctx, req.(*TransferRequest))
	})
}

// ClusterServiceDesc is the hand-written grpc.ServiceDesc for ClusterAPI,
// riding the same GobCodec as ServiceDesc (RaftTransport) rather than a
// generated .proto stub.
var ClusterServiceDesc = grpc.ServiceDesc{
	ServiceName: clusterServiceName,
	HandlerType: (*ClusterHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: applyHandler},
		{MethodName: "Barrier", Handler: barrierHandler},
		{MethodName: "Add", Handler: addHandler},
		{MethodName: "Assign", Handler: assignHandler},
		{MethodName: "JointPromote", Handler: jointPromoteHandler},
		{MethodName: "Remove", Handler: removeHandler},
		{MethodName: "Transfer", Handler: transferHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/transport/cluster.go",
}
