package transport

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/cuemby/raft/pkg/raft"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// fakeClusterHandler records the last call made to it, standing in for a
// *raft.Raft instance so the wire path can be tested without standing up a
// whole cluster.
type fakeClusterHandler struct {
	lastMethod string
	failWith   error
}

func (f *fakeClusterHandler) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error) {
	f.lastMethod = "Apply"
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &ApplyResponse{Result: req.Payload}, nil
}

func (f *fakeClusterHandler) Barrier(ctx context.Context, req *BarrierRequest) (*BarrierResponse, error) {
	f.lastMethod = "Barrier"
	return &BarrierResponse{}, f.failWith
}

func (f *fakeClusterHandler) Add(ctx context.Context, req *AddRequest) (*AddResponse, error) {
	f.lastMethod = "Add"
	return &AddResponse{}, f.failWith
}

func (f *fakeClusterHandler) Assign(ctx context.Context, req *AssignRequest) (*AssignResponse, error) {
	f.lastMethod = "Assign"
	return &AssignResponse{}, f.failWith
}

func (f *fakeClusterHandler) JointPromote(ctx context.Context, req *JointPromoteRequest) (*JointPromoteResponse, error) {
	f.lastMethod = "JointPromote"
	return &JointPromoteResponse{}, f.failWith
}

func (f *fakeClusterHandler) Remove(ctx context.Context, req *RemoveRequest) (*RemoveResponse, error) {
	f.lastMethod = "Remove"
	return &RemoveResponse{}, f.failWith
}

func (f *fakeClusterHandler) Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	f.lastMethod = "Transfer"
	return &TransferResponse{}, f.failWith
}

func startClusterServer(t *testing.T, h ClusterHandler) (*ClusterClient, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer(grpc.ForceCodec(GobCodec{}))
	srv.RegisterService(&ClusterServiceDesc, h)
	go srv.Serve(lis)

	client, err := NewClusterClient(lis.Addr().String())
	require.NoError(t, err)
	return client, func() {
		_ = client.Close()
		srv.Stop()
	}
}

func TestClusterClientApplyRoundTrip(t *testing.T) {
	h := &fakeClusterHandler{}
	client, stop := startClusterServer(t, h)
	defer stop()

	resp, err := client.Apply(context.Background(), []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), resp.Result)
	require.Equal(t, "Apply", h.lastMethod)
}

func TestClusterClientEveryMethodDispatches(t *testing.T) {
	h := &fakeClusterHandler{}
	client, stop := startClusterServer(t, h)
	defer stop()
	ctx := context.Background()

	require.NoError(t, client.Barrier(ctx))
	require.Equal(t, "Barrier", h.lastMethod)

	require.NoError(t, client.Add(ctx, raft.ServerID(2), raft.RoleSpare))
	require.Equal(t, "Add", h.lastMethod)

	require.NoError(t, client.Assign(ctx, raft.ServerID(2), raft.RoleVoter))
	require.Equal(t, "Assign", h.lastMethod)

	require.NoError(t, client.JointPromote(ctx, raft.ServerID(2), raft.RoleVoter, raft.ServerID(3)))
	require.Equal(t, "JointPromote", h.lastMethod)

	require.NoError(t, client.Remove(ctx, raft.ServerID(3)))
	require.Equal(t, "Remove", h.lastMethod)

	require.NoError(t, client.Transfer(ctx, raft.ServerID(2)))
	require.Equal(t, "Transfer", h.lastMethod)
}

func TestClusterClientPropagatesError(t *testing.T) {
	h := &fakeClusterHandler{failWith: errors.New("not leader")}
	client, stop := startClusterServer(t, h)
	defer stop()

	_, err := client.Apply(context.Background(), []byte("x"))
	require.Error(t, err)
}
