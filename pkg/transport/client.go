package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/raft/pkg/raft"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Resolver maps a raft server id to the dial address of its transport
// endpoint. The core has no notion of network addresses; wiring id to
// address is entirely this package's concern.
type Resolver interface {
	Address(id raft.ServerID) (string, bool)
}

// StaticResolver is a Resolver backed by a fixed id-to-address map, the
// common case for a cluster whose membership changes go through joint
// consensus but whose peer addresses are known up front via configuration.
type StaticResolver map[raft.ServerID]string

func (m StaticResolver) Address(id raft.ServerID) (string, bool) {
	addr, ok := m[id]
	return addr, ok
}

// Client implements the Send half of raft.IOProvider: it lazily dials peers
// by id, caches the connection, and carries one Envelope per Dispatch call.
type Client struct {
	resolver Resolver
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[raft.ServerID]*grpc.ClientConn
}

// NewClient builds a Client that resolves peer addresses via r.
func NewClient(r Resolver) *Client {
	return &Client{
		resolver: r,
		dialOpts: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.ForceCodec(GobCodec{})),
			grpc.WithChainUnaryInterceptor(ClientLoggingInterceptor()),
		},
		conns: make(map[raft.ServerID]*grpc.ClientConn),
	}
}

func (c *Client) connFor(id raft.ServerID) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cc, ok := c.conns[id]; ok {
		return cc, nil
	}
	addr, ok := c.resolver.Address(id)
	if !ok {
		return nil, fmt.Errorf("no address known for server %d", id)
	}
	cc, err := grpc.NewClient(addr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial server %d at %s: %w", id, addr, err)
	}
	c.conns[id] = cc
	return cc, nil
}

// Send implements IOProvider.Send: it dials (or reuses a connection to)
// target and delivers msg, invoking done on the calling goroutine's behalf
// once the RPC completes or fails. Per IOProvider's contract this never
// blocks the caller's own event loop — the RPC runs on its own goroutine.
func (c *Client) Send(target raft.ServerID, msg raft.Message, done func(error)) {
	go func() {
		cc, err := c.connFor(target)
		if err != nil {
			done(err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ack := new(Ack)
		err = cc.Invoke(ctx, "/"+serviceName+"/Dispatch", &Envelope{Msg: msg}, ack, grpc.ForceCodec(GobCodec{}))
		done(err)
	}()
}

// ClusterClient invokes the ClusterAPI RPCs (Apply, Barrier, Add, Assign,
// JointPromote, Remove, Transfer) against one remote server's transport
// endpoint, the same connection RaftTransport rides.
type ClusterClient struct {
	conn *grpc.ClientConn
}

// NewClusterClient dials addr once; the returned client reuses that
// connection for every call.
func NewClusterClient(addr string) (*ClusterClient, error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(GobCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &ClusterClient{conn: cc}, nil
}

func (c *ClusterClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+clusterServiceName+"/"+method, in, out, grpc.ForceCodec(GobCodec{}))
}

func (c *ClusterClient) Apply(ctx context.Context, payload []byte) (*ApplyResponse, error) {
	resp := new(ApplyResponse)
	if err := c.invoke(ctx, "Apply", &ApplyRequest{Payload: payload}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ClusterClient) Barrier(ctx context.Context) error {
	return c.invoke(ctx, "Barrier", &BarrierRequest{}, new(BarrierResponse))
}

func (c *ClusterClient) Add(ctx context.Context, id raft.ServerID, role raft.Role) error {
	return c.invoke(ctx, "Add", &AddRequest{ID: id, Role: role}, new(AddResponse))
}

func (c *ClusterClient) Assign(ctx context.Context, id raft.ServerID, role raft.Role) error {
	return c.invoke(ctx, "Assign", &AssignRequest{ID: id, Role: role}, new(AssignResponse))
}

func (c *ClusterClient) JointPromote(ctx context.Context, id raft.ServerID, role raft.Role, removeID raft.ServerID) error {
	return c.invoke(ctx, "JointPromote", &JointPromoteRequest{ID: id, Role: role, RemoveID: removeID}, new(JointPromoteResponse))
}

func (c *ClusterClient) Remove(ctx context.Context, id raft.ServerID) error {
	return c.invoke(ctx, "Remove", &RemoveRequest{ID: id}, new(RemoveResponse))
}

func (c *ClusterClient) Transfer(ctx context.Context, target raft.ServerID) error {
	return c.invoke(ctx, "Transfer", &TransferRequest{Target: target}, new(TransferResponse))
}

// Close tears down the underlying connection.
func (c *ClusterClient) Close() error {
	return c.conn.Close()
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, cc := range c.conns {
		if err := cc.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection to %d: %w", id, err)
		}
	}
	c.conns = make(map[raft.ServerID]*grpc.ClientConn)
	return firstErr
}
