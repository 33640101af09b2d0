package transport

import (
	"context"

	"github.com/cuemby/raft/pkg/raft"
	"google.golang.org/grpc"
)

// Envelope carries one raft.Message over the wire. raft.Message is a
// plain exported struct, so gob (via GobCodec) can carry it directly
// without generated marshal code.
type Envelope struct {
	Msg raft.Message
}

// Ack is the empty response to a delivered Envelope: the RPC only
// reports local dispatch, per the IOProvider.Send contract — it is not a
// substitute for the Raft-level reply, which travels back as its own
// Dispatch call.
type Ack struct{}

const serviceName = "raft.Transport"

// Handler receives RPC envelopes routed to this process's local Raft
// instance.
type Handler interface {
	Deliver(msg raft.Message)
}

func dispatch(h Handler, in *Envelope) (*Ack, error) {
	h.Deliver(in.Msg)
	return &Ack{}, nil
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return dispatch(h, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Dispatch"}
	wrapped := func(ctx context.Context, req any) (any, error) {
		return dispatch(h, req.(*Envelope))
	}
	return interceptor(ctx, in, info, wrapped)
}

// ServiceDesc is the hand-written grpc.ServiceDesc a protoc-gen-go-grpc
// run would normally produce for a single-RPC "Transport" service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/transport/service.go",
}
