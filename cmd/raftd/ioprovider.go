package main

import (
	"github.com/cuemby/raft/pkg/storage"
	"github.com/cuemby/raft/pkg/transport"
)

// hostIO composes the durable half of raft.IOProvider (BoltIO) with the
// transport half (transport.Client) into one concrete value. Go's implicit
// interface satisfaction lets a struct embedding the two types satisfy the
// combined raft.IOProvider interface without any glue methods. Their
// method sets overlap only in Close, which raft.IOProvider does not
// include; the ambiguous Close is simply not promoted to hostIO.
type hostIO struct {
	*storage.BoltIO
	*transport.Client
}

func newHostIO(store *storage.BoltIO, client *transport.Client) *hostIO {
	return &hostIO{BoltIO: store, Client: client}
}
