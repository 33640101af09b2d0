// Package transport carries raft.Message envelopes between processes over
// gRPC. No protoc-generated stubs exist for this service: Envelope and Ack
// are plain Go structs, GobCodec forces gob encoding through grpc's
// encoding.Codec hook, and ServiceDesc is hand-written in the shape
// protoc-gen-go-grpc would otherwise produce for a single-RPC service.
package transport
