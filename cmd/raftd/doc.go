// Command raftd runs a single Raft consensus node: a YAML-configured
// process wiring pkg/storage (durable log and metadata), pkg/transport
// (peer RPC), pkg/fsm (the demo key-value state machine), and pkg/metrics
// (Prometheus + health endpoints) into one pkg/raft.Raft instance. Cluster
// management (adding/removing servers, leadership transfer, client
// applies) from the raftd CLI goes through a small JSON/HTTP admin API;
// the same transport listener also serves pkg/transport's gRPC ClusterAPI
// for remote callers.
package main
