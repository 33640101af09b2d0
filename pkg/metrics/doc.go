/*
Package metrics provides Prometheus metrics collection and exposition, plus
liveness/readiness health endpoints, for a raftd process.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Collector                       │          │
	│  │  - Polls raft.Raft.Status() every 5s        │          │
	│  │  - Updates gauges and counters               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Registry                 │          │
	│  │  - raft_state, raft_term                    │          │
	│  │  - raft_commit_index, raft_last_applied     │          │
	│  │  - raft_replication_match_index{peer}       │          │
	│  │  - raft_elections_started/won_total         │          │
	│  │  - raft_apply_duration_seconds              │          │
	│  │  - raft_transport_dispatch_*                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            HTTP Handlers                     │          │
	│  │  /metrics  - Prometheus exposition           │          │
	│  │  /health   - aggregate component health      │          │
	│  │  /ready    - readiness (raft/storage/transport) │       │
	│  │  /live     - liveness                        │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

raft_state:
  - Current role: 0=follower, 1=candidate, 2=leader, 3=unavailable

raft_term:
  - Current term

raft_commit_index, raft_last_applied, raft_last_stored:
  - Log progress gauges

raft_replication_match_index{peer}:
  - Leader's view of each peer's matched index

raft_elections_started_total, raft_elections_won_total:
  - Election activity counters

raft_append_entries_rejected_total{peer}:
  - AppendEntries rejections observed per peer

raft_snapshots_taken_total:
  - Snapshots completed by this server

raft_apply_duration_seconds:
  - Histogram of FSM apply latency

raft_transport_dispatch_duration_seconds, raft_transport_dispatch_total{outcome}:
  - Inbound transport RPC latency and outcome counts

# Usage

Collector polls Status() for gauges; WatchEvents subscribes to the node's
event broker for metrics that only exist as transitions (a snapshot
completing, a rejection, one FSM apply's latency):

	collector := metrics.NewCollector(node)
	collector.Start()
	defer collector.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	metrics.WatchEvents(sub)

HTTP wiring:

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

Health components:

	metrics.RegisterComponent("raft", true, "running")
	metrics.RegisterComponent("storage", true, "open")
	metrics.RegisterComponent("transport", true, "listening")

Readiness considers "raft", "storage", and "transport" critical; missing or
unhealthy entries report not_ready.

# Timer

Timer is a small helper for histogram observation:

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDuration(metrics.RaftApplyDuration)
*/
package metrics
