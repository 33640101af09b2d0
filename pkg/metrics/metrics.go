package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RaftState mirrors raft.State as a gauge: 0=Follower, 1=Candidate,
	// 2=Leader, 3=Unavailable, matching the ordering in pkg/raft/types.go.
	RaftState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_state",
			Help: "Current role of this server: 0=follower, 1=candidate, 2=leader, 3=unavailable",
		},
	)

	RaftTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_term",
			Help: "Current term",
		},
	)

	RaftCommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_commit_index",
			Help: "Highest log index known to be committed",
		},
	)

	RaftLastApplied = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_last_applied",
			Help: "Highest log index applied to the state machine",
		},
	)

	RaftLastStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raft_last_stored",
			Help: "Highest log index known to be durable",
		},
	)

	RaftReplicationMatchIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raft_replication_match_index",
			Help: "Leader's view of each peer's matched log index",
		},
		[]string{"peer"},
	)

	RaftElectionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raft_elections_started_total",
			Help: "Total number of term increases observed on this server by the status collector (pre-vote rounds do not change the term and are not counted)",
		},
	)

	RaftElectionsWonTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raft_elections_won_total",
			Help: "Total number of elections this server has won",
		},
	)

	RaftAppendEntriesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_append_entries_rejected_total",
			Help: "Total number of AppendEntries replies rejected by each peer",
		},
		[]string{"peer"},
	)

	RaftSnapshotsTakenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raft_snapshots_taken_total",
			Help: "Total number of snapshots taken by this server",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raft_apply_duration_seconds",
			Help:    "Time taken to apply one committed log entry to the state machine",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TransportDispatchDuration times inbound Dispatch RPCs handled by
	// pkg/transport's server side.
	TransportDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raft_transport_dispatch_duration_seconds",
			Help:    "Time taken to handle one inbound transport Dispatch call",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransportDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raft_transport_dispatch_total",
			Help: "Total number of inbound transport Dispatch calls by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RaftState,
		RaftTerm,
		RaftCommitIndex,
		RaftLastApplied,
		RaftLastStored,
		RaftReplicationMatchIndex,
		RaftElectionsStartedTotal,
		RaftElectionsWonTotal,
		RaftAppendEntriesRejectedTotal,
		RaftSnapshotsTakenTotal,
		RaftApplyDuration,
		TransportDispatchDuration,
		TransportDispatchTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
