package metrics

import (
	"strconv"
	"time"

	"github.com/cuemby/raft/pkg/events"
	"github.com/cuemby/raft/pkg/raft"
)

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Collector periodically exports a Raft instance's Status snapshot into the
// package's Prometheus gauges and counters.
type Collector struct {
	node   *raft.Raft
	stopCh chan struct{}

	lastTerm  raft.Term
	wasLeader bool
}

// NewCollector builds a Collector polling node.
func NewCollector(node *raft.Raft) *Collector {
	return &Collector{
		node:   node,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 5 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	status := c.node.Status()

	RaftState.Set(float64(status.State))
	RaftTerm.Set(float64(status.Term))
	RaftCommitIndex.Set(float64(status.CommitIndex))
	RaftLastApplied.Set(float64(status.LastApplied))
	RaftLastStored.Set(float64(status.LastStored))

	if status.Term > c.lastTerm {
		RaftElectionsStartedTotal.Inc()
		c.lastTerm = status.Term
	}
	isLeader := status.State == raft.StateLeader
	if isLeader && !c.wasLeader {
		RaftElectionsWonTotal.Inc()
	}
	c.wasLeader = isLeader

	for id, peer := range status.Progress {
		RaftReplicationMatchIndex.WithLabelValues(strconv.FormatUint(uint64(id), 10)).Set(float64(peer.MatchIndex))
	}
}

// WatchEvents drains sub in a goroutine, turning lifecycle events into
// metric updates the periodic Status poll can't observe directly (snapshots
// taken, AppendEntries rejections, FSM apply latency). It returns once sub
// is closed by the broker's Unsubscribe.
func WatchEvents(sub events.Subscriber) {
	go func() {
		for evt := range sub {
			switch evt.Type {
			case events.EventSnapshotTaken:
				RaftSnapshotsTakenTotal.Inc()
			case events.EventAppendEntriesRejected:
				RaftAppendEntriesRejectedTotal.WithLabelValues(evt.Metadata["peer"]).Inc()
			case events.EventFSMApplied:
				RaftApplyDuration.Observe(parseSeconds(evt.Metadata["duration_seconds"]))
			}
		}
	}()
}
