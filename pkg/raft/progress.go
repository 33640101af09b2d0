package raft

import "time"

// ProgressState is the replication mode the leader is using for one
// follower.
type ProgressState uint8

const (
	ProgressProbe ProgressState = iota
	ProgressPipeline
	ProgressSnapshot
)

func (s ProgressState) String() string {
	switch s {
	case ProgressProbe:
		return "probe"
	case ProgressPipeline:
		return "pipeline"
	case ProgressSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Progress tracks one follower's replication state from the leader's
// point of view.
type Progress struct {
	ID    ServerID
	State ProgressState

	NextIndex     Index
	MatchIndex    Index
	SnapshotIndex Index

	LastSendTime         time.Time
	SnapshotLastSendTime time.Time
	RecentRecv           bool

	PrevAppliedIndex Index
	Pgreplicating    bool

	inflight int
}

// BuildProgress returns a fresh Progress array sized to config, with every
// entry initialized to Probe at lastIndex+1.
func BuildProgress(config *Configuration, lastIndex Index) []*Progress {
	out := make([]*Progress, len(config.Servers))
	for i, s := range config.Servers {
		out[i] = &Progress{ID: s.ID, State: ProgressProbe, NextIndex: lastIndex + 1}
	}
	return out
}

// RebuildProgress produces a Progress array for newConfig, carrying
// forward matching entries from old and initializing new ones to Probe at
// lastIndex+1.
func RebuildProgress(old []*Progress, newConfig *Configuration, lastIndex Index) []*Progress {
	byID := make(map[ServerID]*Progress, len(old))
	for _, p := range old {
		byID[p.ID] = p
	}
	out := make([]*Progress, len(newConfig.Servers))
	for i, s := range newConfig.Servers {
		if p, ok := byID[s.ID]; ok {
			out[i] = p
			continue
		}
		out[i] = &Progress{ID: s.ID, State: ProgressProbe, NextIndex: lastIndex + 1}
	}
	return out
}

func findProgress(ps []*Progress, id ServerID) *Progress {
	for _, p := range ps {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// IsUpToDate reports whether the follower's match index covers lastIndex.
func (p *Progress) IsUpToDate(lastIndex Index) bool {
	return p.MatchIndex >= lastIndex
}

// ShouldReplicate reports whether now warrants sending AppendEntries to
// this follower: a fresh heartbeat tick, or (in Pipeline) unsent entries
// under the inflight window, or (in Snapshot) an install timeout.
// inflightThreshold caps how many unacknowledged entries may be in flight
// to this follower before pipelining pauses for acks (Options.InflightThreshold).
func (p *Progress) ShouldReplicate(now time.Time, heartbeat, snapshotTimeout time.Duration, lastIndex Index, inflightThreshold int) bool {
	switch p.State {
	case ProgressProbe:
		return now.Sub(p.LastSendTime) >= heartbeat
	case ProgressPipeline:
		if !p.IsUpToDate(lastIndex) && p.inflight < inflightThreshold {
			return true
		}
		return now.Sub(p.LastSendTime) >= heartbeat
	case ProgressSnapshot:
		if now.Sub(p.SnapshotLastSendTime) >= snapshotTimeout {
			p.AbortSnapshot()
			return now.Sub(p.LastSendTime) >= heartbeat
		}
		return now.Sub(p.LastSendTime) >= heartbeat
	}
	return false
}

// MaybeUpdate advances match/next on a successful AppendEntries reply and
// transitions Snapshot->Probe or Probe->Pipeline as appropriate.
func (p *Progress) MaybeUpdate(replyLastIndex, lastIndex Index) bool {
	changed := false
	if replyLastIndex > p.MatchIndex {
		p.MatchIndex = replyLastIndex
		changed = true
	}
	if replyLastIndex+1 > p.NextIndex {
		p.NextIndex = replyLastIndex + 1
	}
	p.RecentRecv = true
	if p.inflight > 0 {
		p.inflight--
	}
	switch p.State {
	case ProgressSnapshot:
		if p.MatchIndex >= p.SnapshotIndex {
			p.State = ProgressProbe
			changed = true
		}
	case ProgressProbe:
		p.State = ProgressPipeline
		changed = true
	}
	return changed
}

// OptimisticNextIndex advances next_index speculatively after dispatching
// v entries in Pipeline state, ahead of the reply.
func (p *Progress) OptimisticNextIndex(v int) {
	p.NextIndex += Index(v)
	p.inflight++
}

// MaybeDecrement applies a rejection from the follower, per the state
// machine in the component design: Snapshot rejects only matching the
// pending snapshot index; Pipeline ignores stale rejects unless the
// follower reports an empty log; Probe accepts only an exact match.
func (p *Progress) MaybeDecrement(rejected, lastLogIndex Index) bool {
	switch p.State {
	case ProgressSnapshot:
		if rejected != p.SnapshotIndex {
			return false
		}
		p.AbortSnapshot()
		return true
	case ProgressPipeline:
		if rejected <= p.MatchIndex && lastLogIndex != 1 {
			return false
		}
		if lastLogIndex == 1 {
			p.NextIndex = 1
		} else {
			next := rejected
			if p.MatchIndex+1 < next {
				next = p.MatchIndex + 1
			}
			p.NextIndex = next
		}
		p.State = ProgressProbe
		p.inflight = 0
		return true
	case ProgressProbe:
		if rejected != p.NextIndex-1 {
			return false
		}
		next := rejected
		if lastLogIndex+1 < next {
			next = lastLogIndex + 1
		}
		if next < 1 {
			next = 1
		}
		p.NextIndex = next
		return true
	}
	return false
}

// ToProbe forces the follower back to conservative one-at-a-time matching.
func (p *Progress) ToProbe() {
	p.State = ProgressProbe
	p.inflight = 0
}

// ToPipeline switches to streaming-ahead replication.
func (p *Progress) ToPipeline() {
	p.State = ProgressPipeline
}

// ToSnapshot begins installing a snapshot at index snapIndex.
func (p *Progress) ToSnapshot(snapIndex Index, now time.Time) {
	p.State = ProgressSnapshot
	p.SnapshotIndex = snapIndex
	p.SnapshotLastSendTime = now
}

// AbortSnapshot falls back from Snapshot to Probe, e.g. on timeout or
// mismatched reject.
func (p *Progress) AbortSnapshot() {
	p.State = ProgressProbe
	p.SnapshotIndex = 0
}

// MarkRecentRecv records that a reply was just received from this
// follower, used by election-safety liveness checks.
func (p *Progress) MarkRecentRecv() { p.RecentRecv = true }
