package raft

import "time"

// noopPgrep is the default PgrepHook: it never throttles, so the core
// behaves exactly like plain Raft when no catch-up fencing is configured.
type noopPgrep struct{}

func (noopPgrep) Permit(ServerID) bool                 { return true }
func (noopPgrep) Unpermit(ServerID)                    {}
func (noopPgrep) Tick()                                {}
func (noopPgrep) Boundary(ServerID) Index              { return 0 }
func (noopPgrep) ResetCheckpoint(ServerID)             {}
func (noopPgrep) UpdateLastContactTime(ServerID, time.Time) {}

// pgrepPermitSend asks the hook for a send permit before dispatching a
// pgrep-flagged AppendEntries to a Standby/promotee follower, and marks
// the follower as mid-throttled-replication while the permit is held.
func (r *Raft) pgrepPermitSend(p *Progress) bool {
	if !r.hook.Permit(p.ID) {
		return false
	}
	p.Pgreplicating = true
	return true
}

// pgrepRelease releases a previously granted send permit once the send or
// the follower's apply loop has caught up.
func (r *Raft) pgrepRelease(p *Progress) {
	if !p.Pgreplicating {
		return
	}
	p.Pgreplicating = false
	r.hook.Unpermit(p.ID)
}

// pgrepResync lets a follower accepting a pgrep-flagged AppendEntries
// resynchronize its snapshot boundary to the leader's prev_log_index when
// its durable log has fallen behind, so the next InstallSnapshot does not
// have to transfer data the pgrep process is already catching up.
func (r *Raft) pgrepResync(prevLogIndex Index) {
	if r.log.LastIndex() >= prevLogIndex {
		return
	}
	term := r.log.TermOf(prevLogIndex)
	r.log.Restore(prevLogIndex, term)
	r.hook.ResetCheckpoint(r.id)
}
