package raft

import (
	"fmt"
	"time"
)

// replicationHeartbeat drives AppendEntries for every replicable peer:
// Voter, Standby, Logger, and any Spare currently being promoted.
func (r *Raft) replicationHeartbeat(now time.Time) {
	for _, p := range r.progress {
		if p.ID == r.id {
			continue
		}
		spec, ok := r.config.Find(p.ID)
		if !ok {
			continue
		}
		if spec.Role == RoleSpare && spec.RoleNew == RoleSpare {
			if _, promoting := r.promotions[p.ID]; !promoting {
				continue
			}
		}
		if p.ShouldReplicate(now, r.opts.HeartbeatInterval, r.opts.SnapshotTimeout, r.log.LastIndex(), r.opts.InflightThreshold) {
			r.replicationProgress(p, now)
		}
	}
}

// replicationProgress sends one AppendEntries (or InstallSnapshot, if the
// follower has fallen behind the snapshot boundary) to a single follower.
func (r *Raft) replicationProgress(p *Progress, now time.Time) {
	prevIndex := p.NextIndex - 1
	prevTerm := r.log.TermOf(prevIndex)
	if prevTerm == 0 && prevIndex > r.log.SnapshotIndex() {
		// Gap we can't explain: fall back to probing from the snapshot.
		p.NextIndex = r.log.SnapshotIndex() + 1
		prevIndex = p.NextIndex - 1
		prevTerm = r.log.TermOf(prevIndex)
	}
	if prevIndex < r.log.SnapshotIndex() || (prevIndex == r.log.SnapshotIndex() && prevTerm == 0 && prevIndex != 0) {
		r.beginInstallSnapshot(p, now)
		return
	}

	entries := r.log.AcquireSection(p.NextIndex, r.log.LastIndex())
	args := &AppendEntriesArgs{
		Term:         r.currentTerm,
		Leader:       r.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: r.commitIndex,
	}
	pgrep := false
	spec, _ := r.config.Find(p.ID)
	if spec.Role == RoleStandby || spec.Role == RoleSpare {
		if !r.pgrepPermitSend(p) {
			r.log.Release(entries)
			return
		}
		pgrep = true
		args.Pgrep = true
	}

	p.LastSendTime = now
	if p.State == ProgressPipeline && len(entries) > 0 {
		p.OptimisticNextIndex(len(entries))
	}

	msg := Message{Type: MsgAppendEntries, From: r.id, To: p.ID, Term: r.currentTerm, AppendEntries: args}
	r.io.Send(p.ID, msg, func(error) {
		r.submit(func(r *Raft) {
			r.log.Release(entries)
			if pgrep {
				r.pgrepRelease(p)
			}
		})
	})
}

// onAppendEntries is the follower side of replication: log-matching check,
// conflict truncation, async durable append, then commit/apply advance.
func (r *Raft) onAppendEntries(msg Message) {
	args := msg.AppendEntries
	r.leader = args.Leader
	r.resetElectionDeadline()
	if r.state != StateFollower {
		r.becomeFollower(r.currentTerm, args.Leader)
	}

	if args.Pgrep {
		r.pgrepResync(args.PrevLogIndex)
	}

	if args.PrevLogIndex > 0 {
		localTerm := r.log.TermOf(args.PrevLogIndex)
		if localTerm != args.PrevLogTerm {
			if args.PrevLogIndex <= r.commitIndex {
				r.becomeUnavailable(ErrShutdown)
				return
			}
			r.replyAppendEntries(args.Leader, false, args.PrevLogIndex, r.lastStored, args.Pgrep)
			return
		}
	}

	conflictAt := Index(0)
	for _, e := range args.Entries {
		if e.Index <= r.commitIndex {
			continue
		}
		local := r.log.TermOf(e.Index)
		if local != 0 && local != e.Term {
			conflictAt = e.Index
			break
		}
	}
	if conflictAt != 0 {
		if err := r.io.Truncate(conflictAt); err != nil {
			r.io.Send(args.Leader, Message{Type: MsgAppendEntriesResult, From: r.id, To: args.Leader, Term: r.currentTerm,
				AppendEntriesResult: &AppendEntriesReply{Term: r.currentTerm, Success: false, Rejected: args.PrevLogIndex}}, func(error) {})
			return
		}
		r.log.Discard(conflictAt)
		if r.pendingConfigIndex != 0 && r.pendingConfigIndex >= conflictAt {
			r.pendingConfigIndex = 0
		}
		if r.lastStored >= conflictAt {
			r.lastStored = conflictAt - 1
		}
		r.registry.failFrom(conflictAt, ErrDiscard)
	}

	var toAppend []*LogEntry
	for _, e := range args.Entries {
		if (conflictAt == 0 || e.Index >= conflictAt) && r.log.Get(e.Index) == nil {
			toAppend = append(toAppend, e)
		}
	}
	if len(toAppend) > 0 {
		r.log.AppendFollower(toAppend)
	}

	if len(toAppend) == 0 {
		r.finishAppendEntries(args)
		return
	}

	r.io.Append(toAppend, r.ioCompletion(func(r *Raft) {
		last := toAppend[len(toAppend)-1]
		r.lastStored = last.Index
		r.finishAppendEntries(args)
	}))
}

func (r *Raft) finishAppendEntries(args *AppendEntriesArgs) {
	for _, e := range args.Entries {
		if e.Type == EntryConfigChange && e.Index > r.commitIndex {
			r.pendingConfigIndex = e.Index
		}
	}
	if args.LeaderCommit > r.commitIndex {
		ci := args.LeaderCommit
		if r.lastStored < ci {
			ci = r.lastStored
		}
		r.commitIndex = ci
	}
	r.runApplyLoop()
	r.replyAppendEntries(args.Leader, true, 0, r.lastStored, args.Pgrep)
}

func (r *Raft) replyAppendEntries(to ServerID, success bool, rejected, lastLogIndex Index, pgrep bool) {
	reply := &AppendEntriesReply{Term: r.currentTerm, Success: success, Rejected: rejected, LastLogIndex: lastLogIndex, Pgrep: pgrep}
	if pgrep && r.lastApplying > r.lastApplied {
		// Suppress the reply until the apply loop catches up so the
		// leader does not open the next pgrep window early.
		return
	}
	r.io.Send(to, Message{Type: MsgAppendEntriesResult, From: r.id, To: to, Term: r.currentTerm, AppendEntriesResult: reply}, func(error) {})
}

// onAppendEntriesResult is the leader side of a reply: progress update,
// quorum recompute, retry-on-reject.
func (r *Raft) onAppendEntriesResult(msg Message) {
	if r.state != StateLeader {
		return
	}
	p := findProgress(r.progress, msg.From)
	if p == nil {
		return
	}
	reply := msg.AppendEntriesResult
	p.MarkRecentRecv()
	r.hook.UpdateLastContactTime(msg.From, r.io.Now())

	if !reply.Success {
		r.publish("append_entries.rejected", fmt.Sprintf("peer %d rejected at %d", msg.From, reply.Rejected), map[string]string{
			"peer": fmt.Sprint(msg.From),
		})
		if r.log.LastIndex() == 1 {
			// special-case: brand-new follower with an empty log.
			p.MaybeDecrement(reply.Rejected, 1)
		} else {
			p.MaybeDecrement(reply.Rejected, reply.LastLogIndex)
		}
		r.replicationProgress(p, r.io.Now())
		return
	}

	p.MaybeUpdate(reply.LastLogIndex, r.log.LastIndex())
	r.replicationQuorum(reply.LastLogIndex)
	r.maybeCompletePromotion(p)
	if !p.IsUpToDate(r.log.LastIndex()) {
		r.replicationProgress(p, r.io.Now())
	}
}

// replicationQuorum advances commit_index to index if a majority of
// Voters in every active group has matched it, and index's term is the
// current term (entries from earlier terms commit only transitively).
func (r *Raft) replicationQuorum(index Index) {
	if index <= r.commitIndex {
		return
	}
	if r.log.TermOf(index) != r.currentTerm {
		return
	}
	groups := []Group{GroupOld}
	if r.config.Phase == PhaseJoint {
		groups = append(groups, GroupNew)
	}
	for _, g := range groups {
		voters := r.config.Voters(g)
		if len(voters) == 0 {
			continue
		}
		matched := 0
		for _, id := range voters {
			if id == r.id {
				matched++
				continue
			}
			if p := findProgress(r.progress, id); p != nil && p.MatchIndex >= index {
				matched++
			}
		}
		if matched*2 <= len(voters) {
			return
		}
	}
	if index > r.lastStored {
		index = r.lastStored
	}
	if index <= r.commitIndex {
		return
	}
	r.commitIndex = index
	r.runApplyLoop()
}

// runApplyLoop applies committed entries to the FSM in order, batching up
// to ApplyBatchSize entries per invocation so the event loop stays
// responsive to other inputs while a backlog is draining.
func (r *Raft) runApplyLoop() {
	if r.state != StateLeader && r.state != StateFollower {
		return
	}
	n := 0
	for r.lastApplying < r.commitIndex && n < r.opts.ApplyBatchSize {
		idx := r.lastApplying + 1
		entry := r.log.Get(idx)
		if entry == nil {
			break
		}
		r.lastApplying = idx
		n++
		r.applyEntry(entry)
	}
	if n > 0 {
		r.publish("entry.committed", fmt.Sprintf("applied through index %d", r.lastApplying), map[string]string{
			"index": fmt.Sprint(r.lastApplying),
		})
	}
	if r.lastApplying == r.lastApplied &&
		uint64(r.lastApplied-r.log.SnapshotIndex()) >= r.opts.SnapshotThreshold &&
		!r.snapshotInProgress {
		r.takeSnapshot()
	}
}

// applyEntry applies a single committed entry synchronously. The FSM
// contract here is a direct call rather than a callback: batching and
// reentrancy into the event loop are handled by runApplyLoop's caller.
func (r *Raft) applyEntry(entry *LogEntry) {
	switch entry.Type {
	case EntryBarrier:
		r.lastApplied = entry.Index
		r.registry.fire(entry.Index, nil, nil)
	case EntryConfigChange:
		// Fire this entry's own callback before installing it: a leader
		// that removes itself steps down inside installConfiguration, which
		// fails every callback still pending with ErrNotLeader.
		r.lastApplied = entry.Index
		r.registry.fire(entry.Index, entry.Config, nil)
		r.installConfiguration(entry)
	case EntryCommand:
		start := time.Now()
		result, err := r.fsm.Apply(entry.Payload)
		r.publish("fsm.applied", fmt.Sprintf("applied entry %d", entry.Index), map[string]string{
			"duration_seconds": fmt.Sprintf("%f", time.Since(start).Seconds()),
		})
		r.lastApplied = entry.Index
		r.registry.fire(entry.Index, result, err)
	}
}
