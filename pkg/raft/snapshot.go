package raft

import (
	"fmt"
	"time"
)

// takeSnapshot captures the FSM and the log metadata needed to resume
// replication from it, then asks the log to drop the entries it
// supersedes (short of the configured trailing window).
func (r *Raft) takeSnapshot() {
	if r.snapshotInProgress {
		return
	}
	r.snapshotInProgress = true
	index := r.lastApplied
	term := r.log.TermOf(index)
	cfg := r.config.Copy()
	data, err := r.fsm.Snapshot()
	if err != nil {
		r.snapshotInProgress = false
		r.logger.Error().Err(err).Msg("fsm snapshot failed")
		return
	}
	snap := &Snapshot{Index: index, Term: term, Config: cfg, Data: data}
	trailing := r.opts.SnapshotTrailing
	r.io.SnapshotPut(trailing, snap, r.ioCompletion(func(r *Raft) {
		r.snapshotInProgress = false
		r.log.Snapshot(index, trailing)
		r.logger.Debug().Uint64("index", uint64(index)).Msg("snapshot taken")
		r.publish("snapshot.taken", fmt.Sprintf("snapshot at index %d term %d", index, term), map[string]string{
			"index": fmt.Sprint(index),
			"term":  fmt.Sprint(term),
		})
	}))
}

// beginInstallSnapshot starts transferring a full snapshot to a follower
// whose next_index has fallen behind the in-memory log's retained prefix.
func (r *Raft) beginInstallSnapshot(p *Progress, now time.Time) {
	r.io.SnapshotGet(func(snap *Snapshot, err error) {
		r.submit(func(r *Raft) {
			if err != nil || snap == nil {
				r.logger.Error().Err(err).Msg("snapshot unavailable for install")
				return
			}
			p.ToSnapshot(snap.Index, now)
			p.LastSendTime = now
			args := &InstallSnapshotArgs{
				Term:        r.currentTerm,
				Leader:      r.id,
				LastIndex:   snap.Index,
				LastTerm:    snap.Term,
				Config:      snap.Config,
				ConfigIndex: snap.Index,
				Data:        snap.Data,
			}
			r.io.Send(p.ID, Message{Type: MsgInstallSnapshot, From: r.id, To: p.ID, Term: r.currentTerm, InstallSnapshot: args}, func(error) {})
		})
	})
}

// onInstallSnapshot is the follower side: adopt the snapshot boundary and
// configuration unless we already cover it.
func (r *Raft) onInstallSnapshot(msg Message) {
	args := msg.InstallSnapshot
	r.leader = args.Leader
	r.resetElectionDeadline()
	if r.state != StateFollower {
		r.becomeFollower(r.currentTerm, args.Leader)
	}

	if r.log.SnapshotIndex() >= args.LastIndex || r.log.TermOf(args.LastIndex) == args.LastTerm {
		r.io.Send(args.Leader, Message{Type: MsgInstallSnapshotResult, From: r.id, To: args.Leader, Term: r.currentTerm,
			InstallSnapshotResult: &InstallSnapshotReply{Term: r.currentTerm}}, func(error) {})
		return
	}

	r.log.Restore(args.LastIndex, args.LastTerm)
	snap := &Snapshot{Index: args.LastIndex, Term: args.LastTerm, Config: args.Config, Data: args.Data}
	r.io.SnapshotPut(0, snap, r.ioCompletion(func(r *Raft) {
		r.lastStored = args.LastIndex
		r.commitIndex = args.LastIndex
		r.lastApplying = args.LastIndex
		r.lastApplied = args.LastIndex
		if args.Config != nil {
			r.config = args.Config
		}
		if err := r.fsm.Restore(args.Data); err != nil {
			r.logger.Error().Err(err).Msg("fsm restore failed")
		}
		r.io.Send(args.Leader, Message{Type: MsgInstallSnapshotResult, From: r.id, To: args.Leader, Term: r.currentTerm,
			InstallSnapshotResult: &InstallSnapshotReply{Term: r.currentTerm}}, func(error) {})
	}))
}

func (r *Raft) onInstallSnapshotResult(msg Message) {
	if r.state != StateLeader {
		return
	}
	p := findProgress(r.progress, msg.From)
	if p == nil {
		return
	}
	p.MarkRecentRecv()
	p.State = ProgressProbe
	if p.MatchIndex < p.SnapshotIndex {
		p.MatchIndex = p.SnapshotIndex
		p.NextIndex = p.SnapshotIndex + 1
	}
	r.replicationQuorum(p.MatchIndex)
}
