package raft

import (
	"context"
	"fmt"
	"time"
)

// pendingPromotion tracks a catch-up round opened by JointPromote or
// Assign when the target is not yet up-to-date: the actual configuration
// change is deferred until the promotee's match_index reaches the round's
// target index.
type pendingPromotion struct {
	target     ServerID
	role       Role
	removeID   ServerID
	joint      bool
	roundIndex Index
	deadline   time.Time
	done       func(err error)
}

// Apply proposes a command for replication and blocks until it is applied
// (or ctx is done). It fails with ErrNotLeader if this instance is not the
// leader.
func (r *Raft) Apply(ctx context.Context, payload []byte) (any, error) {
	return r.proposeAndWait(ctx, func(r *Raft) (Index, error) {
		if r.state != StateLeader || r.transferring {
			return 0, ErrNotLeader
		}
		entry := r.log.Append(r.currentTerm, EntryCommand, payload)
		return entry.Index, r.persistAndReplicate(entry)
	})
}

// Barrier blocks until every command proposed before it has applied,
// without itself touching the FSM.
func (r *Raft) Barrier(ctx context.Context) error {
	_, err := r.proposeAndWait(ctx, func(r *Raft) (Index, error) {
		if r.state != StateLeader || r.transferring {
			return 0, ErrNotLeader
		}
		entry := r.log.Append(r.currentTerm, EntryBarrier, nil)
		return entry.Index, r.persistAndReplicate(entry)
	})
	return err
}

// ReadIndex returns a commit index that is safe to read from once a
// quorum of peers has reconfirmed this instance's leadership, the
// standard read-index optimization: cheaper than a Barrier because it
// does not append a log entry.
func (r *Raft) ReadIndex(ctx context.Context) (Index, error) {
	type result struct {
		idx Index
		err error
	}
	resp := make(chan result, 1)
	r.submit(func(r *Raft) {
		if r.state != StateLeader {
			resp <- result{0, ErrNotLeader}
			return
		}
		idx := r.commitIndex
		r.registry.register(idx, func(_ any, err error) { resp <- result{idx, err} })
		r.replicationHeartbeat(r.io.Now())
		// If there is nothing in flight (single-node cluster, or already
		// confirmed), fire immediately: commit_index cannot regress.
		if r.hasQuorum(map[ServerID]bool{r.id: true}) {
			r.registry.fire(idx, nil, nil)
		}
	})
	select {
	case res := <-resp:
		return res.idx, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (r *Raft) persistAndReplicate(entry *LogEntry) error {
	r.io.Append([]*LogEntry{entry}, r.ioCompletion(func(r *Raft) {
		if entry.Index > r.lastStored {
			r.lastStored = entry.Index
		}
		r.replicationHeartbeat(r.io.Now())
		if len(r.progress) == 1 { // single-voter cluster: commit locally
			r.replicationQuorum(entry.Index)
		}
	}))
	return nil
}

// proposeAndWait runs propose on the event loop, registers a callback for
// the resulting index, and blocks the caller until it fires or ctx ends.
func (r *Raft) proposeAndWait(ctx context.Context, propose func(r *Raft) (Index, error)) (any, error) {
	type result struct {
		val any
		err error
	}
	resp := make(chan result, 1)
	r.submit(func(r *Raft) {
		idx, err := propose(r)
		if err != nil {
			resp <- result{nil, err}
			return
		}
		r.registry.register(idx, func(val any, err error) { resp <- result{val, err} })
	})
	select {
	case res := <-resp:
		return res.val, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Add appends a new, non-voting server to the configuration. Promote it
// with Assign or JointPromote once it has caught up.
func (r *Raft) Add(ctx context.Context, id ServerID, role Role) error {
	_, err := r.proposeAndWait(ctx, func(r *Raft) (Index, error) {
		if r.state != StateLeader || r.transferring {
			return 0, ErrNotLeader
		}
		if role == RoleVoter || role == RoleLogger {
			return 0, fmt.Errorf("add server %d as %s directly: %w", id, role, ErrBadRole)
		}
		next := r.config.Copy()
		if err := next.Add(id, role, role, GroupOld); err != nil {
			return 0, err
		}
		entry := r.log.AppendConfiguration(r.currentTerm, next)
		return entry.Index, r.persistAndReplicate(entry)
	})
	return err
}

// Remove deletes a server from the configuration. If the removed server is
// the current leader, it steps down to Follower once the change commits.
func (r *Raft) Remove(ctx context.Context, id ServerID) error {
	_, err := r.proposeAndWait(ctx, func(r *Raft) (Index, error) {
		if r.state != StateLeader || r.transferring {
			return 0, ErrNotLeader
		}
		next := r.config.Copy()
		if err := next.Remove(id); err != nil {
			return 0, err
		}
		entry := r.log.AppendConfiguration(r.currentTerm, next)
		return entry.Index, r.persistAndReplicate(entry)
	})
	return err
}

// Assign changes an existing server's role in place. Promoting to Voter or
// Logger opens a catch-up round first if the server is not yet up-to-date.
func (r *Raft) Assign(ctx context.Context, id ServerID, role Role) error {
	type result struct{ err error }
	resp := make(chan result, 1)
	r.submit(func(r *Raft) {
		if r.state != StateLeader || r.transferring {
			resp <- result{ErrNotLeader}
			return
		}
		if _, ok := r.config.Find(id); !ok {
			resp <- result{fmt.Errorf("assign %d: %w", id, ErrNotFound)}
			return
		}
		p := findProgress(r.progress, id)
		needsCatchUp := (role == RoleVoter || role == RoleLogger) && (p == nil || !p.IsUpToDate(r.log.LastIndex()))
		if !needsCatchUp {
			next := r.config.Copy()
			i := next.IndexOf(id)
			next.Servers[i].Role = role
			next.Servers[i].RoleNew = role
			r.commitConfigAsync(next, func(err error) { resp <- result{err} })
			return
		}
		r.openCatchUpRound(id, role, 0, false, func(err error) { resp <- result{err} })
	})
	res := <-resp
	return res.err
}

// JointPromote moves the cluster from its current configuration to one
// where id holds role and removeID (if nonzero) is gone, via the two-step
// joint-consensus protocol. If id is not yet up-to-date it first opens a
// catch-up round.
func (r *Raft) JointPromote(ctx context.Context, id ServerID, role Role, removeID ServerID) error {
	type result struct{ err error }
	resp := make(chan result, 1)
	r.submit(func(r *Raft) {
		if r.state != StateLeader || r.transferring {
			resp <- result{ErrNotLeader}
			return
		}
		p := findProgress(r.progress, id)
		if p != nil && p.IsUpToDate(r.log.LastIndex()) {
			r.beginJointPromotion(id, role, removeID, func(err error) { resp <- result{err} })
			return
		}
		r.openCatchUpRound(id, role, removeID, true, func(err error) { resp <- result{err} })
	})
	res := <-resp
	return res.err
}

func (r *Raft) openCatchUpRound(id ServerID, role Role, removeID ServerID, joint bool, done func(error)) {
	p := findProgress(r.progress, id)
	if p == nil {
		done(fmt.Errorf("catch up %d: %w", id, ErrNotFound))
		return
	}
	if r.promotions == nil {
		r.promotions = make(map[ServerID]*pendingPromotion)
	}
	r.promotions[id] = &pendingPromotion{
		target:     id,
		role:       role,
		removeID:   removeID,
		joint:      joint,
		roundIndex: r.log.LastIndex(),
		deadline:   r.io.Now().Add(r.opts.SnapshotTimeout),
		done:       done,
	}
	r.replicationProgress(p, r.io.Now())
}

// maybeCompletePromotion is called after every successful AppendEntries
// reply; it fires the pending promotion once the catch-up round's target
// index has been matched.
func (r *Raft) maybeCompletePromotion(p *Progress) {
	promo, ok := r.promotions[p.ID]
	if !ok {
		return
	}
	if r.io.Now().After(promo.deadline) {
		delete(r.promotions, p.ID)
		promo.done(fmt.Errorf("catch up %d: %w", p.ID, ErrBusy))
		return
	}
	if p.MatchIndex < promo.roundIndex {
		return
	}
	delete(r.promotions, p.ID)
	if promo.joint {
		r.beginJointPromotion(promo.target, promo.role, promo.removeID, promo.done)
		return
	}
	next := r.config.Copy()
	i := next.IndexOf(promo.target)
	if i == len(next.Servers) {
		promo.done(fmt.Errorf("catch up %d: %w", promo.target, ErrNotFound))
		return
	}
	next.Servers[i].Role = promo.role
	next.Servers[i].RoleNew = promo.role
	r.commitConfigAsync(next, promo.done)
}

func (r *Raft) beginJointPromotion(id ServerID, role Role, removeID ServerID, done func(error)) {
	final := r.config.Copy()
	i := final.IndexOf(id)
	if i == len(final.Servers) {
		if err := final.Add(id, role, role, GroupOld); err != nil {
			done(err)
			return
		}
	} else {
		final.Servers[i].Role = role
		final.Servers[i].RoleNew = role
	}
	if removeID != 0 {
		_ = final.Remove(removeID)
	}
	joint := Joint(r.config, final)
	r.commitConfigAsync(joint, func(err error) {
		if err != nil {
			done(err)
			return
		}
		if r.state != StateLeader {
			done(nil)
			return
		}
		normal := joint.JointToNormal(GroupNew)
		r.commitConfigAsync(normal, done)
	})
}

// commitConfigAsync appends and replicates a configuration change entry,
// invoking done once it has committed (or failed).
func (r *Raft) commitConfigAsync(next *Configuration, done func(error)) {
	entry := r.log.AppendConfiguration(r.currentTerm, next)
	r.registry.register(entry.Index, func(_ any, err error) { done(err) })
	_ = r.persistAndReplicate(entry)
}

// installConfiguration applies a committed ConfigChange entry: adopts the
// new configuration, rebuilds leader-side progress, and steps a removed
// leader down to Follower.
func (r *Raft) installConfiguration(entry *LogEntry) {
	cfg := entry.Config
	if cfg == nil {
		var err error
		cfg, err = DecodeConfiguration(entry.Payload)
		if err != nil {
			r.logger.Error().Err(err).Msg("undecodable configuration entry")
			return
		}
	}
	r.config = cfg
	phase := "normal"
	if cfg.Phase == PhaseJoint {
		phase = "joint"
	}
	r.publish("config.changed", fmt.Sprintf("configuration changed at index %d", entry.Index), map[string]string{
		"phase": phase,
		"index": fmt.Sprint(entry.Index),
	})
	if _, stillMember := cfg.Find(r.id); !stillMember && r.state == StateLeader {
		r.removed = true
		r.becomeFollower(r.currentTerm, 0)
		return
	}
	if r.state == StateLeader {
		r.progress = RebuildProgress(r.progress, cfg, r.log.LastIndex())
	}
}

// Transfer hands leadership to target (or, if target is zero, the most
// up-to-date Voter) by waiting until it is caught up and then sending it
// TimeoutNow so it starts an election immediately.
func (r *Raft) Transfer(ctx context.Context, target ServerID) error {
	type result struct{ err error }
	resp := make(chan result, 1)
	r.submit(func(r *Raft) {
		if r.state != StateLeader {
			resp <- result{ErrNotLeader}
			return
		}
		if target == 0 {
			target = r.mostUpToDateVoter()
		}
		if target == 0 {
			resp <- result{fmt.Errorf("transfer: %w", ErrNotFound)}
			return
		}
		r.transferTarget = target
		r.transferring = true
		r.transferDone = func(err error) { resp <- result{err} }
		r.maybeTransfer(r.io.Now())
	})
	res := <-resp
	return res.err
}

func (r *Raft) mostUpToDateVoter() ServerID {
	var best ServerID
	var bestIdx Index
	for _, id := range r.config.Voters(GroupOld) {
		if id == r.id {
			continue
		}
		p := findProgress(r.progress, id)
		if p == nil {
			continue
		}
		if best == 0 || p.MatchIndex > bestIdx {
			best = id
			bestIdx = p.MatchIndex
		}
	}
	return best
}

func (r *Raft) maybeTransfer(now time.Time) {
	if !r.transferring {
		return
	}
	p := findProgress(r.progress, r.transferTarget)
	if p == nil {
		r.transferring = false
		if r.transferDone != nil {
			r.transferDone(fmt.Errorf("transfer: %w", ErrNotFound))
		}
		return
	}
	if !p.IsUpToDate(r.log.LastIndex()) {
		r.replicationProgress(p, now)
		return
	}
	r.transferring = false
	r.io.Send(r.transferTarget, Message{Type: MsgTimeoutNow, From: r.id, To: r.transferTarget, Term: r.currentTerm}, func(error) {})
	if r.transferDone != nil {
		r.transferDone(nil)
	}
}

func (r *Raft) onTimeoutNow(msg Message) {
	if r.state == StateLeader {
		return
	}
	r.startElection(true)
}
