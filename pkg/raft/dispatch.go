package raft

// dispatch fronts every inbound RPC with the term check from the
// component design: a higher term durably bumps us to Follower before any
// handler runs; while that persist is in flight, further messages queue
// behind it instead of being dropped on the floor. A pre-vote RequestVote
// never bumps the term: it is answered at our current term.
func (r *Raft) dispatch(msg Message) {
	if r.state == StateUnavailable {
		return
	}
	if r.metaBusy {
		r.deferredMessages = append(r.deferredMessages, msg)
		return
	}
	if msg.Term < r.currentTerm && msg.Term != 0 {
		r.rejectStaleTerm(msg)
		return
	}
	preVote := msg.Type == MsgRequestVote && msg.RequestVote != nil && msg.RequestVote.PreVote
	if msg.Term > r.currentTerm && !preVote {
		r.bumpTerm(msg)
		return
	}
	r.route(msg)
}

func (r *Raft) rejectStaleTerm(msg Message) {
	switch msg.Type {
	case MsgAppendEntries:
		reply := &AppendEntriesReply{Term: r.currentTerm, Success: false}
		r.io.Send(msg.From, Message{Type: MsgAppendEntriesResult, From: r.id, To: msg.From, Term: r.currentTerm, AppendEntriesResult: reply}, func(error) {})
	case MsgRequestVote:
		reply := &RequestVoteReply{Term: r.currentTerm, Granted: false, PreVote: msg.RequestVote.PreVote}
		r.io.Send(msg.From, Message{Type: MsgRequestVoteResult, From: r.id, To: msg.From, Term: r.currentTerm, RequestVoteResult: reply}, func(error) {})
	}
}

// bumpTerm persists the new term (and, for a non-pre-vote RequestVote,
// records the vote) before any handler observes it, marking the instance
// Busy for the duration.
func (r *Raft) bumpTerm(msg Message) {
	newVotedFor := ServerID(0)
	if msg.Type == MsgRequestVote && !msg.RequestVote.PreVote {
		newVotedFor = msg.From
	}
	r.metaBusy = true
	term := msg.Term
	r.io.SetMeta(term, newVotedFor, r.ioCompletion(func(r *Raft) {
		r.metaBusy = false
		r.currentTerm = term
		r.votedFor = newVotedFor
		if r.state != StateFollower {
			r.becomeFollower(term, 0)
		}
		r.route(msg)
		pending := r.deferredMessages
		r.deferredMessages = nil
		for _, m := range pending {
			r.dispatch(m)
		}
	}))
}

func (r *Raft) route(msg Message) {
	switch msg.Type {
	case MsgAppendEntries:
		r.onAppendEntries(msg)
	case MsgAppendEntriesResult:
		r.onAppendEntriesResult(msg)
	case MsgRequestVote:
		r.onRequestVote(msg)
	case MsgRequestVoteResult:
		r.onRequestVoteResult(msg)
	case MsgInstallSnapshot:
		r.onInstallSnapshot(msg)
	case MsgInstallSnapshotResult:
		r.onInstallSnapshotResult(msg)
	case MsgTimeoutNow:
		r.onTimeoutNow(msg)
	}
}
