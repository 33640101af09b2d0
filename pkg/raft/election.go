package raft

import "fmt"

// startElection begins a pre-vote round (or, if real is true, the actual
// term-bumping election that follows a won pre-vote).
func (r *Raft) startElection(real bool) {
	if r.removed {
		return
	}
	r.resetElectionDeadline()

	if !real {
		r.preVote = true
		r.preVotesGranted = map[ServerID]bool{r.id: true}
		r.state = StateCandidate
		r.logger.Debug().Msg("starting pre-vote")
		r.broadcastVoteRequest(true)
		if r.hasQuorum(r.preVotesGranted) {
			r.startElection(true)
		}
		return
	}

	r.preVote = false
	term := r.currentTerm + 1
	r.votesGranted = map[ServerID]bool{r.id: true}
	r.logger.Debug().Uint64("term", uint64(term)).Msg("starting election")
	r.io.SetMeta(term, r.id, r.ioCompletion(func(r *Raft) {
		r.currentTerm = term
		r.votedFor = r.id
		r.state = StateCandidate
		r.resetElectionDeadline()
		if r.hasQuorum(r.votesGranted) {
			r.becomeLeader()
			return
		}
		r.broadcastVoteRequest(false)
	}))
}

func (r *Raft) broadcastVoteRequest(preVote bool) {
	term := r.currentTerm
	if preVote {
		term++
	}
	args := &RequestVoteArgs{
		Term:         term,
		Candidate:    r.id,
		LastLogIndex: r.log.LastIndex(),
		LastLogTerm:  r.log.LastTerm(),
		PreVote:      preVote,
	}
	for _, s := range r.config.Servers {
		if s.ID == r.id || (s.Role != RoleVoter && s.RoleNew != RoleVoter) {
			continue
		}
		msg := Message{Type: MsgRequestVote, From: r.id, To: s.ID, Term: term, RequestVote: args}
		r.io.Send(s.ID, msg, func(error) {})
	}
}

// hasQuorum reports whether granted covers a majority of Voters in every
// active group (both Old and New during Joint phase).
func (r *Raft) hasQuorum(granted map[ServerID]bool) bool {
	groups := []Group{GroupOld}
	if r.config.Phase == PhaseJoint {
		groups = append(groups, GroupNew)
	}
	for _, g := range groups {
		voters := r.config.Voters(g)
		if len(voters) == 0 {
			continue
		}
		n := 0
		for _, id := range voters {
			if granted[id] {
				n++
			}
		}
		if n*2 <= len(voters) {
			return false
		}
	}
	return true
}

// onRequestVote handles an inbound vote solicitation (term check already
// applied by dispatch).
func (r *Raft) onRequestVote(msg Message) {
	args := msg.RequestVote
	granted := r.electionVote(args)
	reply := &RequestVoteReply{Term: r.currentTerm, Granted: granted, PreVote: args.PreVote}
	if granted && !args.PreVote {
		r.votedFor = args.Candidate
		r.resetElectionDeadline()
		r.io.SetMeta(r.currentTerm, args.Candidate, func(error) {})
	}
	r.io.Send(args.Candidate, Message{Type: MsgRequestVoteResult, From: r.id, To: args.Candidate, Term: r.currentTerm, RequestVoteResult: reply}, func(error) {})
}

// electionVote implements the grant predicate from the component design:
// candidate's log at least as up-to-date as ours, and we have not already
// voted for someone else this term.
func (r *Raft) electionVote(args *RequestVoteArgs) bool {
	if args.Term < r.currentTerm {
		return false
	}
	upToDate := args.LastLogTerm > r.log.LastTerm() ||
		(args.LastLogTerm == r.log.LastTerm() && args.LastLogIndex >= r.log.LastIndex())
	if !upToDate {
		return false
	}
	if args.PreVote {
		return true
	}
	if r.votedFor != 0 && r.votedFor != args.Candidate && args.Term == r.currentTerm {
		return false
	}
	return true
}

// onRequestVoteResult tallies a vote reply.
func (r *Raft) onRequestVoteResult(msg Message) {
	reply := msg.RequestVoteResult
	if reply.PreVote {
		if !r.preVote || r.state != StateCandidate {
			return
		}
		if reply.Granted {
			r.preVotesGranted[msg.From] = true
			if r.hasQuorum(r.preVotesGranted) {
				r.startElection(true)
			}
		}
		return
	}
	if r.preVote || r.state != StateCandidate || msg.Term != r.currentTerm {
		return
	}
	if reply.Granted {
		r.votesGranted[msg.From] = true
		if r.hasQuorum(r.votesGranted) {
			r.becomeLeader()
		}
	}
}

func (r *Raft) becomeLeader() {
	r.state = StateLeader
	r.leader = r.id
	r.progress = BuildProgress(r.config, r.log.LastIndex())
	// A leader appends a no-op barrier at the start of its term so that
	// earlier-term entries become committable once it reaches quorum.
	entry := r.log.Append(r.currentTerm, EntryBarrier, nil)
	r.io.Append([]*LogEntry{entry}, r.ioCompletion(func(r *Raft) {
		if r.state != StateLeader {
			return
		}
		r.lastStored = entry.Index
		r.replicationHeartbeat(r.io.Now())
	}))
	r.logger.Info().Uint64("term", uint64(r.currentTerm)).Msg("became leader")
	r.publish("leader.changed", fmt.Sprintf("server %d became leader for term %d", r.id, r.currentTerm), map[string]string{
		"leader_id": fmt.Sprint(r.id),
		"term":      fmt.Sprint(r.currentTerm),
	})
}
