package raft

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured-logging capability injected into a Raft
// instance, satisfied by a zerolog.Logger.
type Logger = zerolog.Logger

// Raft is one replicated-log consensus instance. All mutable state is
// owned by a single goroutine (run); every external interaction — ticks,
// received messages, IO completions, client requests — is funneled onto
// inbox and executed there in order.
type Raft struct {
	id     ServerID
	io     IOProvider
	fsm    FSM
	hook   PgrepHook
	logger Logger
	opts   Options

	currentTerm Term
	votedFor    ServerID
	state       State
	leader      ServerID
	removed     bool

	log      *Log
	config   *Configuration
	progress []*Progress

	commitIndex  Index
	lastApplied  Index
	lastApplying Index
	lastStored   Index

	registry *requestRegistry

	electionDeadline time.Time
	votesGranted     map[ServerID]bool
	preVote          bool
	preVotesGranted  map[ServerID]bool

	metaBusy         bool
	deferredMessages []Message

	snapshotInProgress bool
	pendingConfigIndex Index // index of an uncommitted config change, 0 if none

	transferTarget ServerID
	transferring   bool
	transferDone   func(error)

	promotions map[ServerID]*pendingPromotion

	sink EventSink

	rand *rand.Rand

	inbox  chan func(*Raft)
	stopCh chan struct{}
	doneCh chan struct{}
}

// SetEventSink registers sink to receive lifecycle notifications. Must be
// called before Start; nil disables notifications (the default).
func (r *Raft) SetEventSink(sink EventSink) {
	r.sink = sink
}

func (r *Raft) publish(eventType, message string, metadata map[string]string) {
	if r.sink == nil {
		return
	}
	r.sink.Publish(eventType, message, metadata)
}

// New constructs a Raft instance that believes it is already a member of
// config, starting at term 0 with an empty log (callers that are
// bootstrapping a fresh cluster should use Bootstrap instead).
func New(id ServerID, io IOProvider, fsm FSM, config *Configuration, opts Options, logger Logger, hook PgrepHook) *Raft {
	opts.setDefaults()
	if hook == nil {
		hook = noopPgrep{}
	}
	l := NewLog(0, 0)
	r := &Raft{
		id:       id,
		io:       io,
		fsm:      fsm,
		hook:     hook,
		logger:   logger.With().Uint64("server", uint64(id)).Logger(),
		opts:     opts,
		state:    StateFollower,
		log:      l,
		config:   config,
		registry: newRequestRegistry(),
		rand:     rand.New(rand.NewSource(int64(id) + time.Now().UnixNano())),
		inbox:    make(chan func(*Raft), 256),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	r.progress = BuildProgress(config, r.log.LastIndex())
	return r
}

// Resume reconstructs a Raft instance from state already on disk: the last
// persisted term and vote, and the log entries written since the last
// snapshot. Every startup after the first must use Resume instead of New,
// since New always begins at term 0 with an empty log and would silently
// roll back currentTerm, votedFor and the log on every restart.
func Resume(id ServerID, io IOProvider, fsm FSM, config *Configuration, opts Options, logger Logger, hook PgrepHook, term Term, votedFor ServerID, entries []*LogEntry) *Raft {
	opts.setDefaults()
	if hook == nil {
		hook = noopPgrep{}
	}
	r := &Raft{
		id:          id,
		io:          io,
		fsm:         fsm,
		hook:        hook,
		logger:      logger.With().Uint64("server", uint64(id)).Logger(),
		opts:        opts,
		state:       StateFollower,
		currentTerm: term,
		votedFor:    votedFor,
		log:         NewLogFromEntries(0, 0, entries),
		config:      config,
		registry:    newRequestRegistry(),
		rand:        rand.New(rand.NewSource(int64(id) + time.Now().UnixNano())),
		inbox:       make(chan func(*Raft), 256),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	r.progress = BuildProgress(config, r.log.LastIndex())
	return r
}

// Bootstrap seeds a fresh durable store with an initial, single-phase
// configuration and starts term 1. It is distinct from a plain New
// because it is only safe to call once, before any other server in config
// has ever run.
func Bootstrap(id ServerID, io IOProvider, fsm FSM, config *Configuration, opts Options, logger Logger, hook PgrepHook) (*Raft, error) {
	r := New(id, io, fsm, config, opts, logger, hook)
	entry := r.log.AppendConfiguration(1, config)
	r.currentTerm = 1
	r.config = config
	done := make(chan error, 1)
	r.io.SetMeta(1, 0, func(err error) { done <- err })
	if err := <-done; err != nil {
		return nil, fmt.Errorf("bootstrap: persist meta: %w", err)
	}
	appendDone := make(chan error, 1)
	r.io.Append([]*LogEntry{entry}, func(err error) { appendDone <- err })
	if err := <-appendDone; err != nil {
		return nil, fmt.Errorf("bootstrap: persist configuration: %w", err)
	}
	r.lastStored = entry.Index
	r.commitIndex = entry.Index
	r.lastApplied = entry.Index
	r.lastApplying = entry.Index
	return r, nil
}

// Start launches the event loop goroutine. Callers must call Shutdown to
// release it.
func (r *Raft) Start() {
	r.resetElectionDeadline()
	go r.run()
}

func (r *Raft) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.opts.HeartbeatInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case fn := <-r.inbox:
			fn(r)
		case now := <-ticker.C:
			r.onTick(now)
		case <-r.stopCh:
			r.registry.failAll(ErrShutdown)
			return
		}
	}
}

// submit enqueues fn to run on the event-loop goroutine. It never blocks
// the caller beyond the channel buffer filling, matching the "no second
// in-flight write before the first completes" discipline for IO
// completions routed through it.
func (r *Raft) submit(fn func(*Raft)) {
	select {
	case r.inbox <- fn:
	case <-r.stopCh:
	}
}

// Receive delivers an inbound RPC envelope to the instance.
func (r *Raft) Receive(msg Message) {
	r.submit(func(r *Raft) { r.dispatch(msg) })
}

// Shutdown drains the event loop, fails every pending client callback with
// ErrShutdown, and parks the instance.
func (r *Raft) Shutdown(ctx context.Context) error {
	close(r.stopCh)
	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PeerStatus summarizes one follower's replication progress as seen by the
// leader.
type PeerStatus struct {
	State      ProgressState
	MatchIndex Index
}

// Status is a point-in-time snapshot of a Raft instance, used for
// introspection (CLI, health checks) without exposing internal state.
type Status struct {
	ID          ServerID
	State       State
	Term        Term
	Leader      ServerID
	CommitIndex Index
	LastApplied Index
	LastStored  Index
	Config      *Configuration
	Progress    map[ServerID]PeerStatus
}

// Status returns a consistent snapshot of the instance's current state.
func (r *Raft) Status() Status {
	resp := make(chan Status, 1)
	r.submit(func(r *Raft) {
		prog := make(map[ServerID]PeerStatus, len(r.progress))
		for _, p := range r.progress {
			prog[p.ID] = PeerStatus{State: p.State, MatchIndex: p.MatchIndex}
		}
		resp <- Status{
			ID:          r.id,
			State:       r.state,
			Term:        r.currentTerm,
			Leader:      r.leader,
			CommitIndex: r.commitIndex,
			LastApplied: r.lastApplied,
			LastStored:  r.lastStored,
			Config:      r.config.Copy(),
			Progress:    prog,
		}
	})
	return <-resp
}

func (r *Raft) resetElectionDeadline() {
	span := r.opts.ElectionTimeoutMax - r.opts.ElectionTimeoutMin
	jitter := time.Duration(0)
	if span > 0 {
		jitter = time.Duration(r.rand.Int63n(int64(span)))
	}
	r.electionDeadline = r.io.Now().Add(r.opts.ElectionTimeoutMin + jitter)
}

func (r *Raft) onTick(now time.Time) {
	r.hook.Tick()
	switch r.state {
	case StateFollower, StateCandidate:
		if !now.Before(r.electionDeadline) {
			r.startElection(false)
		}
	case StateLeader:
		r.replicationHeartbeat(now)
		r.maybeTransfer(now)
	case StateUnavailable:
		return
	}
}

// ioCompletion wraps a raw IOProvider completion so that, regardless of
// which goroutine the provider invokes it from, the resulting state
// mutation runs on the event-loop goroutine. A failed IO call is logged
// and fn is skipped; callers that need the failure to reach a client must
// have already registered their own registry callback, which failFrom /
// failAll will drain on a later truncation or shutdown.
func (r *Raft) ioCompletion(fn func(*Raft)) func(error) {
	return func(err error) {
		r.submit(func(r *Raft) {
			if err != nil {
				r.logger.Error().Err(err).Msg("io completion failed")
				return
			}
			fn(r)
		})
	}
}

func (r *Raft) becomeFollower(term Term, leader ServerID) {
	if r.state == StateUnavailable {
		return
	}
	wasLeader := r.state == StateLeader
	r.state = StateFollower
	r.currentTerm = term
	r.leader = leader
	r.votesGranted = nil
	r.preVotesGranted = nil
	r.preVote = false
	r.transferring = false
	if wasLeader {
		r.progress = nil
		r.registry.failAll(ErrNotLeader)
	}
	r.resetElectionDeadline()
	r.logger.Debug().Uint64("term", uint64(term)).Msg("became follower")
}

func (r *Raft) becomeUnavailable(reason error) {
	r.state = StateUnavailable
	r.registry.failAll(reason)
	r.logger.Error().Err(reason).Msg("instance unavailable")
}
