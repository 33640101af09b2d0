package raft

import "time"

// IOProvider is the durable-storage-plus-transport capability a host
// process supplies to a Raft instance. Every mutating call carries a
// completion callback; the core never assumes synchronous delivery, and
// it never issues a second metadata write before the first one's callback
// has fired.
type IOProvider interface {
	// Now returns the provider's notion of the current time, so tests can
	// substitute a virtual clock.
	Now() time.Time

	// SetMeta durably persists the current term and vote. The provider
	// must report Busy to the core (via the completion) until this
	// commits; the core will not submit another SetMeta until then.
	SetMeta(term Term, votedFor ServerID, done func(error))

	// Append durably appends entries, which must already be contiguous
	// with the durable log's last index.
	Append(entries []*LogEntry, done func(error))

	// Truncate synchronously drops the durable log's suffix from
	// fromIndex onward.
	Truncate(fromIndex Index) error

	// SnapshotPut durably stores snap; trailing 0 means replace the
	// entire durable log with the snapshot boundary.
	SnapshotPut(trailing uint64, snap *Snapshot, done func(error))

	// SnapshotGet retrieves the latest durable snapshot, if any.
	SnapshotGet(done func(*Snapshot, error))

	// Send transports msg to target. done reports only local dispatch
	// status, never delivery or a reply.
	Send(target ServerID, msg Message, done func(error))
}

// PgrepHook is the optional external catch-up throttling capability
// described by the partial-replication mechanism. A nil hook disables
// throttling: every permit request is granted immediately.
type PgrepHook interface {
	Permit(peer ServerID) bool
	Unpermit(peer ServerID)
	Tick()
	Boundary(peer ServerID) Index
	ResetCheckpoint(peer ServerID)
	UpdateLastContactTime(peer ServerID, t time.Time)
}

// FSM is the caller-supplied state machine that committed commands are
// applied to.
type FSM interface {
	Apply(payload []byte) (result any, err error)
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// EventSink receives best-effort lifecycle notifications from a Raft
// instance: leadership changes, commit advances, configuration changes,
// snapshots. Publish is called from the single event-loop goroutine and
// must not block it.
type EventSink interface {
	Publish(eventType, message string, metadata map[string]string)
}

// MessageType discriminates the RPC envelopes exchanged between Raft
// instances.
type MessageType uint8

const (
	MsgAppendEntries MessageType = iota
	MsgAppendEntriesResult
	MsgRequestVote
	MsgRequestVoteResult
	MsgInstallSnapshot
	MsgInstallSnapshotResult
	MsgTimeoutNow
)

// Message is the envelope exchanged between Raft peers. Exactly one of the
// typed payload fields is meaningful, selected by Type.
type Message struct {
	Type   MessageType
	From   ServerID
	To     ServerID
	Term   Term

	AppendEntries       *AppendEntriesArgs
	AppendEntriesResult *AppendEntriesReply
	RequestVote         *RequestVoteArgs
	RequestVoteResult   *RequestVoteReply
	InstallSnapshot     *InstallSnapshotArgs
	InstallSnapshotResult *InstallSnapshotReply
}

// AppendEntriesArgs replicates a run of log entries (or serves as a
// heartbeat when Entries is empty).
type AppendEntriesArgs struct {
	Term         Term
	Leader       ServerID
	PrevLogIndex Index
	PrevLogTerm  Term
	Entries      []*LogEntry
	LeaderCommit Index
	Pgrep        bool
}

// AppendEntriesReply is the follower's response to AppendEntriesArgs.
type AppendEntriesReply struct {
	Term         Term
	Success      bool
	Rejected     Index
	LastLogIndex Index
	Pgrep        bool
}

// RequestVoteArgs solicits a vote, possibly as a non-disruptive pre-vote
// probe.
type RequestVoteArgs struct {
	Term         Term
	Candidate    ServerID
	LastLogIndex Index
	LastLogTerm  Term
	PreVote      bool
}

// RequestVoteReply is the voter's response to RequestVoteArgs.
type RequestVoteReply struct {
	Term    Term
	Granted bool
	PreVote bool
}

// InstallSnapshotArgs transfers a complete FSM snapshot to a follower that
// has fallen too far behind to catch up via AppendEntries.
type InstallSnapshotArgs struct {
	Term        Term
	Leader      ServerID
	LastIndex   Index
	LastTerm    Term
	Config      *Configuration
	ConfigIndex Index
	Data        []byte
}

// InstallSnapshotReply acknowledges an InstallSnapshotArgs.
type InstallSnapshotReply struct {
	Term Term
}
