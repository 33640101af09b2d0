// Package raft implements the replication, election, membership-change, and
// snapshot-coordination engine of a Raft consensus instance. Durable storage,
// transport, and the state machine are supplied by the caller through the
// IOProvider and FSM interfaces; this package owns no disk or socket.
package raft

import "fmt"

// ServerID identifies a member of a Raft configuration. Zero is reserved
// for "no server".
type ServerID uint64

// Term is a Raft election epoch. Terms never decrease.
type Term uint64

// Index is a 1-based position in the replicated log. Zero means "no entry".
type Index uint64

func (id ServerID) String() string { return fmt.Sprintf("%d", uint64(id)) }

// Role is the part a server plays in a Configuration.
type Role uint8

const (
	RoleVoter Role = iota
	RoleStandby
	RoleSpare
	RoleLogger
)

func (r Role) String() string {
	switch r {
	case RoleVoter:
		return "voter"
	case RoleStandby:
		return "standby"
	case RoleSpare:
		return "spare"
	case RoleLogger:
		return "logger"
	default:
		return "unknown"
	}
}

// Group identifies which side(s) of a joint-consensus configuration a
// server belongs to. In Normal phase every server is GroupOld only.
type Group uint8

const (
	GroupOld Group = 1 << iota
	GroupNew
)

// Phase describes whether a Configuration is mid membership-change.
type Phase uint8

const (
	PhaseNormal Phase = iota
	PhaseJoint
)

// EntryType discriminates the payload of a LogEntry.
type EntryType uint8

const (
	EntryCommand EntryType = iota
	EntryBarrier
	EntryConfigChange
)

func (t EntryType) String() string {
	switch t {
	case EntryCommand:
		return "command"
	case EntryBarrier:
		return "barrier"
	case EntryConfigChange:
		return "config-change"
	default:
		return "unknown"
	}
}

// batch is the refcounted owner of one or more LogEntry payloads appended
// together in a single Append or AppendEntries call. An entry range may not
// be truncated while any entry in it belongs to a batch with refs > 0.
type batch struct {
	refs int
}

// LogEntry is a single, immutable (once appended) slot in the replicated
// log.
type LogEntry struct {
	Index   Index
	Term    Term
	Type    EntryType
	Payload []byte
	Config  *Configuration // set when Type == EntryConfigChange

	owner *batch
}

// State is the role a server currently occupies in the cluster.
type State uint8

const (
	StateFollower State = iota
	StateCandidate
	StateLeader
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateFollower:
		return "follower"
	case StateCandidate:
		return "candidate"
	case StateLeader:
		return "leader"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time capture of the FSM plus the log metadata
// needed to resume replication from it.
type Snapshot struct {
	Index         Index
	Term          Term
	Config        *Configuration
	ConfigIndex   Index
	Data          []byte
}
