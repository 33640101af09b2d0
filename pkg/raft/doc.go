// Package raft implements a Raft consensus core: leader election with
// pre-vote, log replication, joint-consensus membership changes, snapshot
// coordination, and the partial-replication (pgrep) catch-up throttle.
//
// The package owns no disk and no socket. A host process supplies both
// through the IOProvider interface (durable metadata/log/snapshot storage
// plus message transport) and a state machine through FSM. Everything else
// — timers, quorum arithmetic, log matching, configuration transitions —
// is handled on a single goroutine per Raft instance; concurrent callers
// interact with it only through the exported methods, which hand work to
// that goroutine and wait for a result.
package raft
