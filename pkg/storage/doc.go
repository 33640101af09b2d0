/*
Package storage provides the durable half of a raft.IOProvider: term and
vote metadata, the replicated log, and FSM snapshots, all persisted in a
single BoltDB (bbolt) file.

# Architecture

	┌──────────────────── BOLTDB STORAGE ───────────────────────┐
	│                                                             │
	│  ┌─────────────────────────────────────────────┐          │
	│  │                BoltIO                         │          │
	│  │  - File: <dataDir>/raft.db                    │          │
	│  │  - One bolt.DB, one db.Update per mutation    │          │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼──────────────────────────┐          │
	│  │              Buckets                          │          │
	│  │  meta      : term, voted_for                 │          │
	│  │  log       : big-endian index -> LogEntry     │          │
	│  │  snapshots : "latest" -> Snapshot              │          │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼──────────────────────────┐          │
	│  │     JSON entry/snapshot encoding               │          │
	│  └───────────────────────────────────────────────┘          │
	└─────────────────────────────────────────────────────────────┘

# Buckets

meta:
  - keyTerm: the current term, 8-byte big-endian
  - keyVotedFor: the server this node voted for in that term

log:
  - key: raft.Index as 8-byte big-endian (sorts correctly under bbolt's
    byte-order cursor)
  - value: the entry's term, type and payload (a storedEntry),
    JSON-encoded; the index is the key and a ConfigChange's configuration
    is decoded back from its payload on load

snapshots:
  - single key "latest" -> a storedSnapshot (index, term, the
    configuration as Configuration.Encode bytes, its config index, and
    the FSM data),
    JSON-encoded
  - only the most recent snapshot is kept; installing a new one
    overwrites it

# Durability contract

Every mutating method (SetMeta, Append, SnapshotPut) commits a db.Update
transaction before invoking its done callback; Truncate takes no callback
and returns once its transaction has committed. bbolt fsyncs on
commit by default, so the callback firing means the write has survived a
crash. This ordering is what lets the raft core treat "callback fired" as
"durable" without storage-specific knowledge.

Read paths (LoadMeta, LoadLog, SnapshotGet) run inside db.View. LoadMeta
and LoadLog return their results directly and are called once at startup;
SnapshotGet delivers its result through a callback and is also called by
the raft core when it sends a snapshot to a lagging follower.

# Usage

	store, err := storage.OpenBoltIO(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	term, votedFor, err := store.LoadMeta()
	entries, err := store.LoadLog()

BoltIO alone does not implement raft.IOProvider: it covers storage but not
peer dispatch (Send). cmd/raftd composes it with a *transport.Client via
struct embedding to produce the full interface — see cmd/raftd/ioprovider.go.

# Performance notes

bbolt serializes writers (one db.Update at a time) and allows concurrent
mmap'd readers. Each Append/SnapshotPut commit costs an fsync, typically
low single-digit milliseconds on SSD; this is the floor on commit latency
regardless of how the raft core batches entries above it.

# See Also

  - pkg/raft for the IOProvider contract this package implements
  - cmd/raftd/ioprovider.go for composing BoltIO with transport into a full
    IOProvider
  - bbolt documentation: https://github.com/etcd-io/bbolt
*/
package storage
