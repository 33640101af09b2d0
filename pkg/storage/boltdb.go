// Package storage provides the durable half of a raft.IOProvider: term and
// vote metadata, the replicated log, and FSM snapshots, all persisted in a
// single BoltDB file with one bucket per concern.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/raft/pkg/raft"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketMeta      = []byte("meta")
	bucketLog       = []byte("log")
	bucketSnapshots = []byte("snapshots")

	keyTerm     = []byte("term")
	keyVotedFor = []byte("voted_for")
	keySnapshot = []byte("latest")
)

// BoltIO implements raft.IOProvider on top of a single BoltDB file. Every
// mutating call runs inside one db.Update transaction; the caller's
// completion fires only after that transaction commits, which is what
// gives the core its "durable before callback" ordering.
type BoltIO struct {
	db *bolt.DB
}

// OpenBoltIO opens (creating if needed) the raft store at <dataDir>/raft.db.
func OpenBoltIO(dataDir string) (*BoltIO, error) {
	dbPath := filepath.Join(dataDir, "raft.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open raft store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketLog, bucketSnapshots} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltIO{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltIO) Close() error {
	return s.db.Close()
}

func indexKey(i raft.Index) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(i))
	return k[:]
}

// Now satisfies the clock half of raft.IOProvider with the wall clock.
func (s *BoltIO) Now() time.Time { return time.Now() }

// SetMeta persists the current term and vote in one transaction.
func (s *BoltIO) SetMeta(term raft.Term, votedFor raft.ServerID, done func(error)) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		var termBuf, voteBuf [8]byte
		binary.BigEndian.PutUint64(termBuf[:], uint64(term))
		binary.BigEndian.PutUint64(voteBuf[:], uint64(votedFor))
		if err := b.Put(keyTerm, termBuf[:]); err != nil {
			return err
		}
		return b.Put(keyVotedFor, voteBuf[:])
	})
	done(err)
}

// LoadMeta returns the persisted term and vote, zero values if unset.
func (s *BoltIO) LoadMeta() (raft.Term, raft.ServerID, error) {
	var term raft.Term
	var votedFor raft.ServerID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keyTerm); v != nil {
			term = raft.Term(binary.BigEndian.Uint64(v))
		}
		if v := b.Get(keyVotedFor); v != nil {
			votedFor = raft.ServerID(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return term, votedFor, err
}

type storedEntry struct {
	Term    raft.Term
	Type    raft.EntryType
	Payload []byte
}

// Append durably stores entries keyed by their big-endian index, so
// ForEach and range scans return them in log order.
func (s *BoltIO) Append(entries []*raft.LogEntry, done func(error)) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLog)
		for _, e := range entries {
			data, err := json.Marshal(storedEntry{Term: e.Term, Type: e.Type, Payload: e.Payload})
			if err != nil {
				return fmt.Errorf("marshal entry %d: %w", e.Index, err)
			}
			if err := b.Put(indexKey(e.Index), data); err != nil {
				return err
			}
		}
		return nil
	})
	done(err)
}

// Truncate drops every durable entry at or above fromIndex.
func (s *BoltIO) Truncate(fromIndex raft.Index) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLog)
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(indexKey(fromIndex)); k != nil; k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

type storedSnapshot struct {
	Index       raft.Index
	Term        raft.Term
	Config      []byte
	ConfigIndex raft.Index
	Data        []byte
}

// SnapshotPut persists snap as the single latest snapshot; trailing is a
// caller-side concern (it governs how much of the in-memory log the core
// keeps, not what this store retains).
func (s *BoltIO) SnapshotPut(trailing uint64, snap *raft.Snapshot, done func(error)) {
	stored := storedSnapshot{Index: snap.Index, Term: snap.Term, ConfigIndex: snap.ConfigIndex, Data: snap.Data}
	if snap.Config != nil {
		stored.Config = snap.Config.Encode()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return tx.Bucket(bucketSnapshots).Put(keySnapshot, data)
	})
	done(err)
}

// SnapshotGet returns the latest durable snapshot, or nil if none exists.
func (s *BoltIO) SnapshotGet(done func(*raft.Snapshot, error)) {
	var stored *storedSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get(keySnapshot)
		if data == nil {
			return nil
		}
		var v storedSnapshot
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		stored = &v
		return nil
	})
	if err != nil || stored == nil {
		done(nil, err)
		return
	}
	snap := &raft.Snapshot{Index: stored.Index, Term: stored.Term, ConfigIndex: stored.ConfigIndex, Data: stored.Data}
	if stored.Config != nil {
		cfg, err := raft.DecodeConfiguration(stored.Config)
		if err == nil {
			snap.Config = cfg
		}
	}
	done(snap, nil)
}

// LoadLog replays the durable log into entries suitable for seeding a
// raft.Log on startup.
func (s *BoltIO) LoadLog() ([]*raft.LogEntry, error) {
	var out []*raft.LogEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLog)
		return b.ForEach(func(k, v []byte) error {
			idx := raft.Index(binary.BigEndian.Uint64(k))
			var se storedEntry
			if err := json.Unmarshal(v, &se); err != nil {
				return fmt.Errorf("unmarshal entry %d: %w", idx, err)
			}
			e := &raft.LogEntry{Index: idx, Term: se.Term, Type: se.Type, Payload: se.Payload}
			if se.Type == raft.EntryConfigChange {
				if cfg, err := raft.DecodeConfiguration(se.Payload); err == nil {
					e.Config = cfg
				}
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}
