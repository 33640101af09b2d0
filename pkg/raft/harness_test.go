package raft

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// memIO is an in-memory IOProvider used by the scenario tests in this
// package: it stores the durable log/meta/snapshot in plain Go maps and
// routes Send calls directly to the other instances in the same harness.
type memIO struct {
	mu       sync.Mutex
	term     Term
	votedFor ServerID
	entries  map[Index]*LogEntry
	snap     *Snapshot

	cluster func() map[ServerID]*Raft
	drop    func(from, to ServerID) bool
}

func newMemIO(cluster func() map[ServerID]*Raft) *memIO {
	return &memIO{entries: make(map[Index]*LogEntry), cluster: cluster}
}

func (m *memIO) Now() time.Time { return time.Now() }

func (m *memIO) SetMeta(term Term, votedFor ServerID, done func(error)) {
	m.mu.Lock()
	m.term, m.votedFor = term, votedFor
	m.mu.Unlock()
	done(nil)
}

func (m *memIO) Append(entries []*LogEntry, done func(error)) {
	m.mu.Lock()
	for _, e := range entries {
		m.entries[e.Index] = e
	}
	m.mu.Unlock()
	done(nil)
}

func (m *memIO) Truncate(from Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx := range m.entries {
		if idx >= from {
			delete(m.entries, idx)
		}
	}
	return nil
}

func (m *memIO) SnapshotPut(trailing uint64, snap *Snapshot, done func(error)) {
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	done(nil)
}

func (m *memIO) SnapshotGet(done func(*Snapshot, error)) {
	m.mu.Lock()
	snap := m.snap
	m.mu.Unlock()
	done(snap, nil)
}

func (m *memIO) Send(target ServerID, msg Message, done func(error)) {
	if m.drop != nil && m.drop(msg.From, target) {
		done(nil)
		return
	}
	go func() {
		if c := m.cluster(); c != nil {
			if r, ok := c[target]; ok {
				r.Receive(msg)
			}
		}
		done(nil)
	}()
}

// memFSM records applied payloads in commit order.
type memFSM struct {
	mu      sync.Mutex
	applied [][]byte
}

func (f *memFSM) Apply(payload []byte) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), payload...)
	f.applied = append(f.applied, cp)
	return len(f.applied), nil
}

func (f *memFSM) Snapshot() ([]byte, error) { return nil, nil }
func (f *memFSM) Restore([]byte) error      { return nil }

func (f *memFSM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func (f *memFSM) snapshotPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.applied...)
}

func testOptions() Options {
	o := DefaultOptions()
	o.HeartbeatInterval = 15 * time.Millisecond
	o.ElectionTimeoutMin = 60 * time.Millisecond
	o.ElectionTimeoutMax = 120 * time.Millisecond
	return o
}

type testCluster struct {
	mu      sync.Mutex
	servers map[ServerID]*Raft
	ios     map[ServerID]*memIO
	fsms    map[ServerID]*memFSM
}

func newTestCluster(ids []ServerID) *testCluster {
	tc := &testCluster{servers: make(map[ServerID]*Raft), ios: make(map[ServerID]*memIO), fsms: make(map[ServerID]*memFSM)}
	cfg := NewConfiguration()
	for _, id := range ids {
		_ = cfg.Add(id, RoleVoter, RoleVoter, GroupOld)
	}
	logger := zerolog.Nop()
	lookup := func() map[ServerID]*Raft {
		tc.mu.Lock()
		defer tc.mu.Unlock()
		return tc.servers
	}
	for _, id := range ids {
		io := newMemIO(lookup)
		fsm := &memFSM{}
		r, err := Bootstrap(id, io, fsm, cfg.Copy(), testOptions(), logger, nil)
		if err != nil {
			panic(err)
		}
		tc.mu.Lock()
		tc.servers[id] = r
		tc.mu.Unlock()
		tc.ios[id] = io
		tc.fsms[id] = fsm
	}
	return tc
}

func (tc *testCluster) start() {
	for _, r := range tc.servers {
		r.Start()
	}
}

func (tc *testCluster) leader(timeout time.Duration) *Raft {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, r := range tc.servers {
			if r.Status().State == StateLeader {
				return r
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}
