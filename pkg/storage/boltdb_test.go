package storage

import (
	"testing"

	"github.com/cuemby/raft/pkg/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltIO {
	t.Helper()
	store, err := OpenBoltIO(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltIOMetaRoundTrip(t *testing.T) {
	store := openTestStore(t)

	term, votedFor, err := store.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, raft.Term(0), term)
	assert.Equal(t, raft.ServerID(0), votedFor)

	done := make(chan error, 1)
	store.SetMeta(raft.Term(5), raft.ServerID(2), func(err error) { done <- err })
	require.NoError(t, <-done)

	term, votedFor, err = store.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, raft.Term(5), term)
	assert.Equal(t, raft.ServerID(2), votedFor)
}

func TestBoltIOAppendAndLoadLog(t *testing.T) {
	store := openTestStore(t)

	entries := []*raft.LogEntry{
		{Index: 1, Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
		{Index: 2, Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
		{Index: 3, Term: 2, Type: raft.EntryBarrier},
	}
	done := make(chan error, 1)
	store.Append(entries, func(err error) { done <- err })
	require.NoError(t, <-done)

	loaded, err := store.LoadLog()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, raft.Index(1), loaded[0].Index)
	assert.Equal(t, []byte("a"), loaded[0].Payload)
	assert.Equal(t, raft.Index(3), loaded[2].Index)
	assert.Equal(t, raft.EntryBarrier, loaded[2].Type)
}

func TestBoltIOTruncate(t *testing.T) {
	store := openTestStore(t)

	entries := []*raft.LogEntry{
		{Index: 1, Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
		{Index: 2, Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
		{Index: 3, Term: 1, Type: raft.EntryCommand, Payload: []byte("c")},
	}
	done := make(chan error, 1)
	store.Append(entries, func(err error) { done <- err })
	require.NoError(t, <-done)

	require.NoError(t, store.Truncate(2))

	loaded, err := store.LoadLog()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, raft.Index(1), loaded[0].Index)
}

func TestBoltIOSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)

	snap := &raft.Snapshot{
		Index: 10,
		Term:  3,
		Data:  []byte(`{"foo":"bar"}`),
	}
	done := make(chan error, 1)
	store.SnapshotPut(0, snap, func(err error) { done <- err })
	require.NoError(t, <-done)

	got := make(chan *raft.Snapshot, 1)
	gotErr := make(chan error, 1)
	store.SnapshotGet(func(s *raft.Snapshot, err error) {
		got <- s
		gotErr <- err
	})
	require.NoError(t, <-gotErr)
	loaded := <-got
	require.NotNil(t, loaded)
	assert.Equal(t, raft.Index(10), loaded.Index)
	assert.Equal(t, raft.Term(3), loaded.Term)
	assert.Equal(t, snap.Data, loaded.Data)
}

func TestBoltIOSnapshotGetWhenEmpty(t *testing.T) {
	store := openTestStore(t)

	got := make(chan *raft.Snapshot, 1)
	gotErr := make(chan error, 1)
	store.SnapshotGet(func(s *raft.Snapshot, err error) {
		got <- s
		gotErr <- err
	})
	require.NoError(t, <-gotErr)
	assert.Nil(t, <-got)
}
