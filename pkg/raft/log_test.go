package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendAndTerms(t *testing.T) {
	l := NewLog(0, 0)
	require.Equal(t, Index(0), l.LastIndex())

	e1 := l.Append(1, EntryCommand, []byte("a"))
	require.Equal(t, Index(1), e1.Index)
	e2 := l.Append(1, EntryCommand, []byte("b"))
	require.Equal(t, Index(2), e2.Index)

	require.Equal(t, Term(1), l.TermOf(1))
	require.Equal(t, Term(1), l.TermOf(2))
	require.Equal(t, Term(0), l.TermOf(3))
	require.Equal(t, Index(2), l.LastIndex())
}

func TestLogAcquireBlocksTruncate(t *testing.T) {
	l := NewLog(0, 0)
	l.Append(1, EntryCommand, []byte("a"))
	l.Append(1, EntryCommand, []byte("b"))

	entries := l.Acquire(1)
	require.Len(t, entries, 2)

	err := l.Truncate(1)
	require.ErrorIs(t, err, ErrLogBusy)

	l.Release(entries)
	require.NoError(t, l.Truncate(1))
	require.Equal(t, Index(0), l.LastIndex())
}

func TestLogTruncateAtSnapshotBoundaryForbidden(t *testing.T) {
	l := NewLog(0, 0)
	l.Append(1, EntryCommand, []byte("a"))
	l.Append(1, EntryCommand, []byte("b"))
	l.Snapshot(1, 0)

	err := l.Truncate(1)
	require.ErrorIs(t, err, ErrLogBusy)
	require.NoError(t, l.Truncate(2))
}

func TestLogSnapshotTrailingRetainsWindow(t *testing.T) {
	l := NewLog(0, 0)
	for i := 0; i < 5; i++ {
		l.Append(1, EntryCommand, []byte{byte(i)})
	}
	l.Snapshot(5, 2)
	require.Equal(t, Index(5), l.SnapshotIndex())
	// indices 4 and 5 should still be retrievable (trailing window of 2).
	require.NotNil(t, l.Get(4))
	require.NotNil(t, l.Get(5))
	require.Nil(t, l.Get(3))
}

func TestLogRestoreDropsEverything(t *testing.T) {
	l := NewLog(0, 0)
	l.Append(1, EntryCommand, []byte("a"))
	l.Restore(10, 3)
	require.Equal(t, Index(10), l.LastIndex())
	require.Equal(t, Term(3), l.LastTerm())
	require.Nil(t, l.Get(10))
}

func TestLogAppendFollowerSharesBatch(t *testing.T) {
	leader := NewLog(0, 0)
	es := leader.AppendCommands(1, [][]byte{[]byte("x"), []byte("y")})

	follower := NewLog(0, 0)
	follower.AppendFollower(es)
	require.Equal(t, Index(2), follower.LastIndex())
	require.Equal(t, []byte("x"), follower.Get(1).Payload)
	require.Same(t, follower.Get(1).owner, follower.Get(2).owner)
}
