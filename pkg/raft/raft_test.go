package raft

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSingleVoterCommit(t *testing.T) {
	tc := newTestCluster([]ServerID{1})
	tc.start()
	defer tc.servers[1].Shutdown(context.Background())

	leader := tc.leader(time.Second)
	require.NotNil(t, leader)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := leader.Apply(ctx, []byte("x"))
	require.NoError(t, err)

	st := leader.Status()
	require.Equal(t, Index(1), st.LastApplied)
}

func TestThreeVoterReplication(t *testing.T) {
	tc := newTestCluster([]ServerID{1, 2, 3})
	tc.start()
	defer func() {
		for _, r := range tc.servers {
			r.Shutdown(context.Background())
		}
	}()

	leader := tc.leader(2 * time.Second)
	require.NotNil(t, leader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, payload := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		_, err := leader.Apply(ctx, payload)
		require.NoError(t, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ok := true
		for id := range tc.servers {
			if tc.fsms[id].count() != 3 {
				ok = false
			}
		}
		if ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	for id := range tc.servers {
		applied := tc.fsms[id].snapshotPayloads()
		require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, applied, "server %d", id)
	}
}

func TestPreVoteIgnoresPartitionedDisruptor(t *testing.T) {
	tc := newTestCluster([]ServerID{1, 2, 3, 4})
	tc.start()
	defer func() {
		for _, r := range tc.servers {
			r.Shutdown(context.Background())
		}
	}()

	leader := tc.leader(2 * time.Second)
	require.NotNil(t, leader)
	leaderTerm := leader.Status().Term

	var partitioned ServerID
	for id := range tc.servers {
		if id != leader.id {
			partitioned = id
			break
		}
	}
	io := tc.ios[partitioned]
	io.drop = func(from, to ServerID) bool { return from == partitioned || to == partitioned }

	// Force the partitioned node to run out its election timer several
	// times; each attempt is a pre-vote round, which leaves its own term
	// unchanged and never reaches the rest of the cluster, so it cannot
	// disrupt the leader.
	time.Sleep(400 * time.Millisecond)

	require.Equal(t, StateLeader, leader.Status().State)
	require.Equal(t, leaderTerm, leader.Status().Term)
}

func TestLogMismatchRepair(t *testing.T) {
	logger := zerolog.Nop()
	io := newMemIO(func() map[ServerID]*Raft { return nil })
	fsm := &memFSM{}
	cfg := NewConfiguration()
	_ = cfg.Add(1, RoleVoter, RoleVoter, GroupOld)
	_ = cfg.Add(2, RoleVoter, RoleVoter, GroupOld)
	_ = cfg.Add(3, RoleVoter, RoleVoter, GroupOld)

	follower := New(2, io, fsm, cfg, testOptions(), logger, nil)
	follower.log.Append(1, EntryCommand, []byte("a"))
	follower.log.Append(1, EntryCommand, []byte("b"))
	follower.log.Append(2, EntryCommand, []byte("bad"))
	follower.lastStored = 3
	follower.currentTerm = 3
	follower.Start()
	defer follower.Shutdown(context.Background())

	args := &AppendEntriesArgs{
		Term:         3,
		Leader:       1,
		PrevLogIndex: 2,
		PrevLogTerm:  1,
		Entries:      []*LogEntry{{Index: 3, Term: 3, Type: EntryCommand, Payload: []byte("c")}},
		LeaderCommit: 0,
	}
	follower.Receive(Message{Type: MsgAppendEntries, From: 1, To: 2, Term: 3, AppendEntries: args})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && follower.Status().LastStored != 3 {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, Index(3), follower.Status().LastStored)
}
