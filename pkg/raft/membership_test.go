package raft

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// join starts a fresh, not-yet-a-member Raft instance for id and registers
// it in the cluster so other servers' Send calls reach it once a
// membership change admits it into the configuration.
func (tc *testCluster) join(id ServerID) *Raft {
	lookup := func() map[ServerID]*Raft {
		tc.mu.Lock()
		defer tc.mu.Unlock()
		return tc.servers
	}
	io := newMemIO(lookup)
	fsm := &memFSM{}
	r := New(id, io, fsm, NewConfiguration(), testOptions(), zerolog.Nop(), nil)
	tc.mu.Lock()
	tc.servers[id] = r
	tc.mu.Unlock()
	tc.ios[id] = io
	tc.fsms[id] = fsm
	r.Start()
	return r
}

func (tc *testCluster) shutdownAll() {
	for _, r := range tc.servers {
		r.Shutdown(context.Background())
	}
}

// TestRemoveStepsDownLeader covers spec scenario 5: a leader that removes
// itself from the configuration steps down to Follower once the removal
// commits, exercising Raft.Remove end to end rather than only
// Configuration.Remove in isolation.
func TestRemoveStepsDownLeader(t *testing.T) {
	tc := newTestCluster([]ServerID{1, 2, 3})
	tc.start()
	defer tc.shutdownAll()

	leader := tc.leader(2 * time.Second)
	require.NotNil(t, leader)
	leaderID := leader.id

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, leader.Remove(ctx, leaderID))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && leader.Status().State == StateLeader {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, StateFollower, leader.Status().State)

	_, stillMember := leader.Status().Config.Find(leaderID)
	require.False(t, stillMember)

	// The remaining two servers still form a quorum and must elect a new
	// leader without the removed server's participation.
	var newLeader *Raft
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for id, r := range tc.servers {
			if id != leaderID && r.Status().State == StateLeader {
				newLeader = r
			}
		}
		if newLeader != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, newLeader)
}

// TestJointPromoteAddAndRemove covers spec scenario 4: promoting a
// newly-added server to Voter while simultaneously removing an existing
// one goes through the two-phase joint-consensus configuration before
// settling on the final membership.
func TestJointPromoteAddAndRemove(t *testing.T) {
	tc := newTestCluster([]ServerID{1, 2, 3})
	tc.start()
	defer tc.shutdownAll()

	leader := tc.leader(2 * time.Second)
	require.NotNil(t, leader)

	tc.join(4)

	var removeID ServerID
	for id := range tc.servers {
		if id != leader.id && id != 4 {
			removeID = id
		}
	}
	require.NotZero(t, removeID)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, leader.Add(ctx, 4, RoleSpare))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	require.NoError(t, leader.JointPromote(ctx2, 4, RoleVoter, removeID))

	// The configuration must have passed through the joint phase and
	// settled back to normal with 4 voting and removeID gone.
	deadline := time.Now().Add(3 * time.Second)
	var final *Configuration
	for time.Now().Before(deadline) {
		final = leader.Status().Config
		if final.Phase == PhaseNormal {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, PhaseNormal, final.Phase)

	spec, ok := final.Find(4)
	require.True(t, ok)
	require.Equal(t, RoleVoter, spec.Role)

	_, stillMember := final.Find(removeID)
	require.False(t, stillMember)
}
