package raft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProgressProbeToPipelineOnSuccess(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressProbe, NextIndex: 1}
	p.MaybeUpdate(5, 5)
	require.Equal(t, ProgressPipeline, p.State)
	require.Equal(t, Index(5), p.MatchIndex)
	require.Equal(t, Index(6), p.NextIndex)
}

func TestProgressSnapshotToProbeWhenCaughtUp(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressSnapshot, SnapshotIndex: 10}
	p.MaybeUpdate(9, 20)
	require.Equal(t, ProgressSnapshot, p.State)
	p.MaybeUpdate(10, 20)
	require.Equal(t, ProgressProbe, p.State)
}

func TestProgressMaybeDecrementProbe(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressProbe, NextIndex: 10}
	require.False(t, p.MaybeDecrement(5, 20)) // not the exact nextIndex-1
	require.True(t, p.MaybeDecrement(9, 20))
	require.Equal(t, Index(9), p.NextIndex)
}

func TestProgressMaybeDecrementPipelineIgnoresStale(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressPipeline, MatchIndex: 10, NextIndex: 15}
	require.False(t, p.MaybeDecrement(8, 20))
	require.True(t, p.MaybeDecrement(12, 20))
	require.Equal(t, ProgressProbe, p.State)
	require.Equal(t, Index(11), p.NextIndex)
}

func TestProgressMaybeDecrementEmptyFollowerLog(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressPipeline, MatchIndex: 0, NextIndex: 5}
	require.True(t, p.MaybeDecrement(0, 1))
	require.Equal(t, Index(1), p.NextIndex)
}

func TestProgressMaybeDecrementSnapshot(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressSnapshot, SnapshotIndex: 7}
	require.False(t, p.MaybeDecrement(3, 20))
	require.True(t, p.MaybeDecrement(7, 20))
	require.Equal(t, ProgressProbe, p.State)
}

func TestProgressShouldReplicateHeartbeat(t *testing.T) {
	p := &Progress{ID: 2, State: ProgressProbe}
	now := time.Now()
	require.True(t, p.ShouldReplicate(now, 100*time.Millisecond, time.Second, 10, 256))
	p.LastSendTime = now
	require.False(t, p.ShouldReplicate(now, 100*time.Millisecond, time.Second, 10, 256))
	require.True(t, p.ShouldReplicate(now.Add(200*time.Millisecond), 100*time.Millisecond, time.Second, 10, 256))
}

func TestBuildAndRebuildProgress(t *testing.T) {
	cfg := NewConfiguration()
	_ = cfg.Add(1, RoleVoter, RoleVoter, GroupOld)
	_ = cfg.Add(2, RoleVoter, RoleVoter, GroupOld)
	progs := BuildProgress(cfg, 5)
	require.Len(t, progs, 2)
	require.Equal(t, Index(6), progs[0].NextIndex)

	progs[0].MatchIndex = 5
	cfg2 := NewConfiguration()
	_ = cfg2.Add(1, RoleVoter, RoleVoter, GroupOld)
	_ = cfg2.Add(3, RoleVoter, RoleVoter, GroupOld)
	rebuilt := RebuildProgress(progs, cfg2, 5)
	require.Len(t, rebuilt, 2)
	p1 := findProgress(rebuilt, 1)
	require.Equal(t, Index(5), p1.MatchIndex)
	p3 := findProgress(rebuilt, 3)
	require.Equal(t, ProgressProbe, p3.State)
}
