package raft

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationAddRemove(t *testing.T) {
	c := NewConfiguration()
	require.NoError(t, c.Add(1, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, c.Add(2, RoleStandby, RoleStandby, GroupOld))

	err := c.Add(1, RoleVoter, RoleVoter, GroupOld)
	require.ErrorIs(t, err, ErrDuplicateID)

	err = c.Add(3, Role(200), Role(200), GroupOld)
	require.ErrorIs(t, err, ErrBadRole)

	require.NoError(t, c.Remove(2))
	_, ok := c.Find(2)
	require.False(t, ok)

	err = c.Remove(2)
	require.ErrorIs(t, err, ErrBadID)
}

func TestConfigurationVoterCount(t *testing.T) {
	c := NewConfiguration()
	require.NoError(t, c.Add(1, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, c.Add(2, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, c.Add(3, RoleStandby, RoleStandby, GroupOld))
	require.Equal(t, 2, c.VoterCount(GroupOld))
}

func TestJointAndJointToNormal(t *testing.T) {
	oldCfg := NewConfiguration()
	require.NoError(t, oldCfg.Add(1, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, oldCfg.Add(2, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, oldCfg.Add(3, RoleVoter, RoleVoter, GroupOld))

	newCfg := NewConfiguration()
	require.NoError(t, newCfg.Add(1, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, newCfg.Add(2, RoleVoter, RoleVoter, GroupOld))
	require.NoError(t, newCfg.Add(4, RoleVoter, RoleVoter, GroupOld))

	joint := Joint(oldCfg, newCfg)
	require.Equal(t, PhaseJoint, joint.Phase)
	require.Equal(t, 3, joint.VoterCount(GroupOld))
	require.Equal(t, 3, joint.VoterCount(GroupNew))

	s3, ok := joint.Find(3)
	require.True(t, ok)
	require.Equal(t, GroupOld, s3.Group)

	s4, ok := joint.Find(4)
	require.True(t, ok)
	require.Equal(t, GroupNew, s4.Group)

	normal := joint.JointToNormal(GroupNew)
	require.Equal(t, PhaseNormal, normal.Phase)
	require.Equal(t, 3, len(normal.Servers))
	_, has3 := normal.Find(3)
	require.False(t, has3)
	_, has4 := normal.Find(4)
	require.True(t, has4)
}

func TestConfigurationEncodeDecodeRoundTrip(t *testing.T) {
	c := &Configuration{Phase: PhaseJoint, Servers: []ServerSpec{
		{ID: 1, Role: RoleVoter, RoleNew: RoleVoter, Group: GroupOld | GroupNew},
		{ID: 2, Role: RoleVoter, RoleNew: RoleSpare, Group: GroupOld},
		{ID: 3, Role: RoleSpare, RoleNew: RoleVoter, Group: GroupNew},
	}}
	buf := c.Encode()
	require.Equal(t, 0, len(buf)%8)

	got, err := DecodeConfiguration(buf)
	require.NoError(t, err)
	require.Equal(t, c.Phase, got.Phase)
	require.Equal(t, c.Servers, got.Servers)
}

func TestConfigurationDecodeLegacyForm(t *testing.T) {
	// Emulate a pre-joint-consensus blob: version + n + (id, role) records,
	// no meta block.
	buf := []byte{1}
	n := make([]byte, 8)
	n[0] = 2
	buf = append(buf, n...)
	buf = append(buf, 1, 0, 0, 0, 0, 0, 0, 0, byte(RoleVoter))
	buf = append(buf, 2, 0, 0, 0, 0, 0, 0, 0, byte(RoleStandby))

	got, err := DecodeConfiguration(buf)
	require.NoError(t, err)
	require.Equal(t, PhaseNormal, got.Phase)
	require.Len(t, got.Servers, 2)
	require.Equal(t, RoleVoter, got.Servers[0].Role)
	require.Equal(t, RoleVoter, got.Servers[0].RoleNew)
	require.Equal(t, GroupOld, got.Servers[0].Group)
}

func TestConfigurationDecodeBadVersion(t *testing.T) {
	_, err := DecodeConfiguration([]byte{9, 0, 0, 0, 0, 0, 0, 0, 0})
	require.True(t, errors.Is(err, ErrMalformed))
}
