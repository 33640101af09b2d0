package raft

import (
	"encoding/binary"
	"fmt"
)

// ServerSpec is one member of a Configuration.
type ServerSpec struct {
	ID       ServerID
	Role     Role
	RoleNew  Role
	Group    Group
}

// Configuration is the ordered set of servers a Raft instance replicates
// to, together with the joint-consensus phase. The array is kept flat and
// searched linearly: clusters are small (typically under a dozen members)
// and every lookup dominates every mutation.
type Configuration struct {
	Phase   Phase
	Servers []ServerSpec
}

// NewConfiguration returns an empty, Normal-phase configuration.
func NewConfiguration() *Configuration {
	return &Configuration{Phase: PhaseNormal}
}

// Copy returns a deep copy of c.
func (c *Configuration) Copy() *Configuration {
	out := &Configuration{Phase: c.Phase, Servers: make([]ServerSpec, len(c.Servers))}
	copy(out.Servers, c.Servers)
	return out
}

// IndexOf returns the slice index of id, or len(Servers) on miss.
func (c *Configuration) IndexOf(id ServerID) int {
	for i := range c.Servers {
		if c.Servers[i].ID == id {
			return i
		}
	}
	return len(c.Servers)
}

// Find returns the spec for id and whether it was present.
func (c *Configuration) Find(id ServerID) (ServerSpec, bool) {
	i := c.IndexOf(id)
	if i == len(c.Servers) {
		return ServerSpec{}, false
	}
	return c.Servers[i], true
}

func validRole(r Role) bool {
	return r == RoleVoter || r == RoleStandby || r == RoleSpare || r == RoleLogger
}

// Add appends a server. Fails with ErrDuplicateID if id is already present
// or ErrBadRole if role/roleNew is not a recognized role.
func (c *Configuration) Add(id ServerID, role, roleNew Role, group Group) error {
	if id == 0 {
		return fmt.Errorf("add server 0: %w", ErrBadID)
	}
	if !validRole(role) || !validRole(roleNew) {
		return fmt.Errorf("add server %d: %w", id, ErrBadRole)
	}
	if _, ok := c.Find(id); ok {
		return fmt.Errorf("add server %d: %w", id, ErrDuplicateID)
	}
	c.Servers = append(c.Servers, ServerSpec{ID: id, Role: role, RoleNew: roleNew, Group: group})
	return nil
}

// Remove deletes the server with id, preserving relative order of survivors.
func (c *Configuration) Remove(id ServerID) error {
	i := c.IndexOf(id)
	if i == len(c.Servers) {
		return fmt.Errorf("remove server %d: %w", id, ErrBadID)
	}
	c.Servers = append(c.Servers[:i], c.Servers[i+1:]...)
	return nil
}

// groupRole projects a server's effective role within the requested group.
func (s ServerSpec) groupRole(g Group) Role {
	if g == GroupNew {
		return s.RoleNew
	}
	return s.Role
}

// VoterCount returns the number of servers that are Voter in the requested
// group. GroupOld|GroupNew (Any) counts a server once if it is Voter in
// either group it belongs to.
func (c *Configuration) VoterCount(g Group) int {
	n := 0
	for _, s := range c.Servers {
		if g == GroupOld|GroupNew {
			if s.Group&GroupOld != 0 && s.Role == RoleVoter {
				n++
			} else if s.Group&GroupNew != 0 && s.RoleNew == RoleVoter {
				n++
			}
			continue
		}
		if s.Group&g == 0 {
			continue
		}
		if s.groupRole(g) == RoleVoter {
			n++
		}
	}
	return n
}

// Voters returns the ids that are Voter in the requested group.
func (c *Configuration) Voters(g Group) []ServerID {
	var out []ServerID
	for _, s := range c.Servers {
		if s.Group&g == 0 {
			continue
		}
		if s.groupRole(g) == RoleVoter {
			out = append(out, s.ID)
		}
	}
	return out
}

// JointToNormal returns a Normal-phase configuration containing only
// servers whose group includes keep, with Role set from RoleNew.
func (c *Configuration) JointToNormal(keep Group) *Configuration {
	out := &Configuration{Phase: PhaseNormal}
	for _, s := range c.Servers {
		if s.Group&keep == 0 {
			continue
		}
		out.Servers = append(out.Servers, ServerSpec{
			ID:      s.ID,
			Role:    s.RoleNew,
			RoleNew: s.RoleNew,
			Group:   GroupOld,
		})
	}
	return out
}

// Joint returns a Joint-phase configuration transitioning from oldCfg (the
// Old group) to newCfg (the New group): every server present in either side gets
// both group bits it participates in.
func Joint(oldCfg, newCfg *Configuration) *Configuration {
	out := &Configuration{Phase: PhaseJoint}
	seen := make(map[ServerID]int)
	for _, s := range oldCfg.Servers {
		out.Servers = append(out.Servers, ServerSpec{ID: s.ID, Role: s.Role, RoleNew: s.Role, Group: GroupOld})
		seen[s.ID] = len(out.Servers) - 1
	}
	for _, s := range newCfg.Servers {
		if i, ok := seen[s.ID]; ok {
			out.Servers[i].RoleNew = s.Role
			out.Servers[i].Group |= GroupNew
			continue
		}
		out.Servers = append(out.Servers, ServerSpec{ID: s.ID, Role: RoleSpare, RoleNew: s.Role, Group: GroupNew})
	}
	return out
}

const (
	configVersion = 1
	metaBlockSize = 256
)

// Encode serializes c per the fixed wire format: a version byte, the
// legacy (id, role) records, then — for version >= 1 — a padded meta block
// and extended (id, role, roleNew, group) records, the whole blob padded to
// a multiple of 8 bytes.
func (c *Configuration) Encode() []byte {
	buf := make([]byte, 0, 9+len(c.Servers)*9+metaBlockSize+len(c.Servers)*11)
	buf = append(buf, configVersion)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(c.Servers)))
	buf = append(buf, n[:]...)
	for _, s := range c.Servers {
		var id [8]byte
		binary.LittleEndian.PutUint64(id[:], uint64(s.ID))
		buf = append(buf, id[:]...)
		buf = append(buf, byte(s.Role))
	}

	meta := make([]byte, metaBlockSize)
	binary.LittleEndian.PutUint32(meta[0:4], 1)  // meta_version
	binary.LittleEndian.PutUint32(meta[4:8], 1)  // server_version
	binary.LittleEndian.PutUint32(meta[8:12], 11) // server_size
	meta[12] = byte(c.Phase)
	buf = append(buf, meta...)

	for _, s := range c.Servers {
		var id [8]byte
		binary.LittleEndian.PutUint64(id[:], uint64(s.ID))
		buf = append(buf, id[:]...)
		buf = append(buf, byte(s.Role), byte(s.RoleNew), byte(s.Group))
	}

	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeConfiguration parses a blob produced by Encode. It accepts the
// legacy form (no meta block) by defaulting RoleNew=Role, Group=GroupOld,
// Phase=Normal.
func DecodeConfiguration(buf []byte) (*Configuration, error) {
	if len(buf) < 9 {
		return nil, fmt.Errorf("decode configuration: %w", ErrMalformed)
	}
	version := buf[0]
	if version != configVersion {
		return nil, fmt.Errorf("decode configuration: unknown version %d: %w", version, ErrMalformed)
	}
	n := binary.LittleEndian.Uint64(buf[1:9])
	off := 9
	legacy := make([]ServerSpec, n)
	for i := uint64(0); i < n; i++ {
		if off+9 > len(buf) {
			return nil, fmt.Errorf("decode configuration: truncated legacy record: %w", ErrMalformed)
		}
		id := binary.LittleEndian.Uint64(buf[off : off+8])
		role := Role(buf[off+8])
		legacy[i] = ServerSpec{ID: ServerID(id), Role: role, RoleNew: role, Group: GroupOld}
		off += 9
	}

	cfg := &Configuration{Phase: PhaseNormal, Servers: legacy}

	if off+metaBlockSize > len(buf) {
		// No meta block present: legacy blob.
		return cfg, nil
	}
	meta := buf[off : off+metaBlockSize]
	off += metaBlockSize
	phase := Phase(meta[12])

	extended := make([]ServerSpec, n)
	for i := uint64(0); i < n; i++ {
		if off+11 > len(buf) {
			return nil, fmt.Errorf("decode configuration: truncated extended record: %w", ErrMalformed)
		}
		id := binary.LittleEndian.Uint64(buf[off : off+8])
		extended[i] = ServerSpec{
			ID:      ServerID(id),
			Role:    Role(buf[off+8]),
			RoleNew: Role(buf[off+9]),
			Group:   Group(buf[off+10]),
		}
		off += 11
	}
	cfg.Phase = phase
	cfg.Servers = extended
	return cfg, nil
}
