package raft

import "fmt"

// Log is the in-memory window of the replicated log. Entries with index
// less than or equal to the snapshot boundary are not retrievable; entries
// are dropped from memory as the snapshot boundary advances past them.
type Log struct {
	offset       Index // index of the entry just before the first live one
	entries      []*LogEntry
	snapshotIdx  Index
	snapshotTerm Term
}

// NewLog returns an empty log starting after the given snapshot boundary.
func NewLog(snapshotIndex Index, snapshotTerm Term) *Log {
	return &Log{offset: snapshotIndex, snapshotIdx: snapshotIndex, snapshotTerm: snapshotTerm}
}

func (l *Log) slot(i Index) int { return int(i - l.offset - 1) }

// LastIndex returns the index of the most recent entry, or the snapshot
// boundary if the log is empty.
func (l *Log) LastIndex() Index {
	if len(l.entries) == 0 {
		return l.offset
	}
	return l.entries[len(l.entries)-1].Index
}

// LastTerm returns the term of LastIndex.
func (l *Log) LastTerm() Term {
	if len(l.entries) == 0 {
		return l.snapshotTerm
	}
	return l.entries[len(l.entries)-1].Term
}

// SnapshotIndex returns the index covered by the last snapshot.
func (l *Log) SnapshotIndex() Index { return l.snapshotIdx }

// SnapshotTerm returns the term of the last snapshot's boundary entry.
func (l *Log) SnapshotTerm() Term { return l.snapshotTerm }

// TermOf returns the term of the entry at i, or 0 if it is not in memory.
func (l *Log) TermOf(i Index) Term {
	if i == 0 {
		return 0
	}
	if i == l.offset {
		return l.snapshotTerm
	}
	s := l.slot(i)
	if s < 0 || s >= len(l.entries) {
		return 0
	}
	return l.entries[s].Term
}

// Get returns the entry at i, or nil if it is not in memory.
func (l *Log) Get(i Index) *LogEntry {
	s := l.slot(i)
	if s < 0 || s >= len(l.entries) {
		return nil
	}
	return l.entries[s]
}

func (l *Log) appendOwned(term Term, typ EntryType, payload []byte, cfg *Configuration) *LogEntry {
	e := &LogEntry{
		Index:   l.LastIndex() + 1,
		Term:    term,
		Type:    typ,
		Payload: payload,
		Config:  cfg,
	}
	l.entries = append(l.entries, e)
	return e
}

// Append adds a single entry of type typ, owned by its own one-entry batch.
func (l *Log) Append(term Term, typ EntryType, payload []byte) *LogEntry {
	b := &batch{refs: 0}
	e := l.appendOwned(term, typ, payload, nil)
	e.owner = b
	return e
}

// AppendCommands appends several command entries sharing one batch, as a
// client request submitted in one call would.
func (l *Log) AppendCommands(term Term, payloads [][]byte) []*LogEntry {
	b := &batch{refs: 0}
	out := make([]*LogEntry, 0, len(payloads))
	for _, p := range payloads {
		e := l.appendOwned(term, EntryCommand, p, nil)
		e.owner = b
		out = append(out, e)
	}
	return out
}

// AppendConfiguration appends a ConfigChange entry.
func (l *Log) AppendConfiguration(term Term, cfg *Configuration) *LogEntry {
	b := &batch{refs: 0}
	e := l.appendOwned(term, EntryConfigChange, cfg.Encode(), cfg)
	e.owner = b
	return e
}

// AppendFollower appends entries replicated from a leader, sharing one
// batch (mirroring the leader-side grouping of one AppendEntries RPC).
func (l *Log) AppendFollower(entries []*LogEntry) {
	b := &batch{refs: 0}
	for _, e := range entries {
		ne := &LogEntry{Index: e.Index, Term: e.Term, Type: e.Type, Payload: e.Payload, owner: b}
		if e.Type == EntryConfigChange {
			cfg, err := DecodeConfiguration(e.Payload)
			if err == nil {
				ne.Config = cfg
			}
		}
		l.entries = append(l.entries, ne)
	}
}

// Acquire returns entries [from..last] and pins their batches against
// truncation. The caller must call Release with the same slice once done.
func (l *Log) Acquire(from Index) []*LogEntry {
	return l.AcquireSection(from, l.LastIndex())
}

// AcquireSection returns entries [from..to] and pins their batches.
func (l *Log) AcquireSection(from, to Index) []*LogEntry {
	if from > to {
		return nil
	}
	out := make([]*LogEntry, 0, to-from+1)
	seen := make(map[*batch]bool)
	for i := from; i <= to; i++ {
		e := l.Get(i)
		if e == nil {
			continue
		}
		out = append(out, e)
		if e.owner != nil && !seen[e.owner] {
			e.owner.refs++
			seen[e.owner] = true
		}
	}
	return out
}

// Release unpins the batches acquired by a prior Acquire/AcquireSection.
func (l *Log) Release(entries []*LogEntry) {
	seen := make(map[*batch]bool)
	for _, e := range entries {
		if e.owner != nil && !seen[e.owner] {
			e.owner.refs--
			seen[e.owner] = true
		}
	}
}

// busy reports whether any entry in [from..last] belongs to a pinned batch.
func (l *Log) busy(from Index) bool {
	for i := from; i <= l.LastIndex(); i++ {
		e := l.Get(i)
		if e != nil && e.owner != nil && e.owner.refs > 0 {
			return true
		}
	}
	return false
}

// Truncate drops entries [from..last]. Fails with ErrLogBusy if any of
// them is acquired, or if from is at or before the snapshot boundary.
func (l *Log) Truncate(from Index) error {
	if from <= l.snapshotIdx {
		return fmt.Errorf("truncate at %d (snapshot boundary %d): %w", from, l.snapshotIdx, ErrLogBusy)
	}
	if l.busy(from) {
		return ErrLogBusy
	}
	s := l.slot(from)
	if s < 0 {
		s = 0
	}
	if s < len(l.entries) {
		l.entries = l.entries[:s]
	}
	return nil
}

// Discard drops in-memory entries from "from" onward without touching
// durable storage; used when a caller already truncated the durable log
// itself.
func (l *Log) Discard(from Index) {
	s := l.slot(from)
	if s < 0 {
		s = 0
	}
	if s < len(l.entries) {
		l.entries = l.entries[:s]
	}
}

// Snapshot advances the snapshot boundary to lastIndex, dropping entries at
// or below lastIndex-trailing from memory (trailing entries are kept to
// serve slow followers without a full InstallSnapshot).
func (l *Log) Snapshot(lastIndex Index, trailing uint64) {
	if lastIndex <= l.snapshotIdx {
		return
	}
	term := l.TermOf(lastIndex)
	l.snapshotIdx = lastIndex
	if term != 0 {
		l.snapshotTerm = term
	}
	keepFrom := Index(0)
	if lastIndex > Index(trailing) {
		keepFrom = lastIndex - Index(trailing)
	}
	if keepFrom <= l.offset {
		return
	}
	s := l.slot(keepFrom + 1)
	if s < 0 {
		s = 0
	}
	if s > len(l.entries) {
		s = len(l.entries)
	}
	l.entries = append([]*LogEntry(nil), l.entries[s:]...)
	l.offset = keepFrom
}

// Restore adopts a foreign snapshot boundary, discarding the entire
// in-memory log (used when installing a leader-sent snapshot).
func (l *Log) Restore(lastIndex Index, lastTerm Term) {
	l.entries = nil
	l.offset = lastIndex
	l.snapshotIdx = lastIndex
	l.snapshotTerm = lastTerm
}

// NewLogFromEntries rebuilds an in-memory log window from entries read
// back from durable storage after the given snapshot boundary, as done on
// restart.
func NewLogFromEntries(snapshotIndex Index, snapshotTerm Term, entries []*LogEntry) *Log {
	l := NewLog(snapshotIndex, snapshotTerm)
	if len(entries) > 0 {
		l.AppendFollower(entries)
	}
	return l
}
