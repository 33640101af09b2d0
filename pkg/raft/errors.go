package raft

import "errors"

// Sentinel errors surfaced at the public boundary. Callers should compare
// with errors.Is, since internal call sites wrap these with %w to add
// context.
var (
	ErrNoMem        = errors.New("raft: allocation failed")
	ErrBadID        = errors.New("raft: bad server id")
	ErrBadRole      = errors.New("raft: bad role")
	ErrDuplicateID  = errors.New("raft: duplicate server id")
	ErrMalformed    = errors.New("raft: malformed data")
	ErrNotLeader    = errors.New("raft: not leader")
	ErrNotFound     = errors.New("raft: not found")
	ErrBusy         = errors.New("raft: busy")
	ErrNoConnection = errors.New("raft: no connection")
	ErrShutdown     = errors.New("raft: shutdown")
	ErrLogBusy      = errors.New("raft: log range is acquired")
	ErrApplyBusy    = errors.New("raft: apply in progress")
	ErrDiscard      = errors.New("raft: discarded")
)
