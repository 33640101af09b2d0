package raft

import "time"

// Options tunes the timers and batching behavior of a Raft instance. Every
// field has a production-reasonable default applied by New.
type Options struct {
	HeartbeatInterval    time.Duration
	ElectionTimeoutMin   time.Duration
	ElectionTimeoutMax   time.Duration
	SnapshotTimeout      time.Duration
	SnapshotThreshold     uint64
	SnapshotTrailing      uint64
	InflightThreshold     int
	ApplyBatchSize        int
}

// DefaultOptions returns the tuning this package ships with absent
// explicit configuration.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval:  100 * time.Millisecond,
		ElectionTimeoutMin: 300 * time.Millisecond,
		ElectionTimeoutMax: 600 * time.Millisecond,
		SnapshotTimeout:    10 * time.Second,
		SnapshotThreshold:  8192,
		SnapshotTrailing:   1024,
		InflightThreshold:  256,
		ApplyBatchSize:     8,
	}
}

func (o *Options) setDefaults() {
	d := DefaultOptions()
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = d.HeartbeatInterval
	}
	if o.ElectionTimeoutMin <= 0 {
		o.ElectionTimeoutMin = d.ElectionTimeoutMin
	}
	if o.ElectionTimeoutMax <= 0 {
		o.ElectionTimeoutMax = d.ElectionTimeoutMax
	}
	if o.SnapshotTimeout <= 0 {
		o.SnapshotTimeout = d.SnapshotTimeout
	}
	if o.SnapshotThreshold == 0 {
		o.SnapshotThreshold = d.SnapshotThreshold
	}
	if o.SnapshotTrailing == 0 {
		o.SnapshotTrailing = d.SnapshotTrailing
	}
	if o.InflightThreshold <= 0 {
		o.InflightThreshold = d.InflightThreshold
	}
	if o.ApplyBatchSize <= 0 {
		o.ApplyBatchSize = d.ApplyBatchSize
	}
}
