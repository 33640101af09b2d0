/*
Package events provides an in-memory event broker for the raft core's
pub/sub notifications.

The events package implements a lightweight event bus for broadcasting
cluster-lifecycle events (leadership changes, commits, configuration
changes, snapshots) to interested subscribers. It supports asynchronous,
non-blocking delivery, keeping the Raft event loop free of direct
dependencies on whoever wants to observe it — a CLI watch command, a
metrics collector, an audit log.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Non-blocking publish                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  leader.changed, term.changed               │          │
	│  │  entry.committed, config.changed            │          │
	│  │  snapshot.taken                             │          │
	│  │  server.joined, server.removed, server.down │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (leader.changed, entry.committed, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to main event channel (non-blocking)
 3. Broadcast loop receives event
 4. Event sent to all subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

# Usage

Creating and Starting Broker:

	import "github.com/cuemby/raft/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Publishing a leadership change:

	broker.Publish(&events.Event{
		Type:    events.EventLeaderChanged,
		Message: "server 2 became leader for term 7",
		Metadata: map[string]string{
			"leader_id": "2",
			"term":      "7",
		},
	})

Subscribing:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventLeaderChanged:
				handleLeaderChanged(event)
			case events.EventSnapshotTaken:
				handleSnapshot(event)
			}
		}
	}()

# Event Types Catalog

EventLeaderChanged:
  - Published when: a server observes a new leader for a term
  - Metadata: leader_id, term

EventTermChanged:
  - Published when: currentTerm advances
  - Metadata: term

EventEntryCommitted:
  - Published when: commit_index advances
  - Metadata: index

EventConfigChanged:
  - Published when: a configuration change entry is applied
  - Metadata: phase (normal/joint)

EventSnapshotTaken:
  - Published when: a snapshot completes
  - Metadata: index, term

EventServerJoined / EventServerRemoved / EventServerDown:
  - Published on membership and liveness transitions

EventAppendEntriesRejected:
  - Published when: a leader's AppendEntries is rejected by a follower
  - Metadata: peer

# Design Patterns

Non-Blocking Publish, Fan-Out, Fire-and-Forget, Graceful Shutdown — the
broker never blocks the Raft event loop that publishes into it, and
slow subscribers drop events rather than apply backpressure.

# Limitations

In-memory only, no persistence or replay, no ordering guarantee across
subscribers, best-effort delivery. A subscriber needing durability
should persist what it observes itself.
*/
package events
