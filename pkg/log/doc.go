/*
Package log provides structured logging for the raft core and its
surrounding services, built on zerolog.

# Architecture

	┌──────────────────── LOGGING SYSTEM ───────────────────────┐
	│                                                             │
	│  ┌─────────────────────────────────────────────┐          │
	│  │              Global Logger                    │          │
	│  │  - Package-level zerolog.Logger               │          │
	│  │  - Initialized via log.Init()                 │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │             Configuration                      │          │
	│  │  - Level: debug/info/warn/error                │          │
	│  │  - Format: JSON or console (human)             │          │
	│  │  - Output: stdout, file, or custom writer      │          │
	│  └──────────────────┬────────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼────────────────────────────┐          │
	│  │           Context Loggers                      │          │
	│  │  - WithComponent(name)                         │          │
	│  │  - WithServer(serverID)                        │          │
	│  │  - WithTerm(term)                              │          │
	│  │  - WithPeer(peerID)                            │          │
	│  └─────────────────────────────────────────────────┘          │
	└─────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("node starting")

	log.Logger.Error().
		Err(err).
		Uint64("server_id", uint64(id)).
		Msg("failed to open storage")

Context loggers attach a fixed field to every subsequent line so callers
don't repeat it. cmd/raftd/serve.go scopes its whole-process log lines to
the local server id this way:

	nodeLogger := log.WithServer(cfg.ID)
	nodeLogger.Info().Str("bind_addr", cfg.BindAddr).Msg("raftd started")

and, on a restart, to the term recovered from durable storage:

	log.WithTerm(uint64(term)).Info().Int("log_entries", len(entries)).
		Msg("resumed from durable state")

pkg/transport's LoggingInterceptor scopes inbound RPC logging to the
sending peer when the envelope carries one:

	log.WithPeer(uint64(envelope.Msg.From)).With().
		Str("request_id", reqID).Logger()

# Design

One global logger, initialized once in cmd/raftd's startup sequence,
passed into pkg/raft as the zerolog.Logger value the core logs through (no
package-level global use from inside pkg/raft itself, so the core stays
embeddable with any zerolog instance). Context loggers are zerolog's own
`.With()...Logger()` pattern, not a layer on top of it.

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
