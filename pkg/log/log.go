package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance every package-level helper in this
// file writes through. cmd/raftd calls Init once at startup; pkg/raft
// itself never touches this package, since a consensus core should not be
// coupled to one process's global logging state (its Logger field takes
// any zerolog.Logger the caller hands it).
var Logger zerolog.Logger

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with a component field, for
// subsystem-scoped logging (e.g. "raftd", "storage", "transport").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// withServerField builds a child logger carrying one uint64-valued field,
// the shape every raft identifier (server, term, peer) shares.
func withServerField(key string, v uint64) zerolog.Logger {
	return Logger.With().Uint64(key, v).Logger()
}

// WithServer scopes log lines to one raft server id, for the node-level
// operational log raftd emits outside of pkg/raft's own per-instance
// logger (startup, admin requests).
func WithServer(serverID uint64) zerolog.Logger {
	return withServerField("server", serverID)
}

// WithTerm scopes log lines to the raft term in effect when they were
// emitted, useful for correlating a restart's recovered state with the
// term it resumes at.
func WithTerm(term uint64) zerolog.Logger {
	return withServerField("term", term)
}

// WithPeer scopes log lines to the remote server id a transport RPC was
// sent to or received from.
func WithPeer(peerID uint64) zerolog.Logger {
	return withServerField("peer", peerID)
}

// Info logs msg at Info level through the global logger.
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Debug logs msg at Debug level through the global logger.
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Warn logs msg at Warn level through the global logger.
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Error logs msg at Error level through the global logger.
func Error(msg string) {
	Logger.Error().Msg(msg)
}

// Errorf logs err against format at Error level through the global logger.
func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

// Fatal logs msg at Fatal level through the global logger and exits.
func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
