package main

import (
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/raft/pkg/events"
	"github.com/cuemby/raft/pkg/fsm"
	"github.com/cuemby/raft/pkg/log"
	"github.com/cuemby/raft/pkg/metrics"
	"github.com/cuemby/raft/pkg/raft"
	"github.com/cuemby/raft/pkg/storage"
	"github.com/cuemby/raft/pkg/transport"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one Raft node using the configuration file",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "raftd.yaml", "path to the YAML configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	logger := log.WithComponent("raftd")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.OpenBoltIO(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	client := transport.NewClient(transport.StaticResolver(cfg.addresses()))
	defer client.Close()

	io := newHostIO(store, client)
	kv := fsm.NewKVStore()

	term, votedFor, err := store.LoadMeta()
	if err != nil {
		return fmt.Errorf("load meta: %w", err)
	}
	nodeLogger := log.WithServer(cfg.ID)

	var node *raft.Raft
	if cfg.Bootstrap && term == 0 {
		config := raft.NewConfiguration()
		if err := config.Add(raft.ServerID(cfg.ID), raft.RoleVoter, raft.RoleVoter, raft.GroupOld); err != nil {
			return fmt.Errorf("seed configuration: %w", err)
		}
		node, err = raft.Bootstrap(raft.ServerID(cfg.ID), io, kv, config, raft.DefaultOptions(), log.Logger, nil)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	} else {
		entries, err := store.LoadLog()
		if err != nil {
			return fmt.Errorf("load log: %w", err)
		}
		config := raft.NewConfiguration()
		for _, e := range entries {
			if e.Type == raft.EntryConfigChange && e.Config != nil {
				config = e.Config
			}
		}
		node = raft.Resume(raft.ServerID(cfg.ID), io, kv, config, raft.DefaultOptions(), log.Logger, nil, term, votedFor, entries)
		log.WithTerm(uint64(term)).Info().
			Int("log_entries", len(entries)).
			Msg("resumed from durable state")
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	node.SetEventSink(events.NewSink(broker))

	metricsSub := broker.Subscribe()
	defer broker.Unsubscribe(metricsSub)
	metrics.WatchEvents(metricsSub)

	node.Start()
	defer node.Shutdown(cmd.Context())

	srv := transport.NewServer(node)
	lis, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.BindAddr, err)
	}
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("transport server stopped")
		}
	}()
	defer srv.GracefulStop()

	collector := metrics.NewCollector(node)
	collector.Start()
	defer collector.Stop()
	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", true, "running")
	metrics.RegisterComponent("storage", true, "open")
	metrics.RegisterComponent("transport", true, "listening")

	admin := newAdminServer(node, kv)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	admin.routes(mux)

	go func() {
		if err := http.ListenAndServe(cfg.AdminAddr, mux); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	nodeLogger.Info().
		Str("bind_addr", cfg.BindAddr).
		Str("admin_addr", cfg.AdminAddr).
		Msg("raftd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
	return nil
}
