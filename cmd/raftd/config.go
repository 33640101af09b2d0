package main

import (
	"fmt"
	"os"

	"github.com/cuemby/raft/pkg/raft"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk YAML configuration for one raftd process.
type Config struct {
	ID          uint64            `yaml:"id"`
	DataDir     string            `yaml:"data_dir"`
	BindAddr    string            `yaml:"bind_addr"`
	AdminAddr   string            `yaml:"admin_addr"`
	Peers       map[uint64]string `yaml:"peers"`
	Bootstrap   bool              `yaml:"bootstrap"`
	LogLevel    string            `yaml:"log_level"`
	LogJSON     bool              `yaml:"log_json"`
}

// LoadConfig reads and parses the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{
		AdminAddr: "127.0.0.1:9090",
		LogLevel:  "info",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ID == 0 {
		return nil, fmt.Errorf("config: id must be nonzero")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("config: data_dir is required")
	}
	if cfg.BindAddr == "" {
		return nil, fmt.Errorf("config: bind_addr is required")
	}
	return cfg, nil
}

// addresses builds the id-to-address map (wrapped in a
// transport.StaticResolver by serve) from the configured peers,
// including this server's own bind address so Send can loop back if ever
// asked to (it never is, in practice: the core never sends to itself).
func (c *Config) addresses() map[raft.ServerID]string {
	out := make(map[raft.ServerID]string, len(c.Peers)+1)
	for id, addr := range c.Peers {
		out[raft.ServerID(id)] = addr
	}
	out[raft.ServerID(c.ID)] = c.BindAddr
	return out
}
