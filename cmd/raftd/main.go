package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "raftd",
	Short:   "raftd runs a single Raft consensus node",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("raftd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))
	rootCmd.PersistentFlags().StringP("addr", "a", "127.0.0.1:9090", "admin HTTP address for status/add-voter/remove-server/transfer-leadership/apply")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addVoterCmd)
	rootCmd.AddCommand(removeServerCmd)
	rootCmd.AddCommand(transferLeadershipCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(getCmd)
}
