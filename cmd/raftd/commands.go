package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the node's current Raft status",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		out, err := getJSON(addr, "/v1/status")
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var addVoterCmd = &cobra.Command{
	Use:   "add-voter <id>",
	Short: "Add a server and promote it to Voter via joint consensus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		id, err := parseUint(args[0])
		if err != nil {
			return err
		}
		out, err := postJSON(addr, "/v1/add-voter", map[string]any{"id": id, "role": "spare"})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var removeServerCmd = &cobra.Command{
	Use:   "remove-server <id>",
	Short: "Remove a server from the cluster with a single configuration change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		id, err := parseUint(args[0])
		if err != nil {
			return err
		}
		out, err := postJSON(addr, "/v1/remove-server", map[string]any{"id": id})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var transferLeadershipCmd = &cobra.Command{
	Use:   "transfer-leadership [target-id]",
	Short: "Transfer leadership, optionally to a specific server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		var target uint64
		if len(args) == 1 {
			id, err := parseUint(args[0])
			if err != nil {
				return err
			}
			target = id
		}
		out, err := postJSON(addr, "/v1/transfer-leadership", map[string]any{"target": target})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <key> <value>",
	Short: "Replicate a key/value set through the cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		out, err := postJSON(addr, "/v1/apply", map[string]any{"key": args[0], "value": args[1]})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a key directly from this node's local state machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		out, err := getJSON(addr, "/v1/get?key="+args[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func parseUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return v, nil
}
