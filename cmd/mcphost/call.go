package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call SERVER TOOL",
		Short: "Call one tool on a configured server",
		Args:  cobra.ExactArgs(2),
		RunE:  runCall,
	}
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	rawArgs, _ := cmd.Flags().GetString("args")
	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	manager := newManager(cmd)
	defer manager.Close(ctx)

	if err := startFromConfig(ctx, cmd, manager); err != nil {
		return err
	}

	res := manager.CallTool(ctx, args[0], args[1], toolArgs)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("tool call failed: %s", res.Error)
	}
	return nil
}
