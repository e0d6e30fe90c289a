package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List every tool exposed by the configured servers",
		RunE:  runTools,
	}
	cmd.Flags().Bool("json", false, "Emit the tool catalog as JSON")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	document, err := requireConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	manager := newManager(cmd)
	defer manager.Close(ctx)

	tools, err := manager.ListToolsFromConfig(ctx, document)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tDESCRIPTION")
	for _, tool := range tools {
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
	}
	return w.Flush()
}
