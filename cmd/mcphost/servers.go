package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newServersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "Start the configured servers and report their status",
		RunE:  runServers,
	}
}

func runServers(cmd *cobra.Command, _ []string) error {
	if _, err := requireConfig(cmd); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	manager := newManager(cmd)
	defer manager.Close(ctx)

	if err := startFromConfig(ctx, cmd, manager); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tALIVE")
	for _, name := range manager.ConnectedServers() {
		fmt.Fprintf(w, "%s\t%t\n", name, manager.IsServerAlive(name))
	}
	return w.Flush()
}
