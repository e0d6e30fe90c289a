// Command mcphost manages MCP tool-provider servers from the terminal: it can
// start servers from a configuration document, list their tools, call a tool
// once, or serve the HTTP management API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdesk/mcp-server-host/pkg/mcphost"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "mcphost",
	Short:        "Manage and call MCP tool-provider servers",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a servers document (JSON or YAML)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Overall deadline for one-shot commands")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("mcphost version %s\n", version))

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newServersCmd())
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newManager(cmd *cobra.Command) *mcphost.Manager {
	return mcphost.NewManager(&mcphost.Options{Logger: newLogger(cmd)})
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return cmd.Context(), func() {}
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

// requireConfig loads the --config document, failing when the flag is unset.
func requireConfig(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return nil, fmt.Errorf("a servers document is required: pass --config")
	}
	return mcphost.LoadServersDocument(path)
}

// startFromConfig starts every server named in the --config document, if one
// was given. A server that fails to start fails the whole command: a one-shot
// invocation has no later chance to recover it.
func startFromConfig(ctx context.Context, cmd *cobra.Command, m *mcphost.Manager) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return nil
	}
	document, err := mcphost.LoadServersDocument(path)
	if err != nil {
		return err
	}
	configs, err := mcphost.ParseServersDocument(document)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		msg, err := m.StartServer(ctx, cfg)
		if err != nil {
			return fmt.Errorf("starting %s: %w", cfg.Name, err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
	return nil
}
