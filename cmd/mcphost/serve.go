package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdesk/mcp-server-host/pkg/hostapi"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP management API",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8700", "Listen address")
	cmd.Flags().StringArray("cors-origin", nil, "Allowed CORS origin (repeatable, default *)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	origins, _ := cmd.Flags().GetStringArray("cors-origin")
	logger := newLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := newManager(cmd)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := manager.Close(closeCtx); err != nil {
			logger.Warn("closing manager", "error", err)
		}
	}()

	if err := startFromConfig(ctx, cmd, manager); err != nil {
		return err
	}

	api, err := hostapi.NewServer(manager, &hostapi.Options{
		Addr:           addr,
		AllowedOrigins: origins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	logger.Info("serving management API", "addr", addr)
	if err := api.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
