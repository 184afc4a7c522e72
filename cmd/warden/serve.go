package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wardenlabs/warden/internal/api"
	"github.com/wardenlabs/warden/internal/buildinfo"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	s, cleanup, err := buildStack()
	if err != nil {
		return err
	}
	defer cleanup()

	s.logger.Info("starting", "build", buildinfo.String())
	for _, b := range s.orch.Router().Backends() {
		s.logger.Info("backend configured", "id", b.ID, "model", b.Model, "base_url", b.BaseURL)
	}

	// Reachability is logged, not fatal: backends may come up after us.
	for id, err := range s.orch.Router().PingAll(ctx) {
		if err != nil {
			s.logger.Warn("backend not reachable at startup", "backend", id, "error", err)
		}
	}

	server := api.NewServer(s.cfg.Listen.Address, s.cfg.Listen.Port, s.orch, s.registry, s.promReg, s.logger)

	// SIGINT/SIGTERM cancellation flows through the same ctx used by
	// all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	s.logger.Info("warden stopped")
	return nil
}
