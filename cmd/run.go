package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/bizense/bizense-manager/app"
	"github.com/bizense/bizense-manager/config"
	"github.com/spf13/cobra"
)

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("can't load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.Level(cfg.Logger.Level),
		AddSource: cfg.Logger.AddSource,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a := app.New(cfg)
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("can't start application: %w", err)
	}
	logger.InfoContext(ctx, "application started",
		slog.String("address", cfg.HTTP.Address),
		slog.String("port", cfg.HTTP.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	select {
	case sig := <-sigCh:
		logger.WarnContext(ctx, "shutdown signal received", slog.String("signal", sig.String()))
		a.Stop(ctx)
		logger.InfoContext(ctx, "application stopped")
	case <-a.Done():
		logger.ErrorContext(ctx, "http server exited unexpectedly")
	}

	return nil
}
