// Package app wires the store, auth and http layers together.
package app

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/bizense/bizense-manager/config"
	httpapi "github.com/bizense/bizense-manager/internal/api/http"
	"github.com/bizense/bizense-manager/internal/apisrv/auth"
	"github.com/bizense/bizense-manager/internal/ingest"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/bizense/bizense-manager/internal/store"
)

type App struct {
	cfg *config.Config
	db  *store.PGStore
	hs  *httpapi.Server
}

func New(cfg *config.Config) *App {
	return &App{
		cfg: cfg,
	}
}

// Start connects the database and launches the http server.
func (a *App) Start(ctx context.Context) error {
	db, err := store.New(ctx, a.cfg.DB)
	if err != nil {
		return fmt.Errorf("can't connect to the database: %w", err)
	}
	a.db = db

	authSrv, err := auth.New(&a.cfg.Auth, db.Admin())
	if err != nil {
		return fmt.Errorf("can't create auth server: %w", err)
	}

	proc := ingest.New(db, a.cfg.Upload)
	fees := metrics.FeesFromConfig(a.cfg.Fees)

	a.hs = httpapi.New(&a.cfg.HTTP, db, authSrv, proc, fees, a.cfg.Upload.MaxFileSize())
	if err := a.hs.Start(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	slog.Default().InfoContext(ctx, "application started")
	return nil
}

// Done is closed when the http server exits.
func (a *App) Done() <-chan struct{} {
	return a.hs.Done()
}

// Stop shuts the application down in reverse start order.
func (a *App) Stop(ctx context.Context) {
	if a.hs != nil {
		if err := a.hs.Stop(ctx); err != nil {
			slog.Default().ErrorContext(ctx, "http server shutdown failed",
				slog.String("err", err.Error()),
			)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
