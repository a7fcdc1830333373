package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ivankomartin/deposit-console/internal/config"
	handler "github.com/ivankomartin/deposit-console/internal/handler/http"
	"github.com/ivankomartin/deposit-console/internal/listview"
)

// SessionTTL is how long an idle list session keeps its controller.
const SessionTTL = 15 * time.Minute

// App wires together all dependencies and runs the console HTTP server.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	console    *Console
	sessions   *listview.Registry
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	console, err := NewConsole(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	sessions := listview.NewRegistry(console.NewController, SessionTTL)

	router := handler.NewRouter(
		handler.NewProductHandler(console.Catalog, sessions, console.NewController, logger),
		handler.NewReferenceHandler(console.Catalog, logger),
		console.Health,
		handler.RouterOptions{
			CORSOrigins: cfg.CORSAllowedOrigins,
			PprofCIDRs:  cfg.PprofAllowedCIDRs,
		},
		logger,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: handler.DefaultListWait + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		console:    console,
		sessions:   sessions,
		httpServer: httpServer,
	}, nil
}

// Handler returns the HTTP handler of the console.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sessions.Run(sweepCtx, time.Minute)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.sessions.CloseAll()
	a.console.Close()

	a.logger.Info("application shutdown complete")
	return nil
}
