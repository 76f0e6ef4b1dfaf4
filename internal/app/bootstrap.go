package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"docweave/pkg/logging"
)

// Application is the bootstrapped process: configuration already loaded,
// every collaborator already constructed, ready to serve.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the full bootstrap sequence: configures logging,
// loads layered configuration, and constructs every service.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var output io.Writer = os.Stdout
	if cfg.Silent {
		output = io.Discard
	}
	logging.Init(level, output)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "failed to initialize services")
		return nil, fmt.Errorf("initializing services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully within shutdownGrace.
func (a *Application) Run(ctx context.Context) error {
	srv := a.services.httpServer

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Bootstrap", "listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Info("Bootstrap", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return nil
	}
}
