// Package main is the entry point for the ReLaunch dispatch API server.
//
// It loads configuration (env, dotenv, SSM), wires the dispatch components,
// builds the HTTP server with the core chassis (middleware, routing, health
// checks) and listens until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaunch/internal/api/handlers"
	"relaunch/internal/app"
	"relaunch/internal/config"
	"relaunch/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("relaunch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := app.Build(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("wiring components: %w", err)
	}

	srv, err := newServer(cfg, logger, components)
	if err != nil {
		components.Close()
		return err
	}
	return runHTTPServer(srv, cfg, logger)
}

// newServer builds the chassis and registers every handler.
func newServer(cfg *config.Config, logger *slog.Logger, c *app.Components) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	if c.Metrics != nil {
		srv.Metrics = c.Metrics
	}
	srv.HealthProbes = []core.HealthProbe{core.DatabaseProbe{DB: c.Pool}}
	srv.OnShutdown = append(srv.OnShutdown, c.Close)

	dispatchHandler := handlers.NewDispatchHandler(c.Service, srv.Validator, logger)
	settingsHandler := handlers.NewSettingsHandler(c.Settings, srv.Validator, logger)
	templateHandler := handlers.NewTemplateHandler(c.Templates, c.Service, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		dispatchHandler.RegisterRoutes,
		settingsHandler.RegisterRoutes,
		templateHandler.RegisterRoutes,
	)

	if err := srv.MountRoutes(); err != nil {
		return nil, fmt.Errorf("mounting routes: %w", err)
	}
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
