package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chatgate/src/app"
	"chatgate/src/config"
)

// ServeCmd runs the HTTP server until interrupted.
type ServeCmd struct {
	Addr  string `help:"Listen address, overrides the config file"`
	Model string `help:"Default model identifier, overrides the config file"`
	DB    string `help:"SQLite database path, overrides the config file"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.DB != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = c.DB
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if application.Janitor != nil {
		go application.Janitor.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "model", cfg.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
