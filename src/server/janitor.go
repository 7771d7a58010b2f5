package server

import (
	"context"
	"log/slog"
	"time"

	"chatgate/src/permission"
	"chatgate/src/store"
)

// Janitor periodically removes stale sessions and retires their
// permission records.
type Janitor struct {
	store    store.Store
	registry *permission.Registry
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a janitor. interval controls how often cleanup
// runs; sessions idle longer than maxAge are removed.
func NewJanitor(st store.Store, registry *permission.Registry, interval, maxAge time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{store: st, registry: registry, interval: interval, maxAge: maxAge, logger: logger}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	removed, err := j.store.Cleanup(ctx, j.maxAge)
	if err != nil {
		j.logger.Error("session cleanup failed", "error", err)
		return
	}
	for _, id := range removed {
		j.registry.DropSession(id)
	}
	if len(removed) > 0 {
		j.logger.Info("cleaned up stale sessions", "count", len(removed))
	}
}
