package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// newSyncScheduler runs a full sync on the cron spec. A run still in progress when the
// next tick fires makes that tick a no-op.
func newSyncScheduler(spec string, run func(ctx context.Context) error, logger *slog.Logger) (*cron.Cron, error) {
	logger = logger.With("component", "cron")

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := scheduler.AddFunc(spec, func() {
		logger.Info("scheduled sync triggered")
		if err := run(context.Background()); err != nil {
			logger.Error("scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", spec, err)
	}

	return scheduler, nil
}
