package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// startPoolMetrics calls update now and then every interval until ctx is
// done or the returned stop func is called. A nil update returns nil.
func startPoolMetrics(ctx context.Context, update func(), logger *slog.Logger, interval time.Duration) func() {
	if update == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	update()

	ticker := time.NewTicker(interval)
	stopCh := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(stopCh) })
	}

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				stop()
				return
			case <-stopCh:
				return
			}
		}
	}()

	logger.Debug("history pool metrics updater started", "interval", interval.String())
	return stop
}
