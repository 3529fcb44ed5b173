package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Janitor periodically evicts editing sessions that have been idle longer
// than the configured TTL.
type Janitor struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewJanitor creates a session janitor. The sweep interval is a quarter of
// the TTL, bounded to [10s, 5m].
func NewJanitor(manager *Manager, ttl time.Duration, logger *slog.Logger) *Janitor {
	interval := ttl / 4
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return &Janitor{
		manager:  manager,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the janitor loop is active.
func (j *Janitor) Running() bool {
	return j.running.Load()
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
// Call in a goroutine.
func (j *Janitor) Start(ctx context.Context) {
	j.running.Store(true)
	defer j.running.Store(false)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.safeSweep(ctx)
		}
	}
}

// Stop signals the janitor to stop.
func (j *Janitor) Stop() {
	select {
	case j.stop <- struct{}{}:
	default:
	}
}

func (j *Janitor) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("panic in session janitor", "panic", fmt.Sprint(r))
		}
	}()
	j.sweep(ctx)
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.manager.EvictIdle(ctx, j.manager.now().Add(-j.ttl))
	if err != nil {
		j.logger.Warn("failed to evict idle editor sessions", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("evicted idle editor sessions", "count", n)
	}
}
