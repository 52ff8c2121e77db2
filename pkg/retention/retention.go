// Package retention runs the background sweep that enforces
// session.Store.EvictOlderThan on an interval (spec §4.2/§6: sessions
// older than Retention.SessionRetentionDays are evicted).
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/coderloop/coderloop/pkg/clock"
	"github.com/coderloop/coderloop/pkg/config"
	"github.com/coderloop/coderloop/pkg/session"
)

// Sweeper periodically evicts sessions past their retention window.
type Sweeper struct {
	cfg    *config.RetentionConfig
	store  session.Store
	clock  clock.Clock
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Sweeper. logger defaults to slog.Default() when nil.
func New(cfg *config.RetentionConfig, store session.Store, clk clock.Clock, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cfg: cfg, store: store, clock: clk, logger: logger}
}

// Start launches the background sweep loop. A second Start call on an
// already-running Sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("retention sweep started",
		"session_retention_days", s.cfg.SessionRetentionDays,
		"interval", s.cfg.CleanupInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("retention sweep stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.SessionRetentionDays)
	count, err := s.store.EvictOlderThan(cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("retention sweep evicted sessions", "count", count, "cutoff", cutoff)
	}
}
