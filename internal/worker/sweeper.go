package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/meetings"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/cache"
)

// ExpirySweeper periodically deactivates meetings whose scheduled time has
// passed. Expiry is never checked inline with reads; the sweep is the only
// place is_active flips off by time.
type ExpirySweeper struct {
	meetings *meetings.Repository
	cache    cache.Store
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper running at the given interval.
func NewExpirySweeper(repo *meetings.Repository, c cache.Store, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{meetings: repo, cache: c, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. One sweep fires immediately on start.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	n, err := s.meetings.ExpirePast(ctx, time.Now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n == 0 {
		return
	}
	s.logger.Info("expired meetings", zap.Int64("count", n))
	// Cached search pages may still list the expired meetings.
	if err := cache.InvalidateNamespace(ctx, s.cache, meetings.Namespace); err != nil {
		s.logger.Warn("search cache invalidation failed", zap.Error(err))
	}
}
