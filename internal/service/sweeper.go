package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpirySweeper periodically force-completes contests whose wall clock ran
// out while nobody was looking. Interactive reads also complete expired
// contests lazily; the sweeper is the backstop for abandoned rooms.
type ExpirySweeper struct {
	contests *ContestService
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper over the given contest service.
func NewExpirySweeper(contests *ContestService, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		contests: contests,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until the context is canceled, sweeping once per interval.
// An errored sweep is logged and the loop keeps going.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Contest expiry sweeper started",
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Contest expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.contests.ExpireOverdue(ctx); err != nil {
				s.logger.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}
