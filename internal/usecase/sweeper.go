package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/duelhub/internal/platform/logging"
)

type SweeperConfig struct {
	Interval time.Duration
	Batch    int
}

func normalizeSweeperConfig(cfg SweeperConfig) SweeperConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}

	return cfg
}

// Sweeper enforces the accept deadline without relying on client traffic: a
// PENDING match whose window elapsed gets auto-declined even if neither
// player ever calls again. It runs on a fixed short interval rather than
// per-match timers, so early completions need no cancellation bookkeeping.
type Sweeper struct {
	matchSvc *MatchService
	cfg      SweeperConfig
	logger   *logging.Logger
}

func NewSweeper(matchSvc *MatchService, cfg SweeperConfig, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}

	return &Sweeper{
		matchSvc: matchSvc,
		cfg:      normalizeSweeperConfig(cfg),
		logger:   logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "deadline sweeper starting", "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "deadline sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		declined, err := s.matchSvc.DeclineExpired(ctx, s.cfg.Batch)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.ErrorContext(ctx, "deadline sweep failed", "error", err)
			continue
		}
		if declined > 0 {
			s.logger.InfoContext(ctx, "deadline sweep resolved matches", "declined", declined)
		}
	}
}
