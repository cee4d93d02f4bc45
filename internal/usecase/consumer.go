package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/duelhub/internal/domain/queue"
	"github.com/riskibarqy/duelhub/internal/platform/logging"
	"github.com/riskibarqy/duelhub/internal/platform/resilience"
)

type ConsumerConfig struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
	BatchSize    int
	Workers      int
}

func normalizeConsumerConfig(cfg ConsumerConfig) ConsumerConfig {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return cfg
}

// Consumer drains the queue store on a poll interval, pairs waiting players
// through the matcher, and hands each pairing to the match service on a
// worker pool. Multiple instances may run against the same stores: the
// one-open-match-per-player guard in the match store arbitrates races, and a
// losing pairing is simply discarded while its queue entries stay eligible
// for the next batch.
type Consumer struct {
	queueRepo queue.Repository
	matchSvc  *MatchService
	matcher   *Matcher
	breaker   *resilience.CircuitBreaker
	cfg       ConsumerConfig
	logger    *logging.Logger
}

func NewConsumer(
	queueRepo queue.Repository,
	matchSvc *MatchService,
	matcher *Matcher,
	breaker *resilience.CircuitBreaker,
	cfg ConsumerConfig,
	logger *logging.Logger,
) *Consumer {
	if logger == nil {
		logger = logging.Default()
	}

	return &Consumer{
		queueRepo: queueRepo,
		matchSvc:  matchSvc,
		matcher:   matcher,
		breaker:   breaker,
		cfg:       normalizeConsumerConfig(cfg),
		logger:    logger,
	}
}

// Run polls until ctx is cancelled. Transient store failures back off
// instead of spinning, and the circuit breaker pauses cycles entirely while
// the store is misbehaving.
func (c *Consumer) Run(ctx context.Context) error {
	pool, err := ants.NewPool(c.cfg.Workers)
	if err != nil {
		return fmt.Errorf("create matchmaking worker pool: %w", err)
	}
	defer pool.Release()

	c.logger.InfoContext(ctx, "queue consumer starting",
		"poll_interval", c.cfg.PollInterval,
		"batch_size", c.cfg.BatchSize,
		"workers", c.cfg.Workers,
	)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "queue consumer stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := c.RunOnce(ctx, pool); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.ErrorContext(ctx, "matchmaking cycle failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ErrorBackoff):
			}
		}
	}
}

// RunOnce performs a single drain/pair/create cycle and returns how many
// matches it created.
func (c *Consumer) RunOnce(ctx context.Context, pool *ants.Pool) (int, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "matchmaking cycle skipped", "state", c.breaker.State())
			return 0, nil
		}
	}

	created, err := c.cycle(ctx, pool)
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}

	return created, err
}

func (c *Consumer) cycle(ctx context.Context, pool *ants.Pool) (int, error) {
	entries, err := c.queueRepo.ListOldest(ctx, c.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list queue batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	live, err := c.dropRedelivered(ctx, entries)
	if err != nil {
		return 0, err
	}

	pairs := c.matcher.Pair(live)
	if len(pairs) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		firstErr error
	)
	for _, pair := range pairs {
		pair := pair
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			err := c.createPair(ctx, pair)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if err == nil {
				created++
			}
		}); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("submit pairing task: %w", err)
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	return created, firstErr
}

// dropRedelivered removes entries for players that already hold an open
// match. At-least-once delivery makes these a normal sight after a crash or
// a lost createMatch race; dropping them is the no-op the contract asks for.
func (c *Consumer) dropRedelivered(ctx context.Context, entries []queue.Entry) ([]queue.Entry, error) {
	live := entries[:0]
	for _, entry := range entries {
		_, inMatch, err := c.matchSvc.matches.GetOpenByPlayer(ctx, entry.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("check open match for %s: %w", entry.PlayerID, err)
		}
		if inMatch {
			if _, err := c.queueRepo.Remove(ctx, entry.PlayerID); err != nil {
				return nil, fmt.Errorf("drop redelivered entry for %s: %w", entry.PlayerID, err)
			}
			continue
		}
		live = append(live, entry)
	}

	return live, nil
}

// createPair persists the match, then retires both queue entries. Removal
// happens only after a successful create so a failed write never loses the
// entries. Losing the busy-player race discards the pairing; the stale
// entry gets dropped as a redelivery on the next cycle.
func (c *Consumer) createPair(ctx context.Context, pair Pair) error {
	m, err := c.matchSvc.CreateMatch(ctx, pair.Player1.PlayerID, pair.Player2.PlayerID)
	if err != nil {
		if errors.Is(err, ErrAlreadyInMatch) {
			c.logger.InfoContext(ctx, "pairing discarded, player busy",
				"player1_id", pair.Player1.PlayerID,
				"player2_id", pair.Player2.PlayerID,
			)
			return nil
		}
		return err
	}

	for _, playerID := range []string{pair.Player1.PlayerID, pair.Player2.PlayerID} {
		if _, err := c.queueRepo.Remove(ctx, playerID); err != nil {
			// The match exists; the leftover entry is a redelivery the
			// next cycle will drop.
			c.logger.WarnContext(ctx, "failed to retire queue entry",
				"player_id", playerID,
				"match_id", m.ID,
				"error", err,
			)
		}
	}

	return nil
}
