package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/match"
	"github.com/riskibarqy/duelhub/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/duelhub/internal/platform/logging"
)

func TestSweeper_Run_DeclinesExpiredMatches(t *testing.T) {
	t.Parallel()

	repo := memory.NewMatchRepository()
	notifier := newRecordingNotifier()
	matchSvc := NewMatchService(repo, &seqIDGenerator{}, notifier, MatchServiceConfig{}, logging.NewNop())

	past := time.Now().UTC().Add(-time.Minute)
	err := repo.Create(context.Background(), match.Match{
		ID:             "m1",
		Player1ID:      "p1",
		Player2ID:      "p2",
		Status:         match.StatusPending,
		CreatedAt:      past,
		AcceptDeadline: past.Add(15 * time.Second),
	})
	if err != nil {
		t.Fatalf("seed expired match: %v", err)
	}

	sweeper := NewSweeper(matchSvc, SweeperConfig{Interval: 10 * time.Millisecond, Batch: 10}, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		stored, _, err := repo.GetByID(context.Background(), "m1")
		if err != nil {
			t.Fatalf("get match: %v", err)
		}
		if stored.Status == match.StatusDeclined {
			if stored.EndTime == nil {
				t.Fatalf("expected end time on swept match")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweeper never declined the expired match, status=%s", stored.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Run, got %v", err)
	}

	events := notifier.eventsFor("p1")
	if len(events) != 1 || events[0].Type != EventMatchDeclined {
		t.Fatalf("expected match_declined push, got %+v", events)
	}
}

func TestNormalizeSweeperConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := normalizeSweeperConfig(SweeperConfig{})
	if cfg.Interval != 2*time.Second {
		t.Fatalf("unexpected interval: %s", cfg.Interval)
	}
	if cfg.Batch != 100 {
		t.Fatalf("unexpected batch: %d", cfg.Batch)
	}
}
