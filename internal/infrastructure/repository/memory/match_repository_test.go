package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/match"
)

func pendingMatch(id, player1ID, player2ID string, createdAt time.Time) match.Match {
	return match.Match{
		ID:             id,
		Player1ID:      player1ID,
		Player2ID:      player2ID,
		Status:         match.StatusPending,
		CreatedAt:      createdAt,
		AcceptDeadline: createdAt.Add(15 * time.Second),
	}
}

func TestMatchRepository_Create_RejectsBusyPlayer(t *testing.T) {
	t.Parallel()

	repo := NewMatchRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Create(context.Background(), pendingMatch("m1", "p1", "p2", now)); err != nil {
		t.Fatalf("create first match: %v", err)
	}

	err := repo.Create(context.Background(), pendingMatch("m2", "p2", "p3", now))
	if !errors.Is(err, match.ErrPlayerBusy) {
		t.Fatalf("expected ErrPlayerBusy, got %v", err)
	}

	// A terminal match does not block its players.
	m, _, err := repo.GetByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get m1: %v", err)
	}
	m.Status = match.StatusDeclined
	if ok, err := repo.Update(context.Background(), m, m.Version); err != nil || !ok {
		t.Fatalf("resolve m1: ok=%v err=%v", ok, err)
	}
	if err := repo.Create(context.Background(), pendingMatch("m2", "p2", "p3", now)); err != nil {
		t.Fatalf("create after resolution: %v", err)
	}
}

func TestMatchRepository_Update_VersionGate(t *testing.T) {
	t.Parallel()

	repo := NewMatchRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Create(context.Background(), pendingMatch("m1", "p1", "p2", now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	m, _, err := repo.GetByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Version != 1 {
		t.Fatalf("expected version 1 after create, got %d", m.Version)
	}

	m.Player1Accepted = true
	ok, err := repo.Update(context.Background(), m, 1)
	if err != nil || !ok {
		t.Fatalf("first update: ok=%v err=%v", ok, err)
	}

	// Writing against the stale version is a clean miss, not an error.
	m.Player2Accepted = true
	ok, err = repo.Update(context.Background(), m, 1)
	if err != nil {
		t.Fatalf("stale update errored: %v", err)
	}
	if ok {
		t.Fatalf("expected stale update to miss")
	}

	stored, _, err := repo.GetByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get after updates: %v", err)
	}
	if stored.Version != 2 || !stored.Player1Accepted || stored.Player2Accepted {
		t.Fatalf("unexpected stored row: %+v", stored)
	}

	if _, err := repo.Update(context.Background(), pendingMatch("ghost", "p8", "p9", now), 1); err == nil {
		t.Fatalf("expected error updating a missing match")
	}
}

func TestMatchRepository_ListExpiredPending(t *testing.T) {
	t.Parallel()

	repo := NewMatchRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Create(context.Background(), pendingMatch("m-old", "p1", "p2", base)); err != nil {
		t.Fatalf("create m-old: %v", err)
	}
	if err := repo.Create(context.Background(), pendingMatch("m-older", "p3", "p4", base.Add(-time.Minute))); err != nil {
		t.Fatalf("create m-older: %v", err)
	}
	if err := repo.Create(context.Background(), pendingMatch("m-fresh", "p5", "p6", base.Add(time.Minute))); err != nil {
		t.Fatalf("create m-fresh: %v", err)
	}

	expired, err := repo.ListExpiredPending(context.Background(), base.Add(20*time.Second), 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired matches, got %d", len(expired))
	}
	if expired[0].ID != "m-older" || expired[1].ID != "m-old" {
		t.Fatalf("expected oldest deadline first, got %+v", expired)
	}

	limited, err := repo.ListExpiredPending(context.Background(), base.Add(20*time.Second), 1)
	if err != nil {
		t.Fatalf("list expired limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "m-older" {
		t.Fatalf("expected limit to keep the oldest, got %+v", limited)
	}
}

func TestMatchRepository_ListHistoryByPlayer_Paging(t *testing.T) {
	t.Parallel()

	repo := NewMatchRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	resolve := func(id string, createdAt time.Time, opponent string) {
		t.Helper()
		if err := repo.Create(context.Background(), pendingMatch(id, "p1", opponent, createdAt)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		m, _, err := repo.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		m.Status = match.StatusDeclined
		if ok, err := repo.Update(context.Background(), m, m.Version); err != nil || !ok {
			t.Fatalf("resolve %s: ok=%v err=%v", id, ok, err)
		}
	}

	resolve("m1", base, "p2")
	resolve("m2", base.Add(time.Minute), "p3")
	resolve("m3", base.Add(2*time.Minute), "p4")

	history, err := repo.ListHistoryByPlayer(context.Background(), "p1", 2, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 || history[0].ID != "m3" || history[1].ID != "m2" {
		t.Fatalf("expected newest-first page, got %+v", history)
	}

	history, err = repo.ListHistoryByPlayer(context.Background(), "p1", 2, 2)
	if err != nil {
		t.Fatalf("list history offset: %v", err)
	}
	if len(history) != 1 || history[0].ID != "m1" {
		t.Fatalf("expected final page, got %+v", history)
	}

	history, err = repo.ListHistoryByPlayer(context.Background(), "p1", 2, 5)
	if err != nil {
		t.Fatalf("list history past end: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty page past end, got %+v", history)
	}
}

func TestMatchRepository_GetOpenByPlayer(t *testing.T) {
	t.Parallel()

	repo := NewMatchRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, open, err := repo.GetOpenByPlayer(context.Background(), "p1"); err != nil || open {
		t.Fatalf("expected no open match: open=%v err=%v", open, err)
	}

	if err := repo.Create(context.Background(), pendingMatch("m1", "p1", "p2", now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, playerID := range []string{"p1", "p2"} {
		m, open, err := repo.GetOpenByPlayer(context.Background(), playerID)
		if err != nil || !open {
			t.Fatalf("expected open match for %s: open=%v err=%v", playerID, open, err)
		}
		if m.ID != "m1" {
			t.Fatalf("unexpected match for %s: %+v", playerID, m)
		}
	}
}
