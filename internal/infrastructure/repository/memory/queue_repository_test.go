package memory

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/queue"
)

func TestQueueRepository_Upsert_SupersedesEntry(t *testing.T) {
	t.Parallel()

	repo := NewQueueRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := queue.Entry{PlayerID: "p1", Rating: 1000, EnqueuedAt: base}
	if err := repo.Upsert(context.Background(), first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := queue.Entry{PlayerID: "p1", Rating: 1100, EnqueuedAt: base.Add(time.Minute)}
	if err := repo.Upsert(context.Background(), second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stored, found, err := repo.GetByPlayer(context.Background(), "p1")
	if err != nil || !found {
		t.Fatalf("get entry: found=%v err=%v", found, err)
	}
	if stored != second {
		t.Fatalf("expected newer entry to win, got %+v", stored)
	}

	all, err := repo.ListOldest(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one live entry per player, got %d", len(all))
	}
}

func TestQueueRepository_Upsert_RejectsInvalidEntry(t *testing.T) {
	t.Parallel()

	repo := NewQueueRepository()

	if err := repo.Upsert(context.Background(), queue.Entry{Rating: 1000, EnqueuedAt: time.Now()}); err == nil {
		t.Fatalf("expected error for missing player id")
	}
	if err := repo.Upsert(context.Background(), queue.Entry{PlayerID: "p1", Rating: 1000}); err == nil {
		t.Fatalf("expected error for zero enqueue time")
	}
}

func TestQueueRepository_ListOldest_Ordering(t *testing.T) {
	t.Parallel()

	repo := NewQueueRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []queue.Entry{
		{PlayerID: "p-late", Rating: 1000, EnqueuedAt: base.Add(2 * time.Minute)},
		{PlayerID: "p-b", Rating: 1100, EnqueuedAt: base},
		{PlayerID: "p-a", Rating: 1200, EnqueuedAt: base},
		{PlayerID: "p-mid", Rating: 1300, EnqueuedAt: base.Add(time.Minute)},
	}
	for _, entry := range entries {
		if err := repo.Upsert(context.Background(), entry); err != nil {
			t.Fatalf("upsert %s: %v", entry.PlayerID, err)
		}
	}

	got, err := repo.ListOldest(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"p-a", "p-b", "p-mid", "p-late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, playerID := range want {
		if got[i].PlayerID != playerID {
			t.Fatalf("position %d: expected %s, got %s", i, playerID, got[i].PlayerID)
		}
	}

	limited, err := repo.ListOldest(context.Background(), 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[0].PlayerID != "p-a" || limited[1].PlayerID != "p-b" {
		t.Fatalf("expected oldest two entries, got %+v", limited)
	}
}

func TestQueueRepository_Remove(t *testing.T) {
	t.Parallel()

	repo := NewQueueRepository()

	removed, err := repo.Remove(context.Background(), "p1")
	if err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if removed {
		t.Fatalf("expected removal of missing entry to report false")
	}

	entry := queue.Entry{PlayerID: "p1", Rating: 1000, EnqueuedAt: time.Now()}
	if err := repo.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	removed, err = repo.Remove(context.Background(), "p1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to report true")
	}

	if _, found, err := repo.GetByPlayer(context.Background(), "p1"); err != nil || found {
		t.Fatalf("expected entry gone: found=%v err=%v", found, err)
	}
}
