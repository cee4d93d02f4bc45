package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/duelhub/internal/domain/queue"
)

type QueueRepository struct {
	mu    sync.RWMutex
	items map[string]queue.Entry
}

func NewQueueRepository() *QueueRepository {
	return &QueueRepository{items: make(map[string]queue.Entry)}
}

func (r *QueueRepository) Upsert(_ context.Context, entry queue.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.items[entry.PlayerID] = entry
	r.mu.Unlock()

	return nil
}

func (r *QueueRepository) GetByPlayer(_ context.Context, playerID string) (queue.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.items[playerID]
	if !ok {
		return queue.Entry{}, false, nil
	}

	return entry, true, nil
}

func (r *QueueRepository) ListOldest(_ context.Context, limit int) ([]queue.Entry, error) {
	r.mu.RLock()
	entries := make([]queue.Entry, 0, len(r.items))
	for _, entry := range r.items {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
			return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (r *QueueRepository) Remove(_ context.Context, playerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[playerID]; !ok {
		return false, nil
	}
	delete(r.items, playerID)

	return true, nil
}
