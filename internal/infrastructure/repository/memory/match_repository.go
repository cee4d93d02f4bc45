package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/match"
)

// MatchRepository keeps match rows under one mutex, mirroring the optimistic
// concurrency contract of the postgres implementation: Update applies only
// when the stored version matches, and Create refuses a player that already
// holds a non-terminal match.
type MatchRepository struct {
	mu    sync.RWMutex
	items map[string]match.Match
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{items: make(map[string]match.Match)}
}

func (r *MatchRepository) Create(_ context.Context, m match.Match) error {
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[m.ID]; exists {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	for _, existing := range r.items {
		if existing.Status.Terminal() {
			continue
		}
		if existing.HasParty(m.Player1ID) || existing.HasParty(m.Player2ID) {
			return fmt.Errorf("create match %s: %w", m.ID, match.ErrPlayerBusy)
		}
	}

	m.Version = 1
	r.items[m.ID] = cloneMatch(m)

	return nil
}

func (r *MatchRepository) GetByID(_ context.Context, matchID string) (match.Match, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.items[matchID]
	if !ok {
		return match.Match{}, false, nil
	}

	return cloneMatch(m), true, nil
}

func (r *MatchRepository) Update(_ context.Context, m match.Match, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[m.ID]
	if !ok {
		return false, fmt.Errorf("match %s does not exist", m.ID)
	}
	if current.Version != expectedVersion {
		return false, nil
	}

	m.Version = expectedVersion + 1
	r.items[m.ID] = cloneMatch(m)

	return true, nil
}

func (r *MatchRepository) GetOpenByPlayer(_ context.Context, playerID string) (match.Match, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.items {
		if m.Status.Terminal() {
			continue
		}
		if m.HasParty(playerID) {
			return cloneMatch(m), true, nil
		}
	}

	return match.Match{}, false, nil
}

func (r *MatchRepository) ListActiveByPlayer(_ context.Context, playerID string) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []match.Match
	for _, m := range r.items {
		if m.Status != match.StatusPending && m.Status != match.StatusActive {
			continue
		}
		if m.HasParty(playerID) {
			out = append(out, cloneMatch(m))
		}
	}
	sortByCreatedAtDesc(out)

	return out, nil
}

func (r *MatchRepository) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []match.Match
	for _, m := range r.items {
		if m.Status != match.StatusPending {
			continue
		}
		if m.AcceptDeadline.After(now) {
			continue
		}
		out = append(out, cloneMatch(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AcceptDeadline.Before(out[j].AcceptDeadline)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *MatchRepository) ListHistoryByPlayer(_ context.Context, playerID string, limit, offset int) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []match.Match
	for _, m := range r.items {
		if !m.Status.Terminal() {
			continue
		}
		if m.HasParty(playerID) {
			out = append(out, cloneMatch(m))
		}
	}
	sortByCreatedAtDesc(out)

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func sortByCreatedAtDesc(items []match.Match) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func cloneMatch(m match.Match) match.Match {
	copied := m
	if m.StartTime != nil {
		start := *m.StartTime
		copied.StartTime = &start
	}
	if m.EndTime != nil {
		end := *m.EndTime
		copied.EndTime = &end
	}

	return copied
}
