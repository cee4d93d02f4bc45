package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/duelhub/internal/domain/player"
)

type PlayerRepository struct {
	mu    sync.RWMutex
	items map[string]player.Player
}

func NewPlayerRepository(seed []player.Player) *PlayerRepository {
	items := make(map[string]player.Player, len(seed))
	for _, p := range seed {
		items[p.ID] = p
	}

	return &PlayerRepository{items: items}
}

func (r *PlayerRepository) GetByID(_ context.Context, playerID string) (player.Player, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[playerID]
	if !ok {
		return player.Player{}, false, nil
	}

	return p, true, nil
}

// Put registers or replaces a player. Exposed for tests and dev seeding.
func (r *PlayerRepository) Put(_ context.Context, p player.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.items[p.ID] = p
	r.mu.Unlock()

	return nil
}
