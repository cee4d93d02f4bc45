package match

import (
	"context"
	"time"
)

// Repository persists match rows with optimistic concurrency. All status and
// flag mutations go through Update carrying the version the caller read;
// Update returns false (and no error) when another writer got there first.
type Repository interface {
	// Create inserts a new match. It fails with ErrPlayerBusy when either
	// player is already party to a non-terminal match.
	Create(ctx context.Context, m Match) error
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	// Update applies m when the stored version equals expectedVersion,
	// bumping the version on success.
	Update(ctx context.Context, m Match, expectedVersion int64) (bool, error)
	// GetOpenByPlayer returns the player's non-terminal match, if any.
	GetOpenByPlayer(ctx context.Context, playerID string) (Match, bool, error)
	// ListActiveByPlayer returns the player's PENDING and ACTIVE matches.
	ListActiveByPlayer(ctx context.Context, playerID string) ([]Match, error)
	// ListExpiredPending returns up to limit PENDING matches whose accept
	// deadline lies at or before now, oldest deadline first.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]Match, error)
	// ListHistoryByPlayer returns the player's terminal matches, newest
	// first, with limit/offset pagination.
	ListHistoryByPlayer(ctx context.Context, playerID string, limit, offset int) ([]Match, error)
}
