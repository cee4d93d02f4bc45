package queue

import "context"

// Repository is the durable waiting-line for matchmaking. A player has at
// most one live entry: Upsert replaces any prior entry for the same player.
// Entries outlive consumer crashes, so readers must tolerate seeing an entry
// for a player that has already been paired (at-least-once delivery).
type Repository interface {
	Upsert(ctx context.Context, entry Entry) error
	GetByPlayer(ctx context.Context, playerID string) (Entry, bool, error)
	// ListOldest returns up to limit entries ordered by enqueue time.
	ListOldest(ctx context.Context, limit int) ([]Entry, error)
	// Remove deletes the player's live entry, reporting whether one existed.
	Remove(ctx context.Context, playerID string) (bool, error)
}
