package player

import "context"

// Repository describes the rating-lookup collaborator consumed by use cases.
type Repository interface {
	GetByID(ctx context.Context, playerID string) (Player, bool, error)
}
