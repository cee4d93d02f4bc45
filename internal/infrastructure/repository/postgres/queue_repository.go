package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/duelhub/internal/domain/queue"
)

type QueueRepository struct {
	db *sqlx.DB
}

func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

type queueEntryRow struct {
	PlayerID   string    `db:"player_id"`
	Rating     int       `db:"rating"`
	EnqueuedAt time.Time `db:"enqueued_at"`
}

func (row queueEntryRow) toDomain() queue.Entry {
	return queue.Entry{
		PlayerID:   row.PlayerID,
		Rating:     row.Rating,
		EnqueuedAt: row.EnqueuedAt,
	}
}

// Upsert relies on player_id being the primary key: a second enqueue for the
// same player replaces the live entry instead of duplicating it.
func (r *QueueRepository) Upsert(ctx context.Context, entry queue.Entry) error {
	const query = `
INSERT INTO match_queue (player_id, rating, enqueued_at)
VALUES (:player_id, :rating, :enqueued_at)
ON CONFLICT (player_id)
DO UPDATE SET
    rating = EXCLUDED.rating,
    enqueued_at = EXCLUDED.enqueued_at`

	args := map[string]any{
		"player_id":   entry.PlayerID,
		"rating":      entry.Rating,
		"enqueued_at": entry.EnqueuedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("upsert queue entry: %w", err)
	}

	return nil
}

func (r *QueueRepository) GetByPlayer(ctx context.Context, playerID string) (queue.Entry, bool, error) {
	const query = `
SELECT player_id, rating, enqueued_at
FROM match_queue
WHERE player_id = $1`

	var row queueEntryRow
	if err := r.db.GetContext(ctx, &row, query, playerID); err != nil {
		if isNotFound(err) {
			return queue.Entry{}, false, nil
		}
		return queue.Entry{}, false, fmt.Errorf("get queue entry: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *QueueRepository) ListOldest(ctx context.Context, limit int) ([]queue.Entry, error) {
	const query = `
SELECT player_id, rating, enqueued_at
FROM match_queue
ORDER BY enqueued_at, player_id
LIMIT $1`

	var rows []queueEntryRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	entries := make([]queue.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}

	return entries, nil
}

func (r *QueueRepository) Remove(ctx context.Context, playerID string) (bool, error) {
	const query = `
DELETE FROM match_queue
WHERE player_id = $1`

	result, err := r.db.ExecContext(ctx, query, playerID)
	if err != nil {
		return false, fmt.Errorf("remove queue entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove queue entry rows affected: %w", err)
	}

	return affected > 0, nil
}
