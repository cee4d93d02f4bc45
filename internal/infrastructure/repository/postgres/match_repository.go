package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/duelhub/internal/domain/match"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

type matchRow struct {
	ID              string         `db:"id"`
	Player1ID       string         `db:"player1_id"`
	Player2ID       string         `db:"player2_id"`
	Status          string         `db:"status"`
	CreatedAt       time.Time      `db:"created_at"`
	AcceptDeadline  time.Time      `db:"accept_deadline"`
	Player1Accepted bool           `db:"player1_accepted"`
	Player2Accepted bool           `db:"player2_accepted"`
	StartTime       *time.Time     `db:"start_time"`
	EndTime         *time.Time     `db:"end_time"`
	WinnerID        sql.NullString `db:"winner_id"`
	Version         int64          `db:"version"`
}

const matchColumns = `
id, player1_id, player2_id, status, created_at, accept_deadline,
player1_accepted, player2_accepted, start_time, end_time, winner_id, version`

func (row matchRow) toDomain() match.Match {
	m := match.Match{
		ID:              row.ID,
		Player1ID:       row.Player1ID,
		Player2ID:       row.Player2ID,
		Status:          match.Status(row.Status),
		CreatedAt:       row.CreatedAt,
		AcceptDeadline:  row.AcceptDeadline,
		Player1Accepted: row.Player1Accepted,
		Player2Accepted: row.Player2Accepted,
		StartTime:       row.StartTime,
		EndTime:         row.EndTime,
		Version:         row.Version,
	}
	if row.WinnerID.Valid {
		m.WinnerID = row.WinnerID.String
	}

	return m
}

// Create inserts the match only when neither player holds a non-terminal
// row. Both players are serialized through ordered advisory locks for the
// duration of the transaction, so two consumer instances racing on
// overlapping pairs cannot both pass the busy check.
func (r *MatchRepository) Create(ctx context.Context, m match.Match) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for match create: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	first, second := m.Player1ID, m.Player2ID
	if second < first {
		first, second = second, first
	}
	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1)), pg_advisory_xact_lock(hashtext($2))`
	if _, err := tx.ExecContext(ctx, lockQuery, first, second); err != nil {
		return fmt.Errorf("lock players for match create: %w", err)
	}

	const busyQuery = `
SELECT EXISTS (
    SELECT 1
    FROM matches
    WHERE status NOT IN ('declined', 'cancelled')
      AND (player1_id IN ($1, $2) OR player2_id IN ($1, $2))
)`
	var busy bool
	if err := tx.GetContext(ctx, &busy, busyQuery, m.Player1ID, m.Player2ID); err != nil {
		return fmt.Errorf("check open matches: %w", err)
	}
	if busy {
		return fmt.Errorf("create match %s: %w", m.ID, match.ErrPlayerBusy)
	}

	const insertQuery = `
INSERT INTO matches (
    id, player1_id, player2_id, status, created_at, accept_deadline,
    player1_accepted, player2_accepted, start_time, end_time, winner_id, version
)
VALUES (
    :id, :player1_id, :player2_id, :status, :created_at, :accept_deadline,
    :player1_accepted, :player2_accepted, :start_time, :end_time, :winner_id, 1
)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, matchArgs(m)); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit match create: %w", err)
	}

	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	var row matchRow
	if err := r.db.GetContext(ctx, &row, query, matchID); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("get match: %w", err)
	}

	return row.toDomain(), true, nil
}

// Update is the conditional write behind every state transition: it applies
// only when the stored version still equals expectedVersion, bumping the
// version atomically. Zero affected rows on an existing match means another
// writer won.
func (r *MatchRepository) Update(ctx context.Context, m match.Match, expectedVersion int64) (bool, error) {
	const query = `
UPDATE matches
SET status = :status,
    player1_accepted = :player1_accepted,
    player2_accepted = :player2_accepted,
    start_time = :start_time,
    end_time = :end_time,
    winner_id = :winner_id,
    version = version + 1
WHERE id = :id
  AND version = :expected_version`

	args := matchArgs(m)
	args["expected_version"] = expectedVersion

	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("update match: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update match rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish a lost race from a missing row.
	if _, found, err := r.GetByID(ctx, m.ID); err != nil {
		return false, err
	} else if !found {
		return false, fmt.Errorf("match %s does not exist", m.ID)
	}

	return false, nil
}

func (r *MatchRepository) GetOpenByPlayer(ctx context.Context, playerID string) (match.Match, bool, error) {
	query := `
SELECT ` + matchColumns + `
FROM matches
WHERE status NOT IN ('declined', 'cancelled')
  AND (player1_id = $1 OR player2_id = $1)
ORDER BY created_at DESC
LIMIT 1`

	var row matchRow
	if err := r.db.GetContext(ctx, &row, query, playerID); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("get open match: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *MatchRepository) ListActiveByPlayer(ctx context.Context, playerID string) ([]match.Match, error) {
	query := `
SELECT ` + matchColumns + `
FROM matches
WHERE status IN ('pending', 'active')
  AND (player1_id = $1 OR player2_id = $1)
ORDER BY created_at DESC`

	var rows []matchRow
	if err := r.db.SelectContext(ctx, &rows, query, playerID); err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}

	return rowsToDomain(rows), nil
}

func (r *MatchRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]match.Match, error) {
	query := `
SELECT ` + matchColumns + `
FROM matches
WHERE status = 'pending'
  AND accept_deadline <= $1
ORDER BY accept_deadline
LIMIT $2`

	var rows []matchRow
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("list expired pending matches: %w", err)
	}

	return rowsToDomain(rows), nil
}

func (r *MatchRepository) ListHistoryByPlayer(ctx context.Context, playerID string, limit, offset int) ([]match.Match, error) {
	query := `
SELECT ` + matchColumns + `
FROM matches
WHERE status IN ('declined', 'cancelled')
  AND (player1_id = $1 OR player2_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	var rows []matchRow
	if err := r.db.SelectContext(ctx, &rows, query, playerID, limit, offset); err != nil {
		return nil, fmt.Errorf("list match history: %w", err)
	}

	return rowsToDomain(rows), nil
}

func matchArgs(m match.Match) map[string]any {
	var winner any
	if m.WinnerID != "" {
		winner = m.WinnerID
	}

	return map[string]any{
		"id":               m.ID,
		"player1_id":       m.Player1ID,
		"player2_id":       m.Player2ID,
		"status":           string(m.Status),
		"created_at":       m.CreatedAt,
		"accept_deadline":  m.AcceptDeadline,
		"player1_accepted": m.Player1Accepted,
		"player2_accepted": m.Player2Accepted,
		"start_time":       m.StartTime,
		"end_time":         m.EndTime,
		"winner_id":        winner,
	}
}

func rowsToDomain(rows []matchRow) []match.Match {
	matches := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, row.toDomain())
	}

	return matches
}
