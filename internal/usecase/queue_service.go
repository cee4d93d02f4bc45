package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/match"
	"github.com/riskibarqy/duelhub/internal/domain/player"
	"github.com/riskibarqy/duelhub/internal/domain/queue"
	"github.com/riskibarqy/duelhub/internal/platform/cache"
	"github.com/riskibarqy/duelhub/internal/platform/logging"
)

// MatchSummary is the poll-fallback view of a player's open match.
type MatchSummary struct {
	MatchID        string    `json:"match_id"`
	OpponentID     string    `json:"opponent_id"`
	Status         string    `json:"status"`
	AcceptDeadline time.Time `json:"accept_deadline,omitempty"`
}

// QueueStatus reports where a player stands: waiting in the queue, party to
// an open match, or neither.
type QueueStatus struct {
	PlayerID   string        `json:"player_id"`
	InQueue    bool          `json:"in_queue"`
	Rating     int           `json:"rating,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at,omitempty"`
	Match      *MatchSummary `json:"match,omitempty"`
}

// QueueService owns queue membership: joining with a rating snapshot,
// leaving, and the pull-based status surface. Enqueue and the match creation
// path share the one-open-match-per-player guard in the match store.
type QueueService struct {
	queueRepo  queue.Repository
	matchRepo  match.Repository
	playerRepo player.Repository
	statusTTL  *cache.Store
	logger     *logging.Logger
	now        func() time.Time
}

func NewQueueService(
	queueRepo queue.Repository,
	matchRepo match.Repository,
	playerRepo player.Repository,
	statusCache *cache.Store,
	logger *logging.Logger,
) *QueueService {
	if logger == nil {
		logger = logging.Default()
	}

	return &QueueService{
		queueRepo:  queueRepo,
		matchRepo:  matchRepo,
		playerRepo: playerRepo,
		statusTTL:  statusCache,
		logger:     logger,
		now:        time.Now,
	}
}

// Enqueue adds the player to the waiting line with a rating snapshot.
// Re-enqueueing is idempotent: a newer entry supersedes the old one. A
// player holding a non-terminal match is rejected with ErrAlreadyInMatch.
func (s *QueueService) Enqueue(ctx context.Context, playerID string) (queue.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueueService.Enqueue")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return queue.Entry{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	p, found, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return queue.Entry{}, fmt.Errorf("get player: %w", err)
	}
	if !found {
		return queue.Entry{}, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}

	if open, exists, err := s.matchRepo.GetOpenByPlayer(ctx, playerID); err != nil {
		return queue.Entry{}, fmt.Errorf("check open match: %w", err)
	} else if exists {
		return queue.Entry{}, fmt.Errorf("%w: player %s has match %s (status=%s)", ErrAlreadyInMatch, playerID, open.ID, open.Status)
	}

	entry := queue.Entry{
		PlayerID:   p.ID,
		Rating:     p.Rating,
		EnqueuedAt: s.now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return queue.Entry{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.queueRepo.Upsert(ctx, entry); err != nil {
		return queue.Entry{}, fmt.Errorf("enqueue player: %w", err)
	}

	s.invalidateStatus(ctx, playerID)
	s.logger.InfoContext(ctx, "player enqueued", "player_id", entry.PlayerID, "rating", entry.Rating)

	return entry, nil
}

// Leave removes the player's live queue entry, reporting whether one existed.
func (s *QueueService) Leave(ctx context.Context, playerID string) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueueService.Leave")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return false, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	removed, err := s.queueRepo.Remove(ctx, playerID)
	if err != nil {
		return false, fmt.Errorf("remove queue entry: %w", err)
	}

	s.invalidateStatus(ctx, playerID)
	if removed {
		s.logger.InfoContext(ctx, "player left queue", "player_id", playerID)
	}

	return removed, nil
}

// GetStatus is the pull-based fallback for clients without a push channel.
// It observes the same stores the push path announces from, so both paths
// agree. Lookups are briefly cached to absorb tight polling loops.
func (s *QueueService) GetStatus(ctx context.Context, playerID string) (QueueStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.QueueService.GetStatus")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return QueueStatus{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	if s.statusTTL == nil {
		return s.loadStatus(ctx, playerID)
	}

	value, err := s.statusTTL.GetOrLoad(ctx, statusCacheKey(playerID), func(ctx context.Context) (any, error) {
		return s.loadStatus(ctx, playerID)
	})
	if err != nil {
		return QueueStatus{}, err
	}

	status, ok := value.(QueueStatus)
	if !ok {
		return s.loadStatus(ctx, playerID)
	}

	return status, nil
}

func (s *QueueService) loadStatus(ctx context.Context, playerID string) (QueueStatus, error) {
	status := QueueStatus{PlayerID: playerID}

	entry, inQueue, err := s.queueRepo.GetByPlayer(ctx, playerID)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("get queue entry: %w", err)
	}
	if inQueue {
		status.InQueue = true
		status.Rating = entry.Rating
		status.EnqueuedAt = entry.EnqueuedAt
	}

	open, exists, err := s.matchRepo.GetOpenByPlayer(ctx, playerID)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("get open match: %w", err)
	}
	if exists {
		status.Match = &MatchSummary{
			MatchID:        open.ID,
			OpponentID:     open.Opponent(playerID),
			Status:         string(open.Status),
			AcceptDeadline: open.AcceptDeadline,
		}
	}

	return status, nil
}

func (s *QueueService) invalidateStatus(ctx context.Context, playerID string) {
	if s.statusTTL == nil {
		return
	}
	s.statusTTL.Delete(ctx, statusCacheKey(playerID))
}

func statusCacheKey(playerID string) string {
	return "queue-status:" + playerID
}
