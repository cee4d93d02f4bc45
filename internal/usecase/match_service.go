package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/duelhub/internal/domain/match"
	idgen "github.com/riskibarqy/duelhub/internal/platform/id"
	"github.com/riskibarqy/duelhub/internal/platform/logging"
)

// casRetries bounds the optimistic-lock retry loop on a single match. Two
// sides accepting at once need at most one retry; anything past this means
// the row is churning and the caller should see the conflict.
const casRetries = 3

type MatchServiceConfig struct {
	AcceptWindow time.Duration
}

// MatchService owns the match state machine: creation, the accept window,
// accept/decline/cancel transitions, and deadline-driven auto-decline. Every
// transition is a compare-and-swap against the version the service read, so
// concurrent accepts for the two sides of one match serialize on the store.
type MatchService struct {
	matches  match.Repository
	idGen    idgen.Generator
	notifier Notifier
	cfg      MatchServiceConfig
	logger   *logging.Logger
	now      func() time.Time
}

func NewMatchService(
	matches match.Repository,
	idGen idgen.Generator,
	notifier Notifier,
	cfg MatchServiceConfig,
	logger *logging.Logger,
) *MatchService {
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AcceptWindow <= 0 {
		cfg.AcceptWindow = 15 * time.Second
	}

	return &MatchService{
		matches:  matches,
		idGen:    idGen,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateMatch persists a new PENDING match for the pair and pushes
// match-found events to both players. The store's one-open-match-per-player
// guard makes this the serialization point for concurrent consumer loops:
// losing the race surfaces as ErrAlreadyInMatch and the pairing is discarded.
func (s *MatchService) CreateMatch(ctx context.Context, player1ID, player2ID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.CreateMatch")
	defer span.End()

	player1ID = strings.TrimSpace(player1ID)
	player2ID = strings.TrimSpace(player2ID)
	if player1ID == "" || player2ID == "" {
		return match.Match{}, fmt.Errorf("%w: both player ids are required", ErrInvalidInput)
	}
	if player1ID == player2ID {
		return match.Match{}, fmt.Errorf("%w: a player cannot be matched with itself", ErrInvalidInput)
	}

	matchID, err := s.idGen.NewID()
	if err != nil {
		return match.Match{}, fmt.Errorf("generate match id: %w", err)
	}

	now := s.now().UTC()
	m := match.Match{
		ID:             matchID,
		Player1ID:      player1ID,
		Player2ID:      player2ID,
		Status:         match.StatusCreated,
		CreatedAt:      now,
		AcceptDeadline: now.Add(s.cfg.AcceptWindow),
	}
	// CREATED is only the in-memory starting state; the row is persisted
	// already promoted to PENDING with its accept deadline set.
	m.Status = match.StatusPending

	if err := m.Validate(); err != nil {
		return match.Match{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.matches.Create(ctx, m); err != nil {
		if isPlayerBusy(err) {
			return match.Match{}, fmt.Errorf("%w: %v", ErrAlreadyInMatch, err)
		}
		return match.Match{}, fmt.Errorf("create match: %w", err)
	}

	s.logger.InfoContext(ctx, "match created",
		"match_id", m.ID,
		"player1_id", m.Player1ID,
		"player2_id", m.Player2ID,
		"accept_deadline", m.AcceptDeadline,
	)

	s.fanout(ctx, m, EventMatchFound)

	return m, nil
}

// Accept records one player's confirmation. When both sides have confirmed
// the match flips to ACTIVE under a single conditional update. Touching an
// expired match applies the auto-decline first, then fails with ErrTimedOut.
func (s *MatchService) Accept(ctx context.Context, matchID, playerID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Accept")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	playerID = strings.TrimSpace(playerID)
	if matchID == "" || playerID == "" {
		return match.Match{}, fmt.Errorf("%w: match id and player id are required", ErrInvalidInput)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		m, found, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			return match.Match{}, fmt.Errorf("get match: %w", err)
		}
		if !found {
			return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		if !m.HasParty(playerID) {
			return match.Match{}, fmt.Errorf("%w: player %s is not a party of match %s", ErrForbidden, playerID, matchID)
		}

		now := s.now().UTC()
		if m.Status == match.StatusPending && m.DeadlineElapsed(now) {
			// Deadline passed before the sweep got here: apply the
			// decline lazily, then report the timeout.
			if _, err := s.declineExpired(ctx, m, now); err != nil {
				return match.Match{}, err
			}
			return match.Match{}, fmt.Errorf("%w: match %s accept deadline passed", ErrTimedOut, matchID)
		}
		if m.Status != match.StatusPending {
			if m.Status == match.StatusDeclined && m.DeadlineElapsed(now) {
				return match.Match{}, fmt.Errorf("%w: match %s accept deadline passed", ErrTimedOut, matchID)
			}
			return match.Match{}, fmt.Errorf("%w: match %s is not awaiting acceptance (status=%s)", ErrInvalidInput, matchID, m.Status)
		}

		updated := m
		switch playerID {
		case m.Player1ID:
			updated.Player1Accepted = true
		case m.Player2ID:
			updated.Player2Accepted = true
		}

		activated := false
		if updated.BothAccepted() {
			updated.Status = match.StatusActive
			start := now
			updated.StartTime = &start
			activated = true
		}

		ok, err := s.matches.Update(ctx, updated, m.Version)
		if err != nil {
			return match.Match{}, fmt.Errorf("update match: %w", err)
		}
		if !ok {
			// Lost the race against the other side's accept or the
			// sweeper. Reload and re-evaluate.
			continue
		}

		updated.Version = m.Version + 1
		s.logger.InfoContext(ctx, "match accept recorded",
			"match_id", updated.ID,
			"player_id", playerID,
			"activated", activated,
		)
		if activated {
			s.fanout(ctx, updated, EventMatchStarted)
		}

		return updated, nil
	}

	return match.Match{}, fmt.Errorf("%w: match %s is being updated concurrently", ErrDependencyUnavailable, matchID)
}

// Decline lets a party reject a PENDING match. Both players are freed
// immediately.
func (s *MatchService) Decline(ctx context.Context, matchID, playerID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Decline")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	playerID = strings.TrimSpace(playerID)
	if matchID == "" || playerID == "" {
		return match.Match{}, fmt.Errorf("%w: match id and player id are required", ErrInvalidInput)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		m, found, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			return match.Match{}, fmt.Errorf("get match: %w", err)
		}
		if !found {
			return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		if !m.HasParty(playerID) {
			return match.Match{}, fmt.Errorf("%w: player %s is not a party of match %s", ErrForbidden, playerID, matchID)
		}
		if m.Status != match.StatusPending {
			return match.Match{}, fmt.Errorf("%w: match %s is not awaiting acceptance (status=%s)", ErrInvalidInput, matchID, m.Status)
		}

		now := s.now().UTC()
		updated := m
		updated.Status = match.StatusDeclined
		end := now
		updated.EndTime = &end

		ok, err := s.matches.Update(ctx, updated, m.Version)
		if err != nil {
			return match.Match{}, fmt.Errorf("update match: %w", err)
		}
		if !ok {
			continue
		}

		updated.Version = m.Version + 1
		s.logger.InfoContext(ctx, "match declined", "match_id", updated.ID, "player_id", playerID)
		s.fanout(ctx, updated, EventMatchDeclined)

		return updated, nil
	}

	return match.Match{}, fmt.Errorf("%w: match %s is being updated concurrently", ErrDependencyUnavailable, matchID)
}

// Cancel aborts a CREATED or PENDING match on an external signal, e.g. a
// permanent player disconnect reported by the session layer.
func (s *MatchService) Cancel(ctx context.Context, matchID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Cancel")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		m, found, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			return match.Match{}, fmt.Errorf("get match: %w", err)
		}
		if !found {
			return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		if !m.Status.CanTransitionTo(match.StatusCancelled) {
			return match.Match{}, fmt.Errorf("%w: match %s cannot be cancelled (status=%s)", ErrInvalidInput, matchID, m.Status)
		}

		now := s.now().UTC()
		updated := m
		updated.Status = match.StatusCancelled
		end := now
		updated.EndTime = &end

		ok, err := s.matches.Update(ctx, updated, m.Version)
		if err != nil {
			return match.Match{}, fmt.Errorf("update match: %w", err)
		}
		if !ok {
			continue
		}

		updated.Version = m.Version + 1
		s.logger.InfoContext(ctx, "match cancelled", "match_id", updated.ID)

		return updated, nil
	}

	return match.Match{}, fmt.Errorf("%w: match %s is being updated concurrently", ErrDependencyUnavailable, matchID)
}

// GetActiveMatches is the pull-based fallback surface: it reports the same
// PENDING/ACTIVE state the push path announces.
func (s *MatchService) GetActiveMatches(ctx context.Context, playerID string) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.GetActiveMatches")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	matches, err := s.matches.ListActiveByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}

	return matches, nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.GetMatch")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	m, found, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !found {
		return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}

	return m, nil
}

func (s *MatchService) GetMatchHistory(ctx context.Context, playerID string, limit, offset int) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.GetMatchHistory")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	matches, err := s.matches.ListHistoryByPlayer(ctx, playerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list match history: %w", err)
	}

	return matches, nil
}

// DeclineExpired is the sweep unit of work: it loads PENDING matches past
// their deadline and auto-declines each, freeing both players. It returns
// how many matches were resolved in this pass.
func (s *MatchService) DeclineExpired(ctx context.Context, limit int) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.DeclineExpired")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	now := s.now().UTC()
	expired, err := s.matches.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired pending matches: %w", err)
	}

	declined := 0
	for _, m := range expired {
		resolved, err := s.declineExpired(ctx, m, now)
		if err != nil {
			return declined, err
		}
		if resolved {
			declined++
		}
	}

	return declined, nil
}

// declineExpired applies the timeout transition for one match. A CAS miss is
// not an error: someone else resolved the match first.
func (s *MatchService) declineExpired(ctx context.Context, m match.Match, now time.Time) (bool, error) {
	if m.Status != match.StatusPending {
		return false, nil
	}

	updated := m
	updated.Status = match.StatusDeclined
	end := now
	updated.EndTime = &end

	ok, err := s.matches.Update(ctx, updated, m.Version)
	if err != nil {
		return false, fmt.Errorf("auto-decline match %s: %w", m.ID, err)
	}
	if !ok {
		return false, nil
	}

	updated.Version = m.Version + 1
	s.logger.InfoContext(ctx, "match auto-declined on deadline",
		"match_id", updated.ID,
		"accept_deadline", updated.AcceptDeadline,
	)
	s.fanout(ctx, updated, EventMatchDeclined)

	return true, nil
}

// fanout pushes the event to both parties concurrently. Push is best-effort:
// failures are logged and never bubble into the state transition.
func (s *MatchService) fanout(ctx context.Context, m match.Match, eventType string) {
	now := s.now().UTC()

	var wg conc.WaitGroup
	for _, playerID := range []string{m.Player1ID, m.Player2ID} {
		playerID := playerID
		wg.Go(func() {
			event := matchEventFor(m, playerID, eventType, now)
			if err := s.notifier.Notify(ctx, playerID, event); err != nil {
				s.logger.WarnContext(ctx, "push notification failed",
					"match_id", m.ID,
					"player_id", playerID,
					"event", eventType,
					"error", err,
				)
			}
		})
	}
	wg.Wait()
}

func isPlayerBusy(err error) bool {
	return errors.Is(err, match.ErrPlayerBusy)
}
