package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/match"
)

// MatchEvent is the payload pushed to a player when their match changes
// state. OpponentID is relative to the receiving player.
type MatchEvent struct {
	Type           string    `json:"type"`
	MatchID        string    `json:"match_id"`
	OpponentID     string    `json:"opponent_id"`
	Status         string    `json:"status"`
	AcceptDeadline time.Time `json:"accept_deadline,omitempty"`
	TimeoutSeconds int       `json:"timeout_seconds,omitempty"`
}

const (
	EventMatchFound    = "match_found"
	EventMatchStarted  = "match_started"
	EventMatchDeclined = "match_declined"
)

// Notifier delivers best-effort push messages to a single player. A
// disconnected player is a normal condition, not an error.
type Notifier interface {
	Notify(ctx context.Context, playerID string, event MatchEvent) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, MatchEvent) error { return nil }

func NewNoopNotifier() Notifier { return noopNotifier{} }

// MultiNotifier fans a single event out to several sinks (in-process hub,
// external relay). Delivery stays best-effort: the first sink error is
// returned after all sinks were attempted.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, playerID string, event MatchEvent) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, playerID, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func matchEventFor(m match.Match, playerID, eventType string, now time.Time) MatchEvent {
	ev := MatchEvent{
		Type:       eventType,
		MatchID:    m.ID,
		OpponentID: m.Opponent(playerID),
		Status:     string(m.Status),
	}
	if eventType == EventMatchFound {
		ev.AcceptDeadline = m.AcceptDeadline
		if remaining := m.AcceptDeadline.Sub(now); remaining > 0 {
			ev.TimeoutSeconds = int(remaining / time.Second)
		}
	}

	return ev
}
