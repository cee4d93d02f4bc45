package match

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle position of a match.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// ErrPlayerBusy is reported by Create when either player already holds a
// non-terminal match. It is the serialization point that stops two consumer
// instances from pairing the same player twice.
var ErrPlayerBusy = errors.New("player already has an open match")

// Terminal reports whether no further transitions are possible. ACTIVE is not
// terminal here: its eventual resolution belongs to the contest engine, but
// an active match still blocks re-enqueueing.
func (s Status) Terminal() bool {
	return s == StatusDeclined || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusPending || next == StatusCancelled
	case StatusPending:
		return next == StatusActive || next == StatusDeclined || next == StatusCancelled
	default:
		return false
	}
}

// Match is a proposed or running 1v1 contest. Version implements optimistic
// locking: every write carries the version it read, and the store rejects the
// write when the row moved underneath it.
type Match struct {
	ID              string
	Player1ID       string
	Player2ID       string
	Status          Status
	CreatedAt       time.Time
	AcceptDeadline  time.Time
	Player1Accepted bool
	Player2Accepted bool
	StartTime       *time.Time
	EndTime         *time.Time
	WinnerID        string
	Version         int64
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if m.Player1ID == "" || m.Player2ID == "" {
		return fmt.Errorf("match requires two players")
	}
	if m.Player1ID == m.Player2ID {
		return fmt.Errorf("match players must differ")
	}
	if m.Status == "" {
		return fmt.Errorf("match status is required")
	}

	return nil
}

func (m Match) HasParty(playerID string) bool {
	return playerID != "" && (playerID == m.Player1ID || playerID == m.Player2ID)
}

// Opponent returns the other party, or "" when playerID is not a party.
func (m Match) Opponent(playerID string) string {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	default:
		return ""
	}
}

func (m Match) BothAccepted() bool {
	return m.Player1Accepted && m.Player2Accepted
}

// DeadlineElapsed reports whether the accept window is over as of now.
func (m Match) DeadlineElapsed(now time.Time) bool {
	return !m.AcceptDeadline.IsZero() && now.After(m.AcceptDeadline)
}
