package queue

import (
	"fmt"
	"time"
)

// Entry is one player's outstanding request to be matched. Rating is a
// snapshot taken at enqueue time so pairing stays deterministic even if the
// live rating moves while the player waits.
type Entry struct {
	PlayerID   string
	Rating     int
	EnqueuedAt time.Time
}

func (e Entry) Validate() error {
	if e.PlayerID == "" {
		return fmt.Errorf("queue entry player id is required")
	}
	if e.Rating < 0 {
		return fmt.Errorf("queue entry rating cannot be negative")
	}
	if e.EnqueuedAt.IsZero() {
		return fmt.Errorf("queue entry enqueued_at is required")
	}

	return nil
}

// Waited reports how long the entry has been queued as of now.
func (e Entry) Waited(now time.Time) time.Duration {
	if now.Before(e.EnqueuedAt) {
		return 0
	}
	return now.Sub(e.EnqueuedAt)
}
