package player

import "fmt"

// DefaultRating is assigned to players that never finished a rated match.
const DefaultRating = 1000

// Player is the matchmaking view of a registered user: identity plus the
// current rating. Registration and rating recalculation live outside this
// service.
type Player struct {
	ID     string
	Rating int
}

func (p Player) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("player id is required")
	}
	if p.Rating < 0 {
		return fmt.Errorf("player rating cannot be negative")
	}

	return nil
}
