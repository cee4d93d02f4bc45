package memory

import "github.com/riskibarqy/duelhub/internal/domain/player"

// SeedPlayers returns a small dev roster spanning the rating ladder, enough
// to exercise pairing and threshold widening locally without a database.
func SeedPlayers() []player.Player {
	return []player.Player{
		{ID: "player-ayu", Rating: 980},
		{ID: "player-bima", Rating: 1000},
		{ID: "player-citra", Rating: 1150},
		{ID: "player-dewi", Rating: 1220},
		{ID: "player-eko", Rating: 1500},
		{ID: "player-fajar", Rating: 1520},
		{ID: "player-gita", Rating: 1780},
		{ID: "player-hadi", Rating: 2100},
	}
}
