package usecase

import (
	"sort"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/queue"
)

// MatcherConfig tunes the pairing algorithm. The delta a pair is allowed
// widens monotonically with how long the older of the two entries has waited
// past WidenAfter: allowed = BaseDelta + WidenStep per full WidenEvery,
// capped at MaxDelta.
type MatcherConfig struct {
	BaseDelta  int
	MaxDelta   int
	WidenAfter time.Duration
	WidenEvery time.Duration
	WidenStep  int
}

func NormalizeMatcherConfig(cfg MatcherConfig) MatcherConfig {
	if cfg.BaseDelta <= 0 {
		cfg.BaseDelta = 200
	}
	if cfg.MaxDelta < cfg.BaseDelta {
		cfg.MaxDelta = cfg.BaseDelta
	}
	if cfg.WidenAfter <= 0 {
		cfg.WidenAfter = 30 * time.Second
	}
	if cfg.WidenEvery <= 0 {
		cfg.WidenEvery = 15 * time.Second
	}
	if cfg.WidenStep < 0 {
		cfg.WidenStep = 0
	}

	return cfg
}

// Pair associates two queue entries selected for one match.
type Pair struct {
	Player1 queue.Entry
	Player2 queue.Entry
}

// Matcher is the stateless rating-based pairing algorithm. Given a batch it
// sorts by rating (ties broken by earlier enqueue), then greedily pairs
// adjacent entries whose rating delta fits the allowed threshold. Output
// pairs are disjoint; unpaired entries stay queued for the next batch.
type Matcher struct {
	cfg MatcherConfig
	now func() time.Time
}

func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{
		cfg: NormalizeMatcherConfig(cfg),
		now: time.Now,
	}
}

func (m *Matcher) Pair(entries []queue.Entry) []Pair {
	if len(entries) < 2 {
		return nil
	}

	batch := dedupeByPlayer(entries)
	if len(batch) < 2 {
		return nil
	}

	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].Rating != batch[j].Rating {
			return batch[i].Rating < batch[j].Rating
		}
		if !batch[i].EnqueuedAt.Equal(batch[j].EnqueuedAt) {
			return batch[i].EnqueuedAt.Before(batch[j].EnqueuedAt)
		}
		return batch[i].PlayerID < batch[j].PlayerID
	})

	now := m.now()
	pairs := make([]Pair, 0, len(batch)/2)
	for i := 0; i+1 < len(batch); {
		left, right := batch[i], batch[i+1]
		delta := right.Rating - left.Rating
		if delta <= m.allowedDelta(left, right, now) {
			pairs = append(pairs, Pair{Player1: left, Player2: right})
			i += 2
			continue
		}
		i++
	}

	return pairs
}

// allowedDelta widens with the wait time of whichever entry queued first, so
// long-waiting players pull the threshold up for any neighbour they meet.
func (m *Matcher) allowedDelta(a, b queue.Entry, now time.Time) int {
	waited := a.Waited(now)
	if w := b.Waited(now); w > waited {
		waited = w
	}

	allowed := m.cfg.BaseDelta
	if m.cfg.WidenStep > 0 && waited > m.cfg.WidenAfter {
		steps := int((waited - m.cfg.WidenAfter) / m.cfg.WidenEvery)
		allowed += m.cfg.WidenStep * (steps + 1)
	}
	if allowed > m.cfg.MaxDelta {
		allowed = m.cfg.MaxDelta
	}

	return allowed
}

// dedupeByPlayer keeps the earliest entry per player. The queue store already
// guarantees one live entry per player; this guards against redelivered
// duplicates inside a single batch.
func dedupeByPlayer(entries []queue.Entry) []queue.Entry {
	seen := make(map[string]int, len(entries))
	out := make([]queue.Entry, 0, len(entries))
	for _, e := range entries {
		if e.PlayerID == "" {
			continue
		}
		if idx, ok := seen[e.PlayerID]; ok {
			if e.EnqueuedAt.Before(out[idx].EnqueuedAt) {
				out[idx] = e
			}
			continue
		}
		seen[e.PlayerID] = len(out)
		out = append(out, e)
	}

	return out
}
