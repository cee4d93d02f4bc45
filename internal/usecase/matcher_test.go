package usecase

import (
	"testing"
	"time"

	"github.com/riskibarqy/duelhub/internal/domain/queue"
)

func TestNormalizeMatcherConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := NormalizeMatcherConfig(MatcherConfig{})
	if cfg.BaseDelta != 200 {
		t.Fatalf("expected default base delta 200, got %d", cfg.BaseDelta)
	}
	if cfg.MaxDelta != 200 {
		t.Fatalf("expected max delta raised to base, got %d", cfg.MaxDelta)
	}
	if cfg.WidenAfter != 30*time.Second {
		t.Fatalf("expected default widen-after 30s, got %s", cfg.WidenAfter)
	}
	if cfg.WidenEvery != 15*time.Second {
		t.Fatalf("expected default widen-every 15s, got %s", cfg.WidenEvery)
	}

	cfg = NormalizeMatcherConfig(MatcherConfig{BaseDelta: 300, MaxDelta: 100, WidenStep: -5})
	if cfg.MaxDelta != 300 {
		t.Fatalf("expected max delta clamped to base, got %d", cfg.MaxDelta)
	}
	if cfg.WidenStep != 0 {
		t.Fatalf("expected negative widen step clamped to 0, got %d", cfg.WidenStep)
	}
}

func TestMatcher_Pair_AdjacentWithinBaseDelta(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 200, MaxDelta: 200})
	m.now = func() time.Time { return base }

	entries := []queue.Entry{
		{PlayerID: "p-high", Rating: 1505, EnqueuedAt: base},
		{PlayerID: "p-low", Rating: 1000, EnqueuedAt: base},
		{PlayerID: "p-high2", Rating: 1500, EnqueuedAt: base},
		{PlayerID: "p-low2", Rating: 1010, EnqueuedAt: base},
	}

	pairs := m.Pair(entries)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d: %+v", len(pairs), pairs)
	}
	if pairs[0].Player1.PlayerID != "p-low" || pairs[0].Player2.PlayerID != "p-low2" {
		t.Fatalf("unexpected first pair: %+v", pairs[0])
	}
	if pairs[1].Player1.PlayerID != "p-high2" || pairs[1].Player2.PlayerID != "p-high" {
		t.Fatalf("unexpected second pair: %+v", pairs[1])
	}
}

func TestMatcher_Pair_SkipsWideGap(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 200, MaxDelta: 1000, WidenAfter: 30 * time.Second, WidenEvery: 15 * time.Second, WidenStep: 100})
	m.now = func() time.Time { return base }

	entries := []queue.Entry{
		{PlayerID: "p1", Rating: 1000, EnqueuedAt: base},
		{PlayerID: "p2", Rating: 1400, EnqueuedAt: base},
	}

	if pairs := m.Pair(entries); len(pairs) != 0 {
		t.Fatalf("expected no pairs for a 400-point gap at base delta, got %+v", pairs)
	}
}

func TestMatcher_Pair_ThresholdWidensWithWait(t *testing.T) {
	t.Parallel()

	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 200, MaxDelta: 1000, WidenAfter: 30 * time.Second, WidenEvery: 15 * time.Second, WidenStep: 100})

	entries := []queue.Entry{
		{PlayerID: "p1", Rating: 1000, EnqueuedAt: enqueued},
		{PlayerID: "p2", Rating: 1400, EnqueuedAt: enqueued},
	}

	// 31s waited: one widening step, allowed 300, still too narrow.
	m.now = func() time.Time { return enqueued.Add(31 * time.Second) }
	if pairs := m.Pair(entries); len(pairs) != 0 {
		t.Fatalf("expected no pairs after one widening step, got %+v", pairs)
	}

	// 46s waited: two steps, allowed 400, gap now fits.
	m.now = func() time.Time { return enqueued.Add(46 * time.Second) }
	pairs := m.Pair(entries)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair after widening, got %d", len(pairs))
	}
	if pairs[0].Player1.PlayerID != "p1" || pairs[0].Player2.PlayerID != "p2" {
		t.Fatalf("unexpected pair: %+v", pairs[0])
	}
}

func TestMatcher_Pair_OlderEntryPullsThresholdUp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 200, MaxDelta: 1000, WidenAfter: 30 * time.Second, WidenEvery: 15 * time.Second, WidenStep: 100})
	m.now = func() time.Time { return now }

	// Only one side has waited long enough to widen; the pair still forms
	// because the threshold follows the longer wait.
	entries := []queue.Entry{
		{PlayerID: "veteran", Rating: 1000, EnqueuedAt: now.Add(-50 * time.Second)},
		{PlayerID: "fresh", Rating: 1400, EnqueuedAt: now},
	}

	pairs := m.Pair(entries)
	if len(pairs) != 1 {
		t.Fatalf("expected the veteran's wait to widen the threshold, got %+v", pairs)
	}
}

func TestMatcher_Pair_ThresholdCapsAtMaxDelta(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 200, MaxDelta: 400, WidenAfter: 30 * time.Second, WidenEvery: 15 * time.Second, WidenStep: 100})
	m.now = func() time.Time { return now }

	entries := []queue.Entry{
		{PlayerID: "p1", Rating: 1000, EnqueuedAt: now.Add(-time.Hour)},
		{PlayerID: "p2", Rating: 1450, EnqueuedAt: now.Add(-time.Hour)},
	}

	if pairs := m.Pair(entries); len(pairs) != 0 {
		t.Fatalf("expected cap to hold at max delta, got %+v", pairs)
	}
}

func TestMatcher_Pair_DedupesRedeliveredEntries(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 200, MaxDelta: 200})
	m.now = func() time.Time { return base.Add(time.Second) }

	entries := []queue.Entry{
		{PlayerID: "p1", Rating: 1000, EnqueuedAt: base.Add(500 * time.Millisecond)},
		{PlayerID: "p1", Rating: 990, EnqueuedAt: base},
		{PlayerID: "p2", Rating: 1005, EnqueuedAt: base},
	}

	pairs := m.Pair(entries)
	if len(pairs) != 1 {
		t.Fatalf("expected a single pair from deduped batch, got %d", len(pairs))
	}
	// Earliest entry per player wins, so p1 carries the 990 snapshot.
	if pairs[0].Player1.PlayerID != "p1" || pairs[0].Player1.Rating != 990 {
		t.Fatalf("expected earliest p1 entry kept, got %+v", pairs[0].Player1)
	}
	if pairs[0].Player2.PlayerID != "p2" {
		t.Fatalf("unexpected second player: %+v", pairs[0].Player2)
	}
}

func TestMatcher_Pair_LeavesOddEntryUnpaired(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatcher(MatcherConfig{BaseDelta: 100, MaxDelta: 100})
	m.now = func() time.Time { return base }

	entries := []queue.Entry{
		{PlayerID: "p1", Rating: 1000, EnqueuedAt: base},
		{PlayerID: "p2", Rating: 1010, EnqueuedAt: base},
		{PlayerID: "p3", Rating: 1020, EnqueuedAt: base},
	}

	pairs := m.Pair(entries)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair from 3 entries, got %d", len(pairs))
	}
	if pairs[0].Player1.PlayerID != "p1" || pairs[0].Player2.PlayerID != "p2" {
		t.Fatalf("expected closest adjacent pair first, got %+v", pairs[0])
	}
}

func TestMatcher_Pair_TooFewEntries(t *testing.T) {
	t.Parallel()

	m := NewMatcher(MatcherConfig{})
	if pairs := m.Pair(nil); pairs != nil {
		t.Fatalf("expected nil for empty batch, got %+v", pairs)
	}
	if pairs := m.Pair([]queue.Entry{{PlayerID: "p1", Rating: 1000, EnqueuedAt: time.Now()}}); pairs != nil {
		t.Fatalf("expected nil for single entry, got %+v", pairs)
	}
}
