package combat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
)

// fixedSource always returns val (clamped to n-1), so every die shows val+1.
type fixedSource struct {
	val int
}

func (f fixedSource) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

// seqSource returns the queued die faces (1-based) in order, wrapping.
type seqSource struct {
	mu    sync.Mutex
	faces []int
	i     int
}

func (s *seqSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faces[s.i%len(s.faces)]
	s.i++
	return (f - 1) % n
}

var testEpoch = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func newStore(t *testing.T) *combat.Store {
	t.Helper()
	return combat.NewStore(combat.StoreConfig{Clock: clock.NewManual(testEpoch)})
}

func participant(id string, hp, ac int) combat.Participant {
	return combat.Participant{ID: id, Name: id, CurrentHP: hp, MaxHP: hp, ArmorClass: ac}
}

// loadedStore returns a Store loaded with ps in the given order.
func loadedStore(t *testing.T, ps ...combat.Participant) *combat.Store {
	t.Helper()
	for i := range ps {
		ps[i].Seq = i
	}
	s := newStore(t)
	require.NoError(t, s.Load(combat.Snapshot{
		ID:           "combat-1",
		CampaignID:   "campaign-1",
		Name:         "Ambush",
		Status:       combat.StatusActive,
		CurrentRound: 1,
		Participants: append([]combat.Participant{}, ps...),
	}))
	return s
}

func roller(src dice.Source) *dice.Roller {
	return dice.NewLoggedRoller(src, zap.NewNop())
}

func sheets(ss ...*sheet.Sheet) *sheet.Registry {
	reg := sheet.NewRegistry()
	for _, s := range ss {
		reg.Register(s)
	}
	return reg
}

func ids(ps []combat.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
