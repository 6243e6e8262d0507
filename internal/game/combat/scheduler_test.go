package combat_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
)

func TestScheduler_RollInitiative_ThreeParticipantsWrap(t *testing.T) {
	s := loadedStore(t, participant("A", 10, 12), participant("B", 10, 12), participant("C", 10, 12))
	sched := combat.NewScheduler(s, nil, roller(&seqSource{faces: []int{15, 10, 20}}), combat.TieBreakInsertion, nil)

	rolls, err := sched.RollInitiative()
	require.NoError(t, err)
	require.Len(t, rolls, 3)

	snap := s.Snapshot()
	assert.Equal(t, []string{"C", "A", "B"}, ids(snap.Participants))
	require.NotNil(t, snap.ActiveIndex)
	assert.Equal(t, 0, *snap.ActiveIndex)
	assert.Equal(t, 1, snap.CurrentRound)

	for i := 0; i < 3; i++ {
		_, err := sched.NextTurn()
		require.NoError(t, err)
	}
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "C", active.ID)
	assert.Equal(t, 2, s.Snapshot().CurrentRound)
}

func TestScheduler_RollInitiative_AddsSheetModifier(t *testing.T) {
	gob := participant("gob", 7, 15)
	gob.SheetRef = "goblin"
	s := loadedStore(t, gob)
	reg := sheets(&sheet.Sheet{ID: "goblin", InitiativeModifier: 2})
	sched := combat.NewScheduler(s, reg, roller(fixedSource{val: 9}), "", nil)

	rolls, err := sched.RollInitiative()
	require.NoError(t, err)
	require.Len(t, rolls, 1)
	assert.Equal(t, 10, rolls[0].Natural)
	assert.Equal(t, 2, rolls[0].Modifier)
	assert.Equal(t, 12, rolls[0].Total)

	p, _ := s.Participant("gob")
	assert.Equal(t, 12, *p.Initiative)
	assert.False(t, p.InitiativeManual)
}

func TestScheduler_RollInitiative_KeepsManualValues(t *testing.T) {
	s := loadedStore(t, participant("a", 10, 12), participant("b", 10, 12))
	s.SetInitiative("b", 25)
	sched := combat.NewScheduler(s, nil, roller(fixedSource{val: 0}), "", nil)

	rolls, err := sched.RollInitiative()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(s.Snapshot().Participants))
	var manual int
	for _, r := range rolls {
		if r.Manual {
			manual++
			assert.Equal(t, 25, r.Total)
		}
	}
	assert.Equal(t, 1, manual)
}

func TestScheduler_TieBreak_Insertion(t *testing.T) {
	s := loadedStore(t, participant("first", 10, 12), participant("second", 10, 12))
	s.SetInitiative("first", 12)
	s.SetInitiative("second", 12)
	// Put second ahead before rolling; insertion order must still win.
	require.NoError(t, s.Transact(func(tx *combat.Tx) error {
		tx.Participants[0], tx.Participants[1] = tx.Participants[1], tx.Participants[0]
		return nil
	}))
	sched := combat.NewScheduler(s, nil, roller(fixedSource{}), combat.TieBreakInsertion, nil)
	_, err := sched.RollInitiative()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids(s.Snapshot().Participants))
}

func TestScheduler_TieBreak_Modifier(t *testing.T) {
	slow, quick := participant("slow", 10, 12), participant("quick", 10, 12)
	slow.SheetRef, quick.SheetRef = "slow", "quick"
	s := loadedStore(t, slow, quick)
	s.SetInitiative("slow", 14)
	s.SetInitiative("quick", 14)
	reg := sheets(&sheet.Sheet{ID: "slow", InitiativeModifier: 0}, &sheet.Sheet{ID: "quick", InitiativeModifier: 4})

	sched := combat.NewScheduler(s, reg, roller(fixedSource{}), combat.TieBreakModifier, nil)
	_, err := sched.RollInitiative()
	require.NoError(t, err)
	assert.Equal(t, []string{"quick", "slow"}, ids(s.Snapshot().Participants))
}

func TestScheduler_RollInitiative_EmptyRosterIsNoOp(t *testing.T) {
	s := loadedStore(t)
	sched := combat.NewScheduler(s, nil, roller(fixedSource{}), "", nil)
	rolls, err := sched.RollInitiative()
	require.NoError(t, err)
	assert.Empty(t, rolls)
	assert.Nil(t, s.Snapshot().ActiveIndex)
	assert.False(t, s.Dirty())
}

func TestScheduler_RollInitiative_NotLoaded(t *testing.T) {
	sched := combat.NewScheduler(newStore(t), nil, roller(fixedSource{}), "", nil)
	_, err := sched.RollInitiative()
	assert.ErrorIs(t, err, combat.ErrNotLoaded)
}

func TestPropertyScheduler_FixedInitiativeOrderIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		var ps []combat.Participant
		for i := 0; i < n; i++ {
			ps = append(ps, participant(fmt.Sprintf("p%d", i), 10, 10))
		}
		s := loadedStore(t, ps...)
		var fixed []string
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, fmt.Sprintf("fixed%d", i)) {
				id := fmt.Sprintf("p%d", i)
				s.SetInitiative(id, rapid.IntRange(-2, 25).Draw(rt, "init"))
				fixed = append(fixed, id)
			}
		}
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))
		sched := combat.NewScheduler(s, nil, roller(src), combat.TieBreakInsertion, nil)

		_, err := sched.RollInitiative()
		require.NoError(rt, err)
		first := filterIDs(ids(s.Snapshot().Participants), fixed)

		_, err = sched.RollInitiative()
		require.NoError(rt, err)
		second := filterIDs(ids(s.Snapshot().Participants), fixed)

		assert.Equal(rt, first, second)
	})
}

func filterIDs(order, keep []string) []string {
	want := make(map[string]bool, len(keep))
	for _, k := range keep {
		want[k] = true
	}
	out := []string{}
	for _, id := range order {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}

func TestPropertyScheduler_NextTurnFullCycle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "n")
		var ps []combat.Participant
		for i := 0; i < n; i++ {
			ps = append(ps, participant(fmt.Sprintf("p%d", i), 10, 10))
		}
		s := loadedStore(t, ps...)
		sched := combat.NewScheduler(s, nil, roller(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))), "", nil)
		_, err := sched.RollInitiative()
		require.NoError(rt, err)

		for k := rapid.IntRange(0, n-1).Draw(rt, "offset"); k > 0; k-- {
			_, err := sched.NextTurn()
			require.NoError(rt, err)
		}
		start := s.Snapshot()

		for i := 0; i < n; i++ {
			_, err := sched.NextTurn()
			require.NoError(rt, err)
		}
		end := s.Snapshot()
		assert.Equal(rt, *start.ActiveIndex, *end.ActiveIndex)
		assert.Equal(rt, start.CurrentRound+1, end.CurrentRound)
	})
}

func TestScheduler_NextTurn_NoOpBeforeInitiative(t *testing.T) {
	s := loadedStore(t, participant("a", 10, 10))
	sched := combat.NewScheduler(s, nil, roller(fixedSource{}), "", nil)
	st, err := sched.NextTurn()
	require.NoError(t, err)
	assert.Nil(t, st.ActiveIndex)
	assert.Equal(t, 1, st.Round)
	assert.False(t, s.Dirty())

	empty := loadedStore(t)
	st, err = combat.NewScheduler(empty, nil, roller(fixedSource{}), "", nil).NextTurn()
	require.NoError(t, err)
	assert.Nil(t, st.Active)
}

func TestScheduler_NextTurn_TicksConditionsOnWrap(t *testing.T) {
	s := loadedStore(t, participant("a", 10, 10), participant("b", 10, 10))
	s.AddCondition("a", condition.Condition{Name: "Stunned", Duration: intp(1)})
	s.AddCondition("b", condition.Condition{Name: "Frightened", Duration: intp(2)})
	s.AddCondition("b", condition.Condition{Name: "Prone"})
	sched := combat.NewScheduler(s, nil, roller(&seqSource{faces: []int{18, 5}}), "", nil)
	_, err := sched.RollInitiative()
	require.NoError(t, err)

	st, err := sched.NextTurn()
	require.NoError(t, err)
	assert.False(t, st.Wrapped)
	assert.Empty(t, st.Expired)
	require.NotNil(t, st.Active)
	assert.Equal(t, "b", st.Active.ID)

	st, err = sched.NextTurn()
	require.NoError(t, err)
	assert.True(t, st.Wrapped)
	assert.Equal(t, 2, st.Round)
	require.Len(t, st.Expired, 1)
	assert.Equal(t, "a", st.Expired[0].ParticipantID)
	assert.Equal(t, "Stunned", st.Expired[0].Condition.Name)

	a, _ := s.Participant("a")
	assert.Empty(t, a.Conditions)
	b, _ := s.Participant("b")
	assert.Equal(t, []string{"Frightened", "Prone"}, b.Conditions.Names())
	assert.Equal(t, 1, *b.Conditions[0].Duration)
	assert.Nil(t, b.Conditions[1].Duration)
}

func TestScheduler_StartCombat_RequiresInitiative(t *testing.T) {
	s := loadedStore(t, participant("a", 10, 10))
	require.NoError(t, s.Transact(func(tx *combat.Tx) error {
		tx.Status = combat.StatusCompleted
		return nil
	}))
	sched := combat.NewScheduler(s, nil, roller(fixedSource{val: 10}), "", nil)

	err := sched.StartCombat()
	assert.ErrorIs(t, err, combat.ErrInitiativeNotRolled)
	assert.True(t, combat.IsValidation(err))
	assert.Equal(t, combat.StatusCompleted, s.Snapshot().Status)

	_, err = sched.RollInitiative()
	require.NoError(t, err)
	_, err = s.AddParticipant(participant("late", 5, 10))
	require.NoError(t, err)
	assert.ErrorIs(t, sched.StartCombat(), combat.ErrInitiativeNotRolled)

	s.SetInitiative("late", 3)
	require.NoError(t, sched.StartCombat())
	assert.Equal(t, combat.StatusActive, s.Snapshot().Status)
}

func TestScheduler_EndCombat(t *testing.T) {
	s := loadedStore(t, participant("a", 10, 10))
	sched := combat.NewScheduler(s, nil, roller(fixedSource{}), "", nil)
	require.NoError(t, sched.EndCombat())
	assert.Equal(t, combat.StatusCompleted, s.Snapshot().Status)
	assert.True(t, s.Dirty())
}
