package combat

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
)

// TieBreak selects how equal initiatives are ordered.
type TieBreak string

const (
	// TieBreakInsertion keeps participants with equal initiative in the order
	// they joined the combat.
	TieBreakInsertion TieBreak = "insertion"
	// TieBreakModifier puts the higher sheet initiative modifier first, then
	// falls back to insertion order.
	TieBreakModifier TieBreak = "modifier"
)

// Sheets resolves a participant's sheet reference.
type Sheets interface {
	Get(ref string) (*sheet.Sheet, bool)
}

// InitiativeRoll reports how one participant's initiative was obtained.
type InitiativeRoll struct {
	ParticipantID string
	Name          string
	Natural       int
	Modifier      int
	Total         int
	Manual        bool
}

// TurnState describes whose turn it is after NextTurn.
type TurnState struct {
	Round       int
	ActiveIndex *int
	Active      *Participant
	// Wrapped is true when the order wrapped and a new round began.
	Wrapped bool
	Expired []ExpiredCondition
}

// ExpiredCondition is a condition that ran out at the end of a round.
type ExpiredCondition struct {
	ParticipantID string
	Condition     condition.Condition
}

// Scheduler owns initiative order and turn progression for one Store.
type Scheduler struct {
	store    *Store
	sheets   Sheets
	roller   *dice.Roller
	tieBreak TieBreak
	logger   *zap.Logger
}

// NewScheduler creates a Scheduler over store.
//
// Precondition: store and roller must be non-nil. sheets may be nil, in which
// case every initiative modifier is zero.
func NewScheduler(store *Store, sheets Sheets, roller *dice.Roller, tieBreak TieBreak, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tieBreak == "" {
		tieBreak = TieBreakInsertion
	}
	return &Scheduler{store: store, sheets: sheets, roller: roller, tieBreak: tieBreak, logger: logger}
}

func (s *Scheduler) initiativeModifier(p *Participant) int {
	if s.sheets == nil || p.SheetRef == "" {
		return 0
	}
	if sh, ok := s.sheets.Get(p.SheetRef); ok {
		return sh.InitiativeModifier
	}
	return 0
}

// RollInitiative rolls d20 plus the sheet initiative modifier for every
// participant without a manual initiative, sorts the order highest first and
// starts round 1 with the first participant active.
//
// Postcondition: ActiveIndex == 0 and CurrentRound == 1 unless the roster is
// empty, in which case nothing changes.
func (s *Scheduler) RollInitiative() ([]InitiativeRoll, error) {
	var rolls []InitiativeRoll
	err := s.store.Transact(func(tx *Tx) error {
		if len(tx.Participants) == 0 {
			return nil
		}
		mods := make(map[string]int, len(tx.Participants))
		for i := range tx.Participants {
			p := &tx.Participants[i]
			mod := s.initiativeModifier(p)
			mods[p.ID] = mod
			if p.InitiativeManual && p.Initiative != nil {
				rolls = append(rolls, InitiativeRoll{
					ParticipantID: p.ID, Name: p.Name, Modifier: mod, Total: *p.Initiative, Manual: true,
				})
				continue
			}
			d := s.roller.RollD20(dice.Normal)
			total := d.Natural + mod
			p.Initiative = &total
			p.InitiativeManual = false
			rolls = append(rolls, InitiativeRoll{
				ParticipantID: p.ID, Name: p.Name, Natural: d.Natural, Modifier: mod, Total: total,
			})
		}
		s.sortOrder(tx.Participants, mods)
		zero := 0
		tx.ActiveIndex = &zero
		tx.CurrentRound = 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rolls {
		s.logger.Info("initiative",
			zap.String("participant_id", r.ParticipantID),
			zap.Int("total", r.Total),
			zap.Bool("manual", r.Manual),
		)
	}
	return rolls, nil
}

// sortOrder sorts highest initiative first; ties follow the configured policy
// and finally insertion order, so the result never depends on the prior order.
func (s *Scheduler) sortOrder(ps []Participant, mods map[string]int) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		ai, bi := initiativeOf(a), initiativeOf(b)
		if ai != bi {
			return ai > bi
		}
		if s.tieBreak == TieBreakModifier && mods[a.ID] != mods[b.ID] {
			return mods[a.ID] > mods[b.ID]
		}
		return a.Seq < b.Seq
	})
}

func initiativeOf(p Participant) int {
	if p.Initiative == nil {
		return math.MinInt
	}
	return *p.Initiative
}

// NextTurn advances the active index, wrapping to the top of the order. A
// wrap starts a new round and ticks every participant's condition durations.
// With no participants or before initiative it is a no-op.
func (s *Scheduler) NextTurn() (TurnState, error) {
	var st TurnState
	err := s.store.Transact(func(tx *Tx) error {
		n := len(tx.Participants)
		if n == 0 || tx.ActiveIndex == nil {
			st = turnStateOf(tx.Snapshot)
			return nil
		}
		next := (*tx.ActiveIndex + 1) % n
		if next == 0 {
			st.Wrapped = true
			st.Expired = tx.wrapRound()
		} else {
			tx.ActiveIndex = &next
		}
		wrapped, expired := st.Wrapped, st.Expired
		st = turnStateOf(tx.Snapshot)
		st.Wrapped, st.Expired = wrapped, expired
		return nil
	})
	if err != nil {
		return TurnState{}, err
	}
	if st.Wrapped {
		s.logger.Info("new round", zap.Int("round", st.Round))
	}
	for _, e := range st.Expired {
		s.logger.Info("condition expired",
			zap.String("participant_id", e.ParticipantID),
			zap.String("condition", e.Condition.Name),
		)
	}
	return st, nil
}

func turnStateOf(snap *Snapshot) TurnState {
	st := TurnState{Round: snap.CurrentRound}
	if snap.ActiveIndex != nil {
		i := *snap.ActiveIndex
		st.ActiveIndex = &i
	}
	if p := snap.Active(); p != nil {
		c := p.clone()
		st.Active = &c
	}
	return st
}

// StartCombat marks the combat active.
//
// Postcondition: returns ErrInitiativeNotRolled, with state unchanged, unless
// every participant has an initiative and a turn is active.
func (s *Scheduler) StartCombat() error {
	return s.store.Transact(func(tx *Tx) error {
		if tx.ActiveIndex == nil {
			return ErrInitiativeNotRolled
		}
		for _, p := range tx.Participants {
			if !p.HasInitiative() {
				return fmt.Errorf("%w: %s has no initiative", ErrInitiativeNotRolled, p.Name)
			}
		}
		tx.Status = StatusActive
		return nil
	})
}

// EndCombat marks the combat completed.
func (s *Scheduler) EndCombat() error {
	return s.store.Transact(func(tx *Tx) error {
		tx.Status = StatusCompleted
		return nil
	})
}
