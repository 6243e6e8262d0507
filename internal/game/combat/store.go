package combat

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/condition"
)

// StoreConfig carries the optional collaborators of a Store.
type StoreConfig struct {
	Logger *zap.Logger
	Clock  clock.Clock
	// RollLogLimit caps the in-memory roll log; 0 keeps every entry.
	RollLogLimit int
}

// Store owns the live state of one open combat.
// All methods are safe for concurrent use; every mutation is applied
// atomically under the store mutex, and readers receive deep copies.
//
// Invariant: dirty is true whenever state differs from the last snapshot
// acknowledged by MarkSaved.
type Store struct {
	mu     sync.Mutex
	logger *zap.Logger
	clock  clock.Clock

	loaded  bool
	state   Snapshot
	nextSeq int
	rolls   rollLog

	dirty       bool
	version     uint64
	epoch       uint64
	lastSavedAt time.Time
}

// NewStore creates an empty Store. Nothing is loaded until Load is called.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		logger: logger,
		clock:  clk,
		rolls:  rollLog{limit: cfg.RollLogLimit},
	}
}

// Load replaces all state with snap and clears dirty.
//
// Snapshots whose participants are absent, whose IDs are empty or repeated,
// or whose max HP is negative are rejected with ErrMalformedSnapshot and the
// current state is kept. Repairable values are clamped with a warning.
func (s *Store) Load(snap Snapshot) error {
	if err := snap.validateShape(); err != nil {
		return err
	}
	next := snap.Clone()
	log := s.logger.With(zap.String("combat_id", next.ID))

	if next.Status == "" {
		next.Status = StatusActive
	}
	if next.CurrentRound < 1 {
		log.Warn("clamping combat round", zap.Int("round", next.CurrentRound))
		next.CurrentRound = 1
	}
	if next.ActiveIndex != nil && (*next.ActiveIndex < 0 || *next.ActiveIndex >= len(next.Participants)) {
		log.Warn("clearing out-of-range active index",
			zap.Int("active_index", *next.ActiveIndex),
			zap.Int("participants", len(next.Participants)),
		)
		next.ActiveIndex = nil
	}
	for i := range next.Participants {
		p := &next.Participants[i]
		if p.CurrentHP < 0 || p.CurrentHP > p.MaxHP {
			log.Warn("clamping participant hp",
				zap.String("participant_id", p.ID),
				zap.Int("current_hp", p.CurrentHP),
				zap.Int("max_hp", p.MaxHP),
			)
			p.clampHP()
		}
	}
	nextSeq := resequence(next.Participants)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	s.loaded = true
	s.nextSeq = nextSeq
	s.rolls.reset()
	s.dirty = false
	s.version++
	s.epoch++
	s.lastSavedAt = time.Time{}
	log.Info("combat loaded", zap.Int("participants", len(next.Participants)), zap.Int("round", next.CurrentRound))
	return nil
}

// resequence keeps stored insertion numbers when they are unique and
// renumbers by position otherwise. It returns the next free number.
func resequence(ps []Participant) int {
	seen := make(map[int]struct{}, len(ps))
	unique := true
	for _, p := range ps {
		if _, dup := seen[p.Seq]; dup {
			unique = false
			break
		}
		seen[p.Seq] = struct{}{}
	}
	next := 0
	for i := range ps {
		if !unique {
			ps[i].Seq = i
		}
		if ps[i].Seq >= next {
			next = ps[i].Seq + 1
		}
	}
	return next
}

// Reset clears all state, as when the operator leaves the combat.
// A save in flight when Reset runs will not clear dirty afterwards.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Snapshot{}
	s.loaded = false
	s.nextSeq = 0
	s.rolls.reset()
	s.dirty = false
	s.version++
	s.epoch++
	s.lastSavedAt = time.Time{}
}

// Loaded reports whether a combat is loaded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Participant returns a copy of the participant with id.
func (s *Store) Participant(id string) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.state.Find(id); p != nil {
		return p.clone(), true
	}
	return Participant{}, false
}

// Active returns a copy of the participant whose turn it is.
func (s *Store) Active() (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.state.Active(); p != nil {
		return p.clone(), true
	}
	return Participant{}, false
}

// Dirty reports whether there are unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastSavedAt returns when the last successful save was acknowledged, or
// the zero time.
func (s *Store) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Tx is the working copy handed to a Transact callback. Changes to the
// embedded Snapshot and staged rolls are committed together or not at all.
type Tx struct {
	*Snapshot
	rolls []RollResult
	now   time.Time
}

// Log stages roll log entries for commit.
func (tx *Tx) Log(rs ...RollResult) {
	tx.rolls = append(tx.rolls, rs...)
}

// Now returns the timestamp of the transaction.
func (tx *Tx) Now() time.Time { return tx.now }

// Transact runs fn against a copy of the state and commits the copy only if
// fn succeeds and the result satisfies every combat invariant. On error
// nothing changes. fn runs under the store lock and must not call back
// into the Store.
//
// Postcondition: dirty is set iff the committed state differs from before.
func (s *Store) Transact(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	work := s.state.Clone()
	tx := &Tx{Snapshot: &work, now: s.clock.Now()}
	if err := fn(tx); err != nil {
		return err
	}
	if work.ID != s.state.ID || work.CampaignID != s.state.CampaignID {
		return fmt.Errorf("%w: combat identity is immutable", ErrMalformedSnapshot)
	}
	if err := work.validateInvariants(); err != nil {
		return err
	}
	if !reflect.DeepEqual(work, s.state) {
		s.state = work
		s.dirty = true
		s.version++
	}
	if len(tx.rolls) > 0 {
		s.rolls.append(tx.rolls...)
	}
	return nil
}

// UpdateHP applies damage or healing to participant id and returns the new
// hit points. Unknown IDs are a silent no-op (ok == false).
//
// Postcondition: 0 <= CurrentHP <= MaxHP.
func (s *Store) UpdateHP(id string, amount int, kind HPChange) (hp int, ok bool) {
	_ = s.Transact(func(tx *Tx) error {
		p := tx.Find(id)
		if p == nil {
			return nil
		}
		ok = true
		hp = p.ApplyHP(amount, kind)
		return nil
	})
	return hp, ok
}

// AddCondition applies c to participant id. A condition with the same
// reference is updated in place. Unknown IDs are a silent no-op.
func (s *Store) AddCondition(id string, c condition.Condition) bool {
	var ok bool
	_ = s.Transact(func(tx *Tx) error {
		p := tx.Find(id)
		if p == nil {
			return nil
		}
		ok = true
		p.Conditions = p.Conditions.With(c)
		return nil
	})
	return ok
}

// RemoveCondition drops the condition matching ref from participant id.
func (s *Store) RemoveCondition(id, ref string) bool {
	var ok bool
	_ = s.Transact(func(tx *Tx) error {
		p := tx.Find(id)
		if p == nil || !p.Conditions.Has(ref) {
			return nil
		}
		ok = true
		p.Conditions = p.Conditions.Without(ref)
		return nil
	})
	return ok
}

// AddParticipant appends p to the end of the order. An empty ID is replaced
// with a fresh UUID and CurrentHP is clamped into [0, MaxHP].
//
// Postcondition: returns the stored participant, or ErrNotLoaded,
// ErrDuplicateParticipant or ErrInvalidParticipant with state unchanged.
func (s *Store) AddParticipant(p Participant) (Participant, error) {
	if p.MaxHP < 0 {
		return Participant{}, fmt.Errorf("%w: max hp %d is negative", ErrInvalidParticipant, p.MaxHP)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p = p.clone()
	p.clampHP()

	var added Participant
	err := s.Transact(func(tx *Tx) error {
		if tx.Find(p.ID) != nil {
			return fmt.Errorf("%w: %q", ErrDuplicateParticipant, p.ID)
		}
		// Transact holds the store lock while fn runs.
		p.Seq = s.nextSeq
		s.nextSeq++
		tx.Participants = append(tx.Participants, p)
		added = p.clone()
		return nil
	})
	if err != nil {
		return Participant{}, err
	}
	return added, nil
}

// RemoveParticipant drops id from the order, keeping the active index on a
// valid position: removing the active participant hands the turn to the
// next one in order. Removing the active participant at the end of the
// order wraps to the top and starts the next round, as NextTurn would.
func (s *Store) RemoveParticipant(id string) bool {
	var (
		ok      bool
		wrapped bool
		round   int
		expired []ExpiredCondition
	)
	_ = s.Transact(func(tx *Tx) error {
		i := tx.IndexOf(id)
		if i < 0 {
			return nil
		}
		ok = true
		tx.Participants = append(tx.Participants[:i], tx.Participants[i+1:]...)
		if tx.ActiveIndex == nil {
			return nil
		}
		n := len(tx.Participants)
		active := *tx.ActiveIndex
		switch {
		case n == 0:
			tx.ActiveIndex = nil
			return nil
		case i < active:
			active--
		case active >= n:
			wrapped = true
			expired = tx.wrapRound()
			round = tx.CurrentRound
			return nil
		}
		tx.ActiveIndex = &active
		return nil
	})
	if wrapped {
		s.logger.Info("new round", zap.Int("round", round))
		for _, e := range expired {
			s.logger.Info("condition expired",
				zap.String("participant_id", e.ParticipantID),
				zap.String("condition", e.Condition.Name),
			)
		}
	}
	return ok
}

// SetInitiative records a hand-entered initiative for id. RollInitiative
// keeps manual values instead of rolling.
func (s *Store) SetInitiative(id string, value int) bool {
	var ok bool
	_ = s.Transact(func(tx *Tx) error {
		p := tx.Find(id)
		if p == nil {
			return nil
		}
		ok = true
		v := value
		p.Initiative = &v
		p.InitiativeManual = true
		return nil
	})
	return ok
}

// AppendRolls adds entries to the roll log. The roll log is not part of the
// persisted snapshot, so appending does not mark the store dirty.
func (s *Store) AppendRolls(rs ...RollResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolls.append(rs...)
}

// Rolls returns a copy of the roll log, oldest first.
func (s *Store) Rolls() []RollResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolls.all()
}

// Checkpoint is a snapshot taken for saving, tagged with the mutation
// version and load epoch it was taken at.
type Checkpoint struct {
	Snapshot Snapshot
	version  uint64
	epoch    uint64
}

// Checkpoint captures the current state for a save.
func (s *Store) Checkpoint() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Checkpoint{}, ErrNotLoaded
	}
	return Checkpoint{Snapshot: s.state.Clone(), version: s.version, epoch: s.epoch}, nil
}

// MarkSaved acknowledges that cp was persisted at. Dirty is cleared only when
// nothing changed since cp was taken and the store was not reloaded or reset.
//
// Postcondition: returns true iff dirty was cleared.
func (s *Store) MarkSaved(cp Checkpoint, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.epoch != s.epoch {
		return false
	}
	s.lastSavedAt = at
	if cp.version != s.version {
		return false
	}
	s.dirty = false
	return true
}
