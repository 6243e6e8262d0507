// Package combat implements the live state of a combat encounter: the store
// that owns it, the turn scheduler, and the action resolver.
package combat

import (
	"fmt"

	"github.com/cory-johannsen/encounter/internal/game/condition"
)

// Status is the lifecycle state of a combat.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// HPChange selects the direction of an UpdateHP call.
type HPChange string

const (
	Damage HPChange = "damage"
	Heal   HPChange = "heal"
)

// Participant is one combatant in the initiative order.
//
// Invariant: 0 <= CurrentHP <= MaxHP.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CurrentHP  int    `json:"current_hp"`
	MaxHP      int    `json:"max_hp"`
	ArmorClass int    `json:"armor_class"`
	// Initiative is nil until rolled or set by hand.
	Initiative       *int          `json:"initiative"`
	InitiativeManual bool          `json:"initiative_manual,omitempty"`
	Conditions       condition.Set `json:"conditions"`
	SheetRef         string        `json:"sheet_ref,omitempty"`
	// Seq is the insertion order, used to break initiative ties.
	Seq int `json:"seq"`
}

// ApplyHP applies amount as damage or healing and returns the new CurrentHP.
// Negative amounts are treated as zero.
//
// Postcondition: 0 <= CurrentHP <= MaxHP.
func (p *Participant) ApplyHP(amount int, kind HPChange) int {
	if amount < 0 {
		amount = 0
	}
	switch kind {
	case Heal:
		p.CurrentHP += amount
	default:
		p.CurrentHP -= amount
	}
	p.clampHP()
	return p.CurrentHP
}

// IsDown reports whether the participant is at zero hit points.
func (p *Participant) IsDown() bool { return p.CurrentHP <= 0 }

// HasInitiative reports whether an initiative value is set.
func (p *Participant) HasInitiative() bool { return p.Initiative != nil }

func (p *Participant) clampHP() {
	if p.CurrentHP > p.MaxHP {
		p.CurrentHP = p.MaxHP
	}
	if p.CurrentHP < 0 {
		p.CurrentHP = 0
	}
}

func (p Participant) clone() Participant {
	out := p
	if p.Initiative != nil {
		v := *p.Initiative
		out.Initiative = &v
	}
	out.Conditions = p.Conditions.Clone()
	return out
}

// Snapshot is the persisted form of a combat, read and written whole.
//
// A nil Participants slice means the field was absent, which Load rejects.
type Snapshot struct {
	ID           string        `json:"id"`
	CampaignID   string        `json:"campaign_id"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	CurrentRound int           `json:"current_round"`
	ActiveIndex  *int          `json:"active_index,omitempty"`
	Participants []Participant `json:"participants"`
}

// Clone returns a deep copy. Participants is always non-nil in the copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.ActiveIndex != nil {
		v := *s.ActiveIndex
		out.ActiveIndex = &v
	}
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		out.Participants[i] = p.clone()
	}
	return out
}

// Find returns a pointer into Participants for id, or nil.
func (s *Snapshot) Find(id string) *Participant {
	if i := s.IndexOf(id); i >= 0 {
		return &s.Participants[i]
	}
	return nil
}

// IndexOf returns the position of id in the initiative order, or -1.
func (s *Snapshot) IndexOf(id string) int {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return i
		}
	}
	return -1
}

// Active returns the participant whose turn it is, or nil before initiative.
func (s *Snapshot) Active() *Participant {
	if s.ActiveIndex == nil {
		return nil
	}
	i := *s.ActiveIndex
	if i < 0 || i >= len(s.Participants) {
		return nil
	}
	return &s.Participants[i]
}

// wrapRound moves the turn back to the top of the order, starts the next
// round and ticks every participant's condition durations.
func (s *Snapshot) wrapRound() []ExpiredCondition {
	zero := 0
	s.ActiveIndex = &zero
	s.CurrentRound++
	var expired []ExpiredCondition
	for i := range s.Participants {
		p := &s.Participants[i]
		kept, gone := p.Conditions.Tick()
		p.Conditions = kept
		for _, c := range gone {
			expired = append(expired, ExpiredCondition{ParticipantID: p.ID, Condition: c})
		}
	}
	return expired
}

// validateShape rejects snapshots that cannot be repaired by clamping.
func (s *Snapshot) validateShape() error {
	if s.Participants == nil {
		return fmt.Errorf("%w: participants missing", ErrMalformedSnapshot)
	}
	switch s.Status {
	case "", StatusActive, StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrMalformedSnapshot, s.Status)
	}
	seen := make(map[string]struct{}, len(s.Participants))
	for i, p := range s.Participants {
		if p.ID == "" {
			return fmt.Errorf("%w: participant %d has empty id", ErrMalformedSnapshot, i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate participant id %q", ErrMalformedSnapshot, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.MaxHP < 0 {
			return fmt.Errorf("%w: participant %q has negative max hp", ErrMalformedSnapshot, p.ID)
		}
	}
	return nil
}

// validateInvariants checks what every committed state must satisfy.
func (s *Snapshot) validateInvariants() error {
	if err := s.validateShape(); err != nil {
		return err
	}
	if s.CurrentRound < 1 {
		return fmt.Errorf("%w: round %d below 1", ErrMalformedSnapshot, s.CurrentRound)
	}
	if s.ActiveIndex != nil && (*s.ActiveIndex < 0 || *s.ActiveIndex >= len(s.Participants)) {
		return fmt.Errorf("%w: active index %d out of range", ErrMalformedSnapshot, *s.ActiveIndex)
	}
	for _, p := range s.Participants {
		if p.CurrentHP < 0 || p.CurrentHP > p.MaxHP {
			return fmt.Errorf("%w: participant %q hp %d outside [0,%d]", ErrMalformedSnapshot, p.ID, p.CurrentHP, p.MaxHP)
		}
	}
	return nil
}
