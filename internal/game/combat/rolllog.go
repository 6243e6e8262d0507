package combat

import (
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/encounter/internal/game/dice"
)

// RollKind classifies a roll log entry.
type RollKind string

const (
	RollAttack RollKind = "attack"
	RollDamage RollKind = "damage"
	RollSave   RollKind = "save"
	RollHeal   RollKind = "heal"
)

// RollResult is one immutable entry in the roll log.
//
// Invariant: for a d20 rolled with advantage or disadvantage, len(Dice) == 2;
// otherwise len(Dice) equals the number of dice in Formula.
// Critical and Fumble are only ever set on attack rolls; DamageType only on
// damage rolls.
type RollResult struct {
	ID         string    `json:"id"`
	Kind       RollKind  `json:"type"`
	Total      int       `json:"result"`
	Formula    string    `json:"formula"`
	Dice       []int     `json:"dice"`
	Modifier   int       `json:"modifier"`
	Timestamp  time.Time `json:"timestamp"`
	Critical   bool      `json:"critical,omitempty"`
	Fumble     bool      `json:"fumble,omitempty"`
	ActionName string    `json:"action_name,omitempty"`
	DamageType string    `json:"damage_type,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Mode       dice.Mode `json:"mode,omitempty"`
}

func (r RollResult) clone() RollResult {
	out := r
	out.Dice = append([]int(nil), r.Dice...)
	return out
}

// newFormulaRoll converts a dice.RollResult into a log entry.
func newFormulaRoll(kind RollKind, res dice.RollResult, at time.Time) RollResult {
	return RollResult{
		ID:        uuid.NewString(),
		Kind:      kind,
		Total:     res.Total(),
		Formula:   res.Expression,
		Dice:      append([]int(nil), res.Dice...),
		Modifier:  res.Modifier,
		Timestamp: at,
	}
}

// newD20Roll converts a d20 plus a flat bonus into a log entry.
func newD20Roll(kind RollKind, d dice.D20Roll, bonus int, at time.Time) RollResult {
	formula := dice.Expression{Count: 1, Sides: 20, Modifier: bonus}.String()
	return RollResult{
		ID:        uuid.NewString(),
		Kind:      kind,
		Total:     d.Natural + bonus,
		Formula:   formula,
		Dice:      append([]int(nil), d.Dice...),
		Modifier:  bonus,
		Timestamp: at,
		Mode:      d.Mode,
	}
}

// rollLog is an append-only log with optional retention. A limit of zero
// keeps every entry.
type rollLog struct {
	entries []RollResult
	limit   int
}

func (l *rollLog) append(rs ...RollResult) {
	for _, r := range rs {
		l.entries = append(l.entries, r.clone())
	}
	if l.limit > 0 && len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		l.entries = append([]RollResult(nil), l.entries[drop:]...)
	}
}

func (l *rollLog) all() []RollResult {
	out := make([]RollResult, len(l.entries))
	for i, r := range l.entries {
		out[i] = r.clone()
	}
	return out
}

func (l *rollLog) reset() {
	l.entries = nil
}
