// Package dice provides formula parsing, randomness sources, and roll-result
// types for the encounter engine.
package dice

import (
	"errors"
	"fmt"
)

// ErrInvalidFormula is returned for any dice formula that does not follow the
// NdM+K grammar. Callers must refuse the action rather than rolling zero.
var ErrInvalidFormula = errors.New("invalid dice formula")

// RollResult holds the full audit trail for a single formula evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // original formula, e.g. "2d6+3"
	Dice       []int  // individual die results before modifier
	Modifier   int    // flat modifier (may be negative)
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 = 12"
func (r RollResult) String() string {
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Mode selects how a d20 is rolled.
type Mode string

const (
	Normal       Mode = "normal"
	Advantage    Mode = "advantage"
	Disadvantage Mode = "disadvantage"
)

// ParseMode maps user input to a Mode. The empty string is Normal.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Normal:
		return Normal, nil
	case Advantage, "adv":
		return Advantage, nil
	case Disadvantage, "dis":
		return Disadvantage, nil
	default:
		return Normal, fmt.Errorf("unknown roll mode %q", s)
	}
}

// D20Roll is the result of rolling a d20 under a Mode.
//
// Invariant: len(Dice) == 2 for Advantage and Disadvantage, 1 otherwise.
// Natural is the kept die.
type D20Roll struct {
	Mode    Mode
	Dice    []int
	Natural int
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
