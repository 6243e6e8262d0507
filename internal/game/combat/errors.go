package combat

import (
	"errors"

	"github.com/cory-johannsen/encounter/internal/game/dice"
)

var (
	// ErrMalformedSnapshot is returned when a snapshot or transaction result
	// breaks the combat invariants. State is retained.
	ErrMalformedSnapshot = errors.New("malformed combat snapshot")
	// ErrInitiativeNotRolled is returned by StartCombat before every
	// participant has an initiative.
	ErrInitiativeNotRolled = errors.New("initiative not rolled")
	// ErrNotLoaded is returned when an operation needs a loaded combat.
	ErrNotLoaded = errors.New("no combat loaded")
	// ErrDuplicateParticipant is returned when adding an ID already present.
	ErrDuplicateParticipant = errors.New("duplicate participant")
	// ErrInvalidParticipant is returned for participants with impossible stats.
	ErrInvalidParticipant = errors.New("invalid participant")
	// ErrUnknownAction is returned when a named action is not on the actor's sheet.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidFormula is dice.ErrInvalidFormula, re-exported for callers of this package.
	ErrInvalidFormula = dice.ErrInvalidFormula
)

// IsValidation reports whether err is an operator mistake that refused the
// operation without changing state, as opposed to an infrastructure failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrMalformedSnapshot,
		ErrInitiativeNotRolled,
		ErrNotLoaded,
		ErrDuplicateParticipant,
		ErrInvalidParticipant,
		ErrUnknownAction,
		ErrInvalidFormula,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
