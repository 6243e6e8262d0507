package combat

import (
	"fmt"

	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
)

// Action is a resolvable action. The concrete types are AttackAction,
// SaveAction, HealingAction and UtilityAction; no others exist.
type Action interface {
	ActionName() string
	// formulas lists every dice formula the action may roll.
	formulas() []string
	sealed()
}

// DamageComponent is one damage roll of an action.
type DamageComponent struct {
	Formula    string
	DamageType string
}

// SaveSpec is the saving throw an action forces.
type SaveSpec struct {
	Ability string
	DC      int
	Success string
}

// ConditionSpec names a condition an action may impose.
type ConditionSpec struct {
	Name string
	DC   *int
}

// AttackAction rolls d20 + Bonus against the target's armor class.
type AttackAction struct {
	Name       string
	Range      string
	Bonus      int
	Damage     []DamageComponent
	Save       *SaveSpec
	Conditions []ConditionSpec
}

// SaveAction forces a saving throw. It is advisory: nothing is applied.
type SaveAction struct {
	Name       string
	Save       SaveSpec
	Damage     []DamageComponent
	Conditions []ConditionSpec
}

// HealingAction restores hit points.
type HealingAction struct {
	Name       string
	Formula    string
	Conditions []ConditionSpec
}

// UtilityAction has no mechanical effect beyond its description.
type UtilityAction struct {
	Name       string
	Conditions []ConditionSpec
}

func (a AttackAction) ActionName() string  { return a.Name }
func (a SaveAction) ActionName() string    { return a.Name }
func (a HealingAction) ActionName() string { return a.Name }
func (a UtilityAction) ActionName() string { return a.Name }

func (AttackAction) sealed()  {}
func (SaveAction) sealed()    {}
func (HealingAction) sealed() {}
func (UtilityAction) sealed() {}

func (a AttackAction) formulas() []string { return damageFormulas(a.Damage) }
func (a SaveAction) formulas() []string   { return damageFormulas(a.Damage) }
func (a HealingAction) formulas() []string {
	return []string{a.Formula}
}
func (a UtilityAction) formulas() []string { return nil }

func damageFormulas(ds []DamageComponent) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Formula
	}
	return out
}

// parseFormulas parses every formula of a up front, so a bad formula refuses
// the whole action before anything is rolled.
func parseFormulas(a Action) (map[string]dice.Expression, error) {
	out := make(map[string]dice.Expression)
	for _, f := range a.formulas() {
		e, err := dice.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.ActionName(), err)
		}
		out[f] = e
	}
	return out, nil
}

// Classify turns an authored action definition into an Action. The first
// present section wins: attack roll, then saving throw, then healing;
// anything else is a utility action.
//
// Postcondition: returns an error wrapping ErrInvalidFormula when any
// formula on def is malformed.
func Classify(def sheet.ActionDef) (Action, error) {
	conds := make([]ConditionSpec, len(def.Conditions))
	for i, c := range def.Conditions {
		conds[i] = ConditionSpec{Name: c.Name, DC: c.DC}
	}
	damage := make([]DamageComponent, len(def.Damage))
	for i, d := range def.Damage {
		damage[i] = DamageComponent{Formula: d.Formula, DamageType: d.DamageType}
	}
	var save *SaveSpec
	if def.SavingThrow != nil {
		save = &SaveSpec{Ability: def.SavingThrow.Ability, DC: def.SavingThrow.DC, Success: def.SavingThrow.Success}
	}

	var a Action
	switch {
	case def.AttackRoll != nil:
		a = AttackAction{
			Name:       def.Name,
			Range:      def.AttackRoll.Type,
			Bonus:      def.AttackRoll.Bonus,
			Damage:     damage,
			Save:       save,
			Conditions: conds,
		}
	case save != nil:
		a = SaveAction{Name: def.Name, Save: *save, Damage: damage, Conditions: conds}
	case def.Healing != nil:
		a = HealingAction{Name: def.Name, Formula: def.Healing.Formula, Conditions: conds}
	default:
		a = UtilityAction{Name: def.Name, Conditions: conds}
	}
	if _, err := parseFormulas(a); err != nil {
		return nil, err
	}
	return a, nil
}
