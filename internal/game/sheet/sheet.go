// Package sheet holds creature and character sheets: the data an encounter
// needs to roll initiative, saves and actions for a participant.
package sheet

import "strings"

// AttackRoll describes the to-hit roll of an action.
type AttackRoll struct {
	Type  string `json:"type" yaml:"type"` // "melee" | "ranged" | "spell"
	Bonus int    `json:"bonus" yaml:"bonus"`
}

// Damage is one damage component of an action.
type Damage struct {
	Formula    string `json:"formula" yaml:"formula"`
	DamageType string `json:"damageType,omitempty" yaml:"damageType,omitempty"`
}

// SavingThrow describes the save an action forces.
type SavingThrow struct {
	Ability string `json:"ability" yaml:"ability"`
	DC      int    `json:"dc" yaml:"dc"`
	Success string `json:"success" yaml:"success"`
}

// ConditionRef names a condition an action may impose.
type ConditionRef struct {
	Name string `json:"name" yaml:"name"`
	DC   *int   `json:"dc,omitempty" yaml:"dc,omitempty"`
}

// Healing describes the hit points an action restores.
type Healing struct {
	Formula string `json:"formula" yaml:"formula"`
}

// ActionDef is an action as authored on a sheet. Which optional sections are
// present decides how the action resolves.
type ActionDef struct {
	Name        string         `json:"name" yaml:"name"`
	Type        string         `json:"type" yaml:"type"`
	AttackRoll  *AttackRoll    `json:"attackRoll,omitempty" yaml:"attackRoll,omitempty"`
	Damage      []Damage       `json:"damage,omitempty" yaml:"damage,omitempty"`
	SavingThrow *SavingThrow   `json:"savingThrow,omitempty" yaml:"savingThrow,omitempty"`
	Conditions  []ConditionRef `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Healing     *Healing       `json:"healing,omitempty" yaml:"healing,omitempty"`
}

// Sheet is the reference data behind a participant.
type Sheet struct {
	ID                 string         `json:"id" yaml:"id"`
	Name               string         `json:"name" yaml:"name"`
	InitiativeModifier int            `json:"initiative_modifier" yaml:"initiative_modifier"`
	ArmorClass         int            `json:"armor_class" yaml:"armor_class"`
	MaxHP              int            `json:"max_hp" yaml:"max_hp"`
	SaveModifiers      map[string]int `json:"save_modifiers,omitempty" yaml:"save_modifiers,omitempty"`
	Actions            []ActionDef    `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Action returns the action whose name matches name case-insensitively.
func (s *Sheet) Action(name string) (ActionDef, bool) {
	for _, a := range s.Actions {
		if strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a, true
		}
	}
	return ActionDef{}, false
}

// SaveModifier returns the modifier for ability, or 0 when the sheet lists none.
// Abilities match on their first three letters, so "dex" and "Dexterity" agree.
func (s *Sheet) SaveModifier(ability string) int {
	key := abilityKey(ability)
	for k, v := range s.SaveModifiers {
		if abilityKey(k) == key {
			return v
		}
	}
	return 0
}

func abilityKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}
