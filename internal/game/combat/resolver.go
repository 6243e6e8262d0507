package combat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/dice"
)

// SavePolicy selects whether the resolver rolls saving throws.
type SavePolicy string

const (
	// SavePolicyManual reports the save for the operator to adjudicate.
	SavePolicyManual SavePolicy = "manual"
	// SavePolicyAuto rolls d20 + the target's sheet save modifier.
	SavePolicyAuto SavePolicy = "auto"
)

// ConditionCatalog resolves condition names to reference data.
type ConditionCatalog interface {
	Instantiate(key string, dc, duration *int) (condition.Condition, bool)
}

// Request asks the resolver to perform one action.
type Request struct {
	ActorID  string
	TargetID string
	Action   Action
	Mode     dice.Mode
}

// AttackOutcome is the to-hit part of an attack.
type AttackOutcome struct {
	Natural  int
	Total    int
	TargetAC int
	Critical bool
	Fumble   bool
	Hit      bool
	// HasTarget is false when the attack was rolled without a target; Hit is
	// then decided by the die alone.
	HasTarget bool
}

// SaveOutcome describes a saving throw. Passed is meaningful only when Rolled.
type SaveOutcome struct {
	Ability string
	DC      int
	Success string
	Rolled  bool
	Total   int
	Passed  bool
}

// Outcome is what an action produced. Resolved is false when the actor or
// target no longer exists and nothing happened.
type Outcome struct {
	Resolved   bool
	ActorID    string
	TargetID   string
	ActionName string

	Attack *AttackOutcome
	Save   *SaveOutcome

	DamageTotal   int
	DamageApplied bool
	// Damage lists damage a save action would deal, for the operator to apply.
	Damage  []DamageComponent
	Healing int
	// TargetHP is the target's hit points after the action, when HP changed.
	TargetHP *int

	// PendingConditions are never applied automatically; pass them to
	// ConfirmConditions.
	PendingConditions []condition.Condition
	Rolls             []RollResult
}

// Resolver turns actions into rolls and HP changes on one Store.
type Resolver struct {
	store      *Store
	sheets     Sheets
	conditions ConditionCatalog
	roller     *dice.Roller
	savePolicy SavePolicy
	logger     *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: store and roller must be non-nil. sheets and conditions may
// be nil.
func NewResolver(store *Store, sheets Sheets, conditions ConditionCatalog, roller *dice.Roller, policy SavePolicy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = SavePolicyManual
	}
	return &Resolver{
		store:      store,
		sheets:     sheets,
		conditions: conditions,
		roller:     roller,
		savePolicy: policy,
		logger:     logger,
	}
}

// Execute resolves req atomically: every roll is logged and every HP change
// applied in one store transaction, or nothing is.
//
// Postcondition: a malformed formula returns an error wrapping
// ErrInvalidFormula with nothing rolled, logged or applied. An unknown actor
// or target returns a zero Outcome and nil error.
func (r *Resolver) Execute(req Request) (Outcome, error) {
	if req.Action == nil {
		return Outcome{}, fmt.Errorf("%w: no action given", ErrUnknownAction)
	}
	exprs, err := parseFormulas(req.Action)
	if err != nil {
		return Outcome{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = dice.Normal
	}

	var out Outcome
	err = r.store.Transact(func(tx *Tx) error {
		actor := tx.Find(req.ActorID)
		if actor == nil {
			return nil
		}
		var target *Participant
		if req.TargetID != "" {
			if target = tx.Find(req.TargetID); target == nil {
				return nil
			}
		}
		res := Outcome{
			Resolved:   true,
			ActorID:    actor.ID,
			TargetID:   req.TargetID,
			ActionName: req.Action.ActionName(),
		}
		st := resolution{tx: tx, out: &res, actor: actor, target: target, exprs: exprs, mode: mode}

		switch a := req.Action.(type) {
		case AttackAction:
			r.resolveAttack(&st, a)
		case SaveAction:
			r.resolveSave(&st, a)
		case HealingAction:
			r.resolveHealing(&st, a)
		case UtilityAction:
			res.PendingConditions = r.pending(a.Conditions)
		default:
			return fmt.Errorf("%w: unsupported action type %T", ErrUnknownAction, a)
		}
		tx.Log(res.Rolls...)
		out = res
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Resolved {
		r.logger.Info("action resolved",
			zap.String("action", out.ActionName),
			zap.String("actor_id", out.ActorID),
			zap.String("target_id", out.TargetID),
			zap.Int("damage", out.DamageTotal),
			zap.Int("healing", out.Healing),
			zap.Int("pending_conditions", len(out.PendingConditions)),
		)
	}
	return out, nil
}

// ExecuteNamed resolves the action called name on the actor's sheet.
//
// Postcondition: an unknown actor is a silent no-op; a missing sheet or
// action returns ErrUnknownAction.
func (r *Resolver) ExecuteNamed(actorID, targetID, name string, mode dice.Mode) (Outcome, error) {
	actor, ok := r.store.Participant(actorID)
	if !ok {
		return Outcome{}, nil
	}
	if r.sheets == nil || actor.SheetRef == "" {
		return Outcome{}, fmt.Errorf("%w: %s has no sheet", ErrUnknownAction, actor.Name)
	}
	sh, ok := r.sheets.Get(actor.SheetRef)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: sheet %q not found", ErrUnknownAction, actor.SheetRef)
	}
	def, ok := sh.Action(name)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q is not on sheet %q", ErrUnknownAction, name, sh.ID)
	}
	action, err := Classify(def)
	if err != nil {
		return Outcome{}, err
	}
	return r.Execute(Request{ActorID: actorID, TargetID: targetID, Action: action, Mode: mode})
}

// ConfirmConditions applies conditions the operator accepted from an
// Outcome to targetID and returns how many were applied.
func (r *Resolver) ConfirmConditions(targetID string, pending []condition.Condition) int {
	applied := 0
	_ = r.store.Transact(func(tx *Tx) error {
		p := tx.Find(targetID)
		if p == nil {
			return nil
		}
		for _, c := range pending {
			p.Conditions = p.Conditions.With(c)
			applied++
		}
		return nil
	})
	return applied
}

// resolution is the working state of one Execute call.
type resolution struct {
	tx     *Tx
	out    *Outcome
	actor  *Participant
	target *Participant
	exprs  map[string]dice.Expression
	mode   dice.Mode
}

func (st *resolution) stamp(rr RollResult) RollResult {
	rr.ActionName = st.out.ActionName
	rr.ActorID = st.actor.ID
	if st.target != nil {
		rr.TargetID = st.target.ID
	}
	return rr
}

func (r *Resolver) resolveAttack(st *resolution, a AttackAction) {
	d := r.roller.RollD20(st.mode)
	roll := st.stamp(newD20Roll(RollAttack, d, a.Bonus, st.tx.Now()))
	roll.Critical = d.Natural == 20
	roll.Fumble = d.Natural == 1
	st.out.Rolls = append(st.out.Rolls, roll)

	atk := &AttackOutcome{
		Natural:   d.Natural,
		Total:     roll.Total,
		Critical:  roll.Critical,
		Fumble:    roll.Fumble,
		HasTarget: st.target != nil,
	}
	switch {
	case atk.Fumble:
		atk.Hit = false
	case atk.Critical:
		atk.Hit = true
	case st.target == nil:
		atk.Hit = true
	default:
		atk.Hit = atk.Total >= st.target.ArmorClass
	}
	if st.target != nil {
		atk.TargetAC = st.target.ArmorClass
	}
	st.out.Attack = atk
	if !atk.Hit {
		return
	}

	total := r.rollDamage(st, a.Damage)
	st.out.DamageTotal = total
	if st.target != nil && len(a.Damage) > 0 {
		hp := st.target.ApplyHP(total, Damage)
		st.out.TargetHP = &hp
		st.out.DamageApplied = true
	}
	if a.Save != nil {
		st.out.Save = r.save(st, *a.Save)
	}
	st.out.PendingConditions = r.pending(a.Conditions)
}

func (r *Resolver) rollDamage(st *resolution, comps []DamageComponent) int {
	total := 0
	for _, c := range comps {
		res := r.roller.Roll(st.exprs[c.Formula])
		roll := st.stamp(newFormulaRoll(RollDamage, res, st.tx.Now()))
		roll.DamageType = c.DamageType
		st.out.Rolls = append(st.out.Rolls, roll)
		total += max(0, res.Total())
	}
	return total
}

func (r *Resolver) resolveSave(st *resolution, a SaveAction) {
	st.out.Save = r.save(st, a.Save)
	st.out.Damage = append([]DamageComponent(nil), a.Damage...)
	st.out.PendingConditions = r.pending(a.Conditions)
}

func (r *Resolver) save(st *resolution, spec SaveSpec) *SaveOutcome {
	so := &SaveOutcome{Ability: spec.Ability, DC: spec.DC, Success: spec.Success}
	if r.savePolicy != SavePolicyAuto || st.target == nil {
		return so
	}
	mod := 0
	if r.sheets != nil && st.target.SheetRef != "" {
		if sh, ok := r.sheets.Get(st.target.SheetRef); ok {
			mod = sh.SaveModifier(spec.Ability)
		}
	}
	d := r.roller.RollD20(dice.Normal)
	roll := st.stamp(newD20Roll(RollSave, d, mod, st.tx.Now()))
	st.out.Rolls = append(st.out.Rolls, roll)
	so.Rolled = true
	so.Total = roll.Total
	so.Passed = roll.Total >= spec.DC
	return so
}

func (r *Resolver) resolveHealing(st *resolution, a HealingAction) {
	if st.target == nil {
		st.target = st.actor
		st.out.TargetID = st.actor.ID
	}
	res := r.roller.Roll(st.exprs[a.Formula])
	st.out.Rolls = append(st.out.Rolls, st.stamp(newFormulaRoll(RollHeal, res, st.tx.Now())))
	amount := max(0, res.Total())
	hp := st.target.ApplyHP(amount, Heal)
	st.out.Healing = amount
	st.out.TargetHP = &hp
	st.out.PendingConditions = r.pending(a.Conditions)
}

func (r *Resolver) pending(specs []ConditionSpec) []condition.Condition {
	if len(specs) == 0 {
		return nil
	}
	out := make([]condition.Condition, 0, len(specs))
	for _, cs := range specs {
		if r.conditions != nil {
			if c, ok := r.conditions.Instantiate(cs.Name, cs.DC, nil); ok {
				out = append(out, c)
				continue
			}
		}
		c := condition.Condition{Name: cs.Name}
		if cs.DC != nil {
			v := *cs.DC
			c.DC = &v
		}
		out = append(out, c)
	}
	return out
}
