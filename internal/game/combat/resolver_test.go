package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
)

var greatsword = combat.AttackAction{
	Name:   "Greatsword",
	Range:  "melee",
	Bonus:  4,
	Damage: []combat.DamageComponent{{Formula: "2d6+3", DamageType: "slashing"}},
}

func newResolver(s *combat.Store, src dice.Source, reg combat.Sheets, policy combat.SavePolicy) *combat.Resolver {
	return combat.NewResolver(s, reg, nil, roller(src), policy, nil)
}

func TestResolver_Attack_HitAppliesDamage(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18), participant("orc", 30, 15))
	r := newResolver(s, fixedSource{val: 14}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "orc", Action: greatsword})
	require.NoError(t, err)
	require.True(t, out.Resolved)
	require.NotNil(t, out.Attack)
	assert.Equal(t, 15, out.Attack.Natural)
	assert.Equal(t, 19, out.Attack.Total)
	assert.Equal(t, 15, out.Attack.TargetAC)
	assert.True(t, out.Attack.Hit)
	assert.Equal(t, 15, out.DamageTotal, "fixed source rolls 6s: 6+6+3")
	assert.True(t, out.DamageApplied)
	require.NotNil(t, out.TargetHP)
	assert.Equal(t, 15, *out.TargetHP)

	require.Len(t, out.Rolls, 2)
	atk, dmg := out.Rolls[0], out.Rolls[1]
	assert.Equal(t, combat.RollAttack, atk.Kind)
	assert.Equal(t, "1d20+4", atk.Formula)
	assert.Equal(t, []int{15}, atk.Dice)
	assert.Equal(t, 4, atk.Modifier)
	assert.Equal(t, "Greatsword", atk.ActionName)
	assert.Equal(t, testEpoch, atk.Timestamp)
	assert.Equal(t, combat.RollDamage, dmg.Kind)
	assert.Equal(t, "slashing", dmg.DamageType)
	assert.Equal(t, "2d6+3", dmg.Formula)
	assert.Equal(t, "orc", dmg.TargetID)
	assert.NotEqual(t, atk.ID, dmg.ID)

	orc, _ := s.Participant("orc")
	assert.Equal(t, 15, orc.CurrentHP)
	assert.Len(t, s.Rolls(), 2)
	assert.True(t, s.Dirty())
}

func TestResolver_Attack_MissLeavesHP(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18), participant("orc", 30, 25))
	r := newResolver(s, fixedSource{val: 9}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "orc", Action: greatsword})
	require.NoError(t, err)
	assert.False(t, out.Attack.Hit)
	assert.Len(t, out.Rolls, 1, "a miss logs only the attack roll")
	orc, _ := s.Participant("orc")
	assert.Equal(t, 30, orc.CurrentHP)
}

func TestResolver_Attack_NaturalTwentyAlwaysHitsWithoutDoubling(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18), participant("golem", 60, 99))
	r := newResolver(s, fixedSource{val: 19}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "golem", Action: greatsword})
	require.NoError(t, err)
	assert.True(t, out.Attack.Critical)
	assert.True(t, out.Attack.Hit)
	assert.True(t, out.Rolls[0].Critical)
	assert.Equal(t, 15, out.DamageTotal, "critical damage rolls the formula as written")
}

func TestResolver_Attack_NaturalOneAlwaysMisses(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18), participant("rat", 2, 1))
	r := newResolver(s, fixedSource{val: 0}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "rat", Action: greatsword})
	require.NoError(t, err)
	assert.True(t, out.Attack.Fumble)
	assert.False(t, out.Attack.Hit)
	assert.True(t, out.Rolls[0].Fumble)
	rat, _ := s.Participant("rat")
	assert.Equal(t, 2, rat.CurrentHP)
}

func TestResolver_Attack_AdvantageAndDisadvantage(t *testing.T) {
	for _, tc := range []struct {
		mode    dice.Mode
		natural int
	}{
		{dice.Advantage, 17},
		{dice.Disadvantage, 3},
	} {
		t.Run(string(tc.mode), func(t *testing.T) {
			s := loadedStore(t, participant("fighter", 44, 18), participant("orc", 30, 30))
			r := newResolver(s, &seqSource{faces: []int{3, 17}}, nil, "")
			out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "orc", Action: greatsword, Mode: tc.mode})
			require.NoError(t, err)
			assert.Equal(t, []int{3, 17}, out.Rolls[0].Dice)
			assert.Equal(t, tc.natural, out.Attack.Natural)
			assert.Equal(t, tc.mode, out.Rolls[0].Mode)
		})
	}
}

func TestPropertyResolver_TwoD6PlusThreeInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := loadedStore(t, participant("fighter", 44, 18), participant("dummy", 1000, 0))
		r := newResolver(s, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), nil, "")

		out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "dummy", Action: greatsword})
		require.NoError(rt, err)
		for _, roll := range out.Rolls {
			if roll.Kind != combat.RollDamage {
				continue
			}
			assert.GreaterOrEqual(rt, roll.Total, 5)
			assert.LessOrEqual(rt, roll.Total, 15)
			assert.Len(rt, roll.Dice, 2)
		}
	})
}

func TestResolver_InvalidFormula_NothingApplied(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18), participant("orc", 30, 1))
	src := &seqSource{faces: []int{20}}
	r := newResolver(s, src, nil, "")
	bad := combat.AttackAction{Name: "Broken", Bonus: 5, Damage: []combat.DamageComponent{{Formula: "1d8+3"}, {Formula: "2d"}}}

	out, err := r.Execute(combat.Request{ActorID: "fighter", TargetID: "orc", Action: bad})
	assert.ErrorIs(t, err, combat.ErrInvalidFormula)
	assert.False(t, out.Resolved)
	assert.Empty(t, s.Rolls())
	assert.False(t, s.Dirty())
	assert.Equal(t, 0, src.i, "no die is rolled for a refused action")
}

func TestResolver_UnknownActorOrTarget_SilentNoOp(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18))
	r := newResolver(s, fixedSource{val: 19}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "ghost", TargetID: "fighter", Action: greatsword})
	require.NoError(t, err)
	assert.False(t, out.Resolved)

	out, err = r.Execute(combat.Request{ActorID: "fighter", TargetID: "ghost", Action: greatsword})
	require.NoError(t, err)
	assert.False(t, out.Resolved)
	assert.Empty(t, s.Rolls())
	assert.False(t, s.Dirty())
}

func TestResolver_Attack_NoTargetLogsButDoesNotApply(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18))
	r := newResolver(s, fixedSource{val: 10}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "fighter", Action: greatsword})
	require.NoError(t, err)
	assert.True(t, out.Attack.Hit)
	assert.False(t, out.Attack.HasTarget)
	assert.False(t, out.DamageApplied)
	assert.Nil(t, out.TargetHP)
	assert.Len(t, s.Rolls(), 2)
	assert.False(t, s.Dirty(), "rolls alone do not dirty the store")
}

func TestResolver_Healing_DefaultsToActor(t *testing.T) {
	f := participant("fighter", 44, 18)
	f.CurrentHP = 20
	s := loadedStore(t, f)
	r := newResolver(s, fixedSource{val: 4}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "fighter", Action: combat.HealingAction{Name: "Second Wind", Formula: "1d10+5"}})
	require.NoError(t, err)
	assert.Equal(t, "fighter", out.TargetID)
	assert.Equal(t, 10, out.Healing)
	require.Len(t, out.Rolls, 1)
	assert.Equal(t, combat.RollHeal, out.Rolls[0].Kind)
	p, _ := s.Participant("fighter")
	assert.Equal(t, 30, p.CurrentHP)
}

func TestResolver_Healing_CapsAtMax(t *testing.T) {
	c := participant("cleric", 38, 16)
	w := participant("wizard", 20, 12)
	w.CurrentHP = 18
	s := loadedStore(t, c, w)
	r := newResolver(s, fixedSource{val: 7}, nil, "")

	out, err := r.Execute(combat.Request{ActorID: "cleric", TargetID: "wizard", Action: combat.HealingAction{Name: "Cure Wounds", Formula: "1d8+4"}})
	require.NoError(t, err)
	assert.Equal(t, 20, *out.TargetHP)
}

var web = combat.SaveAction{
	Name:       "Web",
	Save:       combat.SaveSpec{Ability: "dex", DC: 12, Success: "not restrained"},
	Conditions: []combat.ConditionSpec{{Name: "Restrained", DC: intp(12)}},
}

func TestResolver_Save_ManualIsAdvisory(t *testing.T) {
	s := loadedStore(t, participant("spider", 26, 14), participant("fighter", 44, 18))
	r := newResolver(s, fixedSource{val: 0}, nil, combat.SavePolicyManual)

	out, err := r.Execute(combat.Request{ActorID: "spider", TargetID: "fighter", Action: web})
	require.NoError(t, err)
	require.NotNil(t, out.Save)
	assert.Equal(t, "dex", out.Save.Ability)
	assert.Equal(t, 12, out.Save.DC)
	assert.False(t, out.Save.Rolled)
	assert.Empty(t, out.Rolls)
	require.Len(t, out.PendingConditions, 1)
	assert.Equal(t, "Restrained", out.PendingConditions[0].Name)

	p, _ := s.Participant("fighter")
	assert.Empty(t, p.Conditions, "conditions are only applied on confirmation")
	assert.False(t, s.Dirty())
}

func TestResolver_Save_AutoRollsWithSheetModifier(t *testing.T) {
	f := participant("fighter", 44, 18)
	f.SheetRef = "fighter"
	s := loadedStore(t, participant("spider", 26, 14), f)
	reg := sheets(&sheet.Sheet{ID: "fighter", SaveModifiers: map[string]int{"dex": 1}})
	r := newResolver(s, fixedSource{val: 10}, reg, combat.SavePolicyAuto)

	out, err := r.Execute(combat.Request{ActorID: "spider", TargetID: "fighter", Action: web})
	require.NoError(t, err)
	require.True(t, out.Save.Rolled)
	assert.Equal(t, 12, out.Save.Total)
	assert.True(t, out.Save.Passed)
	require.Len(t, out.Rolls, 1)
	assert.Equal(t, combat.RollSave, out.Rolls[0].Kind)
	assert.Equal(t, "1d20+1", out.Rolls[0].Formula)
	assert.Len(t, out.PendingConditions, 1, "auto saves still leave conditions to the operator")
	p, _ := s.Participant("fighter")
	assert.Empty(t, p.Conditions)
}

func TestResolver_ConfirmConditions(t *testing.T) {
	s := loadedStore(t, participant("spider", 26, 14), participant("fighter", 44, 18))
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "restrained", Name: "Restrained"})
	r := combat.NewResolver(s, nil, reg, roller(fixedSource{}), "", nil)

	out, err := r.Execute(combat.Request{ActorID: "spider", TargetID: "fighter", Action: web})
	require.NoError(t, err)
	require.Len(t, out.PendingConditions, 1)
	assert.Equal(t, "restrained", out.PendingConditions[0].ID, "catalog supplies the reference id")

	assert.Equal(t, 1, r.ConfirmConditions("fighter", out.PendingConditions))
	assert.Equal(t, 1, r.ConfirmConditions("fighter", out.PendingConditions))
	assert.Equal(t, 0, r.ConfirmConditions("ghost", out.PendingConditions))

	p, _ := s.Participant("fighter")
	require.Len(t, p.Conditions, 1)
	assert.Equal(t, 12, *p.Conditions[0].DC)
}

func TestResolver_Utility_NoRolls(t *testing.T) {
	s := loadedStore(t, participant("fighter", 44, 18))
	r := newResolver(s, fixedSource{}, nil, "")
	out, err := r.Execute(combat.Request{ActorID: "fighter", Action: combat.UtilityAction{Name: "Dodge"}})
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.Empty(t, out.Rolls)
	assert.Nil(t, out.Attack)
}

func TestResolver_ExecuteNamed(t *testing.T) {
	f := participant("fighter", 44, 18)
	f.SheetRef = "fighter"
	s := loadedStore(t, f, participant("orc", 30, 10))
	reg := sheets(&sheet.Sheet{ID: "fighter", Actions: []sheet.ActionDef{{
		Name:       "Greatsword",
		AttackRoll: &sheet.AttackRoll{Type: "melee", Bonus: 6},
		Damage:     []sheet.Damage{{Formula: "2d6+3", DamageType: "slashing"}},
	}}})
	r := newResolver(s, fixedSource{val: 14}, reg, "")

	out, err := r.ExecuteNamed("fighter", "orc", "greatsword", dice.Normal)
	require.NoError(t, err)
	assert.True(t, out.Attack.Hit)
	assert.Equal(t, 15, *out.TargetHP)

	_, err = r.ExecuteNamed("fighter", "orc", "Fireball", dice.Normal)
	assert.ErrorIs(t, err, combat.ErrUnknownAction)

	_, err = r.ExecuteNamed("orc", "fighter", "Greatsword", dice.Normal)
	assert.ErrorIs(t, err, combat.ErrUnknownAction, "orc has no sheet")

	out, err = r.ExecuteNamed("ghost", "orc", "Greatsword", dice.Normal)
	require.NoError(t, err)
	assert.False(t, out.Resolved)
}
