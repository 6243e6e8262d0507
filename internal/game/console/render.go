package console

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
)

// renderOrder formats the initiative order as a table. The active
// participant is marked with '>'.
func (p palette) renderOrder(snap combat.Snapshot) string {
	var b strings.Builder
	b.WriteString(p.paintf(BrightYellow, "%s  round %d  [%s]", displayName(snap), snap.CurrentRound, snap.Status))
	b.WriteString("\n")
	if len(snap.Participants) == 0 {
		b.WriteString(p.paint(Dim, "  no participants"))
		b.WriteString("\n")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  \t#\tNAME\tHP\tAC\tINIT\tCONDITIONS")
	for i, pt := range snap.Participants {
		marker := " "
		if snap.ActiveIndex != nil && *snap.ActiveIndex == i {
			marker = ">"
		}
		initiative := "-"
		if pt.Initiative != nil {
			initiative = strconv.Itoa(*pt.Initiative)
			if pt.InitiativeManual {
				initiative += "*"
			}
		}
		hp := fmt.Sprintf("%d/%d", pt.CurrentHP, pt.MaxHP)
		if pt.IsDown() {
			hp += " down"
		}
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%d\t%s\t%s\n",
			marker, i+1, pt.Name, hp, pt.ArmorClass, initiative, renderConditions(pt.Conditions))
	}
	_ = tw.Flush()
	return b.String()
}

func displayName(snap combat.Snapshot) string {
	if snap.Name != "" {
		return snap.Name
	}
	return snap.ID
}

func renderConditions(s condition.Set) string {
	if len(s) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(s))
	for _, c := range s {
		parts = append(parts, renderCondition(c))
	}
	return strings.Join(parts, ", ")
}

func renderCondition(c condition.Condition) string {
	var extra []string
	if c.DC != nil {
		extra = append(extra, fmt.Sprintf("DC %d", *c.DC))
	}
	if c.Duration != nil {
		extra = append(extra, fmt.Sprintf("%d rnd", *c.Duration))
	}
	if len(extra) == 0 {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, strings.Join(extra, ", "))
}

func (p palette) renderInitiative(rolls []combat.InitiativeRoll) string {
	var b strings.Builder
	for _, r := range rolls {
		if r.Manual {
			fmt.Fprintf(&b, "  %s: %d (manual)\n", r.Name, r.Total)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s (d20 %d %+d)\n", r.Name, p.paintf(BrightWhite, "%d", r.Total), r.Natural, r.Modifier)
	}
	return b.String()
}

func (p palette) renderTurn(ts combat.TurnState, name func(id string) string) string {
	var b strings.Builder
	if ts.Wrapped {
		b.WriteString(p.paintf(BrightYellow, "=== Round %d ===", ts.Round))
		b.WriteString("\n")
	}
	for _, e := range ts.Expired {
		b.WriteString(p.paintf(Cyan, "%s is no longer %s.", name(e.ParticipantID), e.Condition.Name))
		b.WriteString("\n")
	}
	if ts.Active == nil {
		b.WriteString(p.paint(Dim, "No active turn. Roll initiative first."))
		b.WriteString("\n")
		return b.String()
	}
	turn := fmt.Sprintf("Round %d: %s's turn", ts.Round, ts.Active.Name)
	if ts.Active.IsDown() {
		turn += " (down)"
	}
	b.WriteString(p.paint(Bold, turn))
	b.WriteString("\n")
	return b.String()
}

func (p palette) renderRoll(r combat.RollResult) string {
	var flags []string
	if r.Critical {
		flags = append(flags, p.paint(BrightRed, "CRIT"))
	}
	if r.Fumble {
		flags = append(flags, p.paint(Dim, "FUMBLE"))
	}
	if r.Mode != "" && r.Mode != "normal" {
		flags = append(flags, string(r.Mode))
	}
	label := string(r.Kind)
	if r.ActionName != "" {
		label += " " + r.ActionName
	}
	line := fmt.Sprintf("[%s] %s %v %+d = %d", label, r.Formula, r.Dice, r.Modifier, r.Total)
	if r.DamageType != "" {
		line += " " + r.DamageType
	}
	if len(flags) > 0 {
		line += " " + strings.Join(flags, " ")
	}
	return line
}

func (p palette) renderOutcome(o combat.Outcome, name func(id string) string) string {
	var b strings.Builder
	for _, r := range o.Rolls {
		b.WriteString("  ")
		b.WriteString(p.renderRoll(r))
		b.WriteString("\n")
	}

	actor := name(o.ActorID)
	target := name(o.TargetID)
	if a := o.Attack; a != nil {
		switch {
		case !a.HasTarget && a.Hit:
			fmt.Fprintf(&b, "%s rolls %d to hit.\n", actor, a.Total)
		case a.Hit:
			b.WriteString(p.paintf(BrightRed, "%s hits %s (%d vs AC %d).", actor, target, a.Total, a.TargetAC))
			b.WriteString("\n")
		default:
			fmt.Fprintf(&b, "%s misses %s (%d vs AC %d).\n", actor, target, a.Total, a.TargetAC)
		}
	}
	if o.DamageTotal > 0 {
		if o.DamageApplied {
			fmt.Fprintf(&b, "%s takes %d damage.\n", target, o.DamageTotal)
		} else {
			fmt.Fprintf(&b, "%d damage rolled (not applied).\n", o.DamageTotal)
		}
	}
	if o.Healing > 0 {
		b.WriteString(p.paintf(Green, "%s regains %d hit points.", target, o.Healing))
		b.WriteString("\n")
	}
	if o.TargetHP != nil {
		fmt.Fprintf(&b, "%s is at %d HP.\n", target, *o.TargetHP)
	}
	if s := o.Save; s != nil {
		line := fmt.Sprintf("%s save DC %d", strings.ToUpper(s.Ability), s.DC)
		if s.Success != "" {
			line += fmt.Sprintf(" (on success: %s)", s.Success)
		}
		if s.Rolled {
			verdict := "fails"
			if s.Passed {
				verdict = "succeeds"
			}
			line += fmt.Sprintf(": %s %s with %d", target, verdict, s.Total)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, d := range o.Damage {
		dt := d.DamageType
		if dt == "" {
			dt = "untyped"
		}
		fmt.Fprintf(&b, "  on a failed save: %s %s\n", d.Formula, dt)
	}
	if len(o.PendingConditions) > 0 {
		names := make([]string, 0, len(o.PendingConditions))
		for _, c := range o.PendingConditions {
			names = append(names, renderCondition(c))
		}
		if o.TargetID == "" {
			b.WriteString(p.paintf(Yellow, "Pending with no target: %s. Use 'confirm <name>' to apply.",
				strings.Join(names, ", ")))
		} else {
			b.WriteString(p.paintf(Yellow, "Pending on %s: %s. Use 'confirm %s' to apply.",
				target, strings.Join(names, ", "), target))
		}
		b.WriteString("\n")
	}
	return b.String()
}
