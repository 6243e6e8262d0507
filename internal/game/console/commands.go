package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
)

// BuiltinCommands returns all built-in operator commands.
func BuiltinCommands() []Command {
	return []Command{
		// Roster
		{Name: "show", Aliases: []string{"ls", "order"}, Help: "Show the initiative order", Category: CategoryRoster, Handler: (*Console).cmdShow},
		{Name: "add", Usage: "<sheet> [name] | <name> <hp> [ac]", Help: "Add a participant from a sheet or by stats", Category: CategoryRoster, Handler: (*Console).cmdAdd},
		{Name: "remove", Aliases: []string{"rm"}, Usage: "<who>", Help: "Remove a participant", Category: CategoryRoster, Handler: (*Console).cmdRemove},
		{Name: "damage", Aliases: []string{"dmg"}, Usage: "<who> <amount>", Help: "Apply damage", Category: CategoryRoster, Handler: (*Console).cmdDamage},
		{Name: "heal", Usage: "<who> <amount>", Help: "Restore hit points", Category: CategoryRoster, Handler: (*Console).cmdHeal},
		{Name: "cond", Usage: "<who> <condition> [dc] [rounds]", Help: "Apply a condition", Category: CategoryRoster, Handler: (*Console).cmdCond},
		{Name: "uncond", Usage: "<who> <condition>", Help: "Remove a condition", Category: CategoryRoster, Handler: (*Console).cmdUncond},

		// Turn order
		{Name: "init", Aliases: []string{"roll"}, Help: "Roll initiative and sort the order", Category: CategoryTurn, Handler: (*Console).cmdInit},
		{Name: "setinit", Usage: "<who> <value>", Help: "Set a participant's initiative by hand", Category: CategoryTurn, Handler: (*Console).cmdSetInit},
		{Name: "start", Help: "Start combat once initiative is rolled", Category: CategoryTurn, Handler: (*Console).cmdStart},
		{Name: "next", Aliases: []string{"n"}, Help: "Advance to the next turn", Category: CategoryTurn, Handler: (*Console).cmdNext},

		// Actions
		{Name: "act", Aliases: []string{"a"}, Usage: "<actor> <action> [@target] [adv|dis]", Help: "Resolve an action from the actor's sheet", Category: CategoryAction, Handler: (*Console).cmdAct},
		{Name: "confirm", Usage: "<who>", Help: "Apply conditions pending on a target", Category: CategoryAction, Handler: (*Console).cmdConfirm},
		{Name: "rolls", Usage: "[count]", Help: "Show recent rolls", Category: CategoryAction, Handler: (*Console).cmdRolls},

		// System
		{Name: "save", Help: "Save the combat", Category: CategorySystem, Handler: (*Console).cmdSave},
		{Name: "end", Help: "End the combat and save it", Category: CategorySystem, Handler: (*Console).cmdEnd},
		{Name: "help", Aliases: []string{"?"}, Help: "List commands", Category: CategorySystem, Handler: (*Console).cmdHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Help: "Leave the console", Category: CategorySystem, Handler: (*Console).cmdQuit},
	}
}

func (c *Console) cmdShow(_ context.Context, _ []string) error {
	c.printf("%s", c.pal.renderOrder(c.sess.Store.Snapshot()))
	return nil
}

func (c *Console) cmdAdd(_ context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	var p combat.Participant
	if sh, ok := c.sheetFor(args[0]); ok {
		p = combat.Participant{
			Name:       sh.Name,
			CurrentHP:  sh.MaxHP,
			MaxHP:      sh.MaxHP,
			ArmorClass: sh.ArmorClass,
			SheetRef:   sh.ID,
		}
		if len(args) > 1 {
			p.Name = strings.Join(args[1:], " ")
		}
	} else {
		if len(args) < 2 || len(args) > 3 {
			return ErrUsage
		}
		hp, err := nonNegative(args[1])
		if err != nil {
			return err
		}
		p = combat.Participant{Name: args[0], CurrentHP: hp, MaxHP: hp}
		if len(args) == 3 {
			if p.ArmorClass, err = nonNegative(args[2]); err != nil {
				return err
			}
		}
	}
	added, err := c.sess.Store.AddParticipant(p)
	if err != nil {
		return err
	}
	c.printf("Added %s (%d HP, AC %d).\n", added.Name, added.MaxHP, added.ArmorClass)
	return nil
}

func (c *Console) cmdRemove(_ context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	p, err := c.find(args[0])
	if err != nil {
		return err
	}
	if c.sess.Store.RemoveParticipant(p.ID) {
		delete(c.pending, p.ID)
		c.printf("Removed %s.\n", p.Name)
	}
	return nil
}

func (c *Console) cmdDamage(_ context.Context, args []string) error {
	return c.changeHP(args, combat.Damage)
}

func (c *Console) cmdHeal(_ context.Context, args []string) error {
	return c.changeHP(args, combat.Heal)
}

func (c *Console) changeHP(args []string, kind combat.HPChange) error {
	if len(args) != 2 {
		return ErrUsage
	}
	p, err := c.find(args[0])
	if err != nil {
		return err
	}
	amount, err := nonNegative(args[1])
	if err != nil {
		return err
	}
	hp, ok := c.sess.Store.UpdateHP(p.ID, amount, kind)
	if !ok {
		return nil
	}
	c.printf("%s: %d/%d HP.\n", p.Name, hp, p.MaxHP)
	if hp == 0 {
		c.printf("%s\n", c.pal.paintf(Red, "%s is down.", p.Name))
	}
	return nil
}

func (c *Console) cmdCond(_ context.Context, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return ErrUsage
	}
	p, err := c.find(args[0])
	if err != nil {
		return err
	}
	var dc, rounds *int
	if len(args) > 2 {
		v, err := nonNegative(args[2])
		if err != nil {
			return err
		}
		dc = &v
	}
	if len(args) > 3 {
		v, err := strconv.Atoi(args[3])
		if err != nil || v < 1 {
			return fmt.Errorf("%w: rounds must be a positive integer", ErrUsage)
		}
		rounds = &v
	}
	cond, ok := c.instantiate(args[1], dc, rounds)
	if !ok {
		c.notify(fmt.Sprintf("unknown condition %q", args[1]))
		return nil
	}
	if c.sess.Store.AddCondition(p.ID, cond) {
		c.printf("%s is %s.\n", p.Name, renderCondition(cond))
	}
	return nil
}

func (c *Console) cmdUncond(_ context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	p, err := c.find(args[0])
	if err != nil {
		return err
	}
	ref := args[1]
	if cond, ok := c.instantiate(ref, nil, nil); ok {
		ref = cond.Ref()
	}
	if !c.sess.Store.RemoveCondition(p.ID, ref) {
		c.notify(fmt.Sprintf("%s is not %s", p.Name, args[1]))
		return nil
	}
	c.printf("%s is no longer %s.\n", p.Name, args[1])
	return nil
}

func (c *Console) cmdInit(_ context.Context, _ []string) error {
	rolls, err := c.sess.Scheduler.RollInitiative()
	if err != nil {
		return err
	}
	c.printf("%s", c.pal.renderInitiative(rolls))
	c.printf("%s", c.pal.renderOrder(c.sess.Store.Snapshot()))
	return nil
}

func (c *Console) cmdSetInit(_ context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	p, err := c.find(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: initiative must be an integer", ErrUsage)
	}
	if c.sess.Store.SetInitiative(p.ID, v) {
		c.printf("%s initiative set to %d. Run 'init' to re-sort.\n", p.Name, v)
	}
	return nil
}

func (c *Console) cmdStart(_ context.Context, _ []string) error {
	if err := c.sess.Scheduler.StartCombat(); err != nil {
		return err
	}
	snap := c.sess.Store.Snapshot()
	c.printf("%s\n", c.pal.paint(BrightYellow, "Combat started."))
	if a := snap.Active(); a != nil {
		c.printf("%s\n", c.pal.paintf(Bold, "Round %d: %s's turn", snap.CurrentRound, a.Name))
	}
	return nil
}

func (c *Console) cmdNext(_ context.Context, _ []string) error {
	ts, err := c.sess.Scheduler.NextTurn()
	if err != nil {
		return err
	}
	c.printf("%s", c.pal.renderTurn(ts, c.nameOf))
	return nil
}

func (c *Console) cmdAct(_ context.Context, args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}
	actor, err := c.find(args[0])
	if err != nil {
		return err
	}

	rest := args[1:]
	mode := dice.Normal
	if last := strings.ToLower(rest[len(rest)-1]); len(rest) > 1 && last != "" {
		if m, err := dice.ParseMode(last); err == nil {
			mode = m
			rest = rest[:len(rest)-1]
		}
	}
	var targetID string
	var nameParts []string
	for _, a := range rest {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			t, err := c.find(a[1:])
			if err != nil {
				return err
			}
			targetID = t.ID
			continue
		}
		nameParts = append(nameParts, a)
	}
	if len(nameParts) == 0 {
		return ErrUsage
	}

	out, err := c.sess.Resolver.ExecuteNamed(actor.ID, targetID, strings.Join(nameParts, " "), mode)
	if err != nil {
		return err
	}
	if !out.Resolved {
		return nil
	}
	c.printf("%s", c.pal.renderOutcome(out, c.nameOf))
	if len(out.PendingConditions) > 0 {
		// An empty TargetID keys the untargeted entry any confirm can claim.
		c.pending[out.TargetID] = out.PendingConditions
	}
	return nil
}

func (c *Console) cmdConfirm(_ context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	p, err := c.find(args[0])
	if err != nil {
		return err
	}
	key := p.ID
	pending := c.pending[key]
	if len(pending) == 0 {
		key = ""
		pending = c.pending[key]
	}
	if len(pending) == 0 {
		c.notify(fmt.Sprintf("nothing pending on %s", p.Name))
		return nil
	}
	n := c.sess.Resolver.ConfirmConditions(p.ID, pending)
	delete(c.pending, key)
	c.printf("Applied %d condition(s) to %s.\n", n, p.Name)
	return nil
}

func (c *Console) cmdRolls(_ context.Context, args []string) error {
	count := 10
	if len(args) > 1 {
		return ErrUsage
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: count must be a positive integer", ErrUsage)
		}
		count = n
	}
	rolls := c.sess.Store.Rolls()
	if len(rolls) > count {
		rolls = rolls[len(rolls)-count:]
	}
	if len(rolls) == 0 {
		c.printf("%s\n", c.pal.paint(Dim, "No rolls yet."))
		return nil
	}
	for _, r := range rolls {
		c.printf("%s  %s\n", r.Timestamp.Format("15:04:05"), c.pal.renderRoll(r))
	}
	return nil
}

func (c *Console) cmdSave(ctx context.Context, _ []string) error {
	if err := c.sess.Sync.Save(ctx); err != nil {
		return err
	}
	c.printf("Saved.\n")
	return nil
}

func (c *Console) cmdEnd(ctx context.Context, _ []string) error {
	if err := c.sess.Sync.EndCombat(ctx); err != nil {
		return err
	}
	c.printf("%s\n", c.pal.paint(BrightYellow, "Combat ended and saved."))
	return nil
}

func (c *Console) cmdHelp(_ context.Context, _ []string) error {
	category := ""
	for _, cmd := range c.registry.Commands() {
		if cmd.Category != category {
			category = cmd.Category
			c.printf("%s\n", c.pal.paint(Cyan, strings.ToUpper(category)))
		}
		usage := cmd.Name
		if cmd.Usage != "" {
			usage += " " + cmd.Usage
		}
		c.printf("  %-44s %s\n", usage, cmd.Help)
	}
	return nil
}

func (c *Console) cmdQuit(_ context.Context, _ []string) error {
	if c.sess.Store.Dirty() {
		c.notify("unsaved changes will be saved on exit")
	}
	return errQuit
}

func (c *Console) sheetFor(ref string) (*sheet.Sheet, bool) {
	if c.sheets == nil {
		return nil, false
	}
	return c.sheets.Get(ref)
}

func (c *Console) instantiate(key string, dc, rounds *int) (condition.Condition, bool) {
	if c.conditions == nil {
		return condition.Condition{}, false
	}
	return c.conditions.Instantiate(key, dc, rounds)
}

func nonNegative(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrUsage, s)
	}
	return n, nil
}
