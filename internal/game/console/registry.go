package console

import (
	"context"
	"fmt"
	"sort"
)

// Categories for organizing commands in help output.
const (
	CategoryRoster = "roster"
	CategoryTurn   = "turn"
	CategoryAction = "action"
	CategorySystem = "system"
)

var categoryOrder = []string{CategoryRoster, CategoryTurn, CategoryAction, CategorySystem}

// HandlerFunc runs a command against the console's open combat.
type HandlerFunc func(c *Console, ctx context.Context, args []string) error

// Command defines an operator command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument syntax, e.g. "<who> <amount>".
	Usage string
	// Help is the one-line description shown by help.
	Help     string
	Category string
	Handler  HandlerFunc
}

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions or
// a missing handler.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Handler == nil {
			return nil, fmt.Errorf("command %q has no handler", cmd.Name)
		}
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if _, exists := r.aliases[cmd.Name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", cmd.Name)
		}
		r.commands[cmd.Name] = cmd

		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}

	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias.
func (r *Registry) Resolve(input string) (*Command, bool) {
	if cmd, ok := r.commands[input]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[input]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Commands returns all registered commands grouped by category, then sorted
// by name.
func (r *Registry) Commands() []*Command {
	rank := make(map[string]int, len(categoryOrder))
	for i, c := range categoryOrder {
		rank[c] = i
	}
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		ri, rj := rank[result[i].Category], rank[result[j].Category]
		if ri != rj {
			return ri < rj
		}
		return result[i].Name < result[j].Name
	})
	return result
}
