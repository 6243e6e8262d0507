// Package console is the operator's text interface to one open combat: a
// command parser, a registry of built-in commands, and a read-eval loop.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/session"
)

// Prompt is written before each line read by Run.
const Prompt = "encounter> "

var (
	// ErrUsage marks malformed command arguments.
	ErrUsage = errors.New("usage")
	// ErrNoParticipant is returned when a reference matches nobody.
	ErrNoParticipant = errors.New("no such participant")

	errQuit = errors.New("quit")
)

// Config holds the console's collaborators.
type Config struct {
	Session    *session.Session
	Sheets     combat.Sheets
	Conditions combat.ConditionCatalog
	Registry   *Registry
	Out        io.Writer
	// Color enables ANSI colors in output.
	Color  bool
	Logger *zap.Logger
}

// Console executes operator commands against one session.
// It is not safe for concurrent use.
type Console struct {
	sess       *session.Session
	sheets     combat.Sheets
	conditions combat.ConditionCatalog
	registry   *Registry
	out        io.Writer
	pal        palette
	logger     *zap.Logger

	// pending holds conditions from the last action against each target,
	// awaiting confirm. The "" key holds those of an untargeted action.
	pending map[string][]condition.Condition
}

// New creates a Console.
//
// Precondition: cfg.Session and cfg.Out must be non-nil.
func New(cfg Config) (*Console, error) {
	if cfg.Session == nil {
		return nil, errors.New("console: session is required")
	}
	if cfg.Out == nil {
		return nil, errors.New("console: output writer is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Console{
		sess:       cfg.Session,
		sheets:     cfg.Sheets,
		conditions: cfg.Conditions,
		registry:   cfg.Registry,
		out:        cfg.Out,
		pal:        palette(cfg.Color),
		logger:     cfg.Logger,
		pending:    make(map[string][]condition.Condition),
	}, nil
}

// Execute parses and runs one line.
//
// Postcondition: Operator mistakes (validation errors, unknown commands,
// bad arguments) are printed as notifications and return nil. Persistence
// and other failures are printed and returned. quit is true after the quit
// command.
func (c *Console) Execute(ctx context.Context, line string) (quit bool, err error) {
	res, err := Parse(line)
	if err != nil {
		c.notify(err.Error())
		return false, nil
	}
	if res.Command == "" {
		return false, nil
	}
	cmd, ok := c.registry.Resolve(res.Command)
	if !ok {
		c.notify(fmt.Sprintf("unknown command %q; try 'help'", res.Command))
		return false, nil
	}

	err = cmd.Handler(c, ctx, res.Args)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, errQuit):
		return true, nil
	case errors.Is(err, ErrUsage):
		if err != ErrUsage {
			c.notify(err.Error())
		}
		c.notify(strings.TrimSpace(fmt.Sprintf("usage: %s %s", cmd.Name, cmd.Usage)))
		return false, nil
	case errors.Is(err, ErrNoParticipant), combat.IsValidation(err):
		c.notify(err.Error())
		return false, nil
	default:
		c.printf("%s\n", c.pal.paintf(Red, "error: %v", err))
		return false, err
	}
}

// Run reads commands from in until quit, EOF or ctx is done. Failed
// commands are logged and the loop continues.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	c.printf("%s", c.pal.renderOrder(c.sess.Store.Snapshot()))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		c.printf("%s", Prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading console input: %w", err)
			}
			return nil
		}
		quit, err := c.Execute(ctx, scanner.Text())
		if err != nil {
			c.logger.Warn("command failed", zap.String("line", scanner.Text()), zap.Error(err))
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) notify(msg string) {
	c.printf("%s\n", c.pal.paint(Yellow, "! "+msg))
}

// find resolves a participant reference: a 1-based position in the order,
// an ID, a case-insensitive name, or an unambiguous name prefix.
func (c *Console) find(ref string) (combat.Participant, error) {
	snap := c.sess.Store.Snapshot()
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(snap.Participants) {
			return snap.Participants[n-1], nil
		}
		return combat.Participant{}, fmt.Errorf("%w: #%d", ErrNoParticipant, n)
	}
	for _, p := range snap.Participants {
		if p.ID == ref {
			return p, nil
		}
	}
	lower := strings.ToLower(ref)
	var matches []combat.Participant
	for _, p := range snap.Participants {
		name := strings.ToLower(p.Name)
		if name == lower {
			return p, nil
		}
		if strings.HasPrefix(name, lower) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return combat.Participant{}, fmt.Errorf("%w: %q", ErrNoParticipant, ref)
	default:
		return combat.Participant{}, fmt.Errorf("%w: %q is ambiguous", ErrNoParticipant, ref)
	}
}

// nameOf returns the display name for id, or id itself if it is gone.
func (c *Console) nameOf(id string) string {
	if p, ok := c.sess.Store.Participant(id); ok {
		return p.Name
	}
	return id
}
