package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/console"
	"github.com/cory-johannsen/encounter/internal/game/session"
	"github.com/cory-johannsen/encounter/internal/server"
)

var noColor bool

var consoleCmd = &cobra.Command{
	Use:   "console [combat-id]",
	Short: "Run the interactive combat console",
	Long: `Open a stored combat, or create one with --campaign, and run the operator
console on it. The combat is autosaved while dirty and saved on exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&campaignID, "campaign", "", "create a new combat in this campaign")
	consoleCmd.Flags().StringVar(&combatName, "name", "", "name for a new combat")
	consoleCmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
}

func runConsole(cmd *cobra.Command, args []string) error {
	if (len(args) == 1) == (campaignID != "") {
		return fmt.Errorf("give either a combat ID or --campaign")
	}
	return withApp(cmd.Context(), func(a *app) error {
		ctx := cmd.Context()
		var (
			sess *session.Session
			err  error
		)
		if len(args) == 1 {
			sess, err = a.manager.Open(ctx, args[0])
		} else {
			sess, err = a.manager.Create(ctx, campaignID, combatName)
		}
		if err != nil {
			return err
		}
		logger := a.logger.With(zap.String("combat_id", sess.ID))

		con, err := console.New(console.Config{
			Session:    sess,
			Sheets:     a.sheets,
			Conditions: a.conditions,
			Out:        cmd.OutOrStdout(),
			Color:      !noColor,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		lc := server.NewLifecycle(logger)
		lc.Add("console", consoleService(ctx, con))
		lc.Add("autosave", sess.AutoSaver)
		if err := lc.Run(ctx); err != nil {
			return err
		}
		return a.manager.Close(ctx, sess.ID)
	})
}

// consoleService runs con on stdin. Stop returns immediately; a read blocked
// on the terminal is abandoned at process exit.
func consoleService(ctx context.Context, con *console.Console) server.Service {
	ctx, cancel := context.WithCancel(ctx)
	return &server.FuncService{
		StartFn: func() error {
			done := make(chan error, 1)
			go func() { done <- con.Run(ctx, os.Stdin) }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return nil
			}
		},
		StopFn: cancel,
	}
}
