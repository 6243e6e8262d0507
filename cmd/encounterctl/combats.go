package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/combat"
)

var (
	campaignID   string
	combatName   string
	sheetRef     string
	participant  string
	hitPoints    int
	armorClass   int
	initiativeOn bool
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty combat in a campaign",
	RunE:  runNew,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a campaign's combats, most recently updated first",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <combat-id>",
	Short: "Print a stored combat as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var addCmd = &cobra.Command{
	Use:   "add <combat-id>",
	Short: "Add a participant to a stored combat",
	Long: `Add a participant from a sheet (--sheet) or from explicit stats (--name, --hp, --ac).
With --roll-initiative the whole order is re-rolled after the add.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <combat-id>",
	Short: "Delete a stored combat",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	newCmd.Flags().StringVar(&campaignID, "campaign", "", "campaign ID (required)")
	newCmd.Flags().StringVar(&combatName, "name", "", "combat name")
	_ = newCmd.MarkFlagRequired("campaign") // nolint:errcheck // safe to ignore in init

	listCmd.Flags().StringVar(&campaignID, "campaign", "", "campaign ID (required)")
	_ = listCmd.MarkFlagRequired("campaign") // nolint:errcheck // safe to ignore in init

	addCmd.Flags().StringVar(&sheetRef, "sheet", "", "sheet ID to build the participant from")
	addCmd.Flags().StringVar(&participant, "name", "", "participant name (overrides the sheet name)")
	addCmd.Flags().IntVar(&hitPoints, "hp", 0, "maximum hit points when no sheet is given")
	addCmd.Flags().IntVar(&armorClass, "ac", 0, "armor class when no sheet is given")
	addCmd.Flags().BoolVar(&initiativeOn, "roll-initiative", false, "re-roll initiative after adding")
}

func runNew(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if a.cfg.Persistence.Backend == config.BackendMemory {
			return errMemoryBackend
		}
		sess, err := a.manager.Create(cmd.Context(), campaignID, combatName)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
		return nil
	})
}

func runList(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		summaries, err := a.repo.ListByCampaign(cmd.Context(), campaignID)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tROUND\tUPDATED")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				s.ID, s.Name, s.Status, s.CurrentRound, s.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		snap, err := a.repo.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if a.cfg.Persistence.Backend == config.BackendMemory {
			return errMemoryBackend
		}
		ctx := cmd.Context()
		p, err := buildParticipant(a)
		if err != nil {
			return err
		}
		sess, err := a.manager.Open(ctx, args[0])
		if err != nil {
			return err
		}
		added, err := sess.Store.AddParticipant(p)
		if err != nil {
			return err
		}
		if initiativeOn {
			if _, err := sess.Scheduler.RollInitiative(); err != nil {
				return err
			}
		}
		if err := a.manager.Close(ctx, sess.ID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), added.ID)
		return nil
	})
}

func buildParticipant(a *app) (combat.Participant, error) {
	if sheetRef != "" {
		sh, ok := a.sheets.Get(sheetRef)
		if !ok {
			return combat.Participant{}, fmt.Errorf("unknown sheet %q", sheetRef)
		}
		p := combat.Participant{
			Name:       sh.Name,
			CurrentHP:  sh.MaxHP,
			MaxHP:      sh.MaxHP,
			ArmorClass: sh.ArmorClass,
			SheetRef:   sh.ID,
		}
		if participant != "" {
			p.Name = participant
		}
		return p, nil
	}
	if participant == "" {
		return combat.Participant{}, fmt.Errorf("either --sheet or --name is required")
	}
	return combat.Participant{
		Name:       participant,
		CurrentHP:  hitPoints,
		MaxHP:      hitPoints,
		ArmorClass: armorClass,
	}, nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if err := a.repo.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "deleted %s\n", args[0])
		return nil
	})
}
