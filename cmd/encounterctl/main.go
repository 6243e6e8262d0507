// Package main is the operator CLI for the encounter engine: it creates,
// lists and inspects stored combats and runs the interactive combat console.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "encounterctl",
	Short: "Run and manage tabletop combat encounters",
	Long: `encounterctl tracks initiative, hit points, conditions and dice rolls for
tabletop combats and persists each combat as a snapshot.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (defaults plus ENCOUNTER_* environment when empty)")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(migrateCmd)
}
