package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "newsloom",
	Short:   "Narrative threading and monitoring over a news archive",
	Version: version,
	Long: `newsloom links similar articles into storylines, scores how much
momentum each storyline carries, and raises alerts when coverage
surges, a quiet story comes back, or a new actor appears.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(storylinesCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
