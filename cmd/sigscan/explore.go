package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/explore"
)

var exploreDatastore string

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively triage scan findings",
	Long: `Launch a terminal UI over a scan datastore.

Findings are listed with their report values and can be filtered by
signature, category, region and triage status. Findings and individual
hits can be accepted or rejected and commented; annotations are saved to
the datastore. When the scan used --store-images, "o" shows a hex view of
the image around the selected hit.`,
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().StringVar(&exploreDatastore, "datastore", "sigscan.db", "Datastore: SQLite path, directory holding datastore.db, or postgres:// DSN")
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	model, err := explore.New(exploreDatastore)
	if err != nil {
		return fmt.Errorf("loading datastore: %w", err)
	}
	defer model.Close()

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running explore: %w", err)
	}
	return nil
}
