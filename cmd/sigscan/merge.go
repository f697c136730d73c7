package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/store"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple sigscan datastores",
	Long: `Merge multiple SQLite datastores into a single output datastore.

This combines results from distributed scans or from different targets.
Images, signatures, hits and provenance are deduplicated on their
natural keys, so each is stored once in the merged datastore.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output datastore path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Merge complete:\n")
	fmt.Fprintf(out, "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(out, "  Images merged: %d\n", stats.ImagesMerged)
	fmt.Fprintf(out, "  Signatures merged: %d\n", stats.SignaturesMerged)
	fmt.Fprintf(out, "  Hits merged: %d\n", stats.HitsMerged)
	fmt.Fprintf(out, "  Provenance merged: %d\n", stats.ProvenanceMerged)
	fmt.Fprintf(out, "Output: %s\n", mergeOutput)

	return nil
}
