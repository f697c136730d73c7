package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	signaturesPath   string
	signaturesFormat string
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "Manage signatures",
	Long:  "Commands for listing and testing signatures",
}

var signaturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available signatures",
	Long:  "Display all available signatures with their IDs and names",
	RunE:  runSignaturesList,
}

var signaturesTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate signatures against their examples",
	Long: `Compile every signature and check that each example matches and each
negative example does not.`,
	RunE: runSignaturesTest,
}

func init() {
	signaturesCmd.AddCommand(signaturesListCmd)
	signaturesCmd.AddCommand(signaturesTestCmd)
	signaturesCmd.PersistentFlags().StringVar(&signaturesPath, "signatures", "", "Path to a signatures file, bundle or directory")
	signaturesListCmd.Flags().StringVar(&signaturesFormat, "format", "table", "Output format: table, json")
}

func runSignaturesList(cmd *cobra.Command, args []string) error {
	sigs, err := loadSignatures(signaturesPath, "", "", "")
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	switch signaturesFormat {
	case "json":
		return outputSignaturesJSON(cmd, sigs)
	case "table":
		return outputSignaturesTable(cmd, sigs)
	default:
		return fmt.Errorf("unknown output format: %s", signaturesFormat)
	}
}

func runSignaturesTest(cmd *cobra.Command, args []string) error {
	sigs, err := loadSignatures(signaturesPath, "", "", "")
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, s := range sigs {
		if err := signature.ValidateSignature(s); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", s.ID, err)
			continue
		}
		if !quiet {
			fmt.Fprintf(out, "ok    %s (%d examples, %d negative)\n", s.ID, len(s.Examples), len(s.NegativeExamples))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d signatures failed", failed, len(sigs))
	}
	fmt.Fprintf(out, "%d signatures passed\n", len(sigs))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func outputSignaturesJSON(cmd *cobra.Command, sigs []*types.Signature) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(sigs)
}

func outputSignaturesTable(cmd *cobra.Command, sigs []*types.Signature) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tArch\tCategories\n")
	fmt.Fprintf(w, "--\t----\t----\t----------\n")

	for _, s := range sigs {
		arch := s.Arch
		if arch == "" {
			arch = "any"
		}
		categories := ""
		if len(s.Categories) > 0 {
			categories = s.Categories[0]
			if len(s.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(s.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, arch, categories)
	}

	return nil
}
