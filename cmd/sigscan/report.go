package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	reportDatastore string
	reportFormat    string
	reportColor     string
	reportMaxHits   int
)

// maxSnippetBytes bounds the bytes printed around each hit.
const maxSnippetBytes = 48

// styles holds color formatters for human output.
type styles struct {
	findingHeading *color.Color
	id             *color.Color
	signatureName  *color.Color
	heading        *color.Color
	match          *color.Color
	metadata       *color.Color
	asm            *color.Color
}

// newStyles creates color formatters for report output.
// enabled=false honors --color=never and NO_COLOR.
func newStyles(enabled bool) *styles {
	s := &styles{
		findingHeading: color.New(color.Bold, color.FgHiWhite),
		id:             color.New(color.FgHiGreen),
		signatureName:  color.New(color.Bold, color.FgHiBlue),
		heading:        color.New(color.Bold),
		match:          color.New(color.FgYellow),
		metadata:       color.New(color.FgHiBlue),
		asm:            color.New(color.FgCyan),
	}

	if !enabled {
		for _, c := range []*color.Color{s.findingHeading, s.id, s.signatureName, s.heading, s.match, s.metadata, s.asm} {
			c.DisableColor()
		}
	}

	return s
}

// snippetParts holds hex-rendered snippet pieces for colored output.
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read hits from a datastore and output them grouped into findings",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "sigscan.db", "Datastore: SQLite path, directory holding datastore.db, or postgres:// DSN")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportMaxHits, "max-hits", 3, "Hits shown per finding in human output (0 = all)")
}

func runReport(cmd *cobra.Command, args []string) error {
	storePath, err := resolveDatastore(reportDatastore)
	if err != nil {
		return err
	}

	s, err := store.New(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	findings, err := store.Findings(s)
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}

	switch reportFormat {
	case "json":
		return outputReportJSON(cmd, findings)
	case "human":
		return outputReportHuman(cmd, s, findings)
	case "sarif":
		sigs, err := s.GetSignatures()
		if err != nil {
			return fmt.Errorf("retrieving signatures: %w", err)
		}
		hits, err := s.GetAllHits()
		if err != nil {
			return fmt.Errorf("retrieving hits: %w", err)
		}
		return outputSARIF(cmd, s, sigs, hits)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveDatastore checks that a datastore exists and maps a datastore
// directory to the database inside it.
func resolveDatastore(path string) (string, error) {
	if path == ":memory:" {
		return "", fmt.Errorf("cannot report from in-memory store")
	}
	if store.IsPostgresDSN(path) {
		return path, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("datastore not found: %s", path)
	}
	if info.IsDir() {
		return filepath.Join(path, datastore.DatabaseName), nil
	}
	return path, nil
}

// formatSnippetWithParts renders before/matching/after as hex, keeping at
// most maxLen bytes centered on the match.
func formatSnippetWithParts(before, matching, after []byte, maxLen int) snippetParts {
	total := len(before) + len(matching) + len(after)

	if total <= maxLen {
		return snippetParts{
			before:   hexBytes(before),
			matching: hexBytes(matching),
			after:    hexBytes(after),
		}
	}

	if len(matching) >= maxLen {
		return snippetParts{
			prefix:   "...",
			matching: hexBytes(matching[:maxLen]),
			suffix:   "...",
		}
	}

	half := (maxLen - len(matching)) / 2
	nb := min(half, len(before))
	na := min(maxLen-len(matching)-nb, len(after))
	// give unused room on the right back to the left
	nb = min(maxLen-len(matching)-na, len(before))

	parts := snippetParts{
		before:   hexBytes(before[len(before)-nb:]),
		matching: hexBytes(matching),
		after:    hexBytes(after[:na]),
	}
	if nb < len(before) {
		parts.prefix = "..."
	}
	if na < len(after) {
		parts.suffix = "..."
	}
	return parts
}

func hexBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return fmt.Sprintf("% x", b)
}

type reportFinding struct {
	ID            string
	SignatureID   string
	SignatureName string
	Report        json.RawMessage
	Hits          []*types.Hit
}

func outputReportJSON(cmd *cobra.Command, findings []*types.Finding) error {
	out := make([]reportFinding, 0, len(findings))
	for _, f := range findings {
		report, err := f.Report.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		rf := reportFinding{
			ID:          f.ID,
			SignatureID: f.SignatureID,
			Report:      report,
		}
		for _, h := range f.Hits {
			if rf.SignatureName == "" {
				rf.SignatureName = h.SignatureName
			}
			rf.Hits = append(rf.Hits, h)
		}
		out = append(out, rf)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// colorEnabled resolves --color against the terminal and NO_COLOR.
func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		f, ok := out.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return false
		}
		return os.Getenv("NO_COLOR") == ""
	}
}

func outputReportHuman(cmd *cobra.Command, s store.Store, findings []*types.Finding) error {
	out := cmd.OutOrStdout()
	enabled := colorEnabled(reportColor, out)
	color.NoColor = !enabled
	st := newStyles(enabled)

	if len(findings) == 0 {
		fmt.Fprintf(out, "No findings.\n")
		return nil
	}

	paths := make(map[types.ImageID][]types.Provenance)
	provenance := func(id types.ImageID) []types.Provenance {
		p, ok := paths[id]
		if !ok {
			p, _ = s.GetAllProvenance(id)
			paths[id] = p
		}
		return p
	}

	for i, f := range findings {
		fmt.Fprintf(out, "%s (%s %s)\n",
			st.findingHeading.Sprintf("Finding %d/%d", i+1, len(findings)),
			st.heading.Sprint("id"),
			st.id.Sprint(f.ID))

		name := f.SignatureID
		if len(f.Hits) > 0 && f.Hits[0].SignatureName != "" {
			name = f.Hits[0].SignatureName
		}
		fmt.Fprintf(out, "%s %s %s\n",
			st.heading.Sprint("Signature:"),
			st.signatureName.Sprint(name),
			st.metadata.Sprintf("(%s)", f.SignatureID))

		for _, e := range f.Report.Entries() {
			rel := ""
			if e.Value.Relative {
				rel = " (relative)"
			}
			fmt.Fprintf(out, "%s %s%s\n",
				st.heading.Sprintf("%s [%c]:", e.Name, e.Value.Kind.Flag()),
				st.match.Sprint(e.Value.String()),
				rel)
		}

		hits := f.Hits
		if reportMaxHits > 0 && len(hits) > reportMaxHits {
			fmt.Fprintf(out, "Showing %d/%d hits:\n", reportMaxHits, len(hits))
			hits = hits[:reportMaxHits]
		}

		for k, h := range hits {
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				st.heading.Sprintf("Hit %d/%d", k+1, len(f.Hits)),
				st.heading.Sprint("id"),
				st.id.Sprint(h.StructuralID))

			for _, p := range provenance(h.ImageID) {
				fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("Source:"), st.metadata.Sprint(p.Path()))
			}
			fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("Image:"), st.metadata.Sprint(h.ImageID.Hex()))
			fmt.Fprintf(out, "    %s %s %s %#x (+%#x, %d bytes)\n",
				st.heading.Sprint("Region:"),
				st.metadata.Sprint(h.Region),
				st.heading.Sprint("at"),
				h.Location.Address.Start,
				h.Location.Offset.Start,
				h.Location.Offset.Len())

			parts := formatSnippetWithParts(h.Snippet.Before, h.Snippet.Matching, h.Snippet.After, maxSnippetBytes)
			if parts.matching != "" || parts.before != "" || parts.after != "" {
				fmt.Fprintf(out, "\n        %s%s %s %s%s\n",
					parts.prefix,
					parts.before,
					st.match.Sprint(parts.matching),
					parts.after,
					parts.suffix)
			}

			for _, line := range h.Disassembly {
				fmt.Fprintf(out, "        %s\n", st.asm.Sprint(line))
			}
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}
