package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/signature"
)

var (
	compileBundle         string
	compileSignaturesPath string
	compileFormat         string
)

var compileCmd = &cobra.Command{
	Use:   "compile [signature]",
	Short: "Compile a signature to its atom",
	Long: `Compile one signature and print its atom as hex, or with --bundle write
every signature from --signatures (default: builtin) to a compressed bundle.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex|@bundle>",
	Short: "Decode an atom or a signature bundle",
	Long:  "Print the tokens of a hex-encoded atom, or every signature in a bundle file given as @path",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	compileCmd.Flags().StringVar(&compileBundle, "bundle", "", "Write a signature bundle to this path")
	compileCmd.Flags().StringVar(&compileSignaturesPath, "signatures", "", "Signatures file or directory for --bundle")
	compileCmd.Flags().StringVar(&compileFormat, "format", "hex", "Output format: hex, json")
}

func runCompile(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if compileBundle != "" {
		if len(args) > 0 {
			return fmt.Errorf("--bundle takes signatures from --signatures, not an argument")
		}
		sigs, err := loadSignatures(compileSignaturesPath, "", "", "")
		if err != nil {
			return fmt.Errorf("loading signatures: %w", err)
		}
		if err := signature.WriteBundleFile(compileBundle, sigs); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d signatures to %s\n", len(sigs), compileBundle)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a signature or --bundle is required")
	}

	res, err := scanner.CompileSignature(args[0], logger())
	if err != nil {
		return err
	}

	switch compileFormat {
	case "hex":
		fmt.Fprintln(out, res.Atom)
		return nil
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	default:
		return fmt.Errorf("unknown output format: %s", compileFormat)
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	arg := args[0]

	if path, ok := strings.CutPrefix(arg, "@"); ok {
		sigs, err := signature.ReadBundleFile(path)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintf(w, "ID\tName\tSignature\n")
		fmt.Fprintf(w, "--\t----\t---------\n")
		for _, s := range sigs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, s.Pattern)
		}
		return nil
	}

	atom, err := hex.DecodeString(strings.Join(strings.Fields(arg), ""))
	if err != nil {
		return fmt.Errorf("invalid atom hex: %w", err)
	}
	p, err := pattern.Decode(atom)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, p.String())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	for i, t := range p.Tokens() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, t.Kind, t)
	}
	return nil
}
