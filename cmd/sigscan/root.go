package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "sigscan",
	Short: "sigscan - byte-signature scanner for executable images and process memory",
	Long: `sigscan locates code and data in executables, raw memory dumps and live
processes using compact byte signatures with wildcards, byte sets,
back-references and named records.

Each hit reports the values of the signature's records: addresses,
relative call targets and integers read from the matched bytes.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(signaturesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mergeCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// stderrLogger writes diagnostics to a writer, one line per message.
type stderrLogger struct {
	w io.Writer
}

func (l stderrLogger) Log(format string, args ...interface{}) {
	fmt.Fprintf(l.w, "[debug] "+format+"\n", args...)
}

// logger returns the diagnostics logger selected by -v.
func logger() pattern.Logger {
	if verbose && !quiet {
		return stderrLogger{w: os.Stderr}
	}
	return pattern.NoopLogger{}
}

// warnings returns where non-fatal warnings go; -q silences them.
func warnings(cmd *cobra.Command) io.Writer {
	if quiet {
		return io.Discard
	}
	return cmd.ErrOrStderr()
}
