package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/serve"
)

// Set by -ldflags at release time.
var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "sigscan v%s\nCommit: %s\nServe protocol: %s\nGo version: %s\nOS/Arch: %s/%s\n",
		version, commit, serve.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
