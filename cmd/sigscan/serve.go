package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/serve"
)

var serveSignatures string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON server",
	Long: `Run sigscan as a long-lived streaming server that accepts scan and compile
requests on stdin and writes responses to stdout, one JSON object per line.

Request types: scan, scan_batch, compile, hits and close. An optional "id"
is echoed in the response. Signatures are compiled once at startup; the
server stops at end of input, on a close request, or on SIGTERM/SIGINT.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSignatures, "signatures", "builtin", "\"builtin\", a signatures YAML document, or '/'-separated signature text")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	core, err := scanner.NewCore(serveSignatures, logger())
	if err != nil {
		return err
	}
	defer core.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
