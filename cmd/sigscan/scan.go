package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/enum"
	"github.com/praetorian-inc/sigscan/pkg/matcher"
	"github.com/praetorian-inc/sigscan/pkg/memory"
	"github.com/praetorian-inc/sigscan/pkg/sarif"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	scanSignaturesPath    string
	scanSignatureText     string
	scanSignaturesInclude string
	scanSignaturesExclude string
	scanOutputPath        string
	scanOutputFormat      string
	scanMaxFileSize       int64
	scanIncludeHidden     bool
	scanExtractArchives   bool
	scanGitHistory        bool
	scanIncremental       bool
	scanStoreImages       bool
	scanWorkers           int
	scanPrefilter         bool
	scanDisassemble       bool
	scanRaw               bool
	scanBase              string
	scanPointerSize       int
	scanPID               int
	scanModule            string
	scanAWSRegion         string
	scanAWSEndpoint       string
	scanAWSRoleARN        string
)

var scanCmd = &cobra.Command{
	Use:   "scan [target]",
	Short: "Scan images or process memory for signatures",
	Long: `Scan a file, directory, archive, s3://bucket/key or azblob://container/blob
target, or a live process with --pid. With --git, a directory target is scanned
through its repository history instead of its working tree.

Executables (ELF, PE, Mach-O) are scanned section by section at their
virtual addresses; anything else is scanned as a raw dump at --base.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanSignaturesPath, "signatures", "", "Path to a signatures file, bundle or directory")
	scanCmd.Flags().StringVar(&scanSignatureText, "signature", "", "Inline signature text ('/' separates several)")
	scanCmd.Flags().StringVar(&scanSignaturesInclude, "signatures-include", "", "Include signatures matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanSignaturesExclude, "signatures-exclude", "", "Exclude signatures matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "sigscan.db", "Output datastore (SQLite path, postgres:// DSN or :memory:)")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 256*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVar(&scanExtractArchives, "extract-archives", false, "Scan the members of .zip and .7z archives")
	scanCmd.Flags().BoolVar(&scanGitHistory, "git", false, "Scan every blob in the target repository's git history")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned images")
	scanCmd.Flags().BoolVar(&scanStoreImages, "store-images", false, "Treat --output as a datastore directory and keep a copy of every scanned image")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Concurrent signature scans (0 = number of CPUs)")
	scanCmd.Flags().BoolVar(&scanPrefilter, "prefilter", true, "Skip signatures whose anchor bytes are absent from a region")
	scanCmd.Flags().BoolVar(&scanDisassemble, "disassemble", false, "Attach x86 disassembly of each hit")
	scanCmd.Flags().BoolVar(&scanRaw, "raw", false, "Treat every input as a raw dump")
	scanCmd.Flags().StringVar(&scanBase, "base", "0", "Load address of raw dumps (decimal or 0x hex)")
	scanCmd.Flags().IntVar(&scanPointerSize, "pointer-size", 8, "Pointer size of raw dumps: 4 or 8")
	scanCmd.Flags().IntVar(&scanPID, "pid", 0, "Scan the executable mappings of a live process")
	scanCmd.Flags().StringVar(&scanModule, "module", "", "With --pid, only scan mappings whose path contains this")
	scanCmd.Flags().StringVar(&scanAWSRegion, "aws-region", "", "Region for s3:// targets")
	scanCmd.Flags().StringVar(&scanAWSEndpoint, "aws-endpoint", "", "Custom S3 endpoint (path-style)")
	scanCmd.Flags().StringVar(&scanAWSRoleARN, "aws-role-arn", "", "IAM role to assume for s3:// targets")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanPID == 0 && len(args) == 0 {
		return fmt.Errorf("a target or --pid is required")
	}
	if scanPID != 0 && len(args) > 0 {
		return fmt.Errorf("--pid cannot be combined with a target")
	}

	base, err := strconv.ParseUint(scanBase, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid --base %q: %w", scanBase, err)
	}
	if scanPointerSize != 4 && scanPointerSize != 8 {
		return fmt.Errorf("invalid --pointer-size %d: must be 4 or 8", scanPointerSize)
	}

	sigs, err := loadSignatures(scanSignaturesPath, scanSignatureText, scanSignaturesInclude, scanSignaturesExclude)
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	m, err := matcher.New(matcher.Config{
		Signatures:  sigs,
		Workers:     scanWorkers,
		Prefilter:   scanPrefilter,
		Disassemble: scanDisassemble,
		Logger:      logger(),
		Warnings:    warnings(cmd),
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	s, images, err := openOutput(scanOutputPath, scanStoreImages)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, sig := range sigs {
		if err := s.AddSignature(sig); err != nil {
			return fmt.Errorf("storing signature: %w", err)
		}
	}

	ctx := context.Background()
	sc := &scanSession{matcher: m, store: s, imageStore: images}
	if scanPID != 0 {
		err = sc.scanProcess(ctx, scanPID, scanModule)
	} else {
		err = sc.scanTarget(ctx, args[0], memory.Config{
			Raw:         scanRaw,
			Base:        base,
			PointerSize: scanPointerSize,
		})
	}
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	findings, err := store.Findings(s)
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}

	// json and sarif keep stdout machine-readable
	summary := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		summary = cmd.ErrOrStderr()
	}
	if !quiet {
		if scanIncremental {
			fmt.Fprintf(summary, "Scan complete: %d images, %d hits, %d findings (%d images skipped)\n", sc.images, sc.hits, len(findings), sc.skipped)
		} else {
			fmt.Fprintf(summary, "Scan complete: %d images, %d hits, %d findings\n", sc.images, sc.hits, len(findings))
		}
		fmt.Fprintf(summary, "Results stored in: %s\n", scanOutputPath)
	}

	switch scanOutputFormat {
	case "json":
		hits, err := s.GetAllHits()
		if err != nil {
			return fmt.Errorf("retrieving hits: %w", err)
		}
		return outputHits(cmd, hits)
	case "sarif":
		hits, err := s.GetAllHits()
		if err != nil {
			return fmt.Errorf("retrieving hits: %w", err)
		}
		return outputSARIF(cmd, s, sigs, hits)
	case "human":
		return outputFindings(cmd, findings)
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}
}

// scanSession matches images as they are enumerated and stores the results.
type scanSession struct {
	matcher    matcher.Matcher
	store      store.Store
	imageStore *datastore.ImageStore // nil unless --store-images

	mu      sync.Mutex
	images  int
	hits    int
	skipped int
}

func (sc *scanSession) scanTarget(ctx context.Context, target string, cfg memory.Config) error {
	e, err := enum.ForTarget(ctx, target, enum.Config{
		IncludeHidden:   scanIncludeHidden,
		MaxFileSize:     scanMaxFileSize,
		ExtractArchives: scanExtractArchives,
		Git:             scanGitHistory,
	}, enum.S3Config{
		Region:   scanAWSRegion,
		Endpoint: scanAWSEndpoint,
		RoleARN:  scanAWSRoleARN,
	})
	if err != nil {
		return fmt.Errorf("creating enumerator: %w", err)
	}

	return e.Enumerate(ctx, func(content []byte, id types.ImageID, prov types.Provenance) error {
		// the store and counters are shared across readers
		sc.mu.Lock()
		defer sc.mu.Unlock()

		if scanIncremental {
			exists, err := sc.store.ImageExists(id)
			if err != nil {
				return fmt.Errorf("checking image: %w", err)
			}
			if exists {
				sc.skipped++
				return sc.store.AddProvenance(id, prov)
			}
		}

		if sc.imageStore != nil {
			if _, err := sc.imageStore.Store(content); err != nil {
				return err
			}
		}

		img, err := memory.Load(content, cfg)
		if err != nil {
			return fmt.Errorf("loading %s: %w", prov.Path(), err)
		}
		t, err := matcher.NewTarget(id, img, false)
		if err != nil {
			return err
		}
		return sc.record(ctx, t, int64(len(content)), img.Format, prov)
	})
}

func (sc *scanSession) scanProcess(ctx context.Context, pid int, module string) error {
	proc, err := memory.OpenProcess(pid, module)
	if err != nil {
		return err
	}

	prov := types.ProcessProvenance{PID: pid, Module: module}
	// process memory changes under us, so the image is named, not hashed
	id := types.ComputeImageID([]byte(prov.Path()))
	t, err := matcher.NewTarget(id, proc, true)
	if err != nil {
		return err
	}
	return sc.record(ctx, t, 0, "process", prov)
}

func (sc *scanSession) record(ctx context.Context, t matcher.Target, size int64, format string, prov types.Provenance) error {
	hits, err := sc.matcher.Match(ctx, t)
	if err != nil {
		return fmt.Errorf("matching %s: %w", prov.Path(), err)
	}

	if err := sc.store.AddImage(t.ImageID, size, format); err != nil {
		return fmt.Errorf("storing image: %w", err)
	}
	if err := sc.store.AddProvenance(t.ImageID, prov); err != nil {
		return fmt.Errorf("storing provenance: %w", err)
	}
	for _, h := range hits {
		if err := sc.store.AddHit(h); err != nil {
			return fmt.Errorf("storing hit: %w", err)
		}
	}

	sc.images++
	sc.hits += len(hits)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// openOutput opens the result store. With storeImages the path is a
// datastore directory that also keeps image copies.
func openOutput(path string, storeImages bool) (store.Store, *datastore.ImageStore, error) {
	if !storeImages {
		s, err := store.New(store.Config{Path: path})
		if err != nil {
			return nil, nil, fmt.Errorf("creating store: %w", err)
		}
		return s, nil, nil
	}

	if path == ":memory:" || store.IsPostgresDSN(path) {
		return nil, nil, fmt.Errorf("--store-images requires a directory for --output")
	}
	ds, err := datastore.Open(path, datastore.Options{StoreImages: true})
	if err != nil {
		return nil, nil, fmt.Errorf("opening datastore: %w", err)
	}
	return ds.Store, ds.Images, nil
}

func loadSignatures(path, inline, include, exclude string) ([]*types.Signature, error) {
	loader := signature.NewLoader()

	var sigs []*types.Signature
	var err error

	switch {
	case inline != "":
		sigs, err = signature.FromText(inline)
	case path != "":
		sigs, err = loader.LoadPath(path)
	default:
		sigs, err = loader.LoadBuiltin()
	}
	if err != nil {
		return nil, err
	}

	if include != "" || exclude != "" {
		config := signature.FilterConfig{
			Include: signature.ParsePatterns(include),
			Exclude: signature.ParsePatterns(exclude),
		}
		sigs, err = signature.Filter(sigs, config)
		if err != nil {
			return nil, fmt.Errorf("filtering signatures: %w", err)
		}
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures selected")
	}

	return sigs, nil
}

func outputHits(cmd *cobra.Command, hits []*types.Hit) error {
	if hits == nil {
		hits = []*types.Hit{}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(hits)
}

func outputFindings(cmd *cobra.Command, findings []*types.Finding) error {
	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}

	fmt.Fprintf(out, "\nFindings:\n")
	for i, f := range findings {
		fmt.Fprintf(out, "%d. Signature: %s (%d hits)\n", i+1, f.SignatureID, len(f.Hits))
		for _, e := range f.Report.Entries() {
			fmt.Fprintf(out, "   %s = %s\n", e.Name, e.Value)
		}
	}
	return nil
}

// outputSARIF writes hits as a SARIF 2.1.0 log.
func outputSARIF(cmd *cobra.Command, s store.Store, sigs []*types.Signature, hits []*types.Hit) error {
	report := sarif.NewReport()
	for _, sig := range sigs {
		report.AddSignature(sig)
	}

	paths := make(map[types.ImageID]string)
	for _, h := range hits {
		path, ok := paths[h.ImageID]
		if !ok {
			prov, err := s.GetProvenance(h.ImageID)
			if err != nil || prov == nil {
				path = h.ImageID.Hex()
			} else {
				path = prov.Path()
			}
			paths[h.ImageID] = path
		}
		report.AddResult(h, path)
	}

	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}
