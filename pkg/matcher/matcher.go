package matcher

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/memory"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Matcher scans address spaces for signature hits.
type Matcher interface {
	// Match runs every loaded signature against the target.
	// Hits are returned in signature order, at most one per signature.
	Match(ctx context.Context, target Target) ([]*types.Hit, error)

	// Close releases resources.
	Close() error
}

// Target is one address space to scan.
type Target struct {
	ImageID types.ImageID
	Memory  pattern.Memory
	Regions []pattern.Region

	// Modules restricts signatures with a Module to regions whose name
	// contains it. Set for process targets, where regions are named after
	// the mapped file.
	Modules bool
}

// NewTarget builds a Target from an address space that lists its own
// regions.
func NewTarget(id types.ImageID, space memory.Space, modules bool) (Target, error) {
	regions, err := space.Regions()
	if err != nil {
		return Target{}, fmt.Errorf("listing regions: %w", err)
	}
	return Target{ImageID: id, Memory: space, Regions: regions, Modules: modules}, nil
}

// Config for matcher initialization.
type Config struct {
	// Signatures to compile and load into the matcher
	Signatures []*types.Signature

	// Workers bounds concurrent signature scans (0 = NumCPU)
	Workers int

	// Prefilter skips signatures whose anchor literal is absent from a region
	Prefilter bool

	// Disassemble attaches x86 disassembly of the match site to each hit
	Disassemble bool

	// ContextBytes is the number of bytes captured before and after a hit
	// (0 = DefaultContextBytes, negative = none)
	ContextBytes int

	// Logger receives compile and scan diagnostics (nil = discard)
	Logger pattern.Logger

	// Warnings receives non-fatal per-signature warnings (nil = discard)
	Warnings io.Writer
}

// DefaultContextBytes is the snippet context captured around a hit.
const DefaultContextBytes = 16

// New compiles every signature and returns a Matcher.
func New(cfg Config) (Matcher, error) {
	return NewEngine(cfg)
}

// compiled is a signature ready to scan.
type compiled struct {
	sig          *types.Signature
	pat          *pattern.Pattern
	structuralID string
}

func compileSignatures(sigs []*types.Signature, logger pattern.Logger) ([]compiled, error) {
	out := make([]compiled, 0, len(sigs))
	for _, sig := range sigs {
		p, err := sig.Compile(pattern.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		sid, err := types.PatternStructuralID(p)
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", sig.ID, err)
		}
		out = append(out, compiled{sig: sig, pat: p, structuralID: sid})
	}
	return out, nil
}

func workerCount(n, jobs int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// moduleRegions keeps the regions whose name contains module.
func moduleRegions(regions []pattern.Region, module string) []pattern.Region {
	var out []pattern.Region
	for _, r := range regions {
		if strings.Contains(r.Name, module) {
			out = append(out, r)
		}
	}
	return out
}
