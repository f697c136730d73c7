// Package sigscan finds code and data in executable images and memory dumps
// using byte signatures.
//
// A signature is a byte pattern with wildcards, alternatives and save
// directives that capture addresses and values as the pattern matches:
//
//	<A fn> 55 48 89 e5 48 83 ec . e8 <F call> .{4}
//
// # Basic Usage
//
// Create a scanner with builtin signatures and scan an image:
//
//	scanner, err := sigscan.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	hits, err := scanner.ScanFile("/usr/bin/ls")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, hit := range hits {
//	    fmt.Printf("%s at %#x\n", hit.SignatureID, hit.Location.Address.Start)
//	}
//
// # Custom Signatures
//
//	sigs, err := sigscan.ParseSignatures("<A fn> 55 48 89 e5")
//	scanner, err := sigscan.NewScanner(sigscan.WithSignatures(sigs))
package sigscan

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/praetorian-inc/sigscan/pkg/matcher"
	"github.com/praetorian-inc/sigscan/pkg/memory"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Re-export commonly used types so callers need only this package.
type (
	// Hit is one signature match with its captured report.
	Hit = types.Hit

	// Signature is a named pattern with metadata and examples.
	Signature = types.Signature

	// Report holds the values a pattern saved while matching.
	Report = pattern.Report

	// Location describes where a hit was found.
	Location = types.Location

	// Snippet holds the bytes around a hit.
	Snippet = types.Snippet
)

// Scanner runs a fixed set of signatures against images.
type Scanner struct {
	matcher matcher.Matcher
	config  *scannerConfig
	mu      sync.RWMutex
}

type scannerConfig struct {
	signatures  []*types.Signature
	logger      pattern.Logger
	workers     int
	prefilter   bool
	disassemble bool
	raw         bool
	base        uint64
	pointerSize int
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithSignatures uses custom signatures instead of the builtin set.
func WithSignatures(sigs []*Signature) Option {
	return func(c *scannerConfig) {
		c.signatures = sigs
	}
}

// WithLogger receives compiler and engine diagnostics.
func WithLogger(l pattern.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = l
	}
}

// WithWorkers bounds concurrent signature scans. Default is NumCPU.
func WithWorkers(n int) Option {
	return func(c *scannerConfig) {
		c.workers = n
	}
}

// WithPrefilter toggles skipping regions that lack a signature's anchor
// literal. Enabled by default.
func WithPrefilter(enabled bool) Option {
	return func(c *scannerConfig) {
		c.prefilter = enabled
	}
}

// WithDisassembly attaches disassembly of the match site to each hit.
func WithDisassembly() Option {
	return func(c *scannerConfig) {
		c.disassemble = true
	}
}

// WithRawBase maps every scanned buffer flat at base instead of parsing
// executable headers.
func WithRawBase(base uint64, pointerSize int) Option {
	return func(c *scannerConfig) {
		c.raw = true
		c.base = base
		c.pointerSize = pointerSize
	}
}

// NewScanner creates a Scanner.
//
// By default the scanner loads the builtin signatures, runs NumCPU workers
// with the prefilter enabled, and parses ELF, PE and Mach-O headers,
// falling back to a raw mapping at address 0.
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{prefilter: true}
	for _, opt := range opts {
		opt(config)
	}

	if config.signatures == nil {
		sigs, err := LoadBuiltinSignatures()
		if err != nil {
			return nil, err
		}
		config.signatures = sigs
	}

	m, err := matcher.New(matcher.Config{
		Signatures:  config.signatures,
		Workers:     config.workers,
		Prefilter:   config.prefilter,
		Disassemble: config.disassemble,
		Logger:      config.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	return &Scanner{matcher: m, config: config}, nil
}

// ScanBytes scans an in-memory image.
func (s *Scanner) ScanBytes(content []byte) ([]*Hit, error) {
	return s.ScanBytesWithContext(context.Background(), content)
}

// ScanBytesWithContext scans an in-memory image, stopping early when ctx
// is cancelled.
func (s *Scanner) ScanBytesWithContext(ctx context.Context, content []byte) ([]*Hit, error) {
	img, err := memory.Load(content, memory.Config{
		Raw:         s.config.raw,
		Base:        s.config.base,
		PointerSize: s.config.pointerSize,
	})
	if err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}
	return s.scanSpace(ctx, types.ComputeImageID(content), img, false)
}

// ScanFile reads and scans an image file.
func (s *Scanner) ScanFile(path string) ([]*Hit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytes(content)
}

// ScanProcess scans the readable mappings of a live process. A non-empty
// module restricts the scan to mappings whose path contains it.
func (s *Scanner) ScanProcess(ctx context.Context, pid int, module string) ([]*Hit, error) {
	proc, err := memory.OpenProcess(pid, module)
	if err != nil {
		return nil, err
	}

	prov := types.ProcessProvenance{PID: pid, Module: module}
	return s.scanSpace(ctx, types.ComputeImageID([]byte(prov.Path())), proc, true)
}

func (s *Scanner) scanSpace(ctx context.Context, id types.ImageID, space memory.Space, modules bool) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, err := matcher.NewTarget(id, space, modules)
	if err != nil {
		return nil, err
	}
	return s.matcher.Match(ctx, target)
}

// Close releases scanner resources.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.matcher != nil {
		return s.matcher.Close()
	}
	return nil
}

// SignatureCount returns the number of loaded signatures.
func (s *Scanner) SignatureCount() int {
	return len(s.config.signatures)
}

// Signatures returns a copy of the loaded signatures.
func (s *Scanner) Signatures() []*Signature {
	sigs := make([]*Signature, len(s.config.signatures))
	copy(sigs, s.config.signatures)
	return sigs
}

// LoadBuiltinSignatures returns the embedded signature set.
func LoadBuiltinSignatures() ([]*Signature, error) {
	sigs, err := signature.NewLoader().LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("loading builtin signatures: %w", err)
	}
	return sigs, nil
}

// LoadSignaturesFromFile loads signatures from a YAML file, bundle or
// directory.
func LoadSignaturesFromFile(path string) ([]*Signature, error) {
	return signature.NewLoader().LoadPath(path)
}

// ParseSignatures turns '/'-separated signature text into signatures named
// inline.1, inline.2 and so on.
func ParseSignatures(text string) ([]*Signature, error) {
	return signature.FromText(text)
}
