package scanner

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/praetorian-inc/sigscan/pkg/matcher"
	"github.com/praetorian-inc/sigscan/pkg/memory"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

var (
	// cachedBuiltin holds builtin signatures loaded once per process
	cachedBuiltin    []*types.Signature
	cachedBuiltinErr error
	cacheOnce        sync.Once
)

// loadBuiltinCached loads builtin signatures once and caches them
func loadBuiltinCached() ([]*types.Signature, error) {
	cacheOnce.Do(func() {
		cachedBuiltin, cachedBuiltinErr = signature.NewLoader().LoadBuiltin()
	})
	return cachedBuiltin, cachedBuiltinErr
}

// Core wraps the matcher and store for scanning operations
type Core struct {
	matcher matcher.Matcher
	store   store.Store
	logger  DebugLogger
	count   int
}

// NewCore creates a new Core scanner.
// signatures can be:
// - "" or "builtin" to load builtin signatures (cached)
// - a YAML signatures document ("signatures: [...]")
// - '/'-separated signature text
func NewCore(signatures string, logger DebugLogger) (*Core, error) {
	if logger == nil {
		logger = NoopLogger{}
	}

	logger.Log("NewCore starting...")
	sigs, err := parseSignatures(signatures, logger)
	if err != nil {
		logger.Log("loading signatures failed: %v", err)
		return nil, err
	}

	logger.Log("Creating matcher with %d signatures...", len(sigs))
	m, err := matcher.New(matcher.Config{
		Signatures: sigs,
		Prefilter:  true,
		Logger:     logger,
	})
	if err != nil {
		logger.Log("matcher.New failed: %v", err)
		return nil, err
	}

	s, err := store.New(store.Config{Path: ":memory:"})
	if err != nil {
		logger.Log("store.New failed: %v", err)
		m.Close()
		return nil, err
	}
	for _, sig := range sigs {
		if err := s.AddSignature(sig); err != nil {
			m.Close()
			s.Close()
			return nil, err
		}
	}

	logger.Log("NewCore complete")
	return &Core{
		matcher: m,
		store:   s,
		logger:  logger,
		count:   len(sigs),
	}, nil
}

func parseSignatures(text string, logger DebugLogger) ([]*types.Signature, error) {
	switch trimmed := strings.TrimSpace(text); {
	case trimmed == "" || trimmed == "builtin":
		logger.Log("Loading builtin signatures (cached)...")
		return loadBuiltinCached()
	case strings.HasPrefix(trimmed, "signatures:"):
		logger.Log("Parsing signatures YAML...")
		return signature.NewLoader().LoadSignatures([]byte(text))
	default:
		logger.Log("Parsing inline signatures...")
		return signature.FromText(text)
	}
}

// Signatures returns the number of loaded signatures.
func (c *Core) Signatures() int {
	return c.count
}

// Scan scans a single buffer
func (c *Core) Scan(item ScanItem) (*ScanResult, error) {
	return c.ScanContext(context.Background(), item)
}

// ScanContext is Scan with cancellation.
func (c *Core) ScanContext(ctx context.Context, item ScanItem) (*ScanResult, error) {
	img, err := memory.Load(item.Data, memory.Config{
		Raw:         item.Raw,
		Base:        item.Base,
		PointerSize: item.PointerSize,
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", item.Source, err)
	}

	id := types.ComputeImageID(item.Data)
	target, err := matcher.NewTarget(id, img, false)
	if err != nil {
		return nil, err
	}
	hits, err := c.matcher.Match(ctx, target)
	if err != nil {
		return nil, err
	}

	// Store image, provenance and hits
	if err := c.store.AddImage(id, int64(len(item.Data)), img.Format); err != nil {
		return nil, err
	}
	prov := types.ExtendedProvenance{Payload: map[string]interface{}{"source": item.Source}}
	if err := c.store.AddProvenance(id, prov); err != nil {
		return nil, err
	}
	for _, h := range hits {
		if err := c.store.AddHit(h); err != nil {
			return nil, err
		}
	}

	if hits == nil {
		hits = []*types.Hit{}
	}
	return &ScanResult{
		Source:  item.Source,
		ImageID: id,
		Format:  img.Format,
		Hits:    hits,
	}, nil
}

// ScanBatch scans multiple buffers
func (c *Core) ScanBatch(items []ScanItem) (*BatchScanResult, error) {
	results := []ScanResult{}
	total := 0

	for _, item := range items {
		result, err := c.Scan(item)
		if err != nil {
			// Skip items that fail to scan
			c.logger.Log("scan %s failed: %v", item.Source, err)
			continue
		}
		results = append(results, *result)
		total += len(result.Hits)
	}

	return &BatchScanResult{
		Results: results,
		Total:   total,
	}, nil
}

// Compile compiles one signature and returns its atom.
func (c *Core) Compile(sig string) (*CompileResult, error) {
	return CompileSignature(sig, c.logger)
}

// CompileSignature compiles sig and describes the result.
func CompileSignature(sig string, logger DebugLogger) (*CompileResult, error) {
	if logger == nil {
		logger = NoopLogger{}
	}
	p, err := pattern.Compile(sig, pattern.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	atom, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sid, err := types.PatternStructuralID(p)
	if err != nil {
		return nil, err
	}

	records := []RecordInfo{}
	for _, r := range p.Records() {
		records = append(records, RecordInfo{Name: r.Name, Kind: r.Kind.String(), Relative: r.Relative})
	}
	return &CompileResult{
		Signature:    sig,
		Canonical:    p.String(),
		Atom:         hex.EncodeToString(atom),
		StructuralID: sid,
		Records:      records,
	}, nil
}

// Hits returns every hit stored by this core.
func (c *Core) Hits() ([]*types.Hit, error) {
	return c.store.GetAllHits()
}

// Close releases scanner resources
func (c *Core) Close() {
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// GetBuiltinSignatures returns the built-in signatures (cached)
func GetBuiltinSignatures() ([]*types.Signature, error) {
	return loadBuiltinCached()
}
