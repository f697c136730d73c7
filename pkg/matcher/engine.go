package matcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/praetorian-inc/sigscan/pkg/disasm"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/prefilter"
	"github.com/praetorian-inc/sigscan/pkg/types"
	"golang.org/x/sync/errgroup"
)

// maxSnippet caps the matched bytes copied into a hit.
const maxSnippet = 4096

// regionBytes is implemented by address spaces that can hand out a whole
// region at once, which lets the prefilter look at it.
type regionBytes interface {
	Bytes(r pattern.Region) ([]byte, bool)
}

// Engine is the pattern-engine Matcher. It is safe for concurrent use.
type Engine struct {
	sigs        []compiled
	pf          *prefilter.Prefilter
	workers     int
	disassemble bool
	context     int
	logger      pattern.Logger
	warn        io.Writer
}

// NewEngine compiles every signature. A signature that fails to compile
// fails the whole matcher, naming the signature.
func NewEngine(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = pattern.NoopLogger{}
	}
	warn := cfg.Warnings
	if warn == nil {
		warn = io.Discard
	}

	sigs, err := compileSignatures(cfg.Signatures, logger)
	if err != nil {
		return nil, fmt.Errorf("compiling signatures: %w", err)
	}

	e := &Engine{
		sigs:        sigs,
		workers:     cfg.Workers,
		disassemble: cfg.Disassemble,
		context:     cfg.ContextBytes,
		logger:      logger,
		warn:        warn,
	}
	if e.context == 0 {
		e.context = DefaultContextBytes
	}
	if e.context < 0 {
		e.context = 0
	}

	if cfg.Prefilter {
		pats := make([]*pattern.Pattern, len(sigs))
		for i, c := range sigs {
			pats[i] = c.pat
		}
		e.pf = prefilter.New(pats)
		logger.Log("prefilter: %d of %d signatures anchored", e.pf.Anchored(), len(sigs))
	}
	return e, nil
}

// Len returns the number of loaded signatures.
func (e *Engine) Len() int {
	return len(e.sigs)
}

// Match implements Matcher.
func (e *Engine) Match(ctx context.Context, t Target) ([]*types.Hit, error) {
	res, err := e.MatchWithStats(ctx, t)
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// MatchWithStats is Match plus per-signature statistics.
func (e *Engine) MatchWithStats(ctx context.Context, t Target) (*MatchResult, error) {
	if t.Memory == nil {
		return nil, fmt.Errorf("target has no memory")
	}

	allowed := e.candidates(t)
	hits := make([]*types.Hit, len(e.sigs))
	stats := make([]SignatureStat, len(e.sigs))

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int, len(e.sigs))
	for i := range e.sigs {
		jobs <- i
	}
	close(jobs)

	for w := 0; w < workerCount(e.workers, len(e.sigs)); w++ {
		g.Go(func() error {
			// One State per worker, reused across signatures.
			st := &pattern.State{}
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				hits[i], stats[i] = e.scanOne(t, i, allowed, st)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &MatchResult{Stats: stats, Summary: summarize(stats)}
	for _, h := range hits {
		if h != nil {
			out.Hits = append(out.Hits, h)
		}
	}
	return out, nil
}

// Close implements Matcher.
func (e *Engine) Close() error {
	return nil
}

// candidates returns, per region, which signatures may match there. A nil
// entry means every signature is a candidate.
func (e *Engine) candidates(t Target) [][]bool {
	allowed := make([][]bool, len(t.Regions))
	if e.pf == nil {
		return allowed
	}
	src, ok := t.Memory.(regionBytes)
	if !ok {
		return allowed
	}
	for ri, r := range t.Regions {
		data, ok := src.Bytes(r)
		if !ok {
			e.logger.Log("prefilter: region %s not fully readable", r)
			continue
		}
		set := make([]bool, len(e.sigs))
		for _, i := range e.pf.Candidates(data) {
			set[i] = true
		}
		allowed[ri] = set
	}
	return allowed
}

// scanOne runs signature i over the target's regions in order, stopping at
// the first region that yields a non-empty report.
func (e *Engine) scanOne(t Target, i int, allowed [][]bool, st *pattern.State) (*types.Hit, SignatureStat) {
	c := e.sigs[i]
	start := time.Now()
	stat := SignatureStat{SignatureID: c.sig.ID, Status: SignatureSkipped}

	regions := t.Regions
	if t.Modules && c.sig.Module != "" {
		regions = moduleRegions(regions, c.sig.Module)
		if len(regions) == 0 {
			fmt.Fprintf(e.warn, "[warn] signature %s: no region matches module %q\n", c.sig.ID, c.sig.Module)
		}
	}

	var hit *types.Hit
	for _, r := range regions {
		if !e.eligible(t.Regions, allowed, r, i) {
			continue
		}
		stat.Regions++
		stat.Status = SignatureMissed
		res, ok := c.pat.Find(t.Memory, r, st)
		if ok && !res.Report.Empty() {
			hit = e.buildHit(t, c, res)
			stat.Status = SignatureHit
			break
		}
	}
	stat.Duration = time.Since(start)
	return hit, stat
}

// eligible looks up r's prefilter verdict for signature i.
func (e *Engine) eligible(all []pattern.Region, allowed [][]bool, r pattern.Region, i int) bool {
	for ri, cand := range all {
		if cand == r {
			return allowed[ri] == nil || allowed[ri][i]
		}
	}
	return true
}

func (e *Engine) buildHit(t Target, c compiled, res pattern.Result) *types.Hit {
	hit := &types.Hit{
		ImageID:       t.ImageID,
		SignatureID:   c.sig.ID,
		SignatureName: c.sig.Name,
		Region:        res.Region.Name,
		Location: types.Location{
			Offset: types.OffsetSpan{
				Start: int64(res.Offset),
				End:   int64(res.Offset + res.Length),
			},
			Address: types.AddressSpan{
				Start: res.Address,
				End:   res.Address + res.Length,
			},
		},
		Report: res.Report,
	}
	hit.StructuralID = hit.ComputeStructuralID(c.structuralID)
	hit.FindingID = types.ComputeFindingID(c.structuralID, res.Report)
	hit.Snippet = snippet(t.Memory, res, e.context)

	if e.disassemble {
		lines, err := disassemble(t.Memory, res)
		if err != nil {
			fmt.Fprintf(e.warn, "[warn] signature %s: disassembly at %#x: %v\n", c.sig.ID, res.Address, err)
		}
		hit.Disassembly = lines
	}
	return hit
}

// === HELPERS ===

// snippet copies the matched bytes and up to n bytes of context on each
// side, clamped to the region.
func snippet(mem pattern.Memory, res pattern.Result, n int) types.Snippet {
	var s types.Snippet
	r := res.Region
	end := res.Address + res.Length

	length := res.Length
	if length > maxSnippet {
		length = maxSnippet
	}
	if b, ok := mem.Read(res.Address, int(length)); ok {
		s.Matching = append([]byte{}, b...)
	}

	if n <= 0 {
		return s
	}
	before := res.Address - r.Start
	if before > uint64(n) {
		before = uint64(n)
	}
	if b, ok := mem.Read(res.Address-before, int(before)); ok && len(b) > 0 {
		s.Before = append([]byte{}, b...)
	}
	after := uint64(0)
	if end < r.End {
		after = r.End - end
	}
	if after > uint64(n) {
		after = uint64(n)
	}
	if b, ok := mem.Read(end, int(after)); ok && len(b) > 0 {
		s.After = append([]byte{}, b...)
	}
	return s
}

// disassemble decodes the instructions covering the match. Up to one
// maximum-length instruction past the match is read so the last one decodes
// whole.
func disassemble(mem pattern.Memory, res pattern.Result) ([]string, error) {
	d, err := disasm.New(disasm.ConfigForPointerSize(mem.PointerSize()))
	if err != nil {
		return nil, err
	}

	span := int(res.Length)
	if span == 0 {
		span = 1
	}
	avail := res.Region.End - res.Address
	n := uint64(span + disasm.MaxInstLen)
	if n > avail {
		n = avail
	}
	for ; n > 0; n-- {
		if code, ok := mem.Read(res.Address, int(n)); ok {
			return d.Lines(code, res.Address, span), nil
		}
	}
	return nil, fmt.Errorf("match bytes unreadable")
}
