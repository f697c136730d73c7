package matcher

import (
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// DedupeMode controls how hits are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation deduplicates by exact location (signature + image + address span).
	// The same report at different addresses counts as separate hits.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent deduplicates by extracted report (signature + report).
	// The same report seen in many images counts as one finding.
	DedupeByContent
)

// Deduplicator removes duplicate hits based on configurable criteria.
type Deduplicator struct {
	seen map[string]bool
	mode DedupeMode
}

// NewDeduplicator creates a new deduplicator with location-based deduplication.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]bool),
		mode: DedupeByLocation,
	}
}

// NewContentDeduplicator creates a deduplicator keyed on the report.
func NewContentDeduplicator() *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]bool),
		mode: DedupeByContent,
	}
}

// SetMode changes the deduplication mode.
func (d *Deduplicator) SetMode(mode DedupeMode) {
	d.mode = mode
}

// IsDuplicate returns true if hit was already seen.
func (d *Deduplicator) IsDuplicate(h *types.Hit) bool {
	return d.seen[d.computeKey(h)]
}

// Add marks a hit as seen.
func (d *Deduplicator) Add(h *types.Hit) {
	d.seen[d.computeKey(h)] = true
}

// Filter returns the hits not seen before, marking them seen.
func (d *Deduplicator) Filter(hits []*types.Hit) []*types.Hit {
	var out []*types.Hit
	for _, h := range hits {
		if d.IsDuplicate(h) {
			continue
		}
		d.Add(h)
		out = append(out, h)
	}
	return out
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

// computeKey generates the deduplication key based on mode.
func (d *Deduplicator) computeKey(h *types.Hit) string {
	switch d.mode {
	case DedupeByContent:
		// FindingID already hashes signature + report.
		return h.FindingID
	default:
		return h.StructuralID
	}
}
