package prefilter

import (
	"sort"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// MinAnchor is the shortest anchor worth indexing. Shorter literals occur
// almost everywhere and would only slow the automaton down.
const MinAnchor = 2

// Prefilter uses Aho-Corasick over the mandatory literal of each pattern to
// skip patterns that cannot match a block of bytes.
type Prefilter struct {
	matcher   *ahocorasick.Matcher
	anchors   [][]byte // anchor at each dictionary index
	anchorPos [][]int  // dictionary index -> pattern indexes needing it
	always    []int    // patterns without a usable anchor (always checked)
	n         int
}

// New creates a prefilter over patterns. Indexes returned by Candidates
// refer to positions in patterns.
func New(patterns []*pattern.Pattern) *Prefilter {
	pf := &Prefilter{n: len(patterns)}

	byAnchor := make(map[string]int)
	for i, p := range patterns {
		anchor := p.Anchor()
		if len(anchor) < MinAnchor {
			// No anchor = always check this pattern
			pf.always = append(pf.always, i)
			continue
		}
		idx, ok := byAnchor[string(anchor)]
		if !ok {
			idx = len(pf.anchors)
			byAnchor[string(anchor)] = idx
			pf.anchors = append(pf.anchors, anchor)
			pf.anchorPos = append(pf.anchorPos, nil)
		}
		pf.anchorPos[idx] = append(pf.anchorPos[idx], i)
	}

	if len(pf.anchors) > 0 {
		pf.matcher = ahocorasick.NewMatcher(pf.anchors)
	}
	return pf
}

// Anchored returns the number of patterns gated by an anchor.
func (pf *Prefilter) Anchored() int {
	return pf.n - len(pf.always)
}

// Candidates returns, in ascending order, the indexes of patterns that
// might match inside data (anchor found OR no anchor).
func (pf *Prefilter) Candidates(data []byte) []int {
	result := make([]int, 0, len(pf.always))
	result = append(result, pf.always...)

	// If no Aho-Corasick matcher, return only unanchored patterns
	if pf.matcher == nil {
		return result
	}

	for _, hit := range pf.matcher.Match(data) {
		result = append(result, pf.anchorPos[hit]...)
	}
	sort.Ints(result)
	return result
}

// All returns every pattern index, for blocks that cannot be read whole.
func (pf *Prefilter) All() []int {
	out := make([]int, pf.n)
	for i := range out {
		out[i] = i
	}
	return out
}
