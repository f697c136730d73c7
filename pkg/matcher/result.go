package matcher

import (
	"time"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// SignatureStatus is the outcome of one signature against one target.
type SignatureStatus int

const (
	// SignatureMissed indicates the signature was scanned and did not match
	SignatureMissed SignatureStatus = iota
	// SignatureHit indicates the signature produced a hit
	SignatureHit
	// SignatureSkipped indicates no region was eligible (prefilter or module filter)
	SignatureSkipped
)

// String returns the string representation of SignatureStatus
func (s SignatureStatus) String() string {
	switch s {
	case SignatureMissed:
		return "missed"
	case SignatureHit:
		return "hit"
	case SignatureSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SignatureStat contains statistics about a single signature scan
type SignatureStat struct {
	SignatureID string          // Signature identifier
	Status      SignatureStatus // Outcome
	Regions     int             // Regions actually scanned
	Duration    time.Duration   // Time taken
}

// ResultSummary provides aggregate statistics for a scan
type ResultSummary struct {
	TotalSignatures int // Signatures attempted
	Hits            int // Signatures that matched
	Missed          int // Signatures scanned without a match
	Skipped         int // Signatures with no eligible region
}

// MatchResult contains hits and execution statistics
type MatchResult struct {
	Hits    []*types.Hit    // In signature order
	Stats   []SignatureStat // One per signature, in signature order
	Summary ResultSummary   // Aggregate statistics
}

func summarize(stats []SignatureStat) ResultSummary {
	s := ResultSummary{TotalSignatures: len(stats)}
	for _, st := range stats {
		switch st.Status {
		case SignatureHit:
			s.Hits++
		case SignatureMissed:
			s.Missed++
		case SignatureSkipped:
			s.Skipped++
		}
	}
	return s
}
