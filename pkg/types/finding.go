package types

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// Finding groups hits with same (signature, report) for deduplication.
type Finding struct {
	ID          string // SHA-1(signature_structural_id + '\0' + json(report))
	SignatureID string
	Report      pattern.Report
	Hits        []*Hit // hits belonging to this finding
}

// ComputeFindingID computes content-based finding ID.
// Format: SHA-1(signature_structural_id + '\0' + json(report))
func ComputeFindingID(signatureStructuralID string, report pattern.Report) string {
	h := sha1.New()

	h.Write([]byte(signatureStructuralID))
	h.Write([]byte{0})

	// the report encodes as an ordered array, so this is deterministic
	reportJSON, _ := report.MarshalJSON()
	h.Write(reportJSON)

	return hex.EncodeToString(h.Sum(nil))
}

// GroupFindings groups hits into findings by FindingID, keeping first-seen
// order.
func GroupFindings(hits []*Hit) []*Finding {
	var findings []*Finding
	byID := make(map[string]*Finding)
	for _, h := range hits {
		f, ok := byID[h.FindingID]
		if !ok {
			f = &Finding{
				ID:          h.FindingID,
				SignatureID: h.SignatureID,
				Report:      h.Report,
			}
			byID[h.FindingID] = f
			findings = append(findings, f)
		}
		f.Hits = append(f.Hits, h)
	}
	return findings
}
