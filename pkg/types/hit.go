package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// Hit is a single signature match in an image.
type Hit struct {
	ImageID       ImageID
	StructuralID  string // SHA-1(signature_structural_id + '\0' + image_id + '\0' + address + '\0' + length)
	FindingID     string // SHA-1(signature_structural_id + '\0' + json(report))
	SignatureID   string // e.g., "x86.crt.security_cookie"
	SignatureName string
	Region        string // name of the region that matched
	Location      Location
	Report        pattern.Report
	Snippet       Snippet
	Disassembly   []string `json:",omitempty"`
}

// ComputeStructuralID computes a location-based unique ID.
func (h *Hit) ComputeStructuralID(signatureStructuralID string) string {
	s := sha1.New()

	s.Write([]byte(signatureStructuralID))
	s.Write([]byte{0})

	s.Write(h.ImageID[:])
	s.Write([]byte{0})

	s.Write([]byte(strconv.FormatUint(h.Location.Address.Start, 16)))
	s.Write([]byte{0})

	s.Write([]byte(strconv.FormatUint(h.Location.Address.End, 16)))

	return hex.EncodeToString(s.Sum(nil))
}
