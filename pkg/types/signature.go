package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// Signature is a byte-signature definition with metadata.
type Signature struct {
	ID               string   // e.g., "x86.crt.security_cookie"
	Name             string   // human-readable name
	Pattern          string   // signature text
	StructuralID     string   // SHA-1 of the compiled atom (computed)
	Description      string   // optional
	Module           string   // optional module name filter for process scans
	Arch             string   // "x86", "x64" or empty for any
	Examples         []string // hex byte strings that must match
	NegativeExamples []string // hex byte strings that must not match
	References       []string // documentation URLs
	Categories       []string // classification tags
}

// PointerSize returns the pointer width implied by Arch: 4 for "x86",
// otherwise 8.
func (s *Signature) PointerSize() int {
	if s.Arch == "x86" {
		return 4
	}
	return 8
}

// Compile compiles the signature pattern.
func (s *Signature) Compile(opts ...pattern.CompileOption) (*pattern.Pattern, error) {
	p, err := pattern.Compile(s.Pattern, opts...)
	if err != nil {
		return nil, fmt.Errorf("signature %s: %w", s.ID, err)
	}
	return p, nil
}

// ComputeStructuralID computes SHA-1 of the compiled atom, so two spellings
// that compile to the same tokens share an ID.
func (s *Signature) ComputeStructuralID() (string, error) {
	p, err := s.Compile()
	if err != nil {
		return "", err
	}
	return PatternStructuralID(p)
}

// PatternStructuralID computes SHA-1 of a compiled pattern's atom.
func PatternStructuralID(p *pattern.Pattern) (string, error) {
	atom, err := p.MarshalBinary()
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(atom)
	return hex.EncodeToString(sum[:]), nil
}

// SignatureSet groups signatures together.
type SignatureSet struct {
	ID           string
	Name         string
	Description  string
	SignatureIDs []string
}
