package signature

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/memory"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// ValidateSignature checks signature consistency and required fields, and
// runs its examples through the engine.
// Returns error if signature is invalid.
func ValidateSignature(s *types.Signature) error {
	if s == nil {
		return fmt.Errorf("signature is nil")
	}

	// Check required fields
	if s.ID == "" {
		return fmt.Errorf("signature ID is required")
	}
	if s.Name == "" {
		return fmt.Errorf("signature name is required")
	}
	if strings.TrimSpace(s.Pattern) == "" {
		return fmt.Errorf("signature pattern is required")
	}
	switch s.Arch {
	case "", "x86", "x64":
	default:
		return fmt.Errorf("signature %s has unknown arch %q", s.ID, s.Arch)
	}

	p, err := s.Compile()
	if err != nil {
		return err
	}

	// Validate StructuralID matches computed value
	expectedID, err := types.PatternStructuralID(p)
	if err != nil {
		return fmt.Errorf("signature %s: %w", s.ID, err)
	}
	if s.StructuralID != "" && s.StructuralID != expectedID {
		return fmt.Errorf("signature %s has inconsistent StructuralID: got %s, expected %s",
			s.ID, s.StructuralID, expectedID)
	}

	return CheckExamples(s, p)
}

// CheckExamples verifies that every example matches p and no negative
// example does.
func CheckExamples(s *types.Signature, p *pattern.Pattern) error {
	for i, ex := range s.Examples {
		matched, err := matchExample(s, p, ex)
		if err != nil {
			return fmt.Errorf("signature %s example %d: %w", s.ID, i+1, err)
		}
		if !matched {
			return fmt.Errorf("signature %s example %d does not match: %s", s.ID, i+1, ex)
		}
	}
	for i, ex := range s.NegativeExamples {
		matched, err := matchExample(s, p, ex)
		if err != nil {
			return fmt.Errorf("signature %s negative example %d: %w", s.ID, i+1, err)
		}
		if matched {
			return fmt.Errorf("signature %s negative example %d matches: %s", s.ID, i+1, ex)
		}
	}
	return nil
}

// ParseExample decodes an example: hex bytes with whitespace ignored and an
// optional "@base" hex load address suffix.
func ParseExample(ex string) ([]byte, uint64, error) {
	body, baseText, hasBase := strings.Cut(ex, "@")

	data, err := hex.DecodeString(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid example bytes: %w", err)
	}

	var base uint64
	if hasBase {
		baseText = strings.TrimSpace(baseText)
		baseText = strings.TrimPrefix(strings.ToLower(baseText), "0x")
		base, err = strconv.ParseUint(baseText, 16, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid example base: %w", err)
		}
	}
	return data, base, nil
}

// ValidateSet checks set consistency and required fields.
// knownIDs is a map of valid signature IDs for reference checking.
// Returns error if set is invalid.
func ValidateSet(set *types.SignatureSet, knownIDs map[string]bool) error {
	if set == nil {
		return fmt.Errorf("signature set is nil")
	}

	// Check required fields
	if set.ID == "" {
		return fmt.Errorf("signature set ID is required")
	}
	if set.Name == "" {
		return fmt.Errorf("signature set name is required")
	}
	if len(set.SignatureIDs) == 0 {
		return fmt.Errorf("signature set %s must reference at least one signature", set.ID)
	}

	// Validate all referenced signature IDs exist
	if knownIDs != nil {
		for _, id := range set.SignatureIDs {
			if !knownIDs[id] {
				return fmt.Errorf("signature set %s references unknown signature ID: %s", set.ID, id)
			}
		}
	}

	// Check for duplicate signature IDs
	seen := make(map[string]bool)
	for _, id := range set.SignatureIDs {
		if seen[id] {
			return fmt.Errorf("signature set %s contains duplicate signature ID: %s", set.ID, id)
		}
		seen[id] = true
	}

	return nil
}

func matchExample(s *types.Signature, p *pattern.Pattern, ex string) (bool, error) {
	data, base, err := ParseExample(ex)
	if err != nil {
		return false, err
	}
	img, err := memory.LoadRaw(data, base, s.PointerSize())
	if err != nil {
		return false, err
	}
	regions, err := img.Regions()
	if err != nil {
		return false, err
	}
	return !p.Scan(img, regions).Report.Empty(), nil
}
