package signature

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// FilterConfig specifies include and exclude patterns for signature filtering.
type FilterConfig struct {
	Include []string // Regex patterns - only matching signatures included
	Exclude []string // Regex patterns - matching signatures excluded
}

// ParsePatterns splits a comma-separated string into individual patterns.
// Patterns are trimmed of whitespace.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include and exclude patterns to signature IDs.
// Include is applied first, then exclude.
// Empty include means "include all".
// Returns error if any pattern is invalid regex.
func Filter(sigs []*types.Signature, config FilterConfig) ([]*types.Signature, error) {
	if len(sigs) == 0 {
		return sigs, nil
	}

	includeRegexes, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	excludeRegexes, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	// Apply include filter
	filtered := sigs
	if len(includeRegexes) > 0 {
		filtered = keep(filtered, includeRegexes, true)
	}

	// Apply exclude filter
	if len(excludeRegexes) > 0 {
		filtered = keep(filtered, excludeRegexes, false)
	}

	return filtered, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func compileAll(patterns []string) ([]*regexp2.Regexp, error) {
	var out []*regexp2.Regexp
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.RE2)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func keep(sigs []*types.Signature, regexes []*regexp2.Regexp, want bool) []*types.Signature {
	result := make([]*types.Signature, 0)
	for _, s := range sigs {
		if matchesAny(s.ID, regexes) == want {
			result = append(result, s)
		}
	}
	return result
}

func matchesAny(id string, regexes []*regexp2.Regexp) bool {
	for _, re := range regexes {
		if ok, err := re.MatchString(id); err == nil && ok {
			return true
		}
	}
	return false
}
