package signature

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Split separates a blob holding several signatures. A '/' outside quotes
// and comments ends a signature; empty pieces are dropped.
func Split(blob string) []string {
	var (
		out   []string
		start int
		quote byte
	)

	flush := func(end int) {
		if piece := strings.TrimSpace(blob[start:end]); piece != "" {
			out = append(out, piece)
		}
	}

	for i := 0; i < len(blob); i++ {
		c := blob[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '#':
			for i < len(blob) && blob[i] != '\n' {
				i++
			}
		case c == '/':
			flush(i)
			start = i + 1
		}
	}
	flush(len(blob))
	return out
}

// FromText turns a '/'-separated blob into ad-hoc signatures named
// inline.1, inline.2, ...
func FromText(blob string) ([]*types.Signature, error) {
	pieces := Split(blob)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("no signatures in input")
	}

	sigs := make([]*types.Signature, 0, len(pieces))
	for i, piece := range pieces {
		s := &types.Signature{
			ID:      fmt.Sprintf("inline.%d", i+1),
			Name:    fmt.Sprintf("Inline signature %d", i+1),
			Pattern: piece,
		}
		id, err := s.ComputeStructuralID()
		if err != nil {
			return nil, err
		}
		s.StructuralID = id
		sigs = append(sigs, s)
	}
	return sigs, nil
}
