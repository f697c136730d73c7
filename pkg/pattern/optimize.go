package pattern

import "bytes"

// maxLiteral bounds the bytes a fixed-count literal may be expanded into.
const maxLiteral = 64 << 10

// optimize folds degenerate byte sets and fuses adjacent equivalent tokens.
// Records, back-references and quotes are never rewritten.
func optimize(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		for _, n := range normalize(t) {
			if len(out) > 0 && fuse(&out[len(out)-1], n) {
				continue
			}
			out = append(out, n)
		}
	}
	return out
}

// normalize rewrites one token into one or two simpler equivalent tokens.
func normalize(t Token) []Token {
	switch t.Kind {
	case KindClass:
		if t.Class.Full() {
			return []Token{{Kind: KindDot, Range: t.Range}}
		}
		b, ok := t.Class.Single()
		if !ok {
			return []Token{t}
		}
		lit := Token{Kind: KindLiteral, Range: t.Range, Bytes: []byte{b}}
		if t.Range.Fixed() {
			return normalize(lit)
		}
		if t.Range.Min == 0 {
			return []Token{t}
		}
		prefix := Token{Kind: KindLiteral, Range: Exactly(t.Range.Min), Bytes: []byte{b}}
		rest := Token{Kind: KindClass, Range: t.Range.Shift(t.Range.Min), Class: t.Class}
		return append(normalize(prefix), rest)

	case KindLiteral:
		r := t.Range
		if r == One {
			return []Token{t}
		}
		if r.Fixed() {
			if expanded, ok := repeat(t.Bytes, r.Min); ok {
				return []Token{{Kind: KindLiteral, Range: One, Bytes: expanded}}
			}
			return []Token{t}
		}
		if r.Min == 0 {
			return []Token{t}
		}
		prefix, ok := repeat(t.Bytes, r.Min)
		if !ok {
			return []Token{t}
		}
		return []Token{
			{Kind: KindLiteral, Range: One, Bytes: prefix},
			{Kind: KindLiteral, Range: r.Shift(r.Min), Bytes: t.Bytes},
		}
	}
	return []Token{t}
}

// fuse merges n into prev when the pair is equivalent to a single token.
func fuse(prev *Token, n Token) bool {
	if prev.Kind != n.Kind {
		return false
	}
	switch n.Kind {
	case KindDot:
		prev.Range = prev.Range.Fuse(n.Range)
		return true
	case KindClass:
		if prev.Class != n.Class {
			return false
		}
		prev.Range = prev.Range.Fuse(n.Range)
		return true
	case KindLiteral:
		switch {
		case prev.Range == One && n.Range == One:
			if len(prev.Bytes)+len(n.Bytes) > maxLiteral {
				return false
			}
			prev.Bytes = append(prev.Bytes[:len(prev.Bytes):len(prev.Bytes)], n.Bytes...)
			return true
		case !prev.Range.Fixed() && !n.Range.Fixed() && bytes.Equal(prev.Bytes, n.Bytes):
			prev.Range = prev.Range.Fuse(n.Range)
			return true
		}
	}
	return false
}

// repeat concatenates n copies of b if the result fits in maxLiteral.
func repeat(b []byte, n int) ([]byte, bool) {
	if n <= 0 || len(b) == 0 || n > maxLiteral/len(b) {
		return nil, false
	}
	return bytes.Repeat(b, n), true
}

// ensureRecord prepends an absolute address record when none exists.
func ensureRecord(tokens []Token) []Token {
	for _, t := range tokens {
		if t.Kind == KindRecord {
			return tokens
		}
	}
	out := make([]Token, 0, len(tokens)+1)
	out = append(out, Token{Kind: KindRecord, Range: One, Value: RecordAddress})
	return append(out, tokens...)
}
