package pattern

import (
	"fmt"
	"strings"
)

var escapeNames = map[byte]byte{
	'\n': 'n',
	'\r': 'r',
	'\t': 't',
	'\\': '\\',
	'\a': 'a',
	'\b': 'b',
	'\f': 'f',
	'\v': 'v',
	0:    '0',
}

// String renders the pattern as canonical signature text. Compiling the
// text of a compiled pattern produces the same atom.
func (p *Pattern) String() string {
	if !p.Valid() {
		return ""
	}
	parts := make([]string, 0, len(p.tokens))
	for _, t := range p.tokens {
		parts = append(parts, formatToken(t))
	}
	return strings.Join(parts, " ")
}

// String renders one token as signature text.
func (t Token) String() string {
	return formatToken(t)
}

func formatToken(t Token) string {
	switch t.Kind {
	case KindDot:
		return "." + t.Range.String()
	case KindLiteral:
		if t.Range == One && !mostlyPrintable(t.Bytes) {
			return hexPairs(t.Bytes)
		}
		return quote(t.Bytes, '\'') + t.Range.String()
	case KindQuote:
		return quote(t.Bytes, '"') + t.Range.String()
	case KindClass:
		return t.Class.String() + t.Range.String()
	case KindRecord:
		var sb strings.Builder
		sb.WriteByte('<')
		if t.Relative {
			sb.WriteByte('^')
		}
		sb.WriteByte(t.Value.Flag())
		if t.Name != "" {
			sb.WriteByte(' ')
			sb.WriteString(t.Name)
		}
		sb.WriteByte('>')
		return sb.String()
	case KindBackref:
		var sb strings.Builder
		sb.WriteString(t.Class.String())
		br := t.Backref
		if br.DefineHigh {
			sb.WriteString("@L")
		}
		if br.DefineLow {
			sb.WriteString("@R")
		}
		if br.HighRef != 0 {
			fmt.Fprintf(&sb, "$%dL", br.HighRef)
		}
		if br.LowRef != 0 {
			fmt.Fprintf(&sb, "$%dR", br.LowRef)
		}
		sb.WriteString(t.Range.String())
		return sb.String()
	}
	return ""
}

func hexPairs(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, " ")
}

func mostlyPrintable(b []byte) bool {
	n := 0
	for _, c := range b {
		if c >= 0x20 && c < 0x7F {
			n++
		}
	}
	return n*2 > len(b)
}

// quote renders b between q delimiters. A \x escape is never followed by a
// literal hex digit, which would widen the escape.
func quote(b []byte, q byte) string {
	var sb strings.Builder
	sb.WriteByte(q)
	hexOpen := false
	for _, c := range b {
		switch {
		case c == q:
			sb.WriteByte('\\')
			sb.WriteByte(c)
			hexOpen = false
		case escapeNames[c] != 0 || c == 0:
			sb.WriteByte('\\')
			sb.WriteByte(escapeNames[c])
			hexOpen = false
		case c >= 0x20 && c < 0x7F && !(hexOpen && isHex(c)):
			sb.WriteByte(c)
			hexOpen = false
		default:
			fmt.Fprintf(&sb, "\\x%02X", c)
			hexOpen = true
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
