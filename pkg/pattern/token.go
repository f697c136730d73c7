package pattern

import (
	"fmt"
	"strconv"
)

// Kind identifies the variant of a Token.
type Kind uint8

const (
	KindDot     Kind = iota + 1 // any byte
	KindLiteral                 // fixed byte string
	KindClass                   // one byte from a set
	KindRecord                  // zero-width value capture
	KindBackref                 // byte set plus nibble cross-references
	KindQuote                   // pointer to a fixed byte string
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDot:
		return "dot"
	case KindLiteral:
		return "literal"
	case KindClass:
		return "class"
	case KindRecord:
		return "record"
	case KindBackref:
		return "backref"
	case KindQuote:
		return "quote"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// RecordKind selects how a Record turns its position into a value.
type RecordKind uint8

const (
	RecordAddress RecordKind = iota + 1 // A: the position itself
	RecordCall                          // F: rel32 displacement resolved to position+4+disp
	RecordQword                         // Q: little-endian uint64
	RecordDword                         // D: little-endian uint32
	RecordWord                          // W: little-endian uint16
	RecordByte                          // B: uint8
)

// recordFlags maps signature flag letters to record kinds.
var recordFlags = map[byte]RecordKind{
	'A': RecordAddress,
	'F': RecordCall,
	'Q': RecordQword,
	'D': RecordDword,
	'W': RecordWord,
	'B': RecordByte,
}

// Flag returns the signature flag letter.
func (k RecordKind) Flag() byte {
	for f, rk := range recordFlags {
		if rk == k {
			return f
		}
	}
	return '?'
}

// String returns the flag letter as a string.
func (k RecordKind) String() string {
	return string(k.Flag())
}

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	return k >= RecordAddress && k <= RecordByte
}

// Size returns the number of bytes read at the record position.
// Address records read nothing.
func (k RecordKind) Size() int {
	switch k {
	case RecordCall, RecordDword:
		return 4
	case RecordQword:
		return 8
	case RecordWord:
		return 2
	case RecordByte:
		return 1
	default:
		return 0
	}
}

// CanBeRelative reports whether a region-relative value is meaningful.
func (k RecordKind) CanBeRelative() bool {
	switch k {
	case RecordAddress, RecordCall, RecordQword, RecordDword:
		return true
	default:
		return false
	}
}

// Backref carries the nibble constraints of a KindBackref token.
// Ref indexes are 1-based positions among the defining back-references of
// the pattern; zero means no reference.
type Backref struct {
	DefineHigh bool
	DefineLow  bool
	HighRef    int
	LowRef     int
}

// Defines reports whether the token is a reference point.
func (b Backref) Defines() bool {
	return b.DefineHigh || b.DefineLow
}

// Token is one compiled element of a pattern.
type Token struct {
	Kind  Kind
	Range Range

	// Bytes is the payload of Literal and Quote tokens.
	Bytes []byte

	// Class is the payload of Class and Backref tokens.
	Class ByteClass

	// Name, Value and Relative describe a Record. An empty Name is
	// replaced by a generated one when the pattern is built.
	Name     string
	Value    RecordKind
	Relative bool

	Backref Backref
}

// width returns the number of bytes one repetition consumes.
func (t *Token) width(ptrSize int) int {
	switch t.Kind {
	case KindDot, KindClass, KindBackref:
		return 1
	case KindLiteral:
		return len(t.Bytes)
	case KindQuote:
		return ptrSize
	default:
		return 0
	}
}

func (t Token) clone() Token {
	if t.Bytes != nil {
		t.Bytes = append([]byte(nil), t.Bytes...)
	}
	return t
}

// Pattern is a compiled signature. It is immutable and may be shared by any
// number of goroutines; scan progress lives in a State.
type Pattern struct {
	tokens []Token
	names  []string // resolved record name per token, "" for other kinds
	defs   []int    // token index of each defining back-reference, in order
	source string
}

// generatedName names the n-th record when the signature leaves it unnamed.
// '#' cannot appear in a user record name.
func generatedName(n int) string {
	return "#" + strconv.Itoa(n)
}

// newPattern checks the structural invariants of a token sequence and
// derives the lookup tables used while scanning.
func newPattern(tokens []Token, source string) (*Pattern, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("pattern has no tokens")
	}

	p := &Pattern{
		tokens: tokens,
		names:  make([]string, len(tokens)),
		source: source,
	}

	records := 0
	for i := range tokens {
		t := &tokens[i]
		r := t.Range
		if r.Min < 0 || r.Max < 1 || r.Min > r.Max {
			return nil, fmt.Errorf("token %d: invalid range {%d,%d}", i, r.Min, r.Max)
		}

		switch t.Kind {
		case KindDot:
		case KindLiteral, KindQuote:
			if len(t.Bytes) == 0 {
				return nil, fmt.Errorf("token %d: empty %s", i, t.Kind)
			}
		case KindClass:
			if t.Class.Empty() {
				return nil, fmt.Errorf("token %d: empty byte set", i)
			}
		case KindRecord:
			if r != One {
				return nil, fmt.Errorf("token %d: record cannot repeat", i)
			}
			if !t.Value.Valid() {
				return nil, fmt.Errorf("token %d: unknown record kind %d", i, t.Value)
			}
			if t.Relative && !t.Value.CanBeRelative() {
				return nil, fmt.Errorf("token %d: record %s cannot be region-relative", i, t.Value)
			}
			if t.Name != "" && !validRecordName(t.Name) {
				return nil, fmt.Errorf("token %d: invalid record name %q", i, t.Name)
			}
			p.names[i] = t.Name
			if p.names[i] == "" {
				p.names[i] = generatedName(records)
			}
			records++
		case KindBackref:
			if t.Class.Empty() {
				return nil, fmt.Errorf("token %d: empty byte set", i)
			}
			br := t.Backref
			if !br.Defines() && br.HighRef == 0 && br.LowRef == 0 {
				return nil, fmt.Errorf("token %d: back-reference defines and references nothing", i)
			}
			if err := p.checkRef(i, br.HighRef, true); err != nil {
				return nil, err
			}
			if err := p.checkRef(i, br.LowRef, false); err != nil {
				return nil, err
			}
			if br.Defines() {
				p.defs = append(p.defs, i)
			}
		default:
			return nil, fmt.Errorf("token %d: unknown kind %d", i, t.Kind)
		}
	}

	if records == 0 {
		return nil, fmt.Errorf("pattern has no record")
	}

	return p, nil
}

// checkRef validates a nibble reference against the reference points
// defined before token i.
func (p *Pattern) checkRef(i, ref int, high bool) error {
	if ref == 0 {
		return nil
	}
	if ref < 0 || ref > len(p.defs) {
		return fmt.Errorf("token %d: back-reference $%d out of range (%d defined)", i, ref, len(p.defs))
	}
	def := p.tokens[p.defs[ref-1]].Backref
	if high && !def.DefineHigh {
		return fmt.Errorf("token %d: $%d does not define a high nibble", i, ref)
	}
	if !high && !def.DefineLow {
		return fmt.Errorf("token %d: $%d does not define a low nibble", i, ref)
	}
	return nil
}

func validRecordName(name string) bool {
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return false
		}
	}
	return name != ""
}

func isNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '.', c == ':', c == '-':
		return true
	default:
		return false
	}
}

// Valid reports whether p is a usable compiled pattern. A nil Pattern is
// invalid.
func (p *Pattern) Valid() bool {
	return p != nil && len(p.tokens) > 0
}

// Len returns the number of tokens.
func (p *Pattern) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tokens)
}

// Tokens returns a copy of the token sequence.
func (p *Pattern) Tokens() []Token {
	if p == nil {
		return nil
	}
	out := make([]Token, len(p.tokens))
	for i, t := range p.tokens {
		out[i] = t.clone()
	}
	return out
}

// Source returns the signature text the pattern was compiled from, or ""
// for decoded patterns.
func (p *Pattern) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// RecordInfo describes one capture of a pattern.
type RecordInfo struct {
	Name     string
	Kind     RecordKind
	Relative bool
}

// Records lists the captures in token order. Repeated names appear once per
// record.
func (p *Pattern) Records() []RecordInfo {
	if p == nil {
		return nil
	}
	var out []RecordInfo
	for i, t := range p.tokens {
		if t.Kind == KindRecord {
			out = append(out, RecordInfo{Name: p.names[i], Kind: t.Value, Relative: t.Relative})
		}
	}
	return out
}

// Anchor returns the longest literal the pattern requires, if any.
// Matching always reads these bytes somewhere in the scanned region.
func (p *Pattern) Anchor() []byte {
	if p == nil {
		return nil
	}
	var best []byte
	for _, t := range p.tokens {
		if t.Kind == KindLiteral && t.Range.Min > 0 && len(t.Bytes) > len(best) {
			best = t.Bytes
		}
	}
	return append([]byte(nil), best...)
}
