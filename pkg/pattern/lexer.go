package pattern

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// maxCountDigits bounds the hex digit run of a quantifier count.
const maxCountDigits = 16

// parser turns signature text into an unoptimized token sequence.
type parser struct {
	src    string
	pos    int
	tokens []Token
	defs   []Backref // defining back-references seen so far
}

func (p *parser) errorf(pos int, format string, args ...interface{}) error {
	return &CompileError{Signature: p.src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

// skipSpace skips whitespace and '#' comments.
func (p *parser) skipSpace() {
	for !p.eof() {
		c := p.peek()
		switch {
		case isSpace(c):
			p.pos++
		case c == '#':
			for !p.eof() && p.peek() != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// skipBlank skips whitespace only.
func (p *parser) skipBlank() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) parse() ([]Token, error) {
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		start := p.pos
		c := p.peek()

		var err error
		switch {
		case c == '.':
			p.pos++
			var r Range
			if r, err = p.parseRange(); err == nil {
				p.tokens = append(p.tokens, Token{Kind: KindDot, Range: r})
			}
		case c == '<':
			err = p.parseRecord()
		case c == '\'' || c == '"':
			err = p.parseLiteral(false)
		case (c == 'L' || c == 'l') && (p.peekAt(1) == '\'' || p.peekAt(1) == '"'):
			p.pos++
			err = p.parseLiteral(true)
		case c == '[' || c == '^' || isHex(c):
			err = p.parseSetToken()
		default:
			err = p.errorf(start, "unexpected character %q", c)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(p.tokens) == 0 {
		return nil, p.errorf(0, "signature has no elements")
	}
	return p.tokens, nil
}

// === QUANTIFIERS ===

// parseRange reads an optional quantifier directly at the cursor.
func (p *parser) parseRange() (Range, error) {
	switch p.peek() {
	case '*':
		p.pos++
		return Range{Min: 0, Max: Unbounded}, nil
	case '+':
		p.pos++
		return Range{Min: 1, Max: Unbounded}, nil
	case '?':
		p.pos++
		return Range{Min: 0, Max: 1}, nil
	case '{':
	default:
		return One, nil
	}

	start := p.pos
	p.pos++
	p.skipBlank()
	min, hasMin, err := p.parseCount()
	if err != nil {
		return Range{}, err
	}
	p.skipBlank()

	if !isRangeSep(p.peek()) {
		if p.peek() != '}' {
			return Range{}, p.errorf(start, "unterminated quantifier")
		}
		p.pos++
		if !hasMin {
			return Range{}, p.errorf(start, "empty quantifier")
		}
		if min == 0 {
			return Range{}, p.errorf(start, "quantifier allows zero repetitions")
		}
		return Exactly(min), nil
	}

	p.pos++
	p.skipBlank()
	max, hasMax, err := p.parseCount()
	if err != nil {
		return Range{}, err
	}
	p.skipBlank()
	if p.peek() != '}' {
		return Range{}, p.errorf(start, "unterminated quantifier")
	}
	p.pos++

	switch {
	case !hasMin && !hasMax:
		return Range{}, p.errorf(start, "empty quantifier")
	case !hasMax:
		return AtLeast(min), nil
	}
	r := NewRange(min, max)
	if r.Max == 0 {
		return Range{}, p.errorf(start, "quantifier allows zero repetitions")
	}
	return r, nil
}

// parseCount reads a hex digit run, saturating at Unbounded.
func (p *parser) parseCount() (int, bool, error) {
	start := p.pos
	n := 0
	for !p.eof() && isHex(p.peek()) {
		if p.pos-start >= maxCountDigits {
			return 0, false, p.errorf(start, "quantifier count longer than %d digits", maxCountDigits)
		}
		n = satAdd(satMul(n, 16), int(hexVal(p.peek())))
		p.pos++
	}
	return n, p.pos > start, nil
}

// === RECORDS ===

func (p *parser) parseRecord() error {
	start := p.pos
	p.pos++
	p.skipBlank()

	relative := false
	if p.peek() == '^' {
		relative = true
		p.pos++
		p.skipBlank()
	}

	flag := p.peek()
	kind, ok := recordFlags[flag]
	if !ok {
		if flag == 0 || flag == '>' {
			return p.errorf(start, "record has no flag")
		}
		return p.errorf(p.pos, "unknown record flag %q", flag)
	}
	p.pos++
	if relative && !kind.CanBeRelative() {
		return p.errorf(start, "record flag %c cannot be region-relative", flag)
	}

	p.skipBlank()
	nameStart := p.pos
	for !p.eof() && isNameByte(p.peek()) {
		p.pos++
	}
	name := p.src[nameStart:p.pos]
	p.skipBlank()

	if p.eof() {
		return p.errorf(start, "unterminated record")
	}
	if p.peek() != '>' {
		return p.errorf(p.pos, "invalid character %q in record name", p.peek())
	}
	p.pos++

	if isQuantifier(p.peek()) {
		return p.errorf(p.pos, "record cannot be quantified")
	}

	p.tokens = append(p.tokens, Token{
		Kind:     KindRecord,
		Range:    One,
		Name:     name,
		Value:    kind,
		Relative: relative,
	})
	return nil
}

// === LITERALS ===

func (p *parser) parseLiteral(wide bool) error {
	start := p.pos
	quote := p.peek()
	p.pos++

	var buf []byte
	closed := false
	for !p.eof() {
		c := p.peek()
		if c == quote {
			p.pos++
			closed = true
			break
		}
		if c == '\\' {
			b, err := p.parseEscape(wide)
			if err != nil {
				return err
			}
			buf = append(buf, b...)
			continue
		}

		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if wide {
			buf = appendWide(buf, r)
		} else {
			buf = append(buf, p.src[p.pos:p.pos+size]...)
		}
		p.pos += size
	}

	if !closed {
		return p.errorf(start, "unterminated literal")
	}
	if len(buf) == 0 {
		return p.errorf(start, "empty literal")
	}

	r, err := p.parseRange()
	if err != nil {
		return err
	}

	kind := KindLiteral
	if quote == '"' {
		kind = KindQuote
	}
	p.tokens = append(p.tokens, Token{Kind: kind, Range: r, Bytes: buf})
	return nil
}

var simpleEscapes = map[byte]byte{
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'?':  '?',
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'v':  '\v',
	'0':  0,
}

// parseEscape decodes one backslash escape, returning its encoded bytes.
func (p *parser) parseEscape(wide bool) ([]byte, error) {
	start := p.pos
	p.pos++
	if p.eof() {
		return nil, p.errorf(start, "unterminated escape")
	}
	c := p.peek()
	p.pos++

	if c != 'x' {
		v, ok := simpleEscapes[c]
		if !ok {
			return nil, p.errorf(start, "unknown escape \\%c", c)
		}
		if wide {
			return []byte{v, 0}, nil
		}
		return []byte{v}, nil
	}

	digitsStart := p.pos
	var v uint64
	for !p.eof() && isHex(p.peek()) {
		if p.pos-digitsStart >= 16 {
			return nil, p.errorf(start, "\\x escape longer than 16 digits")
		}
		v = v<<4 | uint64(hexVal(p.peek()))
		p.pos++
	}
	digits := p.pos - digitsStart
	if digits == 0 {
		return nil, p.errorf(start, "\\x escape has no digits")
	}

	width := escapeWidth(digits)
	if wide && width < 2 {
		width = 2
	}
	out := make([]byte, width)
	for i := range out {
		out[i] = byte(v >> (8 * i))
	}
	return out, nil
}

// escapeWidth maps a \x digit count to the number of bytes it encodes.
func escapeWidth(digits int) int {
	switch {
	case digits <= 2:
		return 1
	case digits <= 4:
		return 2
	case digits <= 8:
		return 4
	default:
		return 8
	}
}

func appendWide(buf []byte, r rune) []byte {
	for _, u := range utf16.Encode([]rune{r}) {
		buf = append(buf, byte(u), byte(u>>8))
	}
	return buf
}

// === BYTE SETS ===

// parseSetToken reads a set expression, its optional back-reference
// annotations and its quantifier.
func (p *parser) parseSetToken() error {
	start := p.pos
	class, err := p.parseSetExpr(false)
	if err != nil {
		return err
	}
	if class.Empty() {
		return p.errorf(start, "empty byte set")
	}

	br, isRef, err := p.parseAnnotations()
	if err != nil {
		return err
	}

	r, err := p.parseRange()
	if err != nil {
		return err
	}

	if !isRef {
		p.tokens = append(p.tokens, Token{Kind: KindClass, Range: r, Class: class})
		return nil
	}
	if br.Defines() {
		p.defs = append(p.defs, br)
	}
	p.tokens = append(p.tokens, Token{Kind: KindBackref, Range: r, Class: class, Backref: br})
	return nil
}

// parseSetExpr evaluates operators strictly left to right. Whitespace is
// allowed only inside brackets.
func (p *parser) parseSetExpr(bracketed bool) (ByteClass, error) {
	space := func() {
		if bracketed {
			p.skipBlank()
		}
	}

	space()
	negate := false
	if p.peek() == '^' {
		negate = true
		p.pos++
		space()
	}

	acc, last, lastOK, err := p.parseOperand()
	if err != nil {
		return ByteClass{}, err
	}

	for {
		space()
		op := p.peek()
		if op != '|' && op != '&' && op != '-' {
			break
		}
		opPos := p.pos
		p.pos++
		space()

		operand, b, ok, err := p.parseOperand()
		if err != nil {
			return ByteClass{}, err
		}

		switch op {
		case '|':
			acc = acc.Union(operand)
		case '&':
			acc = acc.Union(operand).Mask()
		case '-':
			if !lastOK || !ok {
				return ByteClass{}, p.errorf(opPos, "'-' needs hex pairs on both sides")
			}
			acc = acc.Union(ClassRun(last, b))
		}
		last, lastOK = b, ok
	}

	if bracketed {
		space()
		if p.peek() != ']' {
			if p.eof() {
				return ByteClass{}, p.errorf(p.pos, "unterminated '['")
			}
			return ByteClass{}, p.errorf(p.pos, "unexpected %q in byte set", p.peek())
		}
		p.pos++
	}

	if negate {
		acc = acc.Negate()
	}
	return acc, nil
}

// parseOperand reads a hex pair or a bracketed sub-expression. The byte and
// flag report the concrete value of a hex pair.
func (p *parser) parseOperand() (ByteClass, byte, bool, error) {
	if p.peek() == '[' {
		p.pos++
		c, err := p.parseSetExpr(true)
		return c, 0, false, err
	}
	if !isHex(p.peek()) || !isHex(p.peekAt(1)) {
		if p.eof() {
			return ByteClass{}, 0, false, p.errorf(p.pos, "expected hex pair, got end of signature")
		}
		return ByteClass{}, 0, false, p.errorf(p.pos, "expected hex pair")
	}
	b := hexVal(p.peek())<<4 | hexVal(p.peekAt(1))
	p.pos += 2
	return ClassOf(b), b, true, nil
}

// parseAnnotations reads @L, @R and $n L / $n R markers following a set.
func (p *parser) parseAnnotations() (Backref, bool, error) {
	var br Backref
	found := false
	for {
		start := p.pos
		switch p.peek() {
		case '@':
			p.pos++
			high, err := p.parseNibble(start)
			if err != nil {
				return br, false, err
			}
			if high {
				if br.DefineHigh {
					return br, false, p.errorf(start, "duplicate @L")
				}
				br.DefineHigh = true
			} else {
				if br.DefineLow {
					return br, false, p.errorf(start, "duplicate @R")
				}
				br.DefineLow = true
			}
		case '$':
			p.pos++
			n := 0
			digits := 0
			for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
				if digits >= 9 {
					return br, false, p.errorf(start, "back-reference index too long")
				}
				n = n*10 + int(p.peek()-'0')
				digits++
				p.pos++
			}
			if digits == 0 {
				return br, false, p.errorf(start, "'$' needs a back-reference index")
			}
			p.skipBlank()
			high, err := p.parseNibble(start)
			if err != nil {
				return br, false, err
			}
			if err := p.checkRef(start, n, high); err != nil {
				return br, false, err
			}
			if high {
				if br.HighRef != 0 {
					return br, false, p.errorf(start, "high nibble referenced twice")
				}
				br.HighRef = n
			} else {
				if br.LowRef != 0 {
					return br, false, p.errorf(start, "low nibble referenced twice")
				}
				br.LowRef = n
			}
		default:
			return br, found, nil
		}
		found = true
	}
}

// parseNibble reads L (high nibble) or R (low nibble).
func (p *parser) parseNibble(start int) (bool, error) {
	switch p.peek() {
	case 'L', 'l':
		p.pos++
		return true, nil
	case 'R', 'r':
		p.pos++
		return false, nil
	default:
		return false, p.errorf(start, "expected L or R after %c", p.src[start])
	}
}

func (p *parser) checkRef(pos, n int, high bool) error {
	if n < 1 || n > len(p.defs) {
		return p.errorf(pos, "back-reference $%d out of range (%d defined)", n, len(p.defs))
	}
	def := p.defs[n-1]
	if high && !def.DefineHigh {
		return p.errorf(pos, "$%d does not define a high nibble", n)
	}
	if !high && !def.DefineLow {
		return p.errorf(pos, "$%d does not define a low nibble", n)
	}
	return nil
}

// === HELPERS ===

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

func isRangeSep(c byte) bool {
	return c != 0 && strings.IndexByte(",-~:|", c) >= 0
}

func isQuantifier(c byte) bool {
	return c == '*' || c == '+' || c == '?' || c == '{'
}
