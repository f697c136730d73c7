package pattern

import (
	"encoding/binary"
	"fmt"
)

// Atom layout, one record per token:
//
//	tag      byte     Kind
//	min      uvarint
//	max      uvarint  0 means Unbounded
//	payload  per kind:
//	  Literal, Quote  uvarint length, bytes
//	  Class           32-byte bitmap
//	  Record          flags (kind in bits 0-6, bit 7 relative), uvarint name length, name
//	  Backref         32-byte bitmap, flags, [uvarint high ref], [uvarint low ref]
//	  Dot             nothing
const (
	recordRelative = 0x80

	backrefDefineHigh = 1 << 0
	backrefDefineLow  = 1 << 1
	backrefRefHigh    = 1 << 2
	backrefRefLow     = 1 << 3
)

// MarshalBinary encodes the pattern as an atom buffer.
func (p *Pattern) MarshalBinary() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("encoding atom: invalid pattern")
	}
	return p.AppendBinary(nil)
}

// AppendBinary appends the atom encoding of the pattern to b.
func (p *Pattern) AppendBinary(b []byte) ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("encoding atom: invalid pattern")
	}
	for _, t := range p.tokens {
		b = append(b, byte(t.Kind))
		b = binary.AppendUvarint(b, uint64(t.Range.Min))
		max := uint64(t.Range.Max)
		if t.Range.Infinite() {
			max = 0
		}
		b = binary.AppendUvarint(b, max)

		switch t.Kind {
		case KindLiteral, KindQuote:
			b = binary.AppendUvarint(b, uint64(len(t.Bytes)))
			b = append(b, t.Bytes...)
		case KindClass:
			b = appendClass(b, t.Class)
		case KindRecord:
			flags := byte(t.Value)
			if t.Relative {
				flags |= recordRelative
			}
			b = append(b, flags)
			b = binary.AppendUvarint(b, uint64(len(t.Name)))
			b = append(b, t.Name...)
		case KindBackref:
			b = appendClass(b, t.Class)
			br := t.Backref
			var flags byte
			if br.DefineHigh {
				flags |= backrefDefineHigh
			}
			if br.DefineLow {
				flags |= backrefDefineLow
			}
			if br.HighRef != 0 {
				flags |= backrefRefHigh
			}
			if br.LowRef != 0 {
				flags |= backrefRefLow
			}
			b = append(b, flags)
			if br.HighRef != 0 {
				b = binary.AppendUvarint(b, uint64(br.HighRef))
			}
			if br.LowRef != 0 {
				b = binary.AppendUvarint(b, uint64(br.LowRef))
			}
		}
	}
	return b, nil
}

func appendClass(b []byte, c ByteClass) []byte {
	for _, w := range c {
		b = binary.LittleEndian.AppendUint64(b, w)
	}
	return b
}

// Decode rebuilds a pattern from an atom buffer without going through the
// signature compiler. Any malformed input returns a *DecodeError.
func Decode(atom []byte) (*Pattern, error) {
	d := &decoder{buf: atom}
	var tokens []Token
	for d.off < len(d.buf) {
		t, err := d.token()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if len(tokens) == 0 {
		return nil, &DecodeError{Offset: 0, Msg: "empty atom"}
	}

	p, err := newPattern(tokens, "")
	if err != nil {
		return nil, &DecodeError{Offset: len(atom), Msg: err.Error()}
	}
	return p, nil
}

// UnmarshalBinary decodes an atom buffer into p.
func (p *Pattern) UnmarshalBinary(atom []byte) error {
	dec, err := Decode(atom)
	if err != nil {
		return err
	}
	*p = *dec
	return nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) errorf(off int, format string, args ...interface{}) error {
	return &DecodeError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) byte() (byte, error) {
	if d.off >= len(d.buf) {
		return 0, d.errorf(d.off, "unexpected end of atom")
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		return 0, d.errorf(d.off, "malformed varint")
	}
	if n != len(binary.AppendUvarint(nil, v)) {
		return 0, d.errorf(d.off, "non-minimal varint")
	}
	d.off += n
	return v, nil
}

// count reads a uvarint that must fit a non-negative int.
func (d *decoder) count() (int, error) {
	start := d.off
	v, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(Unbounded) {
		return 0, d.errorf(start, "count %d overflows", v)
	}
	return int(v), nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if n > len(d.buf)-d.off {
		return nil, d.errorf(d.off, "payload of %d bytes exceeds atom", n)
	}
	out := append([]byte(nil), d.buf[d.off:d.off+n]...)
	d.off += n
	return out, nil
}

func (d *decoder) class() (ByteClass, error) {
	var c ByteClass
	if len(d.buf)-d.off < 32 {
		return c, d.errorf(d.off, "truncated byte set")
	}
	for i := range c {
		c[i] = binary.LittleEndian.Uint64(d.buf[d.off:])
		d.off += 8
	}
	return c, nil
}

func (d *decoder) token() (Token, error) {
	start := d.off
	tag, err := d.byte()
	if err != nil {
		return Token{}, err
	}
	kind := Kind(tag)
	if kind < KindDot || kind > KindQuote {
		return Token{}, d.errorf(start, "unknown tag %#02x", tag)
	}

	min, err := d.count()
	if err != nil {
		return Token{}, err
	}
	maxOff := d.off
	max, err := d.count()
	if err != nil {
		return Token{}, err
	}
	if max == Unbounded {
		return Token{}, d.errorf(maxOff, "unbounded max must be encoded as 0")
	}
	if max == 0 {
		max = Unbounded
	}
	if min > max {
		return Token{}, d.errorf(start, "range min %d exceeds max %d", min, max)
	}

	t := Token{Kind: kind, Range: Range{Min: min, Max: max}}
	switch kind {
	case KindLiteral, KindQuote:
		n, err := d.count()
		if err != nil {
			return Token{}, err
		}
		if n == 0 {
			return Token{}, d.errorf(start, "empty %s", kind)
		}
		if t.Bytes, err = d.bytes(n); err != nil {
			return Token{}, err
		}
	case KindClass:
		if t.Class, err = d.class(); err != nil {
			return Token{}, err
		}
	case KindRecord:
		flags, err := d.byte()
		if err != nil {
			return Token{}, err
		}
		t.Value = RecordKind(flags &^ recordRelative)
		t.Relative = flags&recordRelative != 0
		n, err := d.count()
		if err != nil {
			return Token{}, err
		}
		name, err := d.bytes(n)
		if err != nil {
			return Token{}, err
		}
		t.Name = string(name)
	case KindBackref:
		if t.Class, err = d.class(); err != nil {
			return Token{}, err
		}
		flags, err := d.byte()
		if err != nil {
			return Token{}, err
		}
		if flags&^(backrefDefineHigh|backrefDefineLow|backrefRefHigh|backrefRefLow) != 0 {
			return Token{}, d.errorf(d.off-1, "unknown back-reference flags %#02x", flags)
		}
		t.Backref.DefineHigh = flags&backrefDefineHigh != 0
		t.Backref.DefineLow = flags&backrefDefineLow != 0
		if flags&backrefRefHigh != 0 {
			if t.Backref.HighRef, err = d.count(); err != nil {
				return Token{}, err
			}
			if t.Backref.HighRef == 0 {
				return Token{}, d.errorf(start, "back-reference index 0")
			}
		}
		if flags&backrefRefLow != 0 {
			if t.Backref.LowRef, err = d.count(); err != nil {
				return Token{}, err
			}
			if t.Backref.LowRef == 0 {
				return Token{}, d.errorf(start, "back-reference index 0")
			}
		}
	}
	return t, nil
}
