package pattern

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundTripSignatures = []string{
	"90",
	"'AB'",
	"48 8B 05 <^D rip> .{4} 48 85 C0",
	"E8 <F target> .{4}",
	"\"hello\"{2} 'world'*",
	"L'wide' l\"wide quote\"",
	"[00-0F|20]{2,7} ^00+ B8&BF",
	"40-4F@L .? 40-4F$1L 00@L@R 00-FF$2R$1L",
	"<A a> <Q b> <D c> <W d> <B e> <^A f> <^F g> <^Q h>",
	".{,FFFF} 'x' .{2,}",
	"<A same> 90 <A same>",
}

func TestAtom_RoundTrip(t *testing.T) {
	for _, sig := range roundTripSignatures {
		t.Run(sig, func(t *testing.T) {
			p, err := Compile(sig)
			require.NoError(t, err)

			atom, err := p.MarshalBinary()
			require.NoError(t, err)

			decoded, err := Decode(atom)
			require.NoError(t, err)
			assert.Equal(t, p.Tokens(), decoded.Tokens())
			assert.Equal(t, p.Records(), decoded.Records())
			assert.Empty(t, decoded.Source())

			again, err := decoded.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, atom, again)
		})
	}
}

func TestAtom_UnmarshalBinary(t *testing.T) {
	atom, err := MustCompile("E8 <F target> .{4}").MarshalBinary()
	require.NoError(t, err)

	var p Pattern
	require.NoError(t, p.UnmarshalBinary(atom))
	assert.Equal(t, 3, p.Len())
}

func TestAtom_KnownEncoding(t *testing.T) {
	atom, err := MustCompile("'AB'").MarshalBinary()
	require.NoError(t, err)

	expected := []byte{
		byte(KindRecord), 1, 1, byte(RecordAddress), 0,
		byte(KindLiteral), 1, 1, 2, 'A', 'B',
	}
	assert.Equal(t, expected, atom)
}

func TestDecode_Errors(t *testing.T) {
	valid, err := MustCompile("<D x> 'AB' 00-0F").MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		atom []byte
		msg  string
	}{
		{name: "empty", atom: nil, msg: "empty atom"},
		{name: "unknown tag", atom: []byte{0x09, 1, 1}, msg: "unknown tag"},
		{name: "zero tag", atom: []byte{0x00, 1, 1}, msg: "unknown tag"},
		{name: "truncated", atom: valid[:len(valid)-1], msg: "truncated byte set"},
		{name: "truncated varint", atom: []byte{byte(KindDot), 0x80}, msg: "malformed varint"},
		{name: "non-minimal varint", atom: []byte{byte(KindRecord), 0x81, 0x00, 1, byte(RecordAddress), 0}, msg: "non-minimal varint"},
		{name: "non-minimal zero", atom: []byte{byte(KindDot), 1, 0x80, 0x00}, msg: "non-minimal varint"},
		{name: "explicit unbounded max", atom: binary.AppendUvarint([]byte{byte(KindDot), 1}, uint64(Unbounded)), msg: "encoded as 0"},
		{name: "no record", atom: []byte{byte(KindLiteral), 1, 1, 2, 'A', 'B'}, msg: "no record"},
		{name: "empty literal", atom: []byte{byte(KindLiteral), 1, 1, 0}, msg: "empty literal"},
		{name: "literal overruns", atom: []byte{byte(KindLiteral), 1, 1, 9, 'A'}, msg: "exceeds atom"},
		{name: "min above max", atom: []byte{byte(KindDot), 3, 2}, msg: "exceeds max"},
		{name: "quantified record", atom: []byte{byte(KindRecord), 1, 2, byte(RecordAddress), 0}, msg: "cannot repeat"},
		{name: "bad record kind", atom: []byte{byte(KindRecord), 1, 1, 9, 0}, msg: "unknown record kind"},
		{name: "relative word", atom: []byte{byte(KindRecord), 1, 1, byte(RecordWord) | 0x80, 0}, msg: "cannot be region-relative"},
		{name: "bad record name", atom: []byte{byte(KindRecord), 1, 1, byte(RecordAddress), 1, '#'}, msg: "invalid record name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.atom)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrInvalidAtom))
			assert.Contains(t, err.Error(), tt.msg)

			var derr *DecodeError
			assert.True(t, errors.As(err, &derr))
		})
	}
}

func TestDecode_BackrefIndexChecked(t *testing.T) {
	atom := []byte{byte(KindRecord), 1, 1, byte(RecordAddress), 0, byte(KindBackref), 1, 1}
	class := ClassAll()
	atom = appendClass(atom, class)
	atom = append(atom, backrefRefHigh, 1)

	_, err := Decode(atom)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestMarshalBinary_InvalidPattern(t *testing.T) {
	var p *Pattern
	_, err := p.MarshalBinary()
	assert.Error(t, err)
}
