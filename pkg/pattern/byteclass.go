package pattern

import (
	"fmt"
	"math/bits"
	"strings"
)

// ByteClass is an immutable set of byte values.
type ByteClass [4]uint64

// ClassOf returns the set holding exactly the given bytes.
func ClassOf(bs ...byte) ByteClass {
	var c ByteClass
	for _, b := range bs {
		c[b>>6] |= 1 << (b & 63)
	}
	return c
}

// ClassAll returns the set of all 256 byte values.
func ClassAll() ByteClass {
	return ByteClass{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
}

// ClassRun returns the contiguous run [a, b]. Reversed bounds are swapped.
func ClassRun(a, b byte) ByteClass {
	if a > b {
		a, b = b, a
	}
	var c ByteClass
	for v := int(a); v <= int(b); v++ {
		c[v>>6] |= 1 << (uint(v) & 63)
	}
	return c
}

// ClassMask returns every byte that agrees with a and b on all bits where
// a and b agree with each other. ClassMask(0xB8, 0xBF) is [B8-BF].
func ClassMask(a, b byte) ByteClass {
	return ClassOf(a, b).Mask()
}

// Has reports whether b is a member.
func (c ByteClass) Has(b byte) bool {
	return c[b>>6]&(1<<(b&63)) != 0
}

// Union returns c ∪ o.
func (c ByteClass) Union(o ByteClass) ByteClass {
	return ByteClass{c[0] | o[0], c[1] | o[1], c[2] | o[2], c[3] | o[3]}
}

// Negate returns the complement of c.
func (c ByteClass) Negate() ByteClass {
	return ByteClass{^c[0], ^c[1], ^c[2], ^c[3]}
}

// Mask widens c to every byte matching the bits on which all members agree.
// The mask of an empty set is empty.
func (c ByteClass) Mask() ByteClass {
	if c.Empty() {
		return c
	}
	and, or := byte(0xFF), byte(0)
	for _, v := range c.Members() {
		and &= v
		or |= v
	}
	agree := ^(and ^ or)
	var out ByteClass
	for v := 0; v < 256; v++ {
		if (byte(v)^and)&agree == 0 {
			out[v>>6] |= 1 << (uint(v) & 63)
		}
	}
	return out
}

// Count returns the number of members.
func (c ByteClass) Count() int {
	return bits.OnesCount64(c[0]) + bits.OnesCount64(c[1]) +
		bits.OnesCount64(c[2]) + bits.OnesCount64(c[3])
}

// Empty reports whether the set has no members.
func (c ByteClass) Empty() bool {
	return c == ByteClass{}
}

// Full reports whether the set holds all 256 values.
func (c ByteClass) Full() bool {
	return c == ClassAll()
}

// Single returns the only member of a one-element set.
func (c ByteClass) Single() (byte, bool) {
	if c.Count() != 1 {
		return 0, false
	}
	for i, w := range c {
		if w != 0 {
			return byte(i*64 + bits.TrailingZeros64(w)), true
		}
	}
	return 0, false
}

// Members returns the members in ascending order.
func (c ByteClass) Members() []byte {
	out := make([]byte, 0, c.Count())
	for v := 0; v < 256; v++ {
		if c.Has(byte(v)) {
			out = append(out, byte(v))
		}
	}
	return out
}

// String renders the set in signature syntax. Sets with more than half of
// all values render as the negation of their complement.
func (c ByteClass) String() string {
	if b, ok := c.Single(); ok {
		return fmt.Sprintf("%02X", b)
	}
	if c.Count() > 128 && !c.Full() {
		return "[^" + c.Negate().runs() + "]"
	}
	return "[" + c.runs() + "]"
}

// runs renders members as '|'-joined runs, e.g. "00-0F|20".
func (c ByteClass) runs() string {
	var parts []string
	for v := 0; v < 256; {
		if !c.Has(byte(v)) {
			v++
			continue
		}
		start := v
		for v < 256 && c.Has(byte(v)) {
			v++
		}
		if v-1 == start {
			parts = append(parts, fmt.Sprintf("%02X", start))
		} else {
			parts = append(parts, fmt.Sprintf("%02X-%02X", start, v-1))
		}
	}
	return strings.Join(parts, "|")
}
