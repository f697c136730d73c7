package pattern

import (
	"fmt"
	"math"
)

// Unbounded is the Max of a Range without an upper limit.
const Unbounded = math.MaxInt

// Range is an inclusive repetition count [Min, Max].
type Range struct {
	Min int
	Max int
}

// One is the implicit range of an element without a quantifier.
var One = Range{Min: 1, Max: 1}

// NewRange builds a Range, clamping negative bounds to zero and swapping
// reversed bounds.
func NewRange(min, max int) Range {
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if min > max {
		min, max = max, min
	}
	return Range{Min: min, Max: max}
}

// Exactly returns the range {n,n}.
func Exactly(n int) Range {
	return NewRange(n, n)
}

// AtLeast returns the range {n,}.
func AtLeast(n int) Range {
	return NewRange(n, Unbounded)
}

// Fixed reports whether the range allows exactly one count.
func (r Range) Fixed() bool {
	return r.Min == r.Max
}

// Infinite reports whether the range has no upper limit.
func (r Range) Infinite() bool {
	return r.Max == Unbounded
}

// Fuse returns the range of two adjacent repetitions of the same element.
// Bounds saturate at Unbounded instead of wrapping.
func (r Range) Fuse(o Range) Range {
	return Range{Min: satAdd(r.Min, o.Min), Max: satAdd(r.Max, o.Max)}
}

// Shift lowers both bounds by n, keeping an unbounded Max unbounded.
// n must not exceed Min.
func (r Range) Shift(n int) Range {
	out := Range{Min: r.Min - n, Max: r.Max}
	if !r.Infinite() {
		out.Max -= n
	}
	return out
}

// String renders the range in quantifier syntax. The implicit {1,1} renders
// as the empty string.
func (r Range) String() string {
	switch {
	case r == One:
		return ""
	case r.Min == 0 && r.Max == 1:
		return "?"
	case r.Min == 0 && r.Infinite():
		return "*"
	case r.Min == 1 && r.Infinite():
		return "+"
	case r.Fixed():
		return fmt.Sprintf("{%X}", r.Min)
	case r.Infinite():
		return fmt.Sprintf("{%X,}", r.Min)
	case r.Min == 0:
		return fmt.Sprintf("{,%X}", r.Max)
	default:
		return fmt.Sprintf("{%X,%X}", r.Min, r.Max)
	}
}

func satAdd(a, b int) int {
	if a >= Unbounded-b {
		return Unbounded
	}
	return a + b
}

// satMul multiplies two non-negative counts, saturating at Unbounded.
func satMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > Unbounded/b {
		return Unbounded
	}
	return a * b
}
