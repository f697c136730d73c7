package types

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// Len returns the span length.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// AddressSpan is virtual address range [Start, End).
type AddressSpan struct {
	Start uint64
	End   uint64
}

// Location combines the region offset and the virtual address of a hit.
type Location struct {
	Offset  OffsetSpan  // relative to the start of the matched region
	Address AddressSpan // absolute
}
