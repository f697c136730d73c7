package pattern

import "fmt"

// Memory is the scanned address space. Implementations decide which
// addresses are readable; the engine never reads without asking first and
// never writes.
type Memory interface {
	// Readable reports whether n bytes starting at addr can be read.
	Readable(addr uint64, n uint64) bool

	// Read returns n bytes at addr, or false if any of them is unreadable.
	Read(addr uint64, n int) ([]byte, bool)

	// PointerSize is the width in bytes of a pointer in this address space.
	PointerSize() int
}

// Region is a half-open address range [Start, End) to scan.
type Region struct {
	Name  string
	Start uint64
	End   uint64
}

// Size returns the number of bytes in the region.
func (r Region) Size() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

func (r Region) String() string {
	if r.Name != "" {
		return fmt.Sprintf("%s [%#x-%#x)", r.Name, r.Start, r.End)
	}
	return fmt.Sprintf("[%#x-%#x)", r.Start, r.End)
}

// Logger receives diagnostics.
type Logger interface {
	Log(format string, args ...interface{})
}

// NoopLogger discards all messages.
type NoopLogger struct{}

// Log implements Logger.
func (NoopLogger) Log(format string, args ...interface{}) {}
