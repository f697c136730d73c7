package pattern

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// bufferMemory maps one byte slice at base, with optional unreadable holes.
type bufferMemory struct {
	base  uint64
	data  []byte
	holes [][2]uint64 // [start, end)
	ptr   int
}

func newBuffer(base uint64, data []byte) *bufferMemory {
	return &bufferMemory{base: base, data: data, ptr: 8}
}

func (m *bufferMemory) region() Region {
	return Region{Name: "test", Start: m.base, End: m.base + uint64(len(m.data))}
}

func (m *bufferMemory) protect(addr, n uint64) {
	m.holes = append(m.holes, [2]uint64{addr, addr + n})
}

func (m *bufferMemory) Readable(addr uint64, n uint64) bool {
	if n == 0 {
		return true
	}
	if addr < m.base {
		return false
	}
	off := addr - m.base
	size := uint64(len(m.data))
	if off > size || n > size-off {
		return false
	}
	for _, h := range m.holes {
		if addr < h[1] && addr+n > h[0] {
			return false
		}
	}
	return true
}

func (m *bufferMemory) Read(addr uint64, n int) ([]byte, bool) {
	if n < 0 || !m.Readable(addr, uint64(n)) {
		return nil, false
	}
	off := addr - m.base
	return m.data[off : off+uint64(n)], true
}

func (m *bufferMemory) PointerSize() int {
	return m.ptr
}

// unhex decodes a hex string, ignoring whitespace.
func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	require.NoError(t, err)
	return b
}

// recordingLogger collects log lines.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Log(format string, args ...interface{}) {
	l.lines = append(l.lines, format)
}
