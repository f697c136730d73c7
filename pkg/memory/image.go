// Package memory provides address spaces and region suppliers for the
// pattern engine: loaded executable images, raw dumps and live processes.
package memory

import (
	"fmt"
	"sort"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// RegionSupplier lists the regions to scan, in scan order.
type RegionSupplier interface {
	Regions() ([]pattern.Region, error)
}

// Space is an address space that also knows what to scan.
type Space interface {
	pattern.Memory
	RegionSupplier
}

type block struct {
	name  string
	start uint64
	data  []byte
}

func (b block) end() uint64 {
	return b.start + uint64(len(b.data))
}

type hole struct {
	start, end uint64
}

// Image is an in-memory address space built from byte blocks mapped at
// virtual addresses. A read must fall inside one block. Once built it is
// read-only and safe for concurrent use.
type Image struct {
	Format string // "elf", "pe", "macho" or "raw"

	blocks  []block // sorted by start, non-overlapping
	holes   []hole
	regions []pattern.Region
	ptrSize int
}

// NewImage creates an empty image with the given pointer size (4 or 8).
func NewImage(ptrSize int) *Image {
	if ptrSize != 4 {
		ptrSize = 8
	}
	return &Image{Format: "raw", ptrSize: ptrSize}
}

// Map places data at addr. Blocks may not overlap.
func (m *Image) Map(name string, addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := addr + uint64(len(data))
	if end < addr {
		return fmt.Errorf("mapping %s at %#x: wraps the address space", name, addr)
	}

	i := sort.Search(len(m.blocks), func(i int) bool { return m.blocks[i].start >= addr })
	if i > 0 && m.blocks[i-1].end() > addr {
		return fmt.Errorf("mapping %s at %#x: overlaps %s", name, addr, m.blocks[i-1].name)
	}
	if i < len(m.blocks) && m.blocks[i].start < end {
		return fmt.Errorf("mapping %s at %#x: overlaps %s", name, addr, m.blocks[i].name)
	}

	m.blocks = append(m.blocks, block{})
	copy(m.blocks[i+1:], m.blocks[i:])
	m.blocks[i] = block{name: name, start: addr, data: data}
	return nil
}

// Protect marks [addr, addr+n) unreadable.
func (m *Image) Protect(addr, n uint64) {
	if n == 0 {
		return
	}
	m.holes = append(m.holes, hole{start: addr, end: addr + n})
}

// AddRegion appends a region to scan.
func (m *Image) AddRegion(r pattern.Region) {
	m.regions = append(m.regions, r)
}

// Regions implements RegionSupplier.
func (m *Image) Regions() ([]pattern.Region, error) {
	return append([]pattern.Region(nil), m.regions...), nil
}

// PointerSize implements pattern.Memory.
func (m *Image) PointerSize() int {
	return m.ptrSize
}

// Readable implements pattern.Memory.
func (m *Image) Readable(addr uint64, n uint64) bool {
	_, ok := m.slice(addr, n)
	return ok
}

// Read implements pattern.Memory. The returned slice aliases the image.
func (m *Image) Read(addr uint64, n int) ([]byte, bool) {
	if n < 0 {
		return nil, false
	}
	return m.slice(addr, uint64(n))
}

// Bytes returns the contents of r when the whole region is readable.
func (m *Image) Bytes(r pattern.Region) ([]byte, bool) {
	return m.slice(r.Start, r.Size())
}

func (m *Image) slice(addr, n uint64) ([]byte, bool) {
	if n == 0 {
		return []byte{}, true
	}
	end := addr + n
	if end < addr {
		return nil, false
	}
	for _, h := range m.holes {
		if addr < h.end && h.start < end {
			return nil, false
		}
	}

	i := sort.Search(len(m.blocks), func(i int) bool { return m.blocks[i].end() > addr })
	if i == len(m.blocks) {
		return nil, false
	}
	b := m.blocks[i]
	if addr < b.start || end > b.end() {
		return nil, false
	}
	off := addr - b.start
	return b.data[off : off+n], true
}

// Size returns the number of mapped bytes.
func (m *Image) Size() uint64 {
	var n uint64
	for _, b := range m.blocks {
		n += uint64(len(b.data))
	}
	return n
}
