//go:build linux

package memory

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"sync"
	"unsafe"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"golang.org/x/sys/unix"
)

const pageSize = 4096

// Process is the address space of a live process, read through
// process_vm_readv. Pages are cached after the first read, so the view is a
// snapshot of each page at the time it was first touched.
type Process struct {
	pid     int
	module  string
	maps    []Mapping
	ptrSize int

	mu    sync.RWMutex
	pages map[uint64][]byte // nil value: page could not be read
}

// OpenProcess reads the memory map of pid. Executable mappings whose path
// contains module (all of them when module is empty) are the scan regions.
func OpenProcess(pid int, module string) (*Process, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("opening process %d: %w", pid, err)
	}
	defer f.Close()

	maps, err := ParseMaps(f)
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].Start < maps[j].Start })

	return &Process{
		pid:     pid,
		module:  module,
		maps:    maps,
		ptrSize: processPointerSize(pid),
		pages:   make(map[uint64][]byte),
	}, nil
}

// processPointerSize reads the ELF class of the process executable.
func processPointerSize(pid int) int {
	f, err := elf.Open(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return int(unsafe.Sizeof(uintptr(0)))
	}
	defer f.Close()
	if f.Class == elf.ELFCLASS32 {
		return 4
	}
	return 8
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.pid
}

// Mappings returns the parsed memory map.
func (p *Process) Mappings() []Mapping {
	return append([]Mapping(nil), p.maps...)
}

// Regions implements RegionSupplier.
func (p *Process) Regions() ([]pattern.Region, error) {
	regions := ScanRegions(p.maps, p.module)
	if len(regions) == 0 && p.module != "" {
		return nil, fmt.Errorf("process %d: no executable mapping matches %q", p.pid, p.module)
	}
	return regions, nil
}

// PointerSize implements pattern.Memory.
func (p *Process) PointerSize() int {
	return p.ptrSize
}

// Readable implements pattern.Memory. Mappings are trusted first; pages that
// fail to read are reported unreadable.
func (p *Process) Readable(addr uint64, n uint64) bool {
	if !readableSpan(p.maps, addr, n) {
		return false
	}
	for pg := addr &^ (pageSize - 1); pg < addr+n; pg += pageSize {
		if p.page(pg) == nil {
			return false
		}
	}
	return true
}

// Read implements pattern.Memory.
func (p *Process) Read(addr uint64, n int) ([]byte, bool) {
	if n < 0 || !p.Readable(addr, uint64(n)) {
		return nil, false
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		cur := addr + uint64(len(out))
		pg := cur &^ (pageSize - 1)
		data := p.page(pg)
		chunk := data[cur-pg:]
		if rest := n - len(out); len(chunk) > rest {
			chunk = chunk[:rest]
		}
		out = append(out, chunk...)
	}
	return out, true
}

// page returns the cached contents of the page at pg, reading it on first
// use.
func (p *Process) page(pg uint64) []byte {
	p.mu.RLock()
	data, ok := p.pages[pg]
	p.mu.RUnlock()
	if ok {
		return data
	}

	buf := make([]byte, pageSize)
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(pageSize)
	remote := []unix.RemoteIovec{{Base: uintptr(pg), Len: pageSize}}

	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err != nil || n != pageSize {
		buf = nil
	}

	p.mu.Lock()
	p.pages[pg] = buf
	p.mu.Unlock()
	return buf
}
