//go:build !linux

package memory

import (
	"errors"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// ErrUnsupported is returned by OpenProcess on platforms without
// process_vm_readv.
var ErrUnsupported = errors.New("process scanning is only supported on linux")

// Process is unavailable on this platform.
type Process struct{}

// OpenProcess always fails on this platform.
func OpenProcess(pid int, module string) (*Process, error) {
	return nil, ErrUnsupported
}

// PID returns 0.
func (p *Process) PID() int { return 0 }

// Mappings returns nil.
func (p *Process) Mappings() []Mapping { return nil }

// Regions implements RegionSupplier.
func (p *Process) Regions() ([]pattern.Region, error) { return nil, ErrUnsupported }

// PointerSize implements pattern.Memory.
func (p *Process) PointerSize() int { return 8 }

// Readable implements pattern.Memory.
func (p *Process) Readable(addr uint64, n uint64) bool { return false }

// Read implements pattern.Memory.
func (p *Process) Read(addr uint64, n int) ([]byte, bool) { return nil, false }
