package memory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// Mapping is one line of /proc/<pid>/maps.
type Mapping struct {
	Start uint64
	End   uint64
	Perms string // e.g. "r-xp"
	Path  string // empty for anonymous mappings
}

// Readable reports whether the mapping has read permission.
func (m Mapping) Readable() bool {
	return len(m.Perms) > 0 && m.Perms[0] == 'r'
}

// Executable reports whether the mapping has execute permission.
func (m Mapping) Executable() bool {
	return len(m.Perms) > 2 && m.Perms[2] == 'x'
}

// Region converts the mapping to a scan region named after its path.
func (m Mapping) Region() pattern.Region {
	name := m.Path
	if name == "" {
		name = "[anon]"
	}
	return pattern.Region{Name: name, Start: m.Start, End: m.End}
}

// ParseMaps parses the /proc/<pid>/maps format.
func ParseMaps(r io.Reader) ([]Mapping, error) {
	var out []Mapping
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		// address perms offset dev inode [path]
		fields := strings.Fields(text)
		if len(fields) < 5 {
			return nil, fmt.Errorf("maps line %d: expected at least 5 fields, got %d", line, len(fields))
		}

		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("maps line %d: malformed address range %q", line, fields[0])
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		if end < start {
			return nil, fmt.Errorf("maps line %d: end %#x before start %#x", line, end, start)
		}

		m := Mapping{Start: start, End: end, Perms: fields[1]}
		if len(fields) > 5 {
			m.Path = strings.Join(fields[5:], " ")
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading maps: %w", err)
	}
	return out, nil
}

// ScanRegions returns the executable mappings whose path contains module,
// or every executable mapping when module is empty.
func ScanRegions(maps []Mapping, module string) []pattern.Region {
	var out []pattern.Region
	for _, m := range maps {
		if !m.Readable() || !m.Executable() {
			continue
		}
		if module != "" && !strings.Contains(m.Path, module) {
			continue
		}
		out = append(out, m.Region())
	}
	return out
}

// readableSpan reports whether [addr, addr+n) is covered by consecutive
// readable mappings. maps must be sorted by start.
func readableSpan(maps []Mapping, addr, n uint64) bool {
	if n == 0 {
		return true
	}
	end := addr + n
	if end < addr {
		return false
	}
	for _, m := range maps {
		if m.End <= addr {
			continue
		}
		if m.Start > addr || !m.Readable() {
			return false
		}
		if m.End >= end {
			return true
		}
		addr = m.End
	}
	return false
}
