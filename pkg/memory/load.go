package memory

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
)

// ErrUnknownFormat is returned by LoadImage for data that is not ELF, PE or
// Mach-O.
var ErrUnknownFormat = errors.New("unknown executable format")

// Config controls how a buffer becomes an Image.
type Config struct {
	Raw         bool   // skip header parsing
	Base        uint64 // load address of raw dumps
	PointerSize int    // pointer size of raw dumps, default 8
}

// Load parses data as an executable image. Anything that does not parse is
// mapped as a raw dump.
func Load(data []byte, cfg Config) (*Image, error) {
	if !cfg.Raw {
		if img, err := LoadImage(data); err == nil {
			return img, nil
		}
	}
	return LoadRaw(data, cfg.Base, cfg.PointerSize)
}

// LoadRaw maps data flat at base as a single region.
func LoadRaw(data []byte, base uint64, ptrSize int) (*Image, error) {
	img := NewImage(ptrSize)
	if err := img.Map("raw", base, data); err != nil {
		return nil, err
	}
	img.AddRegion(pattern.Region{Name: "raw", Start: base, End: base + uint64(len(data))})
	return img, nil
}

// LoadImage maps every allocated section of an ELF, PE or Mach-O file at its
// virtual address. Executable sections become the scan regions in address
// order; when there are none every mapped section is scanned.
func LoadImage(data []byte) (*Image, error) {
	var (
		img      *Image
		sections []section
		err      error
	)

	switch {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		img, sections, err = elfSections(data)
	case bytes.HasPrefix(data, []byte("MZ")):
		img, sections, err = peSections(data)
	case isMachO(data):
		img, sections, err = machoSections(data)
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(sections, func(i, j int) bool { return sections[i].addr < sections[j].addr })

	var mapped []section
	for _, s := range sections {
		if len(s.data) == 0 {
			continue
		}
		if err := img.Map(s.name, s.addr, s.data); err != nil {
			continue
		}
		mapped = append(mapped, s)
	}

	for _, s := range mapped {
		if s.exec {
			img.AddRegion(s.region())
		}
	}
	if len(img.regions) == 0 {
		for _, s := range mapped {
			img.AddRegion(s.region())
		}
	}
	return img, nil
}

// === HELPERS ===

type section struct {
	name string
	addr uint64
	data []byte
	exec bool
}

func (s section) region() pattern.Region {
	return pattern.Region{Name: s.name, Start: s.addr, End: s.addr + uint64(len(s.data))}
}

func elfSections(data []byte) (*Image, []section, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing ELF: %w", err)
	}
	defer f.Close()

	ptr := 4
	if f.Class == elf.ELFCLASS64 {
		ptr = 8
	}
	img := NewImage(ptr)
	img.Format = "elf"

	var out []section
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Type == elf.SHT_NOBITS {
			continue
		}
		b, err := s.Data()
		if err != nil {
			continue
		}
		out = append(out, section{
			name: s.Name,
			addr: s.Addr,
			data: b,
			exec: s.Flags&elf.SHF_EXECINSTR != 0,
		})
	}
	return img, out, nil
}

func peSections(data []byte) (*Image, []section, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing PE: %w", err)
	}
	defer f.Close()

	var base uint64
	ptr := 4
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		base = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		base = oh.ImageBase
		ptr = 8
	}
	img := NewImage(ptr)
	img.Format = "pe"

	var out []section
	for _, s := range f.Sections {
		b, err := s.Data()
		if err != nil {
			continue
		}
		if s.VirtualSize != 0 && uint32(len(b)) > s.VirtualSize {
			b = b[:s.VirtualSize]
		}
		out = append(out, section{
			name: s.Name,
			addr: base + uint64(s.VirtualAddress),
			data: b,
			exec: s.Characteristics&(pe.IMAGE_SCN_MEM_EXECUTE|pe.IMAGE_SCN_CNT_CODE) != 0,
		})
	}
	return img, out, nil
}

const (
	machoZerofill           = 0x1
	machoSectionType        = 0xff
	machoPureInstructions   = 0x80000000
	machoSomeInstructions   = 0x00000400
	machoGBZerofill         = 0xc
	machoThreadLocalZerofil = 0x12
)

func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch binary.LittleEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64:
		return true
	}
	switch binary.BigEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64:
		return true
	}
	return false
}

func machoSections(data []byte) (*Image, []section, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing Mach-O: %w", err)
	}
	defer f.Close()

	ptr := 4
	if f.Magic == macho.Magic64 {
		ptr = 8
	}
	img := NewImage(ptr)
	img.Format = "macho"

	var out []section
	for _, s := range f.Sections {
		switch s.Flags & machoSectionType {
		case machoZerofill, machoGBZerofill, machoThreadLocalZerofil:
			continue
		}
		b, err := s.Data()
		if err != nil {
			continue
		}
		out = append(out, section{
			name: s.Seg + "," + s.Name,
			addr: s.Addr,
			data: b,
			exec: s.Flags&(machoPureInstructions|machoSomeInstructions) != 0,
		})
	}
	return img, out, nil
}
