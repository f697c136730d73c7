// Package disasm renders x86 instructions around signature hits.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Syntax selects the assembly dialect.
type Syntax string

const (
	IntelSyntax Syntax = "intel"
	ATTSyntax   Syntax = "att"
	GoSyntax    Syntax = "go"
)

// MaxInstLen is the longest encoding an x86 instruction can have.
const MaxInstLen = 15

// Config configures a Disassembler.
type Config struct {
	Bits   int    // 16, 32 or 64
	Syntax Syntax // defaults to IntelSyntax
}

// ConfigForPointerSize returns the config for an address space with the
// given pointer width.
func ConfigForPointerSize(ptrSize int) Config {
	if ptrSize == 4 {
		return Config{Bits: 32, Syntax: IntelSyntax}
	}
	return Config{Bits: 64, Syntax: IntelSyntax}
}

// Inst is one decoded instruction.
type Inst struct {
	Addr  uint64
	Bin   []byte
	Len   int
	Text  string
	Valid bool
}

// String formats the instruction as "addr: bytes  text".
func (i Inst) String() string {
	return fmt.Sprintf("%#x: % x  %s", i.Addr, i.Bin, i.Text)
}

// Disassembler decodes x86 machine code.
type Disassembler struct {
	bits   int
	format func(inst x86asm.Inst, pc uint64) string
}

// New creates a Disassembler.
func New(cfg Config) (*Disassembler, error) {
	switch cfg.Bits {
	case 16, 32, 64:
	default:
		return nil, fmt.Errorf("unsupported x86 mode: %d bits", cfg.Bits)
	}

	d := &Disassembler{bits: cfg.Bits}
	switch cfg.Syntax {
	case IntelSyntax, "":
		d.format = func(inst x86asm.Inst, pc uint64) string {
			return x86asm.IntelSyntax(inst, pc, nil)
		}
	case ATTSyntax:
		d.format = func(inst x86asm.Inst, pc uint64) string {
			return x86asm.GNUSyntax(inst, pc, nil)
		}
	case GoSyntax:
		d.format = func(inst x86asm.Inst, pc uint64) string {
			return x86asm.GoSyntax(inst, pc, nil)
		}
	default:
		return nil, fmt.Errorf("unsupported syntax type for x86: %q", cfg.Syntax)
	}
	return d, nil
}

// Next decodes the instruction at the start of code, which lives at addr.
// Undecodable bytes yield a one-byte "(bad)" instruction.
func (d *Disassembler) Next(code []byte, addr uint64) Inst {
	inst, err := x86asm.Decode(code, d.bits)
	if err != nil || inst.Len == 0 {
		n := 0
		if len(code) > 0 {
			n = 1
		}
		return Inst{Addr: addr, Bin: copySlice(code, n), Len: n, Text: "(bad)"}
	}
	return Inst{
		Addr:  addr,
		Bin:   copySlice(code, inst.Len),
		Len:   inst.Len,
		Text:  d.format(inst, addr),
		Valid: true,
	}
}

// Cover decodes instructions starting at addr until at least span bytes
// are covered or code runs out. code may extend past span so the last
// instruction can be decoded whole.
func (d *Disassembler) Cover(code []byte, addr uint64, span int) []Inst {
	var out []Inst
	for off := 0; off < span && off < len(code); {
		inst := d.Next(code[off:], addr+uint64(off))
		if inst.Len == 0 {
			break
		}
		out = append(out, inst)
		off += inst.Len
	}
	return out
}

// Lines is Cover rendered with Inst.String.
func (d *Disassembler) Lines(code []byte, addr uint64, span int) []string {
	insts := d.Cover(code, addr, span)
	lines := make([]string, len(insts))
	for i, inst := range insts {
		lines[i] = inst.String()
	}
	return lines
}

func copySlice(src []byte, n int) []byte {
	cp := make([]byte, n)
	copy(cp, src[:n])
	return cp
}
