package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Bits: 8})
	assert.Error(t, err)

	_, err = New(Config{Bits: 64, Syntax: "masm"})
	assert.Error(t, err)

	d, err := New(Config{Bits: 32})
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestConfigForPointerSize(t *testing.T) {
	assert.Equal(t, 32, ConfigForPointerSize(4).Bits)
	assert.Equal(t, 64, ConfigForPointerSize(8).Bits)
	assert.Equal(t, 64, ConfigForPointerSize(0).Bits)
}

func TestCover_32Bit(t *testing.T) {
	d, err := New(Config{Bits: 32, Syntax: IntelSyntax})
	require.NoError(t, err)

	// xor eax, eax; inc eax; mov ebx, eax; int 0x80
	code := []byte{0x31, 0xc0, 0x40, 0x89, 0xc3, 0xcd, 0x80}
	insts := d.Cover(code, 0x1000, len(code))

	require.Len(t, insts, 4)
	var text []string
	for _, inst := range insts {
		assert.True(t, inst.Valid)
		text = append(text, inst.Text)
	}
	assert.Equal(t, []string{"xor eax, eax", "inc eax", "mov ebx, eax", "int 0x80"}, text)
	assert.Equal(t, uint64(0x1002), insts[1].Addr)
	assert.Equal(t, []byte{0xcd, 0x80}, insts[3].Bin)
}

func TestCover_StopsAfterSpan(t *testing.T) {
	d, err := New(ConfigForPointerSize(8))
	require.NoError(t, err)

	// push rbp; mov rbp, rsp; ret
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}

	insts := d.Cover(code, 0x400000, 2)
	require.Len(t, insts, 2)
	assert.Equal(t, "push rbp", insts[0].Text)
	assert.Equal(t, "mov rbp, rsp", insts[1].Text)
	assert.Equal(t, 3, insts[1].Len)
}

func TestNext_Bad(t *testing.T) {
	d, err := New(ConfigForPointerSize(8))
	require.NoError(t, err)

	// call rel32 with only two of its four displacement bytes
	inst := d.Next([]byte{0xe8, 0x01, 0x02}, 0x10)
	assert.False(t, inst.Valid)
	assert.Equal(t, "(bad)", inst.Text)
	assert.Equal(t, 1, inst.Len)
	assert.Equal(t, []byte{0xe8}, inst.Bin)

	empty := d.Next(nil, 0)
	assert.Equal(t, 0, empty.Len)
	assert.Empty(t, d.Cover(nil, 0, 4))
}

func TestLines(t *testing.T) {
	d, err := New(ConfigForPointerSize(4))
	require.NoError(t, err)

	lines := d.Lines([]byte{0x55}, 0x401000, 1)
	assert.Equal(t, []string{"0x401000: 55  push ebp"}, lines)
}
