package scanner

import (
	"testing"

	"github.com/praetorian-inc/sigscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hitIDs(hits []*types.Hit) []string {
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.SignatureID)
	}
	return ids
}

func TestNewCore_Inline(t *testing.T) {
	core, err := NewCore("55 48 89 e5 / c3", nil)
	require.NoError(t, err)
	defer core.Close()
	assert.Equal(t, 2, core.Signatures())

	result, err := core.Scan(ScanItem{
		Source: "test",
		Data:   []byte{0x90, 0x55, 0x48, 0x89, 0xe5, 0xc3},
		Base:   0x1000,
		Raw:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "raw", result.Format)
	assert.Equal(t, types.ComputeImageID([]byte{0x90, 0x55, 0x48, 0x89, 0xe5, 0xc3}), result.ImageID)
	require.Equal(t, []string{"inline.1", "inline.2"}, hitIDs(result.Hits))
	assert.Equal(t, uint64(0x1001), result.Hits[0].Location.Address.Start)
	assert.Equal(t, uint64(0x1005), result.Hits[1].Location.Address.Start)

	stored, err := core.Hits()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestNewCore_Builtin(t *testing.T) {
	core, err := NewCore("builtin", nil)
	require.NoError(t, err)
	defer core.Close()

	builtin, err := GetBuiltinSignatures()
	require.NoError(t, err)
	assert.Equal(t, len(builtin), core.Signatures())

	result, err := core.Scan(ScanItem{Source: "frame", Data: []byte{0x55, 0x48, 0x89, 0xe5}})
	require.NoError(t, err)
	assert.Contains(t, hitIDs(result.Hits), "x64.prologue.frame")
}

func TestNewCore_YAML(t *testing.T) {
	yml := `signatures:
  - id: test.ret
    name: Return
    pattern: "<A at> c3"
`
	core, err := NewCore(yml, nil)
	require.NoError(t, err)
	defer core.Close()
	assert.Equal(t, 1, core.Signatures())

	result, err := core.Scan(ScanItem{Data: []byte{0xcc, 0xc3}, Base: 0x400000})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	v, ok := result.Hits[0].Report.Get("at")
	require.True(t, ok)
	assert.Equal(t, uint64(0x400001), v.Uint64())
}

func TestNewCore_BadSignature(t *testing.T) {
	_, err := NewCore("55 [", nil)
	assert.Error(t, err)
}

func TestCore_ScanNoHits(t *testing.T) {
	core, err := NewCore("de ad be ef", nil)
	require.NoError(t, err)
	defer core.Close()

	result, err := core.Scan(ScanItem{Data: []byte{0x90}})
	require.NoError(t, err)
	assert.NotNil(t, result.Hits)
	assert.Empty(t, result.Hits)
}

func TestCore_ScanBatch(t *testing.T) {
	core, err := NewCore("c3", nil)
	require.NoError(t, err)
	defer core.Close()

	result, err := core.ScanBatch([]ScanItem{
		{Source: "a", Data: []byte{0xc3}},
		{Source: "b", Data: []byte{0x90}},
		{Source: "c", Data: []byte{0x90, 0xc3}},
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 3)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "c", result.Results[2].Source)
}

func TestCore_Compile(t *testing.T) {
	core, err := NewCore("c3", nil)
	require.NoError(t, err)
	defer core.Close()

	res, err := core.Compile("<A fn> 55 48 89 e5")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Atom)
	assert.Len(t, res.StructuralID, 40)
	assert.Equal(t, []RecordInfo{{Name: "fn", Kind: "A"}}, res.Records)

	again, err := core.Compile(res.Canonical)
	require.NoError(t, err)
	assert.Equal(t, res.Atom, again.Atom)

	_, err = core.Compile("zz")
	assert.Error(t, err)
}

func TestCompileSignature_NilLogger(t *testing.T) {
	res, err := CompileSignature("E8 <^F call> .{4}", nil)
	require.NoError(t, err)
	assert.Equal(t, []RecordInfo{{Name: "call", Kind: "F", Relative: true}}, res.Records)
}
