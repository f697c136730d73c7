package enum

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("a.zip"))
	assert.True(t, IsArchive("dir/A.7Z"))
	assert.False(t, IsArchive("a.exe"))
	assert.False(t, IsArchive("zip"))
}

func TestExtractMembers_Zip(t *testing.T) {
	data := zipOf(t, map[string][]byte{
		"a.bin":     {0x90, 0x90},
		"dir/":      nil,
		"dir/b.bin": {0xc3},
	})

	members, err := ExtractMembers("x.zip", data, 0)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, Member{Name: "a.bin", Content: []byte{0x90, 0x90}}, members[0])
	assert.Equal(t, Member{Name: "dir/b.bin", Content: []byte{0xc3}}, members[1])
}

func TestExtractMembers_MaxSize(t *testing.T) {
	data := zipOf(t, map[string][]byte{
		"big.bin":   bytes.Repeat([]byte{0xcc}, 64),
		"small.bin": {0xcc},
	})

	members, err := ExtractMembers("x.zip", data, 8)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "small.bin", members[0].Name)
}

func TestExtractMembers_Errors(t *testing.T) {
	_, err := ExtractMembers("x.7z", []byte("garbage"), 0)
	assert.ErrorContains(t, err, "failed to open 7z archive")

	_, err = ExtractMembers("x.zip", []byte("garbage"), 0)
	assert.ErrorContains(t, err, "failed to open zip archive")

	_, err = ExtractMembers("x.tar", nil, 0)
	assert.ErrorContains(t, err, "unsupported archive type")
}
