package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

func TestOpen_CreatesLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.ds")

	ds, err := Open(path, Options{StoreImages: true})
	require.NoError(t, err)
	defer ds.Close()

	assert.FileExists(t, filepath.Join(path, DatabaseName))
	assert.FileExists(t, filepath.Join(path, ".gitignore"))
	assert.DirExists(t, filepath.Join(path, "images"))
	require.NotNil(t, ds.Images)

	id := types.ComputeImageID([]byte{0x90})
	require.NoError(t, ds.Store.AddImage(id, 1, "raw"))
	exists, err := ds.Store.ImageExists(id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpen_WithoutImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.ds")

	ds, err := Open(path, Options{})
	require.NoError(t, err)
	defer ds.Close()

	assert.Nil(t, ds.Images)
	assert.NoDirExists(t, filepath.Join(path, "images"))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.ds")
	id := types.ComputeImageID([]byte{0xc3})

	ds, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, ds.Store.AddImage(id, 1, "raw"))
	require.NoError(t, ds.Close())

	ds, err = Open(path, Options{})
	require.NoError(t, err)
	defer ds.Close()

	exists, err := ds.Store.ImageExists(id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("", Options{})
	assert.ErrorContains(t, err, "datastore path is required")
}

func TestImageStore_Store(t *testing.T) {
	is := &ImageStore{Root: t.TempDir()}

	content := []byte{0x55, 0x48, 0x89, 0xe5}
	id, err := is.Store(content)
	require.NoError(t, err)
	assert.Equal(t, types.ComputeImageID(content), id)

	path := is.imagePath(id)
	assert.FileExists(t, path)
	assert.Equal(t, id.Hex()[:2], filepath.Base(filepath.Dir(path)))

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestImageStore_StoreIdempotent(t *testing.T) {
	is := &ImageStore{Root: t.TempDir()}

	id1, err := is.Store([]byte("dump"))
	require.NoError(t, err)
	id2, err := is.Store([]byte("dump"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	entries, err := os.ReadDir(filepath.Dir(is.imagePath(id1)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files")
}

func TestImageStore_GetAndExists(t *testing.T) {
	is := &ImageStore{Root: t.TempDir()}

	content := []byte{0xde, 0xad, 0xbe, 0xef}
	id, err := is.Store(content)
	require.NoError(t, err)

	assert.True(t, is.Exists(id))
	got, err := is.Get(id)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	missing := types.ComputeImageID([]byte("missing"))
	assert.False(t, is.Exists(missing))
	_, err = is.Get(missing)
	assert.ErrorContains(t, err, "image not found")
}
