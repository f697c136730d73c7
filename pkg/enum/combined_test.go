package enum

import (
	"context"
	"errors"
	"testing"

	"github.com/praetorian-inc/sigscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEnumerator is a simple Enumerator that yields a fixed set of images.
type mockEnumerator struct {
	images []mockImage
}

type mockImage struct {
	content []byte
	imageID types.ImageID
	prov    types.Provenance
}

func (m *mockEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	for _, b := range m.images {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := callback(b.content, b.imageID, b.prov); err != nil {
			return err
		}
	}
	return nil
}

// imageIDFrom creates a fixed ImageID from a byte value for test convenience.
func imageIDFrom(b byte) types.ImageID {
	var id types.ImageID
	id[0] = b
	return id
}

func TestCombinedEnumerator_Empty(t *testing.T) {
	combined := NewCombinedEnumerator()

	var yielded int
	err := combined.Enumerate(context.Background(), func(content []byte, imageID types.ImageID, prov types.Provenance) error {
		yielded++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 0, yielded, "empty CombinedEnumerator should yield no images")
}

func TestCombinedEnumerator_SingleEnumerator(t *testing.T) {
	id1 := imageIDFrom(1)
	id2 := imageIDFrom(2)
	prov1 := types.FileProvenance{FilePath: "a.txt"}
	prov2 := types.FileProvenance{FilePath: "b.txt"}

	e1 := &mockEnumerator{images: []mockImage{
		{content: []byte("hello"), imageID: id1, prov: prov1},
		{content: []byte("world"), imageID: id2, prov: prov2},
	}}
	combined := NewCombinedEnumerator(e1)

	type yielded struct {
		imageID types.ImageID
		prov    types.Provenance
	}
	var results []yielded
	err := combined.Enumerate(context.Background(), func(content []byte, imageID types.ImageID, prov types.Provenance) error {
		results = append(results, yielded{imageID: imageID, prov: prov})
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, id1, results[0].imageID)
	assert.Equal(t, id2, results[1].imageID)
}

func TestCombinedEnumerator_DeduplicatesByImageID(t *testing.T) {
	sharedID := imageIDFrom(42)
	uniqueID := imageIDFrom(99)

	// Both enumerators yield the same imageID; only one should reach the callback.
	e1 := &mockEnumerator{images: []mockImage{
		{content: []byte("dup"), imageID: sharedID, prov: types.FileProvenance{FilePath: "first.txt"}},
	}}
	e2 := &mockEnumerator{images: []mockImage{
		{content: []byte("dup"), imageID: sharedID, prov: types.FileProvenance{FilePath: "second.txt"}},
		{content: []byte("unique"), imageID: uniqueID, prov: types.FileProvenance{FilePath: "unique.txt"}},
	}}
	combined := NewCombinedEnumerator(e1, e2)

	var imageIDs []types.ImageID
	err := combined.Enumerate(context.Background(), func(content []byte, imageID types.ImageID, prov types.Provenance) error {
		imageIDs = append(imageIDs, imageID)
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, imageIDs, 2, "shared image should be deduplicated, only 2 unique images expected")
	assert.Contains(t, imageIDs, sharedID)
	assert.Contains(t, imageIDs, uniqueID)
}

func TestCombinedEnumerator_AllUniqueImages(t *testing.T) {
	e1 := &mockEnumerator{images: []mockImage{
		{content: []byte("a"), imageID: imageIDFrom(1), prov: types.FileProvenance{FilePath: "a.txt"}},
		{content: []byte("b"), imageID: imageIDFrom(2), prov: types.FileProvenance{FilePath: "b.txt"}},
	}}
	e2 := &mockEnumerator{images: []mockImage{
		{content: []byte("c"), imageID: imageIDFrom(3), prov: types.FileProvenance{FilePath: "c.txt"}},
	}}
	combined := NewCombinedEnumerator(e1, e2)

	var count int
	err := combined.Enumerate(context.Background(), func(content []byte, imageID types.ImageID, prov types.Provenance) error {
		count++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, count, "all unique images from both enumerators should be yielded")
}

func TestCombinedEnumerator_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var callCount int
	e1 := &mockEnumerator{images: []mockImage{
		{content: []byte("a"), imageID: imageIDFrom(1), prov: types.FileProvenance{FilePath: "a.txt"}},
		{content: []byte("b"), imageID: imageIDFrom(2), prov: types.FileProvenance{FilePath: "b.txt"}},
	}}
	combined := NewCombinedEnumerator(e1)

	err := combined.Enumerate(ctx, func(content []byte, imageID types.ImageID, prov types.Provenance) error {
		callCount++
		cancel() // Cancel after first image
		return nil
	})

	// The context cancellation should propagate as an error.
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got: %v", err)
	assert.Equal(t, 1, callCount, "should stop after cancellation")
}
