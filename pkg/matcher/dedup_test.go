package matcher

import (
	"testing"

	"github.com/praetorian-inc/sigscan/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNewDeduplicator(t *testing.T) {
	d := NewDeduplicator()
	assert.NotNil(t, d)
	assert.NotNil(t, d.seen)
	assert.Equal(t, DedupeByLocation, d.mode)
}

func TestDeduplicator_ByLocation(t *testing.T) {
	d := NewDeduplicator()

	h1 := &types.Hit{StructuralID: "abc123", FindingID: "f1"}
	h2 := &types.Hit{StructuralID: "def456", FindingID: "f1"}
	h3 := &types.Hit{StructuralID: "abc123", FindingID: "f2"}

	assert.False(t, d.IsDuplicate(h1))
	d.Add(h1)
	assert.True(t, d.IsDuplicate(h1))

	// Same report elsewhere is a new location
	assert.False(t, d.IsDuplicate(h2))
	// Same location is a duplicate regardless of report
	assert.True(t, d.IsDuplicate(h3))
}

func TestDeduplicator_ByContent(t *testing.T) {
	d := NewContentDeduplicator()

	h1 := &types.Hit{StructuralID: "abc123", FindingID: "f1"}
	h2 := &types.Hit{StructuralID: "def456", FindingID: "f1"}
	h3 := &types.Hit{StructuralID: "abc123", FindingID: "f2"}

	d.Add(h1)
	assert.True(t, d.IsDuplicate(h2))
	assert.False(t, d.IsDuplicate(h3))
}

func TestDeduplicator_FilterAndReset(t *testing.T) {
	d := NewDeduplicator()
	hits := []*types.Hit{
		{StructuralID: "a"},
		{StructuralID: "b"},
		{StructuralID: "a"},
	}

	out := d.Filter(hits)
	assert.Len(t, out, 2)
	assert.Empty(t, d.Filter(hits))

	d.Reset()
	assert.Len(t, d.Filter(hits), 2)
}

func TestDeduplicator_SetMode(t *testing.T) {
	d := NewDeduplicator()
	d.SetMode(DedupeByContent)

	d.Add(&types.Hit{StructuralID: "x", FindingID: "same"})
	assert.True(t, d.IsDuplicate(&types.Hit{StructuralID: "y", FindingID: "same"}))
}
