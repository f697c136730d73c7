package types

import (
	"testing"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_ComputeStructuralID(t *testing.T) {
	sig := &Signature{ID: "test.prologue", Pattern: "55 48 89 e5"}

	id, err := sig.ComputeStructuralID()
	require.NoError(t, err)
	assert.Len(t, id, 40)

	// different spelling, same compiled tokens
	same := &Signature{ID: "test.prologue2", Pattern: "<A> 55 48 [89] e5"}
	id2, err := same.ComputeStructuralID()
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	other := &Signature{ID: "test.other", Pattern: "55 48 89 e4"}
	id3, err := other.ComputeStructuralID()
	require.NoError(t, err)
	assert.NotEqual(t, id, id3)
}

func TestSignature_CompileError(t *testing.T) {
	sig := &Signature{ID: "test.bad", Pattern: "55 <Z>"}

	_, err := sig.ComputeStructuralID()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.bad")
	assert.ErrorIs(t, err, pattern.ErrInvalidSignature)
}

func TestPatternStructuralID(t *testing.T) {
	p := pattern.MustCompile("e8 <F call>")

	id, err := PatternStructuralID(p)
	require.NoError(t, err)

	decoded, err := pattern.Decode(mustAtom(t, p))
	require.NoError(t, err)
	id2, err := PatternStructuralID(decoded)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func mustAtom(t *testing.T, p *pattern.Pattern) []byte {
	t.Helper()
	atom, err := p.MarshalBinary()
	require.NoError(t, err)
	return atom
}

func TestSignature_PointerSize(t *testing.T) {
	assert.Equal(t, 4, (&Signature{Arch: "x86"}).PointerSize())
	assert.Equal(t, 8, (&Signature{Arch: "x64"}).PointerSize())
	assert.Equal(t, 8, (&Signature{}).PointerSize())
}
