package prefilter

import (
	"testing"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileAll(t *testing.T, sigs ...string) []*pattern.Pattern {
	t.Helper()
	out := make([]*pattern.Pattern, len(sigs))
	for i, s := range sigs {
		p, err := pattern.Compile(s)
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func TestPrefilter_MatchingAnchors(t *testing.T) {
	pf := New(compileAll(t,
		"55 48 89 e5",
		"4c 8b d1 b8 <D ssn> ....",
		"e8 <F target> .... 85 c0",
	))

	tests := []struct {
		name string
		data []byte
		want []int
	}{
		{"prologue only", []byte{0xcc, 0x55, 0x48, 0x89, 0xe5}, []int{0}},
		{"syscall only", []byte{0x4c, 0x8b, 0xd1, 0xb8, 0, 0, 0, 0}, []int{1}},
		{"call anchor", []byte{0x85, 0xc0}, []int{2}},
		{"all three", []byte{0x85, 0xc0, 0x4c, 0x8b, 0xd1, 0xb8, 0x55, 0x48, 0x89, 0xe5}, []int{0, 1, 2}},
		{"nothing", []byte{0x90, 0x90}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pf.Candidates(tt.data))
		})
	}
	assert.Equal(t, 3, pf.Anchored())
}

func TestPrefilter_Unanchored(t *testing.T) {
	// Single-byte literals are too short to anchor on; optional literals never anchor.
	pf := New(compileAll(t, "90", "[50-57] c3", "'MZ'? c3 c3", "'UPX!'"))

	assert.Equal(t, []int{0, 1, 3}, pf.Candidates([]byte("UPX!")))
	assert.Equal(t, []int{0, 1, 2}, pf.Candidates([]byte{0xc3, 0xc3}))
	assert.Equal(t, []int{0, 1}, pf.Candidates([]byte{0x00}))
	assert.Equal(t, 2, pf.Anchored())
}

func TestPrefilter_SharedAnchor(t *testing.T) {
	pf := New(compileAll(t, "55 8b ec <A x>", "<A y> 55 8b ec"))

	assert.Equal(t, []int{0, 1}, pf.Candidates([]byte{0x55, 0x8b, 0xec}))
}

func TestPrefilter_All(t *testing.T) {
	pf := New(compileAll(t, "55 8b ec", "90"))
	assert.Equal(t, []int{0, 1}, pf.All())

	empty := New(nil)
	assert.Empty(t, empty.All())
	assert.Empty(t, empty.Candidates([]byte{1, 2, 3}))
}
