package pattern

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOpt(t *testing.T, sig string) []Token {
	t.Helper()
	p, err := Compile(sig)
	require.NoError(t, err)
	tokens := p.Tokens()
	require.Equal(t, KindRecord, tokens[0].Kind)
	return tokens[1:]
}

func TestOptimize_FoldsHexRun(t *testing.T) {
	tokens := compileOpt(t, "90 90 90 90 90")
	require.Len(t, tokens, 1)
	assert.Equal(t, KindLiteral, tokens[0].Kind)
	assert.Equal(t, One, tokens[0].Range)
	assert.Equal(t, bytes.Repeat([]byte{0x90}, 5), tokens[0].Bytes)
}

func TestOptimize_Rewrites(t *testing.T) {
	tests := []struct {
		name     string
		sig      string
		expected []Token
	}{
		{
			name:     "instruction bytes",
			sig:      "48 8B 05 . 48",
			expected: []Token{{Kind: KindLiteral, Range: One, Bytes: []byte{0x48, 0x8B, 0x05}}, {Kind: KindDot, Range: One}, {Kind: KindLiteral, Range: One, Bytes: []byte{0x48}}},
		},
		{
			name: "variable single value splits",
			sig:  "90{2,5}",
			expected: []Token{
				{Kind: KindLiteral, Range: One, Bytes: []byte{0x90, 0x90}},
				{Kind: KindClass, Range: Range{Min: 0, Max: 3}, Class: ClassOf(0x90)},
			},
		},
		{
			name:     "optional single value stays a set",
			sig:      "90?",
			expected: []Token{{Kind: KindClass, Range: Range{Min: 0, Max: 1}, Class: ClassOf(0x90)}},
		},
		{
			name:     "fixed literal expands",
			sig:      "'AB'{3}",
			expected: []Token{{Kind: KindLiteral, Range: One, Bytes: []byte("ABABAB")}},
		},
		{
			name: "variable literal splits",
			sig:  "'AB'{1,3}",
			expected: []Token{
				{Kind: KindLiteral, Range: One, Bytes: []byte("AB")},
				{Kind: KindLiteral, Range: Range{Min: 0, Max: 2}, Bytes: []byte("AB")},
			},
		},
		{
			name:     "variable literals fuse",
			sig:      "'AB'? 'AB'*",
			expected: []Token{{Kind: KindLiteral, Range: Range{Min: 0, Max: Unbounded}, Bytes: []byte("AB")}},
		},
		{
			name:     "dots fuse",
			sig:      ". .{2} .?",
			expected: []Token{{Kind: KindDot, Range: Range{Min: 3, Max: 4}}},
		},
		{
			name:     "full set becomes dot",
			sig:      "[00-FF]{2}",
			expected: []Token{{Kind: KindDot, Range: Exactly(2)}},
		},
		{
			name:     "equal sets fuse",
			sig:      "^00 ^00+",
			expected: []Token{{Kind: KindClass, Range: AtLeast(2), Class: ClassOf(0).Negate()}},
		},
		{
			name: "literal then quote stay apart",
			sig:  "'A' \"A\"",
			expected: []Token{
				{Kind: KindLiteral, Range: One, Bytes: []byte("A")},
				{Kind: KindQuote, Range: One, Bytes: []byte("A")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, compileOpt(t, tt.sig))
		})
	}
}

func TestOptimize_BackrefsNeverFuse(t *testing.T) {
	tokens := compileOpt(t, "40@L 40$1L")
	require.Len(t, tokens, 2)
	assert.Equal(t, KindBackref, tokens[0].Kind)
	assert.Equal(t, KindBackref, tokens[1].Kind)
}

func TestOptimize_RecordsSplitLiterals(t *testing.T) {
	p, err := Compile("48 8B <D off> 05")
	require.NoError(t, err)
	tokens := p.Tokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, []byte{0x48, 0x8B}, tokens[0].Bytes)
	assert.Equal(t, KindRecord, tokens[1].Kind)
	assert.Equal(t, []byte{0x05}, tokens[2].Bytes)
}

func TestOptimize_LiteralCap(t *testing.T) {
	tokens := compileOpt(t, "'AB'{10000}")
	require.Len(t, tokens, 1)
	assert.Equal(t, Exactly(0x10000), tokens[0].Range)
	assert.Equal(t, []byte("AB"), tokens[0].Bytes)
}

func TestCompile_WithoutOptimization(t *testing.T) {
	p, err := Compile("90 90", WithoutOptimization())
	require.NoError(t, err)
	tokens := p.Tokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, KindClass, tokens[1].Kind)
	assert.Equal(t, KindClass, tokens[2].Kind)
}
