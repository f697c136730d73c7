package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/signature"
)

func resetCompileFlags() {
	compileBundle = ""
	compileSignaturesPath = ""
	compileFormat = "hex"
	verbose = false
	quiet = false
}

func TestRunCompile_Hex(t *testing.T) {
	resetCompileFlags()
	cmd, stdout, _ := newTestCmd()

	require.NoError(t, runCompile(cmd, []string{"<A fn> 55 48 89 e5"}))

	want, err := scanner.CompileSignature("<A fn> 55 48 89 e5", nil)
	require.NoError(t, err)
	assert.Equal(t, want.Atom+"\n", stdout.String())
}

func TestRunCompile_JSON(t *testing.T) {
	resetCompileFlags()
	compileFormat = "json"
	cmd, stdout, _ := newTestCmd()

	require.NoError(t, runCompile(cmd, []string{"E8 <^F call> .{4}"}))

	var res scanner.CompileResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, "E8 <^F call> .{4}", res.Canonical)
	assert.Len(t, res.StructuralID, 40)
	assert.Equal(t, []scanner.RecordInfo{{Name: "call", Kind: "F", Relative: true}}, res.Records)
}

func TestRunCompile_Errors(t *testing.T) {
	resetCompileFlags()
	cmd, _, _ := newTestCmd()

	assert.ErrorContains(t, runCompile(cmd, nil), "a signature or --bundle is required")
	assert.Error(t, runCompile(cmd, []string{"55 zz"}))

	compileFormat = "xml"
	assert.ErrorContains(t, runCompile(cmd, []string{"c3"}), "unknown output format")

	resetCompileFlags()
	compileBundle = filepath.Join(t.TempDir(), "out.zst")
	assert.ErrorContains(t, runCompile(cmd, []string{"c3"}), "--bundle takes signatures")
}

func TestRunCompile_BundleAndDecode(t *testing.T) {
	resetCompileFlags()
	compileBundle = filepath.Join(t.TempDir(), "builtin.zst")
	cmd, stdout, _ := newTestCmd()

	require.NoError(t, runCompile(cmd, nil))
	assert.Contains(t, stdout.String(), "Wrote ")

	sigs, err := signature.ReadBundleFile(compileBundle)
	require.NoError(t, err)
	require.NotEmpty(t, sigs)

	cmd, stdout, _ = newTestCmd()
	require.NoError(t, runDecode(cmd, []string{"@" + compileBundle}))
	output := stdout.String()
	assert.Contains(t, output, "ID")
	for _, s := range sigs {
		assert.Contains(t, output, s.ID)
	}
}

func TestRunDecode_Atom(t *testing.T) {
	res, err := scanner.CompileSignature("E8 <^F call> .{4}", nil)
	require.NoError(t, err)

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runDecode(cmd, []string{res.Atom}))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "E8 <^F call> .{4}", lines[0])
	assert.Equal(t, []string{"0", "literal", "E8"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1", "record", "<^F", "call>"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"2", "dot", ".{4}"}, strings.Fields(lines[3]))
}

func TestRunDecode_Errors(t *testing.T) {
	cmd, _, _ := newTestCmd()

	assert.ErrorContains(t, runDecode(cmd, []string{"zz"}), "invalid atom hex")
	assert.Error(t, runDecode(cmd, []string{"ff"}))
	assert.Error(t, runDecode(cmd, []string{"@/nonexistent/bundle.zst"}))
}
