package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// prologue is a raw dump with one frame-pointer prologue at offset 2.
var prologue = []byte{0xcc, 0xcc, 0x55, 0x48, 0x89, 0xe5, 0xc3}

func resetScanFlags() {
	scanSignaturesPath = ""
	scanSignatureText = ""
	scanSignaturesInclude = ""
	scanSignaturesExclude = ""
	scanOutputPath = ":memory:"
	scanOutputFormat = "human"
	scanMaxFileSize = 256 * 1024 * 1024
	scanIncludeHidden = false
	scanExtractArchives = false
	scanGitHistory = false
	scanIncremental = false
	scanStoreImages = false
	scanWorkers = 0
	scanPrefilter = true
	scanDisassemble = false
	scanRaw = false
	scanBase = "0"
	scanPointerSize = 8
	scanPID = 0
	scanModule = ""
	verbose = false
	quiet = false
}

func newTestCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func writeDump(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunScan_RawFile(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	target := writeDump(t, tmpDir, "dump.bin", prologue)

	scanSignatureText = "<A fn> 55 48 89 e5"
	scanOutputPath = filepath.Join(tmpDir, "scan.db")
	scanRaw = true
	scanBase = "0x1000"

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{target}))

	output := stdout.String()
	assert.Contains(t, output, "Scan complete: 1 images, 1 hits, 1 findings")
	assert.Contains(t, output, "Results stored in: "+scanOutputPath)
	assert.Contains(t, output, "1. Signature: inline.1 (1 hits)")
	assert.Contains(t, output, "fn = 0x1002")

	_, err := os.Stat(scanOutputPath)
	assert.NoError(t, err, "datastore should be created")
}

func TestRunScan_JSON(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	target := writeDump(t, tmpDir, "dump.bin", prologue)

	scanSignatureText = "<A fn> 55 48 89 e5 / 'nothing here'"
	scanOutputFormat = "json"
	scanRaw = true
	scanBase = "4096"

	cmd, stdout, stderr := newTestCmd()
	require.NoError(t, runScan(cmd, []string{target}))

	// the summary goes to stderr so stdout stays valid JSON
	assert.Contains(t, stderr.String(), "Scan complete")

	var hits []*types.Hit
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "inline.1", hits[0].SignatureID)
	assert.Equal(t, uint64(0x1002), hits[0].Location.Address.Start)
	assert.Equal(t, types.ComputeImageID(prologue), hits[0].ImageID)

	v, ok := hits[0].Report.Get("fn")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1002), v.Uint64())
}

func TestRunScan_SARIF(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	target := writeDump(t, tmpDir, "dump.bin", prologue)

	scanSignatureText = "<A fn> 55 48 89 e5"
	scanOutputFormat = "sarif"
	scanRaw = true

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{target}))

	var log map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &log))
	assert.Equal(t, "2.1.0", log["version"])
	assert.Contains(t, stdout.String(), "inline.1")
	assert.Contains(t, stdout.String(), "dump.bin")
}

func TestRunScan_Directory(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	writeDump(t, tmpDir, "a.bin", prologue)
	writeDump(t, tmpDir, "b.bin", append([]byte{0x90}, prologue...))
	writeDump(t, tmpDir, "c.bin", []byte{0x90, 0x90})

	scanSignatureText = "<A fn> 55 48 89 e5"
	scanRaw = true

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{tmpDir}))

	// different offsets give different report values, so two findings
	assert.Contains(t, stdout.String(), "Scan complete: 3 images, 2 hits, 2 findings")
}

func TestRunScan_Incremental(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	dumps := filepath.Join(tmpDir, "dumps")
	require.NoError(t, os.Mkdir(dumps, 0755))
	writeDump(t, dumps, "dump.bin", prologue)

	scanSignatureText = "<A fn> 55 48 89 e5"
	scanOutputPath = filepath.Join(tmpDir, "scan.db")
	scanRaw = true
	scanIncremental = true

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{dumps}))
	assert.Contains(t, stdout.String(), "Scan complete: 1 images, 1 hits, 1 findings (0 images skipped)")

	cmd, stdout, _ = newTestCmd()
	require.NoError(t, runScan(cmd, []string{dumps}))
	assert.Contains(t, stdout.String(), "Scan complete: 0 images, 0 hits, 1 findings (1 images skipped)")
}

func TestRunScan_StoreImages(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	target := writeDump(t, tmpDir, "dump.bin", prologue)

	scanSignatureText = "<A fn> 55 48 89 e5"
	scanOutputPath = filepath.Join(tmpDir, "scan.ds")
	scanStoreImages = true
	scanRaw = true

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{target}))
	assert.Contains(t, stdout.String(), "Scan complete: 1 images, 1 hits, 1 findings")

	assert.FileExists(t, filepath.Join(scanOutputPath, datastore.DatabaseName))
	is := &datastore.ImageStore{Root: filepath.Join(scanOutputPath, "images")}
	stored, err := is.Get(types.ComputeImageID(prologue))
	require.NoError(t, err)
	assert.Equal(t, prologue, stored)

	// report resolves the directory to its database
	resolved, err := resolveDatastore(scanOutputPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scanOutputPath, datastore.DatabaseName), resolved)
}

func TestRunScan_GitHistory(t *testing.T) {
	resetScanFlags()
	tmpDir := t.TempDir()
	repo, err := git.PlainInit(tmpDir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	// the prologue only survives in the first commit
	for i, content := range [][]byte{prologue, {0x90, 0x90}} {
		writeDump(t, tmpDir, "dump.bin", content)
		_, err := wt.Add("dump.bin")
		require.NoError(t, err)
		_, err = wt.Commit("rev", &git.CommitOptions{Author: &object.Signature{
			Name: "Test User",
			When: time.Date(2024, 1, 15, 10, 30, i, 0, time.UTC),
		}})
		require.NoError(t, err)
	}

	scanSignatureText = "<A fn> 55 48 89 e5"
	scanRaw = true

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{tmpDir}))
	assert.Contains(t, stdout.String(), "Scan complete: 1 images, 0 hits, 0 findings")

	scanGitHistory = true
	cmd, stdout, _ = newTestCmd()
	require.NoError(t, runScan(cmd, []string{tmpDir}))
	assert.Contains(t, stdout.String(), "Scan complete: 2 images, 1 hits, 1 findings")
}

func TestRunScan_BuiltinExecutable(t *testing.T) {
	resetScanFlags()
	exe, err := os.Executable()
	require.NoError(t, err)

	scanSignaturesInclude = `^x64\.prologue\.frame$`

	cmd, stdout, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{exe}))
	assert.Contains(t, stdout.String(), "Scan complete: 1 images")
}

func TestRunScan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		args    []string
		wantErr string
	}{
		{
			name:    "no target",
			setup:   func() {},
			wantErr: "a target or --pid is required",
		},
		{
			name:    "pid and target",
			setup:   func() { scanPID = 1 },
			args:    []string{"x"},
			wantErr: "--pid cannot be combined",
		},
		{
			name:    "bad base",
			setup:   func() { scanBase = "0xzz" },
			args:    []string{"x"},
			wantErr: "invalid --base",
		},
		{
			name:    "bad pointer size",
			setup:   func() { scanPointerSize = 2 },
			args:    []string{"x"},
			wantErr: "invalid --pointer-size",
		},
		{
			name:    "bad signature",
			setup:   func() { scanSignatureText = "55 zz" },
			args:    []string{"x"},
			wantErr: "loading signatures",
		},
		{
			name: "store images in memory",
			setup: func() {
				scanSignatureText = "c3"
				scanStoreImages = true
			},
			args:    []string{"x"},
			wantErr: "--store-images requires a directory",
		},
		{
			name:    "missing target",
			setup:   func() { scanSignatureText = "c3" },
			args:    []string{"/nonexistent/path"},
			wantErr: "target not found",
		},
		{
			name: "bad format",
			setup: func() {
				scanSignatureText = "c3"
				scanOutputFormat = "xml"
			},
			args:    []string{os.Args[0]},
			wantErr: "unknown output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetScanFlags()
			tt.setup()
			cmd, _, _ := newTestCmd()
			err := runScan(cmd, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSignatures(t *testing.T) {
	builtin, err := loadSignatures("", "", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, builtin)

	x64, err := loadSignatures("", "", `^x64\.`, "")
	require.NoError(t, err)
	require.NotEmpty(t, x64)
	for _, s := range x64 {
		assert.True(t, strings.HasPrefix(s.ID, "x64."), s.ID)
	}

	_, err = loadSignatures("", "", "", ".*")
	assert.ErrorContains(t, err, "no signatures selected")

	inline, err := loadSignatures("ignored.yml", "90 / c3", "", "")
	require.NoError(t, err)
	assert.Len(t, inline, 2)
}
