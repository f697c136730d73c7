package enum

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// commitFiles writes files into the worktree and commits them.
func commitFiles(t *testing.T, repo *git.Repository, dir, msg string, files map[string][]byte) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
}

// setupTestGitRepo commits a firmware image, overwrites it, then copies the
// first version to a second path.
func setupTestGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commitFiles(t, repo, dir, "v1", map[string][]byte{"fw.bin": {0x55, 0x48, 0x89, 0xe5}})
	commitFiles(t, repo, dir, "v2", map[string][]byte{"fw.bin": {0x90, 0x90, 0xc3}})
	commitFiles(t, repo, dir, "keep v1", map[string][]byte{"old/fw.bin": {0x55, 0x48, 0x89, 0xe5}})
	return dir
}

func gitImages(t *testing.T, e Enumerator) map[string]types.GitProvenance {
	t.Helper()
	var mu sync.Mutex
	out := map[string]types.GitProvenance{}
	err := e.Enumerate(context.Background(), func(content []byte, id types.ImageID, prov types.Provenance) error {
		assert.Equal(t, types.ComputeImageID(content), id)
		gp, ok := prov.(types.GitProvenance)
		require.True(t, ok)
		mu.Lock()
		out[string(content)] = gp
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestGitEnumerator_History(t *testing.T) {
	dir := setupTestGitRepo(t)

	images := gitImages(t, NewGitEnumerator(Config{Root: dir}))
	require.Len(t, images, 2)

	v1, ok := images[string([]byte{0x55, 0x48, 0x89, 0xe5})]
	require.True(t, ok)
	require.NotNil(t, v1.Commit)
	assert.Equal(t, "keep v1", strings.TrimSpace(v1.Commit.Message))
	assert.Equal(t, "old/fw.bin", v1.BlobPath)
	assert.Equal(t, dir, v1.RepoPath)
	assert.Equal(t, "Test User", v1.Commit.AuthorName)

	v2, ok := images[string([]byte{0x90, 0x90, 0xc3})]
	require.True(t, ok)
	assert.Equal(t, "fw.bin", v2.BlobPath)
	assert.Equal(t, dir+"@"+v2.Commit.CommitID+":fw.bin", v2.Path())
}

func TestGitEnumerator_CommitRef(t *testing.T) {
	dir := setupTestGitRepo(t)

	e := NewGitEnumerator(Config{Root: dir})
	e.CommitRef = "HEAD~2"
	images := gitImages(t, e)
	require.Len(t, images, 1)
	assert.Equal(t, "v1", strings.TrimSpace(images[string([]byte{0x55, 0x48, 0x89, 0xe5})].Commit.Message))

	e.CommitRef = "no-such-ref"
	err := e.Enumerate(context.Background(), func([]byte, types.ImageID, types.Provenance) error { return nil })
	assert.ErrorContains(t, err, "failed to resolve ref")
}

func TestGitEnumerator_MaxFileSize(t *testing.T) {
	dir := setupTestGitRepo(t)

	images := gitImages(t, NewGitEnumerator(Config{Root: dir, MaxFileSize: 3}))
	require.Len(t, images, 1)
	_, ok := images[string([]byte{0x90, 0x90, 0xc3})]
	assert.True(t, ok)
}

func TestGitEnumerator_NotARepository(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte{0x90}, 0644))

	err := NewGitEnumerator(Config{Root: dir}).Enumerate(context.Background(), func([]byte, types.ImageID, types.Provenance) error { return nil })
	assert.ErrorContains(t, err, "failed to open git repository")
}

func TestGitEnumerator_ContextCancellation(t *testing.T) {
	dir := setupTestGitRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewGitEnumerator(Config{Root: dir}).Enumerate(ctx, func([]byte, types.ImageID, types.Provenance) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForTarget_Git(t *testing.T) {
	dir := setupTestGitRepo(t)
	e, err := ForTarget(context.Background(), dir, Config{Git: true}, S3Config{})
	require.NoError(t, err)
	assert.IsType(t, &GitEnumerator{}, e)
}
