package enum

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// GitEnumerator yields every distinct blob reachable from a repository's
// refs, including blobs no longer in the working tree.
type GitEnumerator struct {
	config Config
	// CommitRef limits the walk to the history of one revision. Empty walks
	// every ref.
	CommitRef string
}

func NewGitEnumerator(config Config) *GitEnumerator {
	return &GitEnumerator{config: config}
}

// Enumerate walks commits newest first and yields each blob once, with the
// first commit it was seen in.
func (e *GitEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("failed to open git repository: %w", err)
	}

	opts := &git.LogOptions{All: true}
	if e.CommitRef != "" {
		hash, err := repo.ResolveRevision(plumbing.Revision(e.CommitRef))
		if err != nil {
			return fmt.Errorf("failed to resolve ref %s: %w", e.CommitRef, err)
		}
		opts = &git.LogOptions{From: *hash}
	}

	commits, err := repo.Log(opts)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	defer commits.Close()

	seen := make(map[plumbing.Hash]bool)
	err = commits.ForEach(func(c *object.Commit) error {
		tree, err := c.Tree()
		if err != nil {
			return fmt.Errorf("failed to get tree of %s: %w", c.Hash, err)
		}
		meta := &types.CommitMetadata{
			CommitID:        c.Hash.String(),
			AuthorName:      c.Author.Name,
			AuthorEmail:     c.Author.Email,
			AuthorTimestamp: c.Author.When,
			Message:         c.Message,
		}

		return tree.Files().ForEach(func(f *object.File) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if seen[f.Hash] {
				return nil
			}
			seen[f.Hash] = true

			if e.config.MaxFileSize > 0 && f.Size > e.config.MaxFileSize {
				return nil
			}
			if f.Mode == filemode.Symlink {
				return nil
			}

			content, err := blobContent(f)
			if err != nil {
				return fmt.Errorf("failed to get contents of %s: %w", f.Name, err)
			}
			prov := types.GitProvenance{RepoPath: e.config.Root, Commit: meta, BlobPath: f.Name}
			return callback(content, types.ComputeImageID(content), prov)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to walk history: %w", err)
	}
	return ctx.Err()
}

func blobContent(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
