package enum

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// FilesystemEnumerator yields the files under a directory, or a single file.
type FilesystemEnumerator struct {
	config   Config
	warnings io.Writer
}

func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config, warnings: os.Stderr}
}

// SetWarnings redirects archive warnings (default os.Stderr).
func (e *FilesystemEnumerator) SetWarnings(w io.Writer) {
	e.warnings = w
}

// Enumerate lists the eligible paths first, then reads and yields them with
// up to Config.Readers files in flight.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	paths, err := e.paths(ctx)
	if err != nil {
		return err
	}

	readers := e.config.Readers
	if readers <= 0 {
		readers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return e.yield(gctx, path, callback) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// paths walks the root and returns the files that pass the hidden, size,
// symlink and .gitignore filters.
func (e *FilesystemEnumerator) paths(ctx context.Context) ([]string, error) {
	root := e.config.Root

	var ignore *gitignore.GitIgnore
	if gi := filepath.Join(root, ".gitignore"); fileExists(gi) {
		ignore, _ = gitignore.CompileIgnoreFile(gi)
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// a root named on the command line is never hidden
		hidden := path != root && !e.config.IncludeHidden && isHidden(d.Name())
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !e.eligible(path, d) {
			return nil
		}

		if ignore != nil {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(rel) {
				return nil
			}
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

// eligible reports whether a non-directory entry is a regular file (or a
// followed symlink to one) within the size limit.
func (e *FilesystemEnumerator) eligible(path string, d fs.DirEntry) bool {
	var info fs.FileInfo
	var err error
	switch {
	case d.Type()&fs.ModeSymlink != 0:
		if !e.config.FollowSymlinks {
			return false
		}
		info, err = os.Stat(path)
	case d.Type().IsRegular():
		info, err = d.Info()
	default:
		return false
	}
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return e.config.MaxFileSize <= 0 || info.Size() <= e.config.MaxFileSize
}

// yield reads one file and passes it on, or each of its members when it is
// an archive and extraction is on. An archive that fails to open is scanned
// as plain bytes.
func (e *FilesystemEnumerator) yield(ctx context.Context, path string, callback Callback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if e.config.ExtractArchives && IsArchive(path) {
		members, err := ExtractMembers(path, content, e.config.MaxFileSize)
		if err == nil {
			for _, m := range members {
				prov := types.ArchiveProvenance{ArchivePath: path, MemberPath: m.Name}
				if err := callback(m.Content, types.ComputeImageID(m.Content), prov); err != nil {
					return err
				}
			}
			return nil
		}
		fmt.Fprintf(e.warnings, "[warn] %s: %v\n", path, err)
	}

	return callback(content, types.ComputeImageID(content), types.FileProvenance{FilePath: path})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isHidden reports dot-prefixed names, except "." and "..".
func isHidden(name string) bool {
	return name != "." && name != ".." && strings.HasPrefix(name, ".")
}
