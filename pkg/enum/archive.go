package enum

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Member is one file extracted from an archive.
type Member struct {
	Name    string
	Content []byte
}

// IsArchive reports whether path names an archive whose members can be
// expanded.
func IsArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".7z":
		return true
	}
	return false
}

// ExtractMembers returns the regular-file members of a .zip or .7z archive.
// Members larger than maxSize (when > 0) are skipped.
func ExtractMembers(path string, content []byte, maxSize int64) ([]Member, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return extractZip(content, maxSize)
	case ".7z":
		return extract7z(content, maxSize)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", filepath.Ext(path))
	}
}

func extract7z(content []byte, maxSize int64) ([]Member, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z archive: %w", err)
	}

	var members []Member
	for _, f := range r.File {
		info := f.FileInfo()
		if info.IsDir() || !info.Mode().IsRegular() {
			continue
		}
		if maxSize > 0 && info.Size() > maxSize {
			continue
		}
		data, err := readMember(f.Open, maxSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read 7z member %s: %w", f.Name, err)
		}
		members = append(members, Member{Name: f.Name, Content: data})
	}
	return members, nil
}

func extractZip(content []byte, maxSize int64) ([]Member, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}

	var members []Member
	for _, f := range r.File {
		info := f.FileInfo()
		if info.IsDir() || !info.Mode().IsRegular() {
			continue
		}
		if maxSize > 0 && info.Size() > maxSize {
			continue
		}
		data, err := readMember(f.Open, maxSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read zip member %s: %w", f.Name, err)
		}
		members = append(members, Member{Name: f.Name, Content: data})
	}
	return members, nil
}

// readMember reads at most maxSize bytes; header sizes are not trusted.
func readMember(open func() (io.ReadCloser, error), maxSize int64) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if maxSize <= 0 {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("member exceeds %d bytes", maxSize)
	}
	return data, nil
}
