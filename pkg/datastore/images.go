package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// ImageStore keeps scanned images addressed by their ImageID.
type ImageStore struct {
	Root string
}

// Store writes content and returns its ImageID. Storing the same content
// twice is a no-op.
func (s *ImageStore) Store(content []byte) (types.ImageID, error) {
	id := types.ComputeImageID(content)

	path := s.imagePath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.ImageID{}, fmt.Errorf("creating image directory: %w", err)
	}

	// temp file + rename so a crash never leaves a truncated image
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return types.ImageID{}, fmt.Errorf("writing image: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return types.ImageID{}, fmt.Errorf("renaming image: %w", err)
	}

	return id, nil
}

// Get reads a stored image.
func (s *ImageStore) Get(id types.ImageID) ([]byte, error) {
	content, err := os.ReadFile(s.imagePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found: %s", id.Hex())
		}
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return content, nil
}

// Exists reports whether an image is stored.
func (s *ImageStore) Exists(id types.ImageID) bool {
	_, err := os.Stat(s.imagePath(id))
	return err == nil
}

// imagePath fans images out by the first byte of their ID: images/ab/cdef...
func (s *ImageStore) imagePath(id types.ImageID) string {
	h := id.Hex()
	return filepath.Join(s.Root, h[:2], h[2:])
}
