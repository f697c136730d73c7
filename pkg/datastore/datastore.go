package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/sigscan/pkg/store"
)

// DatabaseName is the metadata database inside a datastore directory.
const DatabaseName = "datastore.db"

// Datastore manages a datastore directory: a SQLite database of hits plus,
// optionally, a copy of every scanned image.
type Datastore struct {
	Path   string      // Directory path (e.g., "sigscan.ds")
	Store  store.Store // SQLite store for metadata
	Images *ImageStore // nil unless StoreImages is set
}

// Options configures datastore behavior.
type Options struct {
	StoreImages bool // keep scanned image bytes under images/
}

// Open opens or creates a datastore directory.
func Open(path string, opts Options) (*Datastore, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore path is required")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating datastore directory: %w", err)
	}

	ds := &Datastore{Path: path}
	if opts.StoreImages {
		root := filepath.Join(path, "images")
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("creating images directory: %w", err)
		}
		ds.Images = &ImageStore{Root: root}
	}

	if err := os.WriteFile(filepath.Join(path, ".gitignore"), []byte("*\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	s, err := store.New(store.Config{Path: filepath.Join(path, DatabaseName)})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	ds.Store = s

	return ds, nil
}

// Close closes the datastore and releases resources.
func (d *Datastore) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
