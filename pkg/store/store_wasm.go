//go:build wasm

package store

import "fmt"

// New creates a Store for WASM builds, where only the memory backend is
// available.
func New(cfg Config) (Store, error) {
	if cfg.Path != ":memory:" {
		return nil, fmt.Errorf("only :memory: stores are available in wasm builds, got %q", cfg.Path)
	}
	return NewMemory(), nil
}
