//go:build !wasm

package store

import (
	"context"
	"fmt"
)

// New creates a Store for cfg.Path.
func New(cfg Config) (Store, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("path is required")
	case cfg.Path == ":memory:":
		return NewMemory(), nil
	case IsPostgresDSN(cfg.Path):
		return NewPostgres(context.Background(), cfg.Path, cfg.MaxConns)
	default:
		return NewSQLite(cfg.Path)
	}
}
