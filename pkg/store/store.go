package store

import (
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Store provides persistence for scan results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (memory, SQLite, PostgreSQL).
type Store interface {
	// AddImage stores an image record.
	AddImage(id types.ImageID, size int64, format string) error

	// AddSignature stores the signature a hit refers to.
	AddSignature(sig *types.Signature) error

	// AddHit stores a hit record. Hits are unique by StructuralID.
	AddHit(h *types.Hit) error

	// AddProvenance associates provenance with an image.
	AddProvenance(id types.ImageID, prov types.Provenance) error

	// ImageExists checks if an image has already been scanned.
	ImageExists(id types.ImageID) (bool, error)

	// GetHits retrieves hits for an image.
	GetHits(id types.ImageID) ([]*types.Hit, error)

	// GetAllHits retrieves all hits in insertion order.
	GetAllHits() ([]*types.Hit, error)

	// GetSignatures retrieves all stored signatures.
	GetSignatures() ([]*types.Signature, error)

	// GetProvenance retrieves the first provenance recorded for an image.
	GetProvenance(id types.ImageID) (types.Provenance, error)

	// GetAllProvenance retrieves every provenance recorded for an image.
	GetAllProvenance(id types.ImageID) ([]types.Provenance, error)

	// SetAnnotation records a triage status ("accept", "reject" or "") and
	// comment for a finding or hit. Kind is AnnotationFinding or AnnotationHit.
	SetAnnotation(kind, id, status, comment string) error

	// GetAnnotation returns the annotation for kind and id. Both strings are
	// empty when none was recorded.
	GetAnnotation(kind, id string) (status, comment string, err error)

	// Close releases the backend.
	Close() error
}

// Annotation kinds.
const (
	AnnotationFinding = "finding"
	AnnotationHit     = "hit"
)

// Config for store initialization.
type Config struct {
	// Path selects the backend:
	//   ":memory:"            in-process memory store
	//   "postgres://..."      PostgreSQL via pgxpool
	//   anything else         SQLite database file
	Path string

	// MaxConns bounds the PostgreSQL pool (0 = pgxpool default).
	MaxConns int32
}

// IsPostgresDSN reports whether path is a PostgreSQL connection URL.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

// Findings groups every stored hit into findings.
func Findings(s Store) ([]*types.Finding, error) {
	hits, err := s.GetAllHits()
	if err != nil {
		return nil, err
	}
	return types.GroupFindings(hits), nil
}
