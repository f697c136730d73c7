package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// imageRecord stores image metadata.
type imageRecord struct {
	id     types.ImageID
	size   int64
	format string
}

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu         sync.RWMutex
	images     map[types.ImageID]imageRecord
	signatures map[string]*types.Signature
	hits       []*types.Hit        // insertion order
	hitIDs     map[string]struct{} // structural IDs already stored
	provenance map[types.ImageID][]types.Provenance
	notes      map[[2]string][2]string // (kind, id) -> (status, comment)
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		images:     make(map[types.ImageID]imageRecord),
		signatures: make(map[string]*types.Signature),
		hitIDs:     make(map[string]struct{}),
		provenance: make(map[types.ImageID][]types.Provenance),
		notes:      make(map[[2]string][2]string),
	}
}

// AddImage stores an image record.
func (m *MemoryStore) AddImage(id types.ImageID, size int64, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.images[id]; exists {
		// Idempotent - already exists
		return nil
	}
	m.images[id] = imageRecord{id: id, size: size, format: format}
	return nil
}

// AddSignature stores a signature record.
func (m *MemoryStore) AddSignature(sig *types.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.signatures[sig.ID]; !exists {
		m.signatures[sig.ID] = sig
	}
	return nil
}

// AddHit stores a hit record.
func (m *MemoryStore) AddHit(h *types.Hit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.hitIDs[h.StructuralID]; exists {
		return nil
	}
	m.hitIDs[h.StructuralID] = struct{}{}
	m.hits = append(m.hits, h)
	return nil
}

// AddProvenance associates provenance with an image.
func (m *MemoryStore) AddProvenance(id types.ImageID, prov types.Provenance) error {
	if _, err := encodeProvenance(prov); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Same uniqueness as the SQL backends: (image, kind, path)
	for _, p := range m.provenance[id] {
		if p.Kind() == prov.Kind() && p.Path() == prov.Path() {
			return nil
		}
	}
	m.provenance[id] = append(m.provenance[id], prov)
	return nil
}

// ImageExists checks if an image has already been scanned.
func (m *MemoryStore) ImageExists(id types.ImageID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.images[id]
	return exists, nil
}

// GetHits retrieves hits for an image.
func (m *MemoryStore) GetHits(id types.ImageID) ([]*types.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Hit{}
	for _, h := range m.hits {
		if h.ImageID == id {
			result = append(result, h)
		}
	}
	return result, nil
}

// GetAllHits retrieves all hits.
func (m *MemoryStore) GetAllHits() ([]*types.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid external modifications
	result := make([]*types.Hit, len(m.hits))
	copy(result, m.hits)
	return result, nil
}

// GetSignatures retrieves all stored signatures ordered by ID.
func (m *MemoryStore) GetSignatures() ([]*types.Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Signature, 0, len(m.signatures))
	for _, sig := range m.signatures {
		result = append(result, sig)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetAllProvenance retrieves all provenance records for an image.
func (m *MemoryStore) GetAllProvenance(id types.ImageID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[id]
	result := make([]types.Provenance, len(provs))
	copy(result, provs)
	return result, nil
}

// GetProvenance retrieves provenance for an image.
func (m *MemoryStore) GetProvenance(id types.ImageID) (types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[id]
	if len(provs) == 0 {
		return nil, fmt.Errorf("no provenance found for image %s", id.Hex())
	}
	return provs[0], nil
}

// SetAnnotation records the annotation for kind and id.
func (m *MemoryStore) SetAnnotation(kind, id, status, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[[2]string{kind, id}] = [2]string{status, comment}
	return nil
}

// GetAnnotation returns the annotation for kind and id.
func (m *MemoryStore) GetAnnotation(kind, id string) (string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.notes[[2]string{kind, id}]
	return n[0], n[1], nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
