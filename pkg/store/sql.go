package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// SQLStore implements Store over database/sql. The SQLite and PostgreSQL
// backends differ only in dialect.
type SQLStore struct {
	db      *sql.DB
	d       dialect
	onClose func()
}

func newSQLStore(db *sql.DB, d dialect, onClose func()) (*SQLStore, error) {
	if err := createSchema(db, d); err != nil {
		db.Close()
		if onClose != nil {
			onClose()
		}
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLStore{db: db, d: d, onClose: onClose}, nil
}

// Dialect returns "sqlite" or "postgres".
func (s *SQLStore) Dialect() string {
	return s.d.name
}

// AddImage stores an image record.
func (s *SQLStore) AddImage(id types.ImageID, size int64, format string) error {
	_, err := s.db.Exec(s.d.insertIgnore("images", "id, size, format"), id.Hex(), size, format)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}
	return nil
}

// AddSignature stores a signature record.
func (s *SQLStore) AddSignature(sig *types.Signature) error {
	_, err := s.db.Exec(s.d.insertIgnore("signatures", "id, name, pattern, structural_id, description, module, arch"),
		sig.ID,
		sig.Name,
		sig.Pattern,
		sig.StructuralID,
		sig.Description,
		sig.Module,
		sig.Arch,
	)
	if err != nil {
		return fmt.Errorf("inserting signature: %w", err)
	}
	return nil
}

// AddHit stores a hit record.
func (s *SQLStore) AddHit(h *types.Hit) error {
	reportJSON, err := json.Marshal(h.Report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	disJSON, err := json.Marshal(h.Disassembly)
	if err != nil {
		return fmt.Errorf("marshaling disassembly: %w", err)
	}

	_, err = s.db.Exec(s.d.insertIgnore("hits",
		"image_id, signature_id, signature_name, structural_id, finding_id, region, "+
			"offset_start, offset_end, address_start, address_end, report_json, "+
			"snippet_before, snippet_matching, snippet_after, disassembly_json"),
		h.ImageID.Hex(),
		h.SignatureID,
		h.SignatureName,
		h.StructuralID,
		h.FindingID,
		h.Region,
		h.Location.Offset.Start,
		h.Location.Offset.End,
		int64(h.Location.Address.Start),
		int64(h.Location.Address.End),
		string(reportJSON),
		h.Snippet.Before,
		h.Snippet.Matching,
		h.Snippet.After,
		string(disJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting hit: %w", err)
	}
	return nil
}

// AddProvenance associates provenance with an image.
func (s *SQLStore) AddProvenance(id types.ImageID, prov types.Provenance) error {
	payload, err := encodeProvenance(prov)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(s.d.insertIgnore("provenance", "image_id, type, path, payload_json"),
		id.Hex(),
		prov.Kind(),
		prov.Path(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

// ImageExists checks if an image has already been scanned.
func (s *SQLStore) ImageExists(id types.ImageID) (bool, error) {
	var count int
	err := s.db.QueryRow(s.d.rebind("SELECT COUNT(*) FROM images WHERE id = ?"), id.Hex()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking image existence: %w", err)
	}
	return count > 0, nil
}

const hitColumns = `image_id, signature_id, signature_name, structural_id, finding_id, region,
	offset_start, offset_end, address_start, address_end, report_json,
	snippet_before, snippet_matching, snippet_after, disassembly_json`

// GetHits retrieves hits for an image.
func (s *SQLStore) GetHits(id types.ImageID) ([]*types.Hit, error) {
	return s.queryHits("SELECT "+hitColumns+" FROM hits WHERE image_id = ? ORDER BY id", id.Hex())
}

// GetAllHits retrieves all hits.
func (s *SQLStore) GetAllHits() ([]*types.Hit, error) {
	return s.queryHits("SELECT " + hitColumns + " FROM hits ORDER BY id")
}

func (s *SQLStore) queryHits(query string, args ...any) ([]*types.Hit, error) {
	rows, err := s.db.Query(s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying hits: %w", err)
	}
	defer rows.Close()

	hits := []*types.Hit{}
	for rows.Next() {
		h, err := scanHit(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

func scanHit(rows *sql.Rows) (*types.Hit, error) {
	var h types.Hit
	var imageIDHex, reportJSON string
	var name, region, disJSON sql.NullString
	var addrStart, addrEnd int64
	err := rows.Scan(
		&imageIDHex,
		&h.SignatureID,
		&name,
		&h.StructuralID,
		&h.FindingID,
		&region,
		&h.Location.Offset.Start,
		&h.Location.Offset.End,
		&addrStart,
		&addrEnd,
		&reportJSON,
		&h.Snippet.Before,
		&h.Snippet.Matching,
		&h.Snippet.After,
		&disJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning hit: %w", err)
	}

	id, err := types.ParseImageID(imageIDHex)
	if err != nil {
		return nil, fmt.Errorf("parsing image ID: %w", err)
	}
	h.ImageID = id
	h.SignatureName = name.String
	h.Region = region.String
	h.Location.Address = types.AddressSpan{Start: uint64(addrStart), End: uint64(addrEnd)}

	var report pattern.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	h.Report = report

	if disJSON.Valid && disJSON.String != "" {
		if err := json.Unmarshal([]byte(disJSON.String), &h.Disassembly); err != nil {
			return nil, fmt.Errorf("unmarshaling disassembly: %w", err)
		}
	}
	return &h, nil
}

// GetSignatures retrieves all stored signatures.
func (s *SQLStore) GetSignatures() ([]*types.Signature, error) {
	rows, err := s.db.Query(`
		SELECT id, name, pattern, structural_id, description, module, arch
		FROM signatures
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying signatures: %w", err)
	}
	defer rows.Close()

	var sigs []*types.Signature
	for rows.Next() {
		var sig types.Signature
		var desc, module, arch sql.NullString
		if err := rows.Scan(&sig.ID, &sig.Name, &sig.Pattern, &sig.StructuralID, &desc, &module, &arch); err != nil {
			return nil, fmt.Errorf("scanning signature: %w", err)
		}
		sig.Description = desc.String
		sig.Module = module.String
		sig.Arch = arch.String
		sigs = append(sigs, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signatures: %w", err)
	}
	return sigs, nil
}

// GetAllProvenance retrieves every provenance recorded for an image.
func (s *SQLStore) GetAllProvenance(id types.ImageID) ([]types.Provenance, error) {
	rows, err := s.db.Query(s.d.rebind(`
		SELECT type, payload_json FROM provenance WHERE image_id = ? ORDER BY id
	`), id.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	provs := []types.Provenance{}
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		prov, err := decodeProvenance(kind, payload)
		if err != nil {
			return nil, err
		}
		provs = append(provs, prov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return provs, nil
}

// GetProvenance retrieves the first provenance for an image.
func (s *SQLStore) GetProvenance(id types.ImageID) (types.Provenance, error) {
	provs, err := s.GetAllProvenance(id)
	if err != nil {
		return nil, err
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("no provenance found for image %s", id.Hex())
	}
	return provs[0], nil
}

// SetAnnotation upserts the annotation for kind and id.
func (s *SQLStore) SetAnnotation(kind, id, status, comment string) error {
	_, err := s.db.Exec(s.d.rebind(`
		INSERT INTO annotations (kind, target_id, status, comment) VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, target_id) DO UPDATE SET status = excluded.status, comment = excluded.comment
	`), kind, id, status, comment)
	if err != nil {
		return fmt.Errorf("storing annotation: %w", err)
	}
	return nil
}

// GetAnnotation returns the annotation for kind and id.
func (s *SQLStore) GetAnnotation(kind, id string) (string, string, error) {
	var status, comment string
	err := s.db.QueryRow(s.d.rebind(`
		SELECT status, comment FROM annotations WHERE kind = ? AND target_id = ?
	`), kind, id).Scan(&status, &comment)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("querying annotation: %w", err)
	}
	return status, comment, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	err := s.db.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}
