package explore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/datastore"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/signature"
	"github.com/praetorian-inc/sigscan/pkg/store"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// exploreData holds all loaded data for the TUI.
type exploreData struct {
	store    store.Store
	images   *datastore.ImageStore // nil when the datastore kept no images
	findings []*findingRow
}

// loadData opens a datastore and loads findings, hits, provenance and
// annotations. storePath is a datastore directory, a .db file or a
// postgres:// DSN.
func loadData(storePath string) (*exploreData, error) {
	var images *datastore.ImageStore
	if !store.IsPostgresDSN(storePath) {
		info, err := os.Stat(storePath)
		if err != nil {
			return nil, fmt.Errorf("datastore not found: %s", storePath)
		}
		if info.IsDir() {
			root := filepath.Join(storePath, "images")
			if _, err := os.Stat(root); err == nil {
				images = &datastore.ImageStore{Root: root}
			}
			storePath = filepath.Join(storePath, datastore.DatabaseName)
		}
	}

	s, err := store.New(store.Config{Path: storePath})
	if err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}

	sigMap, err := signatureMap(s)
	if err != nil {
		s.Close()
		return nil, err
	}

	findings, err := store.Findings(s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("retrieving findings: %w", err)
	}

	rows := make([]*findingRow, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, buildFindingRow(f, sigMap, s))
	}

	return &exploreData{
		store:    s,
		images:   images,
		findings: rows,
	}, nil
}

// signatureMap indexes the signatures stored with the scan. Categories are
// not persisted, so they come from the builtin set when the ID matches.
func signatureMap(s store.Store) (map[string]*types.Signature, error) {
	stored, err := s.GetSignatures()
	if err != nil {
		return nil, fmt.Errorf("retrieving signatures: %w", err)
	}

	builtin, _ := signature.NewLoader().LoadBuiltin()
	categories := make(map[string][]string, len(builtin))
	for _, sig := range builtin {
		categories[sig.ID] = sig.Categories
	}

	out := make(map[string]*types.Signature, len(stored))
	for _, sig := range stored {
		if len(sig.Categories) == 0 {
			sig.Categories = categories[sig.ID]
		}
		out[sig.ID] = sig
	}
	return out, nil
}

// buildFindingRow creates a findingRow from a Finding and its hits.
func buildFindingRow(f *types.Finding, sigMap map[string]*types.Signature, s store.Store) *findingRow {
	row := &findingRow{
		FindingID:     f.ID,
		SignatureID:   f.SignatureID,
		SignatureName: f.SignatureID, // fallback
		Report:        f.Report,
		HitCount:      len(f.Hits),
	}

	if sig, ok := sigMap[f.SignatureID]; ok {
		row.SignatureName = sig.Name
		row.Pattern = sig.Pattern
		row.Arch = sig.Arch
		row.Categories = sig.Categories
	} else if len(f.Hits) > 0 && f.Hits[0].SignatureName != "" {
		row.SignatureName = f.Hits[0].SignatureName
	}

	seen := make(map[string]bool)
	for _, h := range f.Hits {
		if !seen[h.Region] {
			seen[h.Region] = true
			row.Regions = append(row.Regions, h.Region)
		}
	}

	if s != nil {
		status, comment, err := s.GetAnnotation(store.AnnotationFinding, f.ID)
		if err == nil {
			row.AnnotationStatus = status
			row.Comment = comment
		}
	}

	row.Hits = make([]*hitRow, 0, len(f.Hits))
	for _, h := range f.Hits {
		row.Hits = append(row.Hits, buildHitRow(h, s))
	}

	return row
}

// buildHitRow creates a hitRow from a Hit.
func buildHitRow(h *types.Hit, s store.Store) *hitRow {
	hr := &hitRow{
		StructuralID:  h.StructuralID,
		ImageID:       h.ImageID,
		SignatureName: h.SignatureName,
		Region:        h.Region,
		Location:      h.Location,
		Snippet:       h.Snippet,
		Disassembly:   h.Disassembly,
	}

	if s != nil {
		provs, err := s.GetAllProvenance(h.ImageID)
		if err == nil {
			hr.Provenance = provs
		}

		status, comment, err := s.GetAnnotation(store.AnnotationHit, h.StructuralID)
		if err == nil {
			hr.AnnotationStatus = status
			hr.Comment = comment
		}
	}

	return hr
}

// formatReport renders report entries as "name=value" pairs.
func formatReport(r pattern.Report) string {
	entries := r.Entries()
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Name + "=" + e.Value.String()
	}
	return strings.Join(parts, ", ")
}

// close closes the underlying store.
func (d *exploreData) close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// setFindingAnnotation persists a finding annotation.
func (d *exploreData) setFindingAnnotation(findingID, status, comment string) error {
	return d.store.SetAnnotation(store.AnnotationFinding, findingID, status, comment)
}

// setHitAnnotation persists a hit annotation.
func (d *exploreData) setHitAnnotation(hitID, status, comment string) error {
	return d.store.SetAnnotation(store.AnnotationHit, hitID, status, comment)
}

// findingRow is the denormalized view model for a finding in the TUI.
type findingRow struct {
	FindingID        string
	SignatureID      string
	SignatureName    string
	Pattern          string
	Arch             string
	Categories       []string
	Regions          []string // distinct, first-seen order
	Report           pattern.Report
	HitCount         int
	AnnotationStatus string // "accept", "reject", or ""
	Comment          string
	Hits             []*hitRow
}

// hitRow is the denormalized view model for a hit.
type hitRow struct {
	StructuralID     string
	ImageID          types.ImageID
	SignatureName    string
	Region           string
	Location         types.Location
	Snippet          types.Snippet
	Disassembly      []string
	Provenance       []types.Provenance
	AnnotationStatus string
	Comment          string
}
