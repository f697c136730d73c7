package scanner

import "github.com/praetorian-inc/sigscan/pkg/types"

// ScanItem is one buffer to scan
type ScanItem struct {
	Source      string `json:"source"`                 // e.g., "upload:1", "pid:42"
	Data        []byte `json:"data"`                   // base64 in JSON
	Base        uint64 `json:"base,omitempty"`         // load address for raw dumps
	PointerSize int    `json:"pointer_size,omitempty"` // 4 or 8 for raw dumps, default 8
	Raw         bool   `json:"raw,omitempty"`          // skip executable header parsing
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string        `json:"source"`
	ImageID types.ImageID `json:"image_id"`
	Format  string        `json:"format"`
	Hits    []*types.Hit  `json:"hits"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// RecordInfo describes one capture of a compiled signature
type RecordInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Relative bool   `json:"relative,omitempty"`
}

// CompileResult is a compiled signature
type CompileResult struct {
	Signature    string       `json:"signature"`
	Canonical    string       `json:"canonical"`
	Atom         string       `json:"atom"` // hex
	StructuralID string       `json:"structural_id"`
	Records      []RecordInfo `json:"records"`
}

// DebugLogger provides platform-specific logging
type DebugLogger interface {
	Log(format string, args ...interface{})
}

// NoopLogger is a no-op logger
type NoopLogger struct{}

func (NoopLogger) Log(format string, args ...interface{}) {}
