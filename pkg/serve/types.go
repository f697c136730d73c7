package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// Request is one NDJSON request line. ID is echoed in the response so
// clients can pipeline requests.
type Request struct {
	Type    string          `json:"type"` // scan, scan_batch, compile, hits, close
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload of a scan request. Its fields mirror
// scanner.ScanItem.
type ScanPayload struct {
	Source      string `json:"source"`
	Data        []byte `json:"data"` // base64
	Base        uint64 `json:"base,omitempty"`
	PointerSize int    `json:"pointer_size,omitempty"`
	Raw         bool   `json:"raw,omitempty"`
}

// ScanBatchPayload is the payload of a scan_batch request.
type ScanBatchPayload struct {
	Items []scanner.ScanItem `json:"items"`
}

// CompilePayload is the payload of a compile request.
type CompilePayload struct {
	Signature string `json:"signature"`
}

// Response is one NDJSON response line. Type is the request type, or
// "ready", "decode" and "unknown" for server-originated lines.
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data of the first response line.
type ReadyData struct {
	Version    string `json:"version"`
	Signatures int    `json:"signatures"`
}

// HitsData is the data of a hits response: every hit found since start.
type HitsData struct {
	Hits []*types.Hit `json:"hits"`
}
