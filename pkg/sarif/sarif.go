package sarif

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "sigscan"
	ToolVersion = "0.1.0"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents a signature
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	HelpURI          string           `json:"helpUri,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single hit
type Result struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    Message           `json:"message"`
	Locations  []Location        `json:"locations"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies the image and position
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
	Address          *Address         `json:"address,omitempty"`
}

// ArtifactLocation identifies the image
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the byte range within the scanned region
type Region struct {
	ByteOffset int64    `json:"byteOffset"`
	ByteLength int64    `json:"byteLength"`
	Snippet    *Snippet `json:"snippet,omitempty"`
}

// Snippet contains the matched bytes
type Snippet struct {
	Binary string `json:"binary"` // base64
}

// Address is the virtual address of a hit
type Address struct {
	AbsoluteAddress uint64 `json:"absoluteAddress"`
	RelativeAddress int64  `json:"relativeAddress"`
	Name            string `json:"name,omitempty"`
	Kind            string `json:"kind,omitempty"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddSignature adds a signature as a SARIF rule
func (r *Report) AddSignature(sig *types.Signature) {
	rule := Rule{
		ID:   sig.ID,
		Name: sig.Name,
		ShortDescription: ShortDescription{
			Text: sig.Description,
		},
	}

	// Add first reference as helpUri if available
	if len(sig.References) > 0 {
		rule.HelpURI = sig.References[0]
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, rule)
}

// AddResult adds a hit to the report
func (r *Report) AddResult(hit *types.Hit, imagePath string) {
	region := Region{
		ByteOffset: hit.Location.Offset.Start,
		ByteLength: hit.Location.Offset.Len(),
	}
	if len(hit.Snippet.Matching) > 0 {
		region.Snippet = &Snippet{Binary: base64.StdEncoding.EncodeToString(hit.Snippet.Matching)}
	}

	// Report values become result properties, e.g. "fn": "0x401000"
	var props map[string]string
	if !hit.Report.Empty() {
		props = make(map[string]string, hit.Report.Len())
		for _, e := range hit.Report.Entries() {
			props[e.Name] = e.Value.String()
		}
	}

	message := hit.SignatureName
	if message == "" {
		message = hit.SignatureID
	}

	result := Result{
		RuleID: hit.SignatureID,
		Level:  "note",
		Message: Message{
			Text: message,
		},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{
						URI: formatFileURI(imagePath),
					},
					Region: region,
					Address: &Address{
						AbsoluteAddress: hit.Location.Address.Start,
						RelativeAddress: hit.Location.Offset.Start,
						Name:            hit.Region,
						Kind:            "instruction",
					},
				},
			},
		},
		Properties: props,
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, URLs and relative paths stay as-is
func formatFileURI(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
