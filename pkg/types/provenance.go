package types

import "fmt"

// Provenance tracks where an image was discovered.
type Provenance interface {
	Kind() string
	// Path returns displayable path (if applicable)
	Path() string
}

// FileProvenance for filesystem files.
type FileProvenance struct {
	FilePath string
}

// Kind returns "file".
func (f FileProvenance) Kind() string {
	return "file"
}

// Path returns the file path.
func (f FileProvenance) Path() string {
	return f.FilePath
}

// ProcessProvenance for live process memory.
type ProcessProvenance struct {
	PID    int
	Module string // module filter, empty for every executable mapping
}

// Kind returns "process".
func (p ProcessProvenance) Kind() string {
	return "process"
}

// Path returns "pid:N" or "pid:N:module".
func (p ProcessProvenance) Path() string {
	if p.Module == "" {
		return fmt.Sprintf("pid:%d", p.PID)
	}
	return fmt.Sprintf("pid:%d:%s", p.PID, p.Module)
}

// ExtendedProvenance for remote sources (S3, Azure Blob Storage, ...).
type ExtendedProvenance struct {
	Payload map[string]interface{}
}

// Kind returns "extended".
func (e ExtendedProvenance) Kind() string {
	return "extended"
}

// Path returns the "url" payload entry if present.
func (e ExtendedProvenance) Path() string {
	if u, ok := e.Payload["url"].(string); ok {
		return u
	}
	return ""
}
