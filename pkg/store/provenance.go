package store

import (
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// encodeProvenance serializes the concrete provenance type as JSON.
func encodeProvenance(prov types.Provenance) (string, error) {
	switch prov.(type) {
	case types.FileProvenance, types.ArchiveProvenance, types.GitProvenance, types.ProcessProvenance, types.ExtendedProvenance:
	default:
		return "", fmt.Errorf("unknown provenance type: %T", prov)
	}
	b, err := json.Marshal(prov)
	if err != nil {
		return "", fmt.Errorf("marshaling provenance: %w", err)
	}
	return string(b), nil
}

// decodeProvenance rebuilds a provenance from its kind and JSON payload.
func decodeProvenance(kind, payload string) (types.Provenance, error) {
	var (
		prov types.Provenance
		err  error
	)
	switch kind {
	case "file":
		var p types.FileProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "archive":
		var p types.ArchiveProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "git":
		var p types.GitProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "process":
		var p types.ProcessProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "extended":
		var p types.ExtendedProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	default:
		return nil, fmt.Errorf("unknown provenance kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshaling %s provenance: %w", kind, err)
	}
	return prov, nil
}
