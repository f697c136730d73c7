package signature

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/types"
	"gopkg.in/yaml.v3"
)

// BundleExt is the file extension of compressed signature bundles.
const BundleExt = ".zst"

// Loader handles loading signatures from YAML files.
type Loader struct {
	fs   fs.FS     // embedded filesystem for built-in signatures
	warn io.Writer // receives [warn] lines for skipped signatures
}

// NewLoader creates a loader with built-in signatures from embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs:   builtinFS,
		warn: os.Stderr,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs:   fsys,
		warn: os.Stderr,
	}
}

// SetWarnings redirects [warn] output. A nil writer discards it.
func (l *Loader) SetWarnings(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	l.warn = w
}

// LoadSignature loads a single signature from YAML bytes.
// Returns error if YAML is invalid or multiple signatures are present.
func (l *Loader) LoadSignature(data []byte) (*types.Signature, error) {
	sigs, err := l.LoadSignatures(data)
	if err != nil {
		return nil, err
	}
	if len(sigs) > 1 {
		return nil, fmt.Errorf("expected single signature, found %d", len(sigs))
	}
	return sigs[0], nil
}

// LoadSignatures loads every signature in YAML bytes. Any signature that
// does not compile fails the whole load.
func (l *Loader) LoadSignatures(data []byte) ([]*types.Signature, error) {
	var yamlFile yamlSignaturesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(yamlFile.Signatures) == 0 {
		return nil, fmt.Errorf("no signatures found in YAML")
	}

	sigs := make([]*types.Signature, 0, len(yamlFile.Signatures))
	for _, ys := range yamlFile.Signatures {
		s, err := convertYAMLSignature(ys)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, s)
	}
	return sigs, nil
}

// LoadSignatureFile loads a single signature from a YAML file path.
func (l *Loader) LoadSignatureFile(path string) (*types.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadSignature(data)
}

// LoadFile loads every signature from a YAML file. Signatures that do not
// compile are skipped with a warning.
func (l *Loader) LoadFile(path string) ([]*types.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.parseLenient(path, data)
}

// LoadPath loads signatures from a YAML file, a bundle, or every YAML file
// under a directory.
func (l *Loader) LoadPath(path string) ([]*types.Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		if strings.HasSuffix(path, BundleExt) {
			return ReadBundleFile(path)
		}
		return l.LoadFile(path)
	}

	var sigs []*types.Signature
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		loaded, err := l.LoadFile(p)
		if err != nil {
			return err
		}
		sigs = append(sigs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures found under %s", path)
	}
	return sigs, nil
}

// LoadSet loads a signature set from YAML bytes.
// Returns error if YAML is invalid or multiple sets are present.
func (l *Loader) LoadSet(data []byte) (*types.SignatureSet, error) {
	var yamlFile yamlSetsFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(yamlFile.Sets) == 0 {
		return nil, fmt.Errorf("no signature sets found in YAML")
	}
	if len(yamlFile.Sets) > 1 {
		return nil, fmt.Errorf("expected single signature set, found %d", len(yamlFile.Sets))
	}

	return convertYAMLSet(yamlFile.Sets[0]), nil
}

// LoadSetFile loads a signature set from a YAML file path.
func (l *Loader) LoadSetFile(path string) (*types.SignatureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadSet(data)
}

// LoadBuiltin loads all built-in signatures from embedded filesystem.
func (l *Loader) LoadBuiltin() ([]*types.Signature, error) {
	var sigs []*types.Signature

	err := fs.WalkDir(l.fs, "signatures", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		loaded, err := l.LoadSignatures(data)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		sigs = append(sigs, loaded...)

		return nil
	})

	if err != nil {
		return nil, err
	}

	return sigs, nil
}

// LoadBuiltinSets loads all built-in signature sets from embedded filesystem.
func (l *Loader) LoadBuiltinSets() ([]*types.SignatureSet, error) {
	var sets []*types.SignatureSet

	err := fs.WalkDir(l.fs, "sets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var yamlFile yamlSetsFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		for _, ys := range yamlFile.Sets {
			sets = append(sets, convertYAMLSet(ys))
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return sets, nil
}

// SelectSet returns the signatures named by set, in set order.
func SelectSet(sigs []*types.Signature, set *types.SignatureSet) ([]*types.Signature, error) {
	byID := make(map[string]*types.Signature, len(sigs))
	for _, s := range sigs {
		byID[s.ID] = s
	}

	out := make([]*types.Signature, 0, len(set.SignatureIDs))
	for _, id := range set.SignatureIDs {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("signature set %s references unknown signature ID: %s", set.ID, id)
		}
		out = append(out, s)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// parseLenient loads the signatures of one file, skipping those that do not
// compile.
func (l *Loader) parseLenient(path string, data []byte) ([]*types.Signature, error) {
	var yamlFile yamlSignaturesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var sigs []*types.Signature
	for _, ys := range yamlFile.Signatures {
		s, err := convertYAMLSignature(ys)
		if err != nil {
			fmt.Fprintf(l.warn, "[warn] %s: skipping %v\n", path, err)
			continue
		}
		sigs = append(sigs, s)
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no usable signatures in %s", path)
	}
	return sigs, nil
}

// convertYAMLSignature converts yamlSignature to types.Signature and
// computes StructuralID.
func convertYAMLSignature(ys yamlSignature) (*types.Signature, error) {
	s := &types.Signature{
		ID:               ys.ID,
		Name:             ys.Name,
		Pattern:          ys.Pattern,
		Description:      ys.Description,
		Module:           ys.Module,
		Arch:             ys.Arch,
		Examples:         ys.Examples,
		NegativeExamples: ys.NegativeExamples,
		References:       ys.References,
		Categories:       ys.Categories,
	}
	id, err := s.ComputeStructuralID()
	if err != nil {
		return nil, err
	}
	s.StructuralID = id
	return s, nil
}

// convertYAMLSet converts yamlSet to types.SignatureSet.
func convertYAMLSet(ys yamlSet) *types.SignatureSet {
	return &types.SignatureSet{
		ID:           ys.ID,
		Name:         ys.Name,
		Description:  ys.Description,
		SignatureIDs: ys.SignatureIDs,
	}
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}
