package signature

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/praetorian-inc/sigscan/pkg/pattern"
	"github.com/praetorian-inc/sigscan/pkg/types"
)

// bundleMagic starts every decompressed bundle stream.
const bundleMagic = "SIGB\x01"

// maxBundleField caps a single length-prefixed field.
const maxBundleField = 16 << 20

// WriteBundle writes signatures as a zstd-compressed stream of
// (id, name, atom) records.
func WriteBundle(w io.Writer, sigs []*types.Signature) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	buf := []byte(bundleMagic)
	buf = binary.AppendUvarint(buf, uint64(len(sigs)))
	for _, s := range sigs {
		p, err := s.Compile()
		if err != nil {
			enc.Close()
			return err
		}
		atom, err := p.MarshalBinary()
		if err != nil {
			enc.Close()
			return fmt.Errorf("signature %s: %w", s.ID, err)
		}
		buf = appendField(buf, []byte(s.ID))
		buf = appendField(buf, []byte(s.Name))
		buf = appendField(buf, atom)
	}

	if _, err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("writing bundle: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return nil
}

// ReadBundle decodes a bundle written by WriteBundle. Every atom is decoded;
// any invalid atom rejects the whole bundle. Patterns are rendered back to
// canonical signature text.
func ReadBundle(r io.Reader) ([]*types.Signature, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	magic := make([]byte, len(bundleMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("reading bundle header: %w", err)
	}
	if string(magic) != bundleMagic {
		return nil, fmt.Errorf("not a signature bundle")
	}

	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("reading bundle header: %w", err)
	}

	var sigs []*types.Signature
	for i := uint64(0); i < count; i++ {
		id, err := readField(br)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %d: %w", i, err)
		}
		name, err := readField(br)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %s: %w", id, err)
		}
		atom, err := readField(br)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %s: %w", id, err)
		}

		p, err := pattern.Decode(atom)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %s: %w", id, err)
		}
		sid, err := types.PatternStructuralID(p)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %s: %w", id, err)
		}
		sigs = append(sigs, &types.Signature{
			ID:           string(id),
			Name:         string(name),
			Pattern:      p.String(),
			StructuralID: sid,
		})
	}
	return sigs, nil
}

// WriteBundleFile writes a bundle to path.
func WriteBundleFile(path string, sigs []*types.Signature) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating bundle %s: %w", path, err)
	}
	if err := WriteBundle(f, sigs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadBundleFile reads a bundle from path.
func ReadBundleFile(path string) ([]*types.Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle %s: %w", path, err)
	}
	defer f.Close()
	return ReadBundle(f)
}

// =============================================================================
// HELPERS
// =============================================================================

func appendField(buf, field []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(field)))
	return append(buf, field...)
}

func readField(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("reading field length: %w", err)
	}
	if n > maxBundleField {
		return nil, fmt.Errorf("field of %d bytes exceeds limit", n)
	}
	field := make([]byte, n)
	if _, err := io.ReadFull(r, field); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading field: %w", err)
	}
	return field, nil
}
