package types

import (
	"crypto/sha1"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ImageID is a SHA-1 content hash (20 bytes) of a scanned image.
type ImageID [20]byte

// ComputeImageID computes SHA-1("image {len}\0{content}").
func ComputeImageID(content []byte) ImageID {
	header := fmt.Sprintf("image %d\x00", len(content))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(content)

	var id ImageID
	copy(id[:], h.Sum(nil))
	return id
}

// Hex returns 40-character hex string.
func (id ImageID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements Stringer (returns Hex()).
func (id ImageID) String() string {
	return id.Hex()
}

// IsZero reports whether id is the zero value.
func (id ImageID) IsZero() bool {
	return id == ImageID{}
}

// ParseImageID parses 40-char hex string to ImageID.
func ParseImageID(hexStr string) (ImageID, error) {
	if len(hexStr) != 40 {
		return ImageID{}, fmt.Errorf("invalid image ID length: expected 40, got %d", len(hexStr))
	}

	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return ImageID{}, fmt.Errorf("invalid hex string: %w", err)
	}

	var id ImageID
	copy(id[:], decoded)
	return id, nil
}

// MarshalJSON implements json.Marshaler.
func (id ImageID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ImageID) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}

	parsed, err := ParseImageID(hexStr)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}

// Value implements driver.Valuer for SQL serialization.
func (id ImageID) Value() (driver.Value, error) {
	return id.Hex(), nil
}

// Scan implements sql.Scanner for SQL deserialization.
func (id *ImageID) Scan(value interface{}) error {
	var hexStr string
	switch v := value.(type) {
	case string:
		hexStr = v
	case []byte:
		hexStr = string(v)
	case nil:
		return fmt.Errorf("cannot scan nil into ImageID")
	default:
		return fmt.Errorf("cannot scan type %T into ImageID", value)
	}

	parsed, err := ParseImageID(hexStr)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}
