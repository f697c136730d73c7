package types

// Snippet contains bytes around a hit.
type Snippet struct {
	Before   []byte // bytes before the hit
	Matching []byte // the matched bytes
	After    []byte // bytes after the hit
}
