package pattern

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is wrapped by every CompileError.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidAtom is wrapped by every DecodeError.
	ErrInvalidAtom = errors.New("invalid atom")
)

// CompileError reports malformed signature text.
type CompileError struct {
	Signature string
	Pos       int // byte offset into Signature
	Msg       string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling signature at offset %d: %s", e.Pos, e.Msg)
}

func (e *CompileError) Unwrap() error {
	return ErrInvalidSignature
}

// DecodeError reports a malformed atom buffer.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding atom at offset %d: %s", e.Offset, e.Msg)
}

func (e *DecodeError) Unwrap() error {
	return ErrInvalidAtom
}
