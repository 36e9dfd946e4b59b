package gguf

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic means the stream does not begin with the GGUF marker.
	ErrBadMagic = errors.New("not a GGUF container")
	// ErrTruncated means the stream ended before a declared field was complete.
	ErrTruncated = errors.New("truncated GGUF stream")
	// ErrInvalidUTF8 means a key or string payload is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 in GGUF string")
)

// UnknownValueTypeError reports a wire type tag outside the defined 0..12 set,
// at top level or as an array's element type.
type UnknownValueTypeError struct {
	Code uint32
}

func (e *UnknownValueTypeError) Error() string {
	return fmt.Sprintf("unknown GGUF value type %d", e.Code)
}
