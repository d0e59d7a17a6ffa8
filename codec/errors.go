package codec

import "errors"

var (
	// ErrInvalidShape indicates matrix dimensions that are not strictly positive.
	ErrInvalidShape = errors.New("codec: matrix rows and cols must be positive")
	// ErrOutOfRange indicates a value or dimension outside the allowed range.
	ErrOutOfRange = errors.New("codec: value out of range")
	// ErrUnsupportedWidth indicates an element bit width the codec cannot handle.
	ErrUnsupportedWidth = errors.New("codec: unsupported element bit width")
)
