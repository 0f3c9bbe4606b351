package format

import "errors"

var (
	// ErrSignatureMismatch indicates a block header had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrGeometry indicates header fields that cannot describe a valid block.
	ErrGeometry = errors.New("format: invalid block geometry")
)
