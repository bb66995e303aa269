package bmp

import "errors"

// Decode failures fall into exactly four categories. Callers match them
// with errors.Is; every error returned by this package wraps one of these.
var (
	// ErrNotFound indicates the input file could not be opened.
	ErrNotFound = errors.New("bmp: file not found")

	// ErrUnexpectedEOF indicates a short read or premature end of stream,
	// including mid-token in an RLE stream.
	ErrUnexpectedEOF = errors.New("bmp: unexpected end of stream")

	// ErrInvalidFormat indicates bad magic bytes, an unsupported or
	// incompatible bit-depth/compression combination, or an out-of-range
	// palette index.
	ErrInvalidFormat = errors.New("bmp: invalid format")

	// ErrTooLarge indicates the declared dimensions would require a pixel
	// buffer beyond the decoder's allocation ceiling.
	ErrTooLarge = errors.New("bmp: image too large")
)
