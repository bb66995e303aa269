package bmp

import "fmt"

// Image is the canonical decode result: a tightly packed row-major pixel
// buffer with row 0 always the visually topmost row, regardless of the
// source file's storage order.
type Image struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) or 4 (RGBA)
	BitDepth int // 24 or 32
	Pix      []byte
}

// maxPixelBytes caps the decoded buffer at 1 GiB. Header dimensions are
// attacker-controlled, so the ceiling is enforced before allocation.
const maxPixelBytes = 1 << 30

// newImage allocates the zero-filled output buffer for the given geometry.
// A stream that terminates early leaves a deterministic all-zero result in
// the untouched region.
func newImage(width, height, channels, bitDepth int) (*Image, error) {
	// Staged so the product cannot overflow int64: height and channels
	// are each well below 2^32, and width is bounded against the
	// remaining headroom before multiplying.
	rowBytes := int64(height) * int64(channels)
	if rowBytes > maxPixelBytes || int64(width) > maxPixelBytes/rowBytes {
		return nil, ErrTooLarge
	}

	size := int64(width) * rowBytes

	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		BitDepth: bitDepth,
		Pix:      make([]byte, size),
	}, nil
}

// writer is the single bounds-checked pixel sink shared by every decode
// path. It owns the top-down/bottom-up normalization so the orientation
// logic exists exactly once.
type writer struct {
	img     *Image
	topDown bool
}

// set writes one pixel at logical coordinates (x, y) of the source grid.
// Coordinates outside the image are discarded; the RLE decoder relies on
// this to tolerate encoder overruns past the row end.
func (w *writer) set(x, y int, r, g, b, a byte) {
	if x < 0 || x >= w.img.Width || y < 0 || y >= w.img.Height {
		return
	}

	row := y
	if !w.topDown {
		row = w.img.Height - 1 - y
	}

	off := (row*w.img.Width + x) * w.img.Channels
	w.img.Pix[off] = r
	w.img.Pix[off+1] = g
	w.img.Pix[off+2] = b
	if w.img.Channels == 4 {
		w.img.Pix[off+3] = a
	}
}

// setIndex resolves a palette index and writes the pixel. An out-of-range
// index on a written pixel is a hard failure, never clamped. The lookup is
// part of the write, so pixels discarded by the position guard are not
// index-checked.
func (w *writer) setIndex(x, y int, idx byte, palette []paletteEntry) error {
	if x < 0 || x >= w.img.Width || y < 0 || y >= w.img.Height {
		return nil
	}

	if int(idx) >= len(palette) {
		return fmt.Errorf("%w: palette index %d out of range (%d entries)", ErrInvalidFormat, idx, len(palette))
	}

	c := palette[idx]
	w.set(x, y, c.r, c.g, c.b, 0xFF)

	return nil
}
