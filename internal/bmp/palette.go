package bmp

import (
	"fmt"
	"io"
)

// paletteEntry holds one color table entry, already swapped from the
// on-disk blue-green-red-reserved layout.
type paletteEntry struct {
	r, g, b byte
}

// paletteLength returns the number of color table entries: the colors-used
// field when nonzero, otherwise the bit-depth default (2, 16 or 256).
func paletteLength(hdr infoHeader) (int, error) {
	max := 1 << hdr.bitCount

	if hdr.colorsUsed == 0 {
		return max, nil
	}

	if int64(hdr.colorsUsed) > int64(max) {
		return 0, fmt.Errorf("%w: %d palette entries for %d bits per pixel", ErrInvalidFormat, hdr.colorsUsed, hdr.bitCount)
	}

	return int(hdr.colorsUsed), nil
}

// readPalette reads the color table that immediately follows the info
// header. Each entry is 4 bytes: blue, green, red, reserved.
func readPalette(r io.Reader, length int) ([]paletteEntry, error) {
	raw := make([]byte, length*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: color table: %v", ErrUnexpectedEOF, err)
	}

	palette := make([]paletteEntry, length)
	for i := range palette {
		palette[i] = paletteEntry{
			b: raw[i*4],
			g: raw[i*4+1],
			r: raw[i*4+2],
		}
	}

	return palette, nil
}
