package bmp

import (
	"fmt"
	"io"
)

// RLE escape codes (second byte of a token whose count byte is zero).
const (
	rleEndOfLine   = 0
	rleEndOfBitmap = 1
	rleDelta       = 2
)

// decodeRLE runs the RLE8/RLE4 state machine over a tightly packed stream
// of 2-byte tokens. The cursor (x, y) walks the logical pixel grid; pixels
// that land beyond the row are counted but discarded, tolerating minor
// encoder overruns. Decoding ends only on the end-of-bitmap escape or on
// stream exhaustion, which is an error: a conforming stream must supply
// its own end marker.
func decodeRLE(r io.Reader, hdr infoHeader, palette []paletteEntry, dst *writer) error {
	rle4 := hdr.compression == compressionRLE4

	var (
		tok [2]byte
		x   int
		y   int
	)

	for {
		if _, err := io.ReadFull(r, tok[:]); err != nil {
			return fmt.Errorf("%w: RLE token: %v", ErrUnexpectedEOF, err)
		}

		count, value := int(tok[0]), tok[1]

		if count > 0 {
			// Encoded run. RLE4 alternates the two nibbles of the
			// value byte, starting with the high nibble.
			for i := 0; i < count; i++ {
				idx := value
				if rle4 {
					if i%2 == 0 {
						idx = value >> 4
					} else {
						idx = value & 0x0F
					}
				}

				if err := dst.setIndex(x, y, idx, palette); err != nil {
					return err
				}
				x++
			}

			continue
		}

		switch value {
		case rleEndOfLine:
			x = 0
			y++

		case rleEndOfBitmap:
			return nil

		case rleDelta:
			if _, err := io.ReadFull(r, tok[:]); err != nil {
				return fmt.Errorf("%w: RLE delta: %v", ErrUnexpectedEOF, err)
			}
			x += int(tok[0])
			y += int(tok[1])

		default:
			// Absolute mode: value literal indices follow, padded to
			// keep the stream 2-byte aligned.
			newX, err := decodeAbsolute(r, int(value), rle4, palette, dst, x, y)
			if err != nil {
				return err
			}
			x = newX
		}
	}
}

// decodeAbsolute reads an absolute-mode literal run of n indices plus its
// optional padding byte, writing through the same per-pixel guard as
// encoded runs.
func decodeAbsolute(r io.Reader, n int, rle4 bool, palette []paletteEntry, dst *writer, x, y int) (int, error) {
	size := n
	if rle4 {
		size = (n + 1) / 2
	}
	if n%2 != 0 {
		size++ // padding byte
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return x, fmt.Errorf("%w: RLE literal run: %v", ErrUnexpectedEOF, err)
	}

	for i := 0; i < n; i++ {
		idx := byte(0)
		if rle4 {
			idx = buf[i/2] >> 4
			if i%2 != 0 {
				idx = buf[i/2] & 0x0F
			}
		} else {
			idx = buf[i]
		}

		if err := dst.setIndex(x, y, idx, palette); err != nil {
			return x, err
		}
		x++
	}

	return x, nil
}
