package bmp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// decodeTrueColor decodes uncompressed 16/24/32-bit pixel data. Source
// pixels are blue-first; the output is red-first with no scaling except
// for the packed 16-bit path.
func decodeTrueColor(r io.Reader, hdr infoHeader, dst *writer) error {
	rowSize := hdr.rowSize()
	row := make([]byte, rowSize)

	for y := 0; y < hdr.height; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return fmt.Errorf("%w: scanline %d: %v", ErrUnexpectedEOF, y, err)
		}

		switch hdr.bitCount {
		case 16:
			for x := 0; x < hdr.width; x++ {
				pel := binary.LittleEndian.Uint16(row[x*2 : x*2+2])
				dst.set(x, y, expand5(pel>>11&0x1F), expand6(pel>>5&0x3F), expand5(pel&0x1F), 0xFF)
			}
		case 24:
			for x := 0; x < hdr.width; x++ {
				dst.set(x, y, row[x*3+2], row[x*3+1], row[x*3], 0xFF)
			}
		case 32:
			for x := 0; x < hdr.width; x++ {
				dst.set(x, y, row[x*4+2], row[x*4+1], row[x*4], row[x*4+3])
			}
		}
	}

	return nil
}

// expand5 widens a 5-bit channel to 8 bits with rounding.
func expand5(v uint16) byte {
	return byte((uint32(v)*255 + 15) / 31)
}

// expand6 widens a 6-bit channel to 8 bits with rounding.
func expand6(v uint16) byte {
	return byte((uint32(v)*255 + 31) / 63)
}

// decodeIndexed decodes uncompressed 1/4/8-bit pixel data through the
// palette. Sub-byte indices are packed most-significant-bit first.
func decodeIndexed(r io.Reader, hdr infoHeader, palette []paletteEntry, dst *writer) error {
	rowSize := hdr.rowSize()
	row := make([]byte, rowSize)

	bits := hdr.bitCount
	perByte := 8 / bits
	mask := byte(1<<bits - 1)

	for y := 0; y < hdr.height; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return fmt.Errorf("%w: scanline %d: %v", ErrUnexpectedEOF, y, err)
		}

		for x := 0; x < hdr.width; x++ {
			shift := 8 - bits - (x%perByte)*bits
			idx := row[x/perByte] >> shift & mask

			if err := dst.setIndex(x, y, idx, palette); err != nil {
				return err
			}
		}
	}

	return nil
}
