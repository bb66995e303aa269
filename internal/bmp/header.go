package bmp

import (
	"encoding/binary"
	"fmt"
)

// Compression codes from the info header.
const (
	compressionRGB  = 0
	compressionRLE8 = 1
	compressionRLE4 = 2
)

const (
	fileHeaderSize = 14
	infoHeaderSize = 40
)

// fileHeader is the 14-byte BITMAPFILEHEADER. The declared file size is
// advisory and not retained; only the pixel-data offset is needed.
type fileHeader struct {
	dataOffset uint32
}

// infoHeader is the 40-byte BITMAPINFOHEADER with the height sign already
// consumed: height is absolute and topDown records the row storage order.
type infoHeader struct {
	headerSize  uint32
	width       int
	height      int
	topDown     bool
	bitCount    int
	compression uint32
	colorsUsed  uint32
}

// parseFileHeader unmarshals the file header from its 14 raw bytes.
// All fields are little-endian on disk regardless of host byte order.
func parseFileHeader(buf []byte) (fileHeader, error) {
	if buf[0] != 'B' || buf[1] != 'M' {
		return fileHeader{}, fmt.Errorf("%w: bad magic bytes 0x%02x 0x%02x", ErrInvalidFormat, buf[0], buf[1])
	}

	return fileHeader{
		dataOffset: binary.LittleEndian.Uint32(buf[10:14]),
	}, nil
}

// parseInfoHeader unmarshals the info header from its 40 raw bytes and
// validates geometry and format parameters.
func parseInfoHeader(buf []byte) (infoHeader, error) {
	hdr := infoHeader{
		headerSize:  binary.LittleEndian.Uint32(buf[0:4]),
		bitCount:    int(binary.LittleEndian.Uint16(buf[14:16])),
		compression: binary.LittleEndian.Uint32(buf[16:20]),
		colorsUsed:  binary.LittleEndian.Uint32(buf[32:36]),
	}

	width := int32(binary.LittleEndian.Uint32(buf[4:8]))
	height := int32(binary.LittleEndian.Uint32(buf[8:12]))
	planes := binary.LittleEndian.Uint16(buf[12:14])

	// Later header revisions only append optional fields, so anything
	// shorter than 40 bytes cannot be a Windows info header.
	if hdr.headerSize < infoHeaderSize {
		return infoHeader{}, fmt.Errorf("%w: info header size %d", ErrInvalidFormat, hdr.headerSize)
	}

	if planes != 1 {
		return infoHeader{}, fmt.Errorf("%w: plane count %d", ErrInvalidFormat, planes)
	}

	// A negative height means rows are stored top-down in the file.
	if height < 0 {
		hdr.topDown = true
		height = -height
	}

	// Still nonpositive after negation covers both a zero height and the
	// minimum int32, whose negation is itself.
	if width <= 0 || height <= 0 {
		return infoHeader{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFormat, width, height)
	}

	hdr.width = int(width)
	hdr.height = int(height)

	switch hdr.bitCount {
	case 1, 4, 8, 16, 24, 32:
	default:
		return infoHeader{}, fmt.Errorf("%w: %d bits per pixel", ErrInvalidFormat, hdr.bitCount)
	}

	switch hdr.compression {
	case compressionRGB:
	case compressionRLE8:
		if hdr.bitCount != 8 {
			return infoHeader{}, fmt.Errorf("%w: RLE8 with %d bits per pixel", ErrInvalidFormat, hdr.bitCount)
		}
	case compressionRLE4:
		if hdr.bitCount != 1 && hdr.bitCount != 4 {
			return infoHeader{}, fmt.Errorf("%w: RLE4 with %d bits per pixel", ErrInvalidFormat, hdr.bitCount)
		}
	default:
		return infoHeader{}, fmt.Errorf("%w: compression %d", ErrInvalidFormat, hdr.compression)
	}

	return hdr, nil
}

// indexed reports whether the pixel format goes through a color table.
func (h infoHeader) indexed() bool {
	return h.bitCount <= 8
}

// rowSize returns the on-disk byte length of one uncompressed scanline,
// padded to a 4-byte boundary.
func (h infoHeader) rowSize() int {
	return ((h.width*h.bitCount + 31) / 32) * 4
}
