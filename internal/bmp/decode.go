// Package bmp implements a BMP (DIB) image decoder supporting 1/4/8-bit
// indexed, 16/24/32-bit true-color, and RLE4/RLE8 compressed pixel data.
// Decoded images are always top-to-bottom RGB or RGBA regardless of the
// source file's row storage order.
//
// Not supported: BI_BITFIELDS channel masks, OS/2 header variants, ICC
// profiles, and encoding.
package bmp

import (
	"fmt"
	"io"
	"os"
)

// DecodeFile opens and decodes the bitmap at path. The file handle is
// scoped to the call and closed on every exit path.
func DecodeFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("%w: open %s: %v", ErrNotFound, path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads one bitmap from r. The reader must support seeking: the
// info header's size field is not a reliable offset to pixel data, so the
// cursor is repositioned to the file header's declared offset before pixel
// decoding begins.
func Decode(r io.ReadSeeker) (*Image, error) {
	var raw [fileHeaderSize + infoHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("%w: headers: %v", ErrUnexpectedEOF, err)
	}

	fh, err := parseFileHeader(raw[:fileHeaderSize])
	if err != nil {
		return nil, err
	}

	hdr, err := parseInfoHeader(raw[fileHeaderSize:])
	if err != nil {
		return nil, err
	}

	var palette []paletteEntry
	if hdr.indexed() {
		length, err := paletteLength(hdr)
		if err != nil {
			return nil, err
		}

		// The color table sits immediately after the info header,
		// which may be longer than the 40 bytes read above.
		if _, err := r.Seek(int64(fileHeaderSize)+int64(hdr.headerSize), io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: seek to color table: %v", ErrUnexpectedEOF, err)
		}

		if palette, err = readPalette(r, length); err != nil {
			return nil, err
		}
	}

	if _, err := r.Seek(int64(fh.dataOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to pixel data: %v", ErrUnexpectedEOF, err)
	}

	channels, bitDepth := 3, 24
	if hdr.bitCount == 32 {
		channels, bitDepth = 4, 32
	}

	img, err := newImage(hdr.width, hdr.height, channels, bitDepth)
	if err != nil {
		return nil, err
	}

	dst := &writer{img: img, topDown: hdr.topDown}

	switch {
	case hdr.compression != compressionRGB:
		err = decodeRLE(r, hdr, palette, dst)
	case hdr.indexed():
		err = decodeIndexed(r, hdr, palette, dst)
	default:
		err = decodeTrueColor(r, hdr, dst)
	}

	if err != nil {
		return nil, err
	}

	return img, nil
}
