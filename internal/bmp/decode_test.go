package bmp

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// bmpSpec describes a test bitmap to be assembled in memory.
type bmpSpec struct {
	width      int32
	height     int32 // negative = top-down
	bitCount   uint16
	compress   uint32
	colorsUsed uint32
	palette    [][3]byte // r, g, b per entry
	pixels     []byte    // raw pixel data, already padded/encoded
}

// build assembles a complete BMP file: 54 header bytes, optional color
// table, pixel data at the declared offset.
func (s bmpSpec) build() []byte {
	var buf bytes.Buffer

	paletteSize := len(s.palette) * 4
	dataOffset := uint32(54 + paletteSize)
	fileSize := dataOffset + uint32(len(s.pixels))

	// File header
	buf.WriteString("BM")
	binary.Write(&buf, binary.LittleEndian, fileSize)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // reserved
	binary.Write(&buf, binary.LittleEndian, dataOffset)

	// Info header
	binary.Write(&buf, binary.LittleEndian, uint32(40))
	binary.Write(&buf, binary.LittleEndian, s.width)
	binary.Write(&buf, binary.LittleEndian, s.height)
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // planes
	binary.Write(&buf, binary.LittleEndian, s.bitCount)
	binary.Write(&buf, binary.LittleEndian, s.compress)
	binary.Write(&buf, binary.LittleEndian, uint32(len(s.pixels)))
	binary.Write(&buf, binary.LittleEndian, int32(2835)) // x pixels per meter
	binary.Write(&buf, binary.LittleEndian, int32(2835)) // y pixels per meter
	binary.Write(&buf, binary.LittleEndian, s.colorsUsed)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // important colors

	for _, c := range s.palette {
		buf.Write([]byte{c[2], c[1], c[0], 0}) // stored blue-first
	}

	buf.Write(s.pixels)

	return buf.Bytes()
}

func decodeBytes(t *testing.T, data []byte) (*Image, error) {
	t.Helper()
	return Decode(bytes.NewReader(data))
}

func grayPalette(n int) [][3]byte {
	p := make([][3]byte, n)
	for i := range p {
		v := byte(i * 255 / (n - 1))
		p[i] = [3]byte{v, v, v}
	}
	return p
}

func TestDecode24BitBottomUp(t *testing.T) {
	// 2x2, bottom-up, rows padded to 8 bytes. Stored first row is the
	// visual bottom row.
	spec := bmpSpec{
		width:    2,
		height:   2,
		bitCount: 24,
		pixels: []byte{
			// bottom row: blue pixel, green pixel (stored B,G,R)
			0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00,
			// top row: red pixel, white pixel
			0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00,
		},
	}

	img, err := decodeBytes(t, spec.build())
	require.NoError(t, err)
	require.Equal(t, 2, img.Width)
	require.Equal(t, 2, img.Height)
	require.Equal(t, 3, img.Channels)
	require.Equal(t, 24, img.BitDepth)
	require.Len(t, img.Pix, 12)

	// Output row 0 is the file's last stored row, byte-swapped to RGB.
	require.Equal(t, []byte{0xFF, 0x00, 0x00, 0xFF, 0xFF, 0xFF}, img.Pix[:6])
	require.Equal(t, []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, img.Pix[6:])
}

func TestDecode24BitTopDown(t *testing.T) {
	spec := bmpSpec{
		width:    2,
		height:   -2, // top-down
		bitCount: 24,
		pixels: []byte{
			0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, // stored first = visual top
			0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00,
		},
	}

	img, err := decodeBytes(t, spec.build())
	require.NoError(t, err)
	require.Equal(t, 2, img.Height)

	// Output row 0 equals the file's first stored scanline.
	require.Equal(t, []byte{0xFF, 0x00, 0x00, 0xFF, 0xFF, 0xFF}, img.Pix[:6])
}

func TestDecode32BitAlphaPassthrough(t *testing.T) {
	spec := bmpSpec{
		width:    1,
		height:   1,
		bitCount: 32,
		pixels:   []byte{0x10, 0x20, 0x30, 0x7F}, // B, G, R, A
	}

	img, err := decodeBytes(t, spec.build())
	require.NoError(t, err)
	require.Equal(t, 4, img.Channels)
	require.Equal(t, 32, img.BitDepth)
	require.Equal(t, []byte{0x30, 0x20, 0x10, 0x7F}, img.Pix)
}

func TestDecode16Bit(t *testing.T) {
	tests := []struct {
		name string
		pel  uint16
		want []byte
	}{
		{"all bits set", 0xFFFF, []byte{255, 255, 255}},
		{"all bits clear", 0x0000, []byte{0, 0, 0}},
		{"pure red", 0xF800, []byte{255, 0, 0}},
		{"pure green", 0x07E0, []byte{0, 255, 0}},
		{"pure blue", 0x001F, []byte{0, 0, 255}},
		{"mid gray", 0x8410, []byte{132, 130, 132}}, // 16/31, 32/63, 16/31 rounded
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pixels := make([]byte, 4) // one pixel + row padding
			binary.LittleEndian.PutUint16(pixels, tt.pel)

			spec := bmpSpec{width: 1, height: 1, bitCount: 16, pixels: pixels}

			img, err := decodeBytes(t, spec.build())
			require.NoError(t, err)
			require.Equal(t, tt.want, img.Pix)
		})
	}
}

func TestDecode8BitIndexed(t *testing.T) {
	spec := bmpSpec{
		width:      3,
		height:     1,
		bitCount:   8,
		colorsUsed: 4,
		palette:    [][3]byte{{10, 11, 12}, {20, 21, 22}, {30, 31, 32}, {40, 41, 42}},
		pixels:     []byte{2, 0, 3, 0}, // three indices + row padding
	}

	img, err := decodeBytes(t, spec.build())
	require.NoError(t, err)
	require.Equal(t, []byte{30, 31, 32, 10, 11, 12, 40, 41, 42}, img.Pix)
}

func TestDecode4BitIndexed(t *testing.T) {
	// 3 pixels wide: indices 1, 2, 3 packed high-nibble first.
	spec := bmpSpec{
		width:    3,
		height:   1,
		bitCount: 4,
		palette:  grayPalette(16),
		pixels:   []byte{0x12, 0x30, 0x00, 0x00},
	}

	img, err := decodeBytes(t, spec.build())
	require.NoError(t, err)

	p := grayPalette(16)
	want := []byte{p[1][0], p[1][1], p[1][2], p[2][0], p[2][1], p[2][2], p[3][0], p[3][1], p[3][2]}
	require.Equal(t, want, img.Pix)
}

func TestDecode1BitIndexed(t *testing.T) {
	// 10 pixels wide: bits 1010101010 packed MSB-first over two bytes.
	spec := bmpSpec{
		width:    10,
		height:   1,
		bitCount: 1,
		palette:  [][3]byte{{0, 0, 0}, {255, 255, 255}},
		pixels:   []byte{0xAA, 0x80, 0x00, 0x00},
	}

	img, err := decodeBytes(t, spec.build())
	require.NoError(t, err)

	for x := 0; x < 10; x++ {
		want := byte(0)
		if x%2 == 0 {
			want = 255
		}
		require.Equal(t, want, img.Pix[x*3], "pixel %d", x)
	}
}

func TestDecodePaletteIndexOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		spec bmpSpec
	}{
		{
			name: "8-bit index beyond colors-used",
			spec: bmpSpec{
				width:      1,
				height:     1,
				bitCount:   8,
				colorsUsed: 2,
				palette:    [][3]byte{{0, 0, 0}, {255, 255, 255}},
				pixels:     []byte{2, 0, 0, 0},
			},
		},
		{
			name: "4-bit index beyond colors-used",
			spec: bmpSpec{
				width:      2,
				height:     1,
				bitCount:   4,
				colorsUsed: 2,
				palette:    [][3]byte{{0, 0, 0}, {255, 255, 255}},
				pixels:     []byte{0x13, 0x00, 0x00, 0x00},
			},
		},
		{
			name: "1-bit set pixel with single-entry palette",
			spec: bmpSpec{
				width:      2,
				height:     1,
				bitCount:   1,
				colorsUsed: 1,
				palette:    [][3]byte{{0, 0, 0}},
				pixels:     []byte{0x40, 0x00, 0x00, 0x00},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeBytes(t, tt.spec.build())
			require.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	base := bmpSpec{width: 1, height: 1, bitCount: 24, pixels: []byte{0, 0, 0, 0}}

	tests := []struct {
		name    string
		mutate  func([]byte)
		wantErr error
	}{
		{
			name:    "bad magic",
			mutate:  func(b []byte) { b[0] = 'X' },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "planes not one",
			mutate:  func(b []byte) { b[26] = 2 },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "unsupported bit depth",
			mutate:  func(b []byte) { b[28] = 2 },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "bitfields compression",
			mutate:  func(b []byte) { b[30] = 3 },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "RLE8 with 24-bit pixels",
			mutate:  func(b []byte) { b[30] = 1 },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "RLE4 with 24-bit pixels",
			mutate:  func(b []byte) { b[30] = 2 },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "zero width",
			mutate:  func(b []byte) { binary.LittleEndian.PutUint32(b[18:], 0) },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "info header too small",
			mutate:  func(b []byte) { binary.LittleEndian.PutUint32(b[14:], 12) },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "truncated headers",
			mutate:  nil, // handled below
			wantErr: ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := base.build()
			if tt.mutate == nil {
				data = data[:20]
			} else {
				tt.mutate(data)
			}

			_, err := decodeBytes(t, data)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeTruncatedScanline(t *testing.T) {
	spec := bmpSpec{
		width:    2,
		height:   2,
		bitCount: 24,
		pixels:   []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x01, 0x02}, // second row short
	}

	_, err := decodeBytes(t, spec.build())
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestDecodeColorsUsedTooLarge(t *testing.T) {
	spec := bmpSpec{
		width:      1,
		height:     1,
		bitCount:   1,
		colorsUsed: 300,
		palette:    [][3]byte{{0, 0, 0}, {255, 255, 255}},
		pixels:     []byte{0x00, 0x00, 0x00, 0x00},
	}

	_, err := decodeBytes(t, spec.build())
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecodeRejectsHugeImage(t *testing.T) {
	spec := bmpSpec{width: 1 << 20, height: 1 << 20, bitCount: 24}

	_, err := decodeBytes(t, spec.build())
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeMinInt32Height(t *testing.T) {
	// math.MinInt32 is its own negation, so stripping the orientation
	// sign must still leave a positive height or fail.
	spec := bmpSpec{width: 1, height: math.MinInt32, bitCount: 24}

	_, err := decodeBytes(t, spec.build())
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecodeSizeOverflowWraps(t *testing.T) {
	// width*height*channels overflows int64 and must still be rejected
	// as too large, not wrap past the allocation ceiling.
	spec := bmpSpec{width: math.MaxInt32, height: math.MaxInt32, bitCount: 24}

	_, err := decodeBytes(t, spec.build())
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeFileNotFound(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.bmp"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeFile(t *testing.T) {
	spec := bmpSpec{
		width:    1,
		height:   1,
		bitCount: 24,
		pixels:   []byte{0x01, 0x02, 0x03, 0x00},
	}

	path := filepath.Join(t.TempDir(), "one.bmp")
	require.NoError(t, os.WriteFile(path, spec.build(), 0o644))

	img, err := DecodeFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x03, 0x02, 0x01}, img.Pix)
}
