package jpeg444_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tmpdrop/server/internal/transcode/jpeg444"
)

type segment struct {
	marker  byte
	payload []byte
}

// segments walks the marker segments up to the start of scan.
func segments(t *testing.T, data []byte) []segment {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte{0xff, 0xd8}), "missing SOI")

	var out []segment
	for i := 2; i+4 <= len(data); {
		require.Equal(t, byte(0xff), data[i])
		marker := data[i+1]
		n := int(binary.BigEndian.Uint16(data[i+2:]))
		out = append(out, segment{marker: marker, payload: data[i+4 : i+2+n]})
		if marker == 0xda {
			break
		}
		i += 2 + n
	}
	return out
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 3),
				A: 255,
			})
		}
	}
	return img
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestEncodeRoundTrip(t *testing.T) {
	tests := map[string]image.Image{
		"gradient with partial blocks": gradient(37, 21),
		"single pixel":                 gradient(1, 1),
		"white":                        image.NewUniform(color.White),
		"gray":                         image.NewGray(image.Rect(0, 0, 16, 9)),
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if u, ok := src.(*image.Uniform); ok {
				// uniform images are unbounded, give them a frame
				m := image.NewRGBA(image.Rect(0, 0, 24, 16))
				for y := range 16 {
					for x := range 24 {
						m.Set(x, y, u.C)
					}
				}
				src = m
			}

			var buf bytes.Buffer
			require.NoError(t, jpeg444.Encode(&buf, src, nil))

			got, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			require.Equal(t, src.Bounds().Size(), got.Bounds().Size())

			var worst uint32
			b := src.Bounds()
			for y := b.Min.Y; y < b.Max.Y; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					r1, g1, b1, _ := src.At(x, y).RGBA()
					r2, g2, b2, _ := got.At(x-b.Min.X, y-b.Min.Y).RGBA()
					worst = max(worst, absDiff(r1>>8, r2>>8), absDiff(g1>>8, g2>>8), absDiff(b1>>8, b2>>8))
				}
			}
			assert.LessOrEqual(t, worst, uint32(8), "maximum quality output should be close to lossless")
		})
	}
}

func TestEncodeSampling(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg444.Encode(&buf, gradient(20, 20), nil))

	var sof []byte
	for _, s := range segments(t, buf.Bytes()) {
		// baseline, extended or progressive frame
		if s.marker >= 0xc0 && s.marker <= 0xc2 {
			sof = s.payload
		}
	}
	require.Len(t, sof, 15)
	assert.Equal(t, byte(3), sof[5], "component count")
	for c := range 3 {
		assert.Equal(t, byte(0x11), sof[6+3*c+1], "component %d must not be subsampled", c+1)
	}

	img, ok := mustDecode(t, buf.Bytes()).(*image.YCbCr)
	require.True(t, ok)
	assert.Equal(t, image.YCbCrSubsampleRatio444, img.SubsampleRatio)
}

func mustDecode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestEncodeMetadata(t *testing.T) {
	exif := []byte("II*\x00\x08\x00\x00\x00\x00\x00")
	icc := bytes.Repeat([]byte{0xab}, 70000)

	var buf bytes.Buffer
	require.NoError(t, jpeg444.Encode(&buf, gradient(8, 8), &jpeg444.Options{EXIF: exif, ICC: icc}))

	var gotEXIF, gotICC []byte
	var iccChunks int
	for _, s := range segments(t, buf.Bytes()) {
		switch {
		case s.marker == 0xe1 && bytes.HasPrefix(s.payload, []byte("Exif\x00\x00")):
			gotEXIF = s.payload[6:]
		case s.marker == 0xe2 && bytes.HasPrefix(s.payload, []byte("ICC_PROFILE\x00")):
			iccChunks++
			assert.Equal(t, byte(iccChunks), s.payload[12], "chunk sequence number")
			assert.Equal(t, byte(2), s.payload[13], "chunk count")
			gotICC = append(gotICC, s.payload[14:]...)
		}
	}

	assert.Equal(t, exif, gotEXIF)
	assert.Equal(t, 2, iccChunks)
	assert.Equal(t, icc, gotICC)
	mustDecode(t, buf.Bytes())
}

func TestEncodeMetadataPlacement(t *testing.T) {
	exif := []byte("MM\x00*\x00\x00\x00\x08\x00\x00")

	var buf bytes.Buffer
	require.NoError(t, jpeg444.Encode(&buf, gradient(8, 8), &jpeg444.Options{EXIF: exif}))

	segs := segments(t, buf.Bytes())
	var exifAt, exifCount int
	for i, s := range segs {
		if s.marker == 0xe1 && bytes.HasPrefix(s.payload, []byte("Exif\x00\x00")) {
			exifAt = i
			exifCount++
		}
	}
	require.Equal(t, 1, exifCount)
	// only a JFIF header may come before the metadata
	for _, s := range segs[:exifAt] {
		assert.Equal(t, byte(0xe0), s.marker)
	}
}

func TestEncodeRejectsEmptyImage(t *testing.T) {
	var buf bytes.Buffer
	err := jpeg444.Encode(&buf, image.NewRGBA(image.Rectangle{}), nil)
	require.Error(t, err)
}
