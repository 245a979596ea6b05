package sniff_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/hedisam/tmpdrop/server/internal/sniff"
)

func encode(t *testing.T, f func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, f(&buf, img))
	return buf.Bytes()
}

// ftyp builds the leading box of an ISO BMFF file.
func ftyp(major string, compatible ...string) []byte {
	box := []byte{0, 0, 0, 0}
	box = append(box, "ftyp"+major+"\x00\x00\x00\x00"...)
	for _, b := range compatible {
		box = append(box, b...)
	}
	binary.BigEndian.PutUint32(box, uint32(len(box)))
	// the next box follows
	return append(box, "\x00\x00\x00\x22meta"...)
}

func TestSniff(t *testing.T) {
	pngData := encode(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	tiffData := encode(t, func(b *bytes.Buffer, img image.Image) error { return tiff.Encode(b, img, nil) })

	tests := map[string]struct {
		data    []byte
		want    string
		isImage bool
	}{
		"png":                       {data: pngData, want: "image/png", isImage: true},
		"tiff":                      {data: tiffData, want: "image/tiff", isImage: true},
		"text":                      {data: []byte("hello world"), want: "text/plain; charset=utf-8"},
		"bytes":                     {data: []byte{0x00, 0x01, 0x02, 0xfe}, want: sniff.OctetStream},
		"empty":                     {data: nil, want: "text/plain; charset=utf-8"},
		"heic":                      {data: ftyp("heic", "mif1", "heic"), want: sniff.HEIC, isImage: true},
		"heix":                      {data: ftyp("heix", "mif1"), want: sniff.HEIC, isImage: true},
		"mif1 with heic compatible": {data: ftyp("mif1", "mif1", "miaf", "heic"), want: sniff.HEIC, isImage: true},
		"generic heif":              {data: ftyp("mif1", "mif1", "miaf"), want: sniff.HEIF, isImage: true},
		"mp4 video":                 {data: ftyp("isom", "isom", "mp41"), want: "video/mp4"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := sniff.Sniff(tc.data)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.isImage, sniff.IsImage(got))
		})
	}
}
