// Package sniff guesses the media type of a payload from its leading bytes.
package sniff

import (
	"bytes"
	"encoding/binary"
	"image"
	"net/http"
	"strings"

	// decoders registered for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	OctetStream = "application/octet-stream"
	HEIC        = "image/heic"
	HEIF        = "image/heif"
)

// heifBrands maps ISO BMFF brands of HEIF still images to their media type.
var heifBrands = map[string]string{
	"heic": HEIC,
	"heix": HEIC,
	"heim": HEIC,
	"heis": HEIC,
	"hevc": HEIC,
	"hevx": HEIC,
	"mif1": HEIF,
	"msf1": HEIF,
}

// Sniff returns the media type of data. HEIF containers are recognised by their ftyp brands, the
// rest relies on the WHATWG sniffing table and falls back to the registered image decoders for
// formats the table does not know, such as TIFF.
func Sniff(data []byte) string {
	if mime, ok := sniffHEIF(data); ok {
		return mime
	}

	mime := http.DetectContentType(data)
	if mime != OctetStream {
		return mime
	}

	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return "image/" + format
	}

	return OctetStream
}

// sniffHEIF reads the leading ftyp box. A HEIC brand anywhere in it means image/heic, a generic
// HEIF brand alone means image/heif.
func sniffHEIF(data []byte) (string, bool) {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return "", false
	}
	boxLen := int(binary.BigEndian.Uint32(data[:4]))
	if boxLen < 16 || boxLen > len(data) {
		boxLen = min(len(data), 256)
	}

	mime, ok := heifBrands[string(data[8:12])]
	if mime == HEIC {
		return mime, true
	}
	// major brand, minor version, then compatible brands
	for i := 16; i+4 <= boxLen; i += 4 {
		if m, found := heifBrands[string(data[i:i+4])]; found {
			if m == HEIC {
				return HEIC, true
			}
			mime, ok = m, true
		}
	}
	return mime, ok
}

// IsImage reports whether mime names an image type.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
