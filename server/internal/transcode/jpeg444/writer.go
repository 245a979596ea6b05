// Package jpeg444 writes JPEG images at maximum quality with no chroma subsampling, carrying over
// EXIF and ICC metadata as APP1 and APP2 segments.
package jpeg444

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/gen2brain/jpegli"
)

const (
	markerSOI  = 0xd8
	markerSOS  = 0xda
	markerAPP0 = 0xe0
	markerAPP1 = 0xe1
	markerAPP2 = 0xe2

	maxSegmentLen = 0xffff
	exifHeader    = "Exif\x00\x00"
	iccHeader     = "ICC_PROFILE\x00"
	// segment payload left for ICC data once the length field, header and chunk counters are written
	maxICCChunk = maxSegmentLen - 2 - len(iccHeader) - 2

	quality = 100
)

var errMalformed = errors.New("jpeg444: malformed encoder output")

// Options carries metadata to embed. EXIF is the raw TIFF-structured payload without the
// "Exif\0\0" prefix. Payloads that do not fit a JPEG segment are dropped silently.
type Options struct {
	EXIF []byte
	ICC  []byte
}

// Encode writes m to w as a 4:4:4 JPEG.
func Encode(w io.Writer, m image.Image, o *Options) error {
	size := m.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return errors.New("jpeg444: image is empty")
	}
	if size.X >= 1<<16 || size.Y >= 1<<16 {
		return errors.New("jpeg444: image is too large to encode")
	}

	var buf bytes.Buffer
	err := jpegli.Encode(&buf, m, &jpegli.EncodingOptions{
		Quality:           quality,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
	})
	if err != nil {
		return fmt.Errorf("jpeg444: encode: %w", err)
	}

	out := buf.Bytes()
	if o != nil && (len(o.EXIF) > 0 || len(o.ICC) > 0) {
		out, err = splice(out, metadataSegments(o))
		if err != nil {
			return err
		}
	}

	_, err = w.Write(out)
	return err
}

// splice inserts segs after SOI and a leading JFIF APP0, dropping any EXIF or ICC segments the
// encoder wrote itself.
func splice(data, segs []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xff || data[1] != markerSOI {
		return nil, errMalformed
	}

	out := make([]byte, 0, len(data)+len(segs))
	out = append(out, data[:2]...)
	inserted := false
	i := 2
	for {
		if i+4 > len(data) || data[i] != 0xff {
			return nil, errMalformed
		}
		marker := data[i+1]
		if marker == markerSOS {
			break
		}
		n := int(binary.BigEndian.Uint16(data[i+2:]))
		if n < 2 || i+2+n > len(data) {
			return nil, errMalformed
		}
		seg := data[i : i+2+n]
		payload := seg[4:]
		i += 2 + n

		if marker != markerAPP0 && !inserted {
			out = append(out, segs...)
			inserted = true
		}
		switch {
		case marker == markerAPP1 && bytes.HasPrefix(payload, []byte(exifHeader)):
			continue
		case marker == markerAPP2 && bytes.HasPrefix(payload, []byte(iccHeader)):
			continue
		}
		out = append(out, seg...)
	}
	if !inserted {
		out = append(out, segs...)
	}

	return append(out, data[i:]...), nil
}

func metadataSegments(o *Options) []byte {
	var b bytes.Buffer
	writeEXIF(&b, o.EXIF)
	writeICC(&b, o.ICC)
	return b.Bytes()
}

func writeMarkerHeader(b *bytes.Buffer, marker uint8, markerlen int) {
	b.Write([]byte{0xff, marker, uint8(markerlen >> 8), uint8(markerlen & 0xff)})
}

func writeEXIF(b *bytes.Buffer, exif []byte) {
	payload := len(exifHeader) + len(exif)
	if len(exif) == 0 || 2+payload > maxSegmentLen {
		return
	}
	writeMarkerHeader(b, markerAPP1, 2+payload)
	b.WriteString(exifHeader)
	b.Write(exif)
}

func writeICC(b *bytes.Buffer, icc []byte) {
	if len(icc) == 0 {
		return
	}
	chunks := (len(icc) + maxICCChunk - 1) / maxICCChunk
	if chunks > 255 {
		return
	}
	for i := range chunks {
		chunk := icc[i*maxICCChunk : min((i+1)*maxICCChunk, len(icc))]
		writeMarkerHeader(b, markerAPP2, 2+len(iccHeader)+2+len(chunk))
		b.WriteString(iccHeader)
		b.Write([]byte{byte(i + 1), byte(chunks)})
		b.Write(chunk)
	}
}
