// Package imagemeta carries ICC colour profiles and EXIF data across an image conversion.
//
// Extraction understands JPEG (APP1/APP2 segments), PNG (iCCP/eXIf chunks) and WebP (ICCP/EXIF
// RIFF chunks). Injection writes PNG chunks; JPEG output embeds metadata through jpeg444.Options.
package imagemeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"
)

const (
	exifHeader = "Exif\x00\x00"
	iccHeader  = "ICC_PROFILE\x00"
	pngSig     = "\x89PNG\r\n\x1a\n"
	iccName    = "ICC Profile"

	// maxICCSize bounds the inflated size of a PNG iCCP chunk.
	maxICCSize = 16 << 20
)

var ErrNotPNG = errors.New("not a png stream")

// Metadata is the colour profile and EXIF payload of an image. EXIF is the raw TIFF-structured
// block without any container prefix.
type Metadata struct {
	ICC  []byte
	EXIF []byte
}

func (m Metadata) Empty() bool {
	return len(m.ICC) == 0 && len(m.EXIF) == 0
}

// Extract returns the metadata found in data. format is the name reported by image.Decode. Unknown
// formats and malformed containers yield whatever could be read before the damage.
func Extract(data []byte, format string) Metadata {
	switch format {
	case "jpeg":
		return fromJPEG(data)
	case "png":
		return fromPNG(data)
	case "webp":
		return fromWebP(data)
	default:
		return Metadata{}
	}
}

func fromJPEG(data []byte) Metadata {
	var md Metadata
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		return md
	}

	type iccChunk struct {
		seq  int
		data []byte
	}
	var (
		chunks     []iccChunk
		chunkCount int
	)

	for i := 2; i+1 < len(data); {
		if data[i] != 0xff {
			break
		}
		marker := data[i+1]
		if marker == 0xff {
			// fill byte
			i++
			continue
		}
		i += 2
		// standalone markers carry no length
		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			continue
		}
		if marker == 0xd9 || marker == 0xda || i+2 > len(data) {
			break
		}
		n := int(binary.BigEndian.Uint16(data[i:]))
		if n < 2 || i+n > len(data) {
			break
		}
		payload := data[i+2 : i+n]
		i += n

		switch {
		case marker == 0xe1 && bytes.HasPrefix(payload, []byte(exifHeader)) && md.EXIF == nil:
			md.EXIF = clone(payload[len(exifHeader):])
		case marker == 0xe2 && bytes.HasPrefix(payload, []byte(iccHeader)) && len(payload) >= len(iccHeader)+2:
			seq, count := int(payload[len(iccHeader)]), int(payload[len(iccHeader)+1])
			chunkCount = max(chunkCount, count)
			chunks = append(chunks, iccChunk{seq: seq, data: payload[len(iccHeader)+2:]})
		}
	}

	if len(chunks) == 0 || len(chunks) != chunkCount {
		return md
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	var icc []byte
	for i, c := range chunks {
		if c.seq != i+1 {
			return md
		}
		icc = append(icc, c.data...)
	}
	md.ICC = icc
	return md
}

func fromPNG(data []byte) Metadata {
	var md Metadata
	_ = walkPNG(data, func(typ string, body []byte) bool {
		switch typ {
		case "iCCP":
			if icc, err := inflateICCP(body); err == nil {
				md.ICC = icc
			}
		case "eXIf":
			md.EXIF = clone(body)
		case "IEND":
			return false
		}
		return true
	})
	return md
}

func inflateICCP(body []byte) ([]byte, error) {
	// profile name, NUL, compression method, compressed profile
	nul := bytes.IndexByte(body, 0)
	if nul < 1 || nul+2 > len(body) {
		return nil, errors.New("malformed iCCP chunk")
	}
	if body[nul+1] != 0 {
		return nil, fmt.Errorf("unknown iCCP compression method %d", body[nul+1])
	}
	zr, err := zlib.NewReader(bytes.NewReader(body[nul+2:]))
	if err != nil {
		return nil, fmt.Errorf("open iCCP stream: %w", err)
	}
	defer zr.Close()

	icc, err := io.ReadAll(io.LimitReader(zr, maxICCSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate iCCP stream: %w", err)
	}
	if len(icc) > maxICCSize {
		return nil, errors.New("iCCP profile too large")
	}
	return icc, nil
}

func fromWebP(data []byte) Metadata {
	var md Metadata
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return md
	}
	for i := 12; i+8 <= len(data); {
		fourcc := string(data[i : i+4])
		n := int(binary.LittleEndian.Uint32(data[i+4:]))
		i += 8
		if n < 0 || i+n > len(data) {
			break
		}
		body := data[i : i+n]
		switch fourcc {
		case "ICCP":
			md.ICC = clone(body)
		case "EXIF":
			// some writers keep the JPEG style prefix
			md.EXIF = clone(bytes.TrimPrefix(body, []byte(exifHeader)))
		}
		// chunks are padded to an even size
		i += n + n&1
	}
	return md
}

// InjectPNG returns a copy of the PNG stream src with md written as iCCP and eXIf chunks right
// after IHDR. Metadata chunks already present in src are dropped.
func InjectPNG(src []byte, md Metadata) ([]byte, error) {
	if !bytes.HasPrefix(src, []byte(pngSig)) {
		return nil, ErrNotPNG
	}

	var iccp []byte
	if len(md.ICC) > 0 {
		var zbuf bytes.Buffer
		zbuf.WriteString(iccName)
		zbuf.Write([]byte{0, 0})
		zw, err := zlib.NewWriterLevel(&zbuf, zlib.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("create zlib writer: %w", err)
		}
		if _, err := zw.Write(md.ICC); err != nil {
			return nil, fmt.Errorf("compress icc profile: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress icc profile: %w", err)
		}
		iccp = zbuf.Bytes()
	}

	out := bytes.NewBuffer(make([]byte, 0, len(src)+len(iccp)+len(md.EXIF)+32))
	out.WriteString(pngSig)

	var sawIHDR bool
	err := walkPNG(src, func(typ string, body []byte) bool {
		switch typ {
		case "iCCP", "eXIf":
			return true
		case "sRGB":
			// must not coexist with an embedded profile
			if len(iccp) > 0 {
				return true
			}
		}
		writeChunk(out, typ, body)
		if typ == "IHDR" && !sawIHDR {
			sawIHDR = true
			if len(iccp) > 0 {
				writeChunk(out, "iCCP", iccp)
			}
			if len(md.EXIF) > 0 {
				writeChunk(out, "eXIf", md.EXIF)
			}
		}
		return typ != "IEND"
	})
	if err != nil {
		return nil, err
	}
	if !sawIHDR {
		return nil, fmt.Errorf("%w: missing IHDR", ErrNotPNG)
	}

	return out.Bytes(), nil
}

// walkPNG calls fn for every chunk of a PNG stream until fn returns false.
func walkPNG(data []byte, fn func(typ string, body []byte) bool) error {
	if !bytes.HasPrefix(data, []byte(pngSig)) {
		return ErrNotPNG
	}
	for i := len(pngSig); i < len(data); {
		if i+12 > len(data) {
			return fmt.Errorf("%w: truncated chunk header", ErrNotPNG)
		}
		n := int(binary.BigEndian.Uint32(data[i:]))
		if n < 0 || i+12+n > len(data) {
			return fmt.Errorf("%w: truncated chunk", ErrNotPNG)
		}
		typ := string(data[i+4 : i+8])
		if !fn(typ, data[i+8:i+8+n]) {
			return nil
		}
		i += 12 + n
	}
	return nil
}

func writeChunk(w *bytes.Buffer, typ string, body []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(body)))
	copy(hdr[4:], typ)
	w.Write(hdr[:])
	w.Write(body)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(body)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
