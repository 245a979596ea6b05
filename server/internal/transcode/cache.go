// Package transcode derives alternate image renditions of stored objects and caches them on disk.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	// source decoders
	_ "image/gif"
	_ "image/jpeg"

	_ "github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hedisam/tmpdrop/server/internal/metrics"
	"github.com/hedisam/tmpdrop/server/internal/sniff"
	"github.com/hedisam/tmpdrop/server/internal/transcode/imagemeta"
	"github.com/hedisam/tmpdrop/server/internal/transcode/jpeg444"
)

const (
	stagingPrefix    = ".tmp-"
	artifactFileMode = 0o600

	// maxPixels rejects images whose decoded form would not fit in memory comfortably, however
	// small the encoded source is.
	maxPixels = 1 << 27
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("image too large to convert")
)

// Format is a target rendition.
type Format int

const (
	JPEG Format = iota + 1
	PNG
)

// Formats lists every supported target.
var Formats = []Format{JPEG, PNG}

func (f Format) String() string {
	switch f {
	case JPEG:
		return "JPEG"
	case PNG:
		return "PNG"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the artifact file extension of the format.
func (f Format) Ext() string {
	return "." + f.String()
}

// MIME returns the media type of the format's output.
func (f Format) MIME() string {
	if f == PNG {
		return "image/png"
	}
	return "image/jpeg"
}

func (f Format) valid() bool {
	return f == JPEG || f == PNG
}

// ParseFormat maps a request keyword to its format: jpg and jpeg select JPEG, png selects PNG.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "jpg", "jpeg":
		return JPEG, true
	case "png":
		return PNG, true
	default:
		return 0, false
	}
}

// Cache stores derived artifacts as <id>.<FORMAT> files in its own directory. Artifacts are pure
// functions of the source bytes and may be deleted and regenerated at any time.
type Cache struct {
	logger         *logrus.Logger
	dir            *os.Root
	maxConvertible int64
	maxFileSize    int64
	metrics        *metrics.Metrics
}

func New(logger *logrus.Logger, dir string, maxConvertible, maxFileSize int64, m *metrics.Metrics) (*Cache, error) {
	logger.WithField("convert_dir", dir).Info("Opening transcode cache directory")

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open convert dir: %w", err)
	}

	return &Cache{
		logger:         logger,
		dir:            root,
		maxConvertible: maxConvertible,
		maxFileSize:    maxFileSize,
		metrics:        m,
	}, nil
}

func (c *Cache) Close() error {
	return c.dir.Close()
}

// GetOrCreate returns the format rendition of src. A stored artifact is returned as is. Otherwise
// src is converted, and the result is persisted when cacheable is set and it fits the general
// size ceiling. Concurrent misses for the same key may both convert; the last write wins.
func (c *Cache) GetOrCreate(ctx context.Context, id string, src []byte, srcMime string, format Format, cacheable bool) ([]byte, error) {
	logger := c.logger.WithContext(ctx).WithFields(logrus.Fields{
		"object_id": id,
		"format":    format,
	})

	if !format.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, format)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	name := id + format.Ext()
	data, err := c.dir.ReadFile(name)
	if err == nil {
		c.metrics.TranscodeHit(format.String())
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		// an unreadable artifact is regenerated rather than failing the download
		logger.WithError(err).Warn("Could not read cached artifact")
	}

	if !sniff.IsImage(srcMime) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, srcMime)
	}
	if int64(len(src)) > c.maxConvertible {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(src), c.maxConvertible)
	}

	ctx, span := otel.Tracer("").Start(ctx, "transcode")
	defer span.End()
	span.SetAttributes(
		attribute.String("object_id", id),
		attribute.String("format", format.String()),
		attribute.Int("source_size", len(src)),
	)

	start := time.Now()
	out, err := convert(src, format)
	if err != nil {
		c.metrics.TranscodeError(format.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversion failed")
		logger.WithError(err).Info("Could not convert image")
		return nil, err
	}
	c.metrics.TranscodeMiss(format.String(), time.Since(start))
	logger.WithField("size", len(out)).Debug("Converted image")

	if cacheable && int64(len(out)) <= c.maxFileSize {
		if err := c.store(name, out); err != nil {
			// the rendition is still served, the next request converts again
			logger.WithError(err).Error("Could not persist converted image")
		}
	}

	return out, nil
}

func convert(src []byte, format Format) ([]byte, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(src))
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedMedia, err)
	}
	if err != nil {
		// a known format with corrupt data
		return nil, fmt.Errorf("decode %s config: %w", name, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	md := imagemeta.Extract(src, name)

	var buf bytes.Buffer
	switch format {
	case JPEG:
		err = jpeg444.Encode(&buf, img, &jpeg444.Options{EXIF: md.EXIF, ICC: md.ICC})
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	default:
		err = png.Encode(&buf, img)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		if md.Empty() {
			return buf.Bytes(), nil
		}
		out, err := imagemeta.InjectPNG(buf.Bytes(), md)
		if err != nil {
			return nil, fmt.Errorf("embed png metadata: %w", err)
		}
		return out, nil
	}
}

// store writes the artifact to a staging file and renames it into place, so readers see either no
// artifact or a complete one.
func (c *Cache) store(name string, data []byte) error {
	staging := stagingPrefix + uuid.NewString()
	f, err := c.dir.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, artifactFileMode)
	if err != nil {
		return fmt.Errorf("create staging artifact: %w", err)
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = c.dir.Rename(staging, name)
	}
	if err != nil {
		_ = c.dir.Remove(staging)
		return fmt.Errorf("write artifact: %w", err)
	}

	return nil
}

// Remove deletes every rendition of id. Missing artifacts are not an error.
func (c *Cache) Remove(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	var errs []error
	for _, f := range Formats {
		err := c.dir.Remove(id + f.Ext())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.WithContext(ctx).WithField("object_id", id).WithError(err).Error("Could not remove artifact")
			errs = append(errs, fmt.Errorf("remove %s artifact: %w", f, err))
		}
	}

	return errors.Join(errs...)
}

// ListIDs returns the ids that have at least one artifact, sorted.
func (c *Cache) ListIDs(context.Context) ([]string, error) {
	d, err := c.dir.Open(".")
	if err != nil {
		return nil, fmt.Errorf("open convert dir for listing: %w", err)
	}
	defer d.Close()

	names, err := d.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("list convert dir: %w", err)
	}

	var ids []string
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		for _, f := range Formats {
			if id, ok := strings.CutSuffix(name, f.Ext()); ok && validateID(id) == nil {
				ids = append(ids, id)
				break
			}
		}
	}
	slices.Sort(ids)

	return slices.Compact(ids), nil
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `./\`) {
		return fmt.Errorf("invalid artifact id %q", id)
	}
	return nil
}
