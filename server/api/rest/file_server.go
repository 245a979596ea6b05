package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tmpdrop/server/internal/blobstorage/filesystem"
	"github.com/hedisam/tmpdrop/server/internal/metrics"
	"github.com/hedisam/tmpdrop/server/internal/transcode"
)

type ObjectReader interface {
	Get(ctx context.Context, id string, class filesystem.Class) ([]byte, error)
	TakeDisposable(ctx context.Context, id string) ([]byte, error)
}

type Transcoder interface {
	GetOrCreate(ctx context.Context, id string, src []byte, srcMime string, format transcode.Format, cacheable bool) ([]byte, error)
}

// SniffFunc returns the media type of a payload.
type SniffFunc func(data []byte) string

// FileServer serves stored objects, optionally converted to another image format.
type FileServer struct {
	logger     *logrus.Logger
	storage    ObjectReader
	transcoder Transcoder
	resolver   ClientResolver
	ledger     AuditLedger
	metrics    *metrics.Metrics
	idPattern  *regexp.Regexp
	sniff      SniffFunc
}

func NewFileServer(logger *logrus.Logger, storage ObjectReader, transcoder Transcoder, resolver ClientResolver, ledger AuditLedger, m *metrics.Metrics, idPattern *regexp.Regexp, sniff SniffFunc) *FileServer {
	return &FileServer{
		logger:     logger,
		storage:    storage,
		transcoder: transcoder,
		resolver:   resolver,
		ledger:     ledger,
		metrics:    m,
		idPattern:  idPattern,
		sniff:      sniff,
	}
}

// Download serves GET /{id} and GET /{id}/{filename}. Durable objects are looked up first, then
// disposable ones, which the download consumes.
func (s *FileServer) Download(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := r.PathValue("id")
	filename := r.PathValue("filename")
	logger := s.logger.WithContext(ctx).WithField("object_id", id)

	if !s.idPattern.MatchString(id) {
		return NewErrf(http.StatusNotFound, "not found")
	}

	// resolved before anything is read so a malformed request never consumes a disposable object
	client, err := s.resolver.Resolve(r)
	if err != nil {
		logger.WithError(err).Warn("Could not resolve client identity when downloading file")
		return NewErrf(http.StatusBadRequest, "%s", err.Error())
	}
	logger = logger.WithField("client", client)

	class := filesystem.Durable
	data, err := s.storage.Get(ctx, id, filesystem.Durable)
	if errors.Is(err, filesystem.ErrNotFound) {
		class = filesystem.Disposable
		data, err = s.storage.TakeDisposable(ctx, id)
	}
	if err != nil {
		if errors.Is(err, filesystem.ErrNotFound) {
			logger.Info("File not found")
			return NewErrf(http.StatusNotFound, "not found")
		}
		return fmt.Errorf("read object: %w", err)
	}

	var formatName string
	if format, ok := requestedFormat(r.URL.RawQuery); ok {
		formatName = format.String()
		data, err = s.transcoder.GetOrCreate(ctx, id, data, s.sniff(data), format, class == filesystem.Durable)
		switch {
		case errors.Is(err, transcode.ErrUnsupportedMedia):
			return NewErrf(http.StatusUnsupportedMediaType, "file cannot be converted to %s", format)
		case errors.Is(err, transcode.ErrTooLarge):
			return NewErrf(http.StatusRequestEntityTooLarge, "file is too large to convert")
		case err != nil:
			return fmt.Errorf("transcode object: %w", err)
		}
	}

	disposition := "inline"
	if filename != "" {
		disposition = "attachment; filename=" + url.PathEscape(filename)
	}
	w.Header().Set("Content-Type", s.sniff(data))
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.WithError(err).Warn("Failed to write download response")
	}

	logger.WithFields(logrus.Fields{
		"class":  class,
		"format": formatName,
	}).Info("File downloaded")
	s.metrics.Download(class.String())
	err = s.ledger.RecordDownload(ctx, id, class.String(), client, formatName, int64(len(data)))
	if err != nil {
		logger.WithError(err).Debug("Could not record download audit event")
	}

	return nil
}

// requestedFormat returns the first conversion keyword among the query keys, in the order they
// appear in the request.
func requestedFormat(rawQuery string) (transcode.Format, bool) {
	for part := range strings.SplitSeq(rawQuery, "&") {
		key, _, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if format, ok := transcode.ParseFormat(key); ok {
			return format, true
		}
	}
	return 0, false
}

const usage = `tmpdrop: anonymous ephemeral file hosting

Upload:
  curl -T file.png https://%[1]s/              # durable until it expires
  curl -T file.png https://%[1]s/d/            # deleted after the first download

Download:
  https://%[1]s/{id}                           # inline
  https://%[1]s/{id}/{filename}                # as an attachment
  https://%[1]s/{id}?png                       # converted to PNG (jpg, jpeg and png are supported)
`

// Index serves a plain text usage banner.
func (s *FileServer) Index(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := fmt.Fprintf(w, usage, r.Host); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("Failed to write usage banner")
	}
	return nil
}

// Healthz reports that the server is up.
func Healthz(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
	return nil
}
