package rest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tmpdrop/server/internal/blobstorage/filesystem"
	"github.com/hedisam/tmpdrop/server/internal/idgen"
	"github.com/hedisam/tmpdrop/server/internal/metrics"
)

type ObjectWriter interface {
	Put(ctx context.Context, id string, class filesystem.Class, data []byte) error
	MaxSize() int64
}

type IDMinter interface {
	Mint() (string, error)
	MaxAttempts() int
}

type ClientResolver interface {
	Resolve(r *http.Request) (string, error)
}

type AuditLedger interface {
	RecordUpload(ctx context.Context, id, class, filename, client string, size int64, sha256 string) error
	RecordDownload(ctx context.Context, id, class, client, format string, size int64) error
}

type UploadServer struct {
	logger               *logrus.Logger
	storage              ObjectWriter
	minter               IDMinter
	resolver             ClientResolver
	ledger               AuditLedger
	metrics              *metrics.Metrics
	requireContentLength bool
}

func NewUploadServer(logger *logrus.Logger, storage ObjectWriter, minter IDMinter, resolver ClientResolver, ledger AuditLedger, m *metrics.Metrics, requireContentLength bool) *UploadServer {
	return &UploadServer{
		logger:               logger,
		storage:              storage,
		minter:               minter,
		resolver:             resolver,
		ledger:               ledger,
		metrics:              m,
		requireContentLength: requireContentLength,
	}
}

// UploadDurable stores the body as an object that lives until it expires.
func (s *UploadServer) UploadDurable(w http.ResponseWriter, r *http.Request) error {
	return s.upload(w, r, filesystem.Durable)
}

// UploadDisposable stores the body as an object that is deleted by its first download.
func (s *UploadServer) UploadDisposable(w http.ResponseWriter, r *http.Request) error {
	return s.upload(w, r, filesystem.Disposable)
}

func (s *UploadServer) upload(w http.ResponseWriter, r *http.Request, class filesystem.Class) error {
	ctx := r.Context()
	filename := r.PathValue("filename")
	logger := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"filename": filename,
		"class":    class,
	})

	host := r.Host
	if host == "" {
		logger.Warn("Missing Host header when uploading file")
		return NewErrf(http.StatusBadRequest, "missing Host header")
	}

	// the server reports a request without Content-Length and without a chunked body as empty
	declared := r.ContentLength
	if declared == 0 && r.Header.Get("Content-Length") == "" {
		declared = -1
	}
	if declared < 0 && s.requireContentLength {
		logger.Warn("Missing Content-Length when uploading file")
		return NewErrf(http.StatusLengthRequired, "Content-Length header is required")
	}

	maxSize := s.storage.MaxSize()
	if declared > maxSize {
		logger.WithField("content_length", declared).Warn("Declared upload size exceeds the limit")
		return NewErrf(http.StatusRequestEntityTooLarge, "file exceeds the maximum size of %d bytes", maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		logger.WithError(err).Warn("Failed to read request body when uploading file")
		return NewErrf(http.StatusBadRequest, "could not read request body")
	}
	if len(data) == 0 {
		return NewErrf(http.StatusBadRequest, "empty file")
	}
	if int64(len(data)) > maxSize {
		return NewErrf(http.StatusRequestEntityTooLarge, "file exceeds the maximum size of %d bytes", maxSize)
	}
	if declared >= 0 && int64(len(data)) != declared {
		logger.WithFields(logrus.Fields{
			"content_length": declared,
			"read":           len(data),
		}).Warn("Mismatched Content-Length and body size when uploading file")
		return NewErrf(http.StatusBadRequest, "mismatched Content-Length and body size")
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	client, err := s.resolver.Resolve(r)
	if err != nil {
		logger.WithError(err).Warn("Could not resolve client identity when uploading file")
		return NewErrf(http.StatusBadRequest, "%s", err.Error())
	}

	id, err := s.store(ctx, class, data)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"object_id": id,
		"sha256":    digest,
		"client":    client,
		"size":      len(data),
	}).Info("File uploaded")
	s.metrics.Upload(class.String(), len(data))
	err = s.ledger.RecordUpload(ctx, id, class.String(), filename, client, int64(len(data)), digest)
	if err != nil {
		// the object is stored, a missing audit row does not fail the upload
		logger.WithError(err).WithField("object_id", id).Debug("Could not record upload audit event")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = fmt.Fprintf(w, "https://%s/%s/%s\n", host, id, url.PathEscape(filename))
	if err != nil {
		logger.WithError(err).Warn("Failed to write upload response")
	}

	return nil
}

// store mints ids until the storage accepts one. The minter only pre-checks existence, two
// uploads can race for the same id and the loser tries again.
func (s *UploadServer) store(ctx context.Context, class filesystem.Class, data []byte) (string, error) {
	logger := s.logger.WithContext(ctx).WithField("class", class)

	for range s.minter.MaxAttempts() {
		id, err := s.minter.Mint()
		if err != nil {
			logger.WithError(err).Error("Failed to mint object id")
			return "", fmt.Errorf("mint object id: %w", err)
		}

		err = s.storage.Put(ctx, id, class, data)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, filesystem.ErrAlreadyExists):
			logger.WithField("object_id", id).Debug("Minted id was taken concurrently, minting again")
			continue
		case errors.Is(err, filesystem.ErrTooLarge):
			return "", NewErrf(http.StatusRequestEntityTooLarge, "file exceeds the maximum size of %d bytes", s.storage.MaxSize())
		default:
			return "", fmt.Errorf("put object: %w", err)
		}
	}

	logger.WithField("attempts", s.minter.MaxAttempts()).Error("Could not store object under a fresh id")
	return "", fmt.Errorf("store object: %w", idgen.ErrExhausted)
}
