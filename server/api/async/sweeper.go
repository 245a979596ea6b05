package async

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hedisam/tmpdrop/server/internal/blobstorage/filesystem"
	"github.com/hedisam/tmpdrop/server/internal/metrics"
)

type ObjectStorage interface {
	List(ctx context.Context) ([]filesystem.ObjectInfo, error)
	Remove(ctx context.Context, id string, class filesystem.Class) error
	Exists(id string) (bool, error)
	ListStaging(ctx context.Context) ([]filesystem.StagingInfo, error)
	RemoveStaging(ctx context.Context, name string) error
}

type ArtifactCache interface {
	Remove(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
}

// Report summarises one sweep pass.
type Report struct {
	Scanned int
	Expired int
	Removed int
	Failed  int
	Staging int
	Orphans int
}

func (r Report) fields() logrus.Fields {
	return logrus.Fields{
		"scanned": r.Scanned,
		"expired": r.Expired,
		"removed": r.Removed,
		"failed":  r.Failed,
		"staging": r.Staging,
		"orphans": r.Orphans,
	}
}

// Sweeper deletes objects, and their derived artifacts, once they outlive the TTL. A single
// goroutine drives the passes so they never overlap; a slow pass delays the next one.
type Sweeper struct {
	logger   *logrus.Logger
	storage  ObjectStorage
	cache    ArtifactCache
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	newBk    func() backoff.BackOff
}

type Option func(*Sweeper)

// WithClock overrides the clock used to compute ages.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithBackOff overrides the retry policy of a single object removal.
func WithBackOff(newBk func() backoff.BackOff) Option {
	return func(s *Sweeper) {
		s.newBk = newBk
	}
}

func NewSweeper(logger *logrus.Logger, storage ObjectStorage, cache ArtifactCache, ttl, interval time.Duration, m *metrics.Metrics, opts ...Option) *Sweeper {
	s := &Sweeper{
		logger:   logger,
		storage:  storage,
		cache:    cache,
		ttl:      ttl,
		interval: interval,
		metrics:  m,
		now:      time.Now,
		newBk: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithMaxElapsedTime(time.Second*3),
				backoff.WithMaxInterval(time.Second),
				backoff.WithInitialInterval(time.Millisecond*100),
				backoff.WithMultiplier(2),
				backoff.WithRandomizationFactor(0.2),
			)
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"ttl":      s.ttl,
		"interval": s.interval,
	}).Info("Running Sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		_, err := s.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.WithContext(ctx).WithError(err).Error("Sweep pass aborted")
		}

		select {
		case <-ctx.Done():
			s.logger.WithContext(ctx).Info("Sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass. Objects whose age exceeds the TTL are removed together with their artifacts;
// a failing object is logged and skipped. Leftover staging files and orphaned artifacts are
// reclaimed as well. An error is returned only if the objects could not be listed.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("").Start(ctx, "sweeper")
	defer span.End()

	logger := s.logger.WithContext(ctx)
	start := time.Now()

	var report Report
	objects, err := s.storage.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list objects")
		return report, err
	}

	now := s.now()
	report.Scanned = len(objects)
	for _, obj := range objects {
		if now.Sub(obj.ModTime) <= s.ttl {
			continue
		}
		report.Expired++

		if err := s.expire(ctx, obj); err != nil {
			report.Failed++
			continue
		}
		report.Removed++
	}

	report.Staging = s.reclaimStaging(ctx, now)
	report.Orphans = s.pruneOrphans(ctx)

	span.SetAttributes(
		attribute.Int("scanned", report.Scanned),
		attribute.Int("removed", report.Removed),
		attribute.Int("failed", report.Failed),
	)
	s.metrics.Sweep(report.Removed, report.Staging, report.Orphans, report.Failed, time.Since(start))

	if report.Expired > 0 || report.Staging > 0 || report.Orphans > 0 {
		logger.WithFields(report.fields()).Info("Sweep pass finished")
	} else {
		logger.WithFields(report.fields()).Debug("Sweep pass finished")
	}

	return report, nil
}

func (s *Sweeper) expire(ctx context.Context, obj filesystem.ObjectInfo) error {
	logger := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"object_id": obj.ID,
		"class":     obj.Class,
	})
	logger.Debug("Removing expired object")

	err := backoff.Retry(func() error {
		err := s.storage.Remove(ctx, obj.ID, obj.Class)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// the next pass picks the object up again
				return backoff.Permanent(err)
			}
			logger.WithError(err).Warn("Failed to remove expired object, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(s.newBk(), ctx))
	if err != nil {
		logger.WithError(err).Error("Failed to remove expired object in sweeper")
		return err
	}

	// artifacts left behind here are pruned as orphans by a later pass
	if err := s.cache.Remove(ctx, obj.ID); err != nil {
		logger.WithError(err).Warn("Failed to remove artifacts of expired object")
	}

	return nil
}

func (s *Sweeper) reclaimStaging(ctx context.Context, now time.Time) int {
	logger := s.logger.WithContext(ctx)

	staging, err := s.storage.ListStaging(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to list staging files")
		return 0
	}

	var n int
	for _, st := range staging {
		if now.Sub(st.ModTime) <= s.ttl {
			continue
		}
		if err := s.storage.RemoveStaging(ctx, st.Name); err != nil {
			logger.WithField("name", st.Name).WithError(err).Warn("Failed to remove stale staging file")
			continue
		}
		n++
	}

	return n
}

func (s *Sweeper) pruneOrphans(ctx context.Context) int {
	logger := s.logger.WithContext(ctx)

	ids, err := s.cache.ListIDs(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to list artifacts")
		return 0
	}

	var n int
	for _, id := range ids {
		// re-checked one by one, an object may have been stored since the listing
		ok, err := s.storage.Exists(id)
		if err != nil || ok {
			continue
		}
		if err := s.cache.Remove(ctx, id); err != nil {
			continue
		}
		logger.WithField("object_id", id).Debug("Pruned orphaned artifacts")
		n++
	}

	return n
}
