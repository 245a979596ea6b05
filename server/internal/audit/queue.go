package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tmpdrop/server/internal/emitter"
)

// DefaultQueueSize is how many events may wait for the database before Record calls block.
const DefaultQueueSize = 256

// Queue accepts events from request handlers and writes them to a Ledger from a single goroutine.
type Queue struct {
	logger *logrus.Logger
	ledger *Ledger
	events *emitter.Emitter[Event]
	done   chan struct{}
	now    func() time.Time
}

func NewQueue(logger *logrus.Logger, ledger *Ledger, size int) *Queue {
	return &Queue{
		logger: logger,
		ledger: ledger,
		events: emitter.New[Event](size),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Run writes queued events until Close is called. Events accepted before Close are always written.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)

	// the queue is drained after ctx is done
	ctx = context.WithoutCancel(ctx)
	for e := range q.events.Chan() {
		// errors are logged by the ledger
		_ = q.ledger.insert(ctx, e)
	}
}

// Close stops accepting events and waits for Run to write the ones already queued.
func (q *Queue) Close() {
	q.events.Close()
	<-q.done
}

// RecordUpload queues an upload event.
func (q *Queue) RecordUpload(ctx context.Context, id, class, filename, client string, size int64, sha256 string) error {
	return q.emit(ctx, Event{
		Kind:     KindUpload,
		ObjectID: id,
		Class:    class,
		Filename: filename,
		Client:   client,
		Size:     size,
		SHA256:   sha256,
	})
}

// RecordDownload queues a download event.
func (q *Queue) RecordDownload(ctx context.Context, id, class, client, format string, size int64) error {
	return q.emit(ctx, Event{
		Kind:     KindDownload,
		ObjectID: id,
		Class:    class,
		Client:   client,
		Size:     size,
		Format:   format,
	})
}

func (q *Queue) emit(ctx context.Context, e Event) error {
	e.At = q.now()
	err := q.events.Emit(ctx, e)
	if err != nil {
		q.logger.WithContext(ctx).WithError(err).WithField("object_id", e.ObjectID).Warn("Dropped audit event")
		return fmt.Errorf("queue audit event: %w", err)
	}
	return nil
}
