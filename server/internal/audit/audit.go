// Package audit keeps an append-only SQLite record of uploads and downloads.
//
// A nil *Ledger is valid and records nothing, which is how the server runs when no database path is
// configured.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	at_unix   INTEGER NOT NULL,
	kind      TEXT    NOT NULL,
	object_id TEXT    NOT NULL,
	class     TEXT    NOT NULL,
	filename  TEXT    NOT NULL DEFAULT '',
	client    TEXT    NOT NULL,
	size      INTEGER NOT NULL DEFAULT 0,
	sha256    TEXT    NOT NULL DEFAULT '',
	format    TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_object_id ON events (object_id);
`

type Kind string

const (
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

// Event is one ledger row.
type Event struct {
	At       time.Time
	Kind     Kind
	ObjectID string
	Class    string
	Filename string
	Client   string
	Size     int64
	SHA256   string
	// Format is the transcode target of a download, empty when the original bytes were served.
	Format string
}

type Ledger struct {
	logger *logrus.Logger
	db     *sql.DB
	now    func() time.Time
}

// Open opens the SQLite database at path and bootstraps the schema.
func Open(logger *logrus.Logger, path string) (*Ledger, error) {
	logger.WithField("path", path).Info("Opening audit ledger")

	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &Ledger{
		logger: logger,
		db:     db,
		now:    time.Now,
	}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// RecordUpload appends an upload event.
func (l *Ledger) RecordUpload(ctx context.Context, id, class, filename, client string, size int64, sha256 string) error {
	return l.insert(ctx, Event{
		Kind:     KindUpload,
		ObjectID: id,
		Class:    class,
		Filename: filename,
		Client:   client,
		Size:     size,
		SHA256:   sha256,
	})
}

// RecordDownload appends a download event.
func (l *Ledger) RecordDownload(ctx context.Context, id, class, client, format string, size int64) error {
	return l.insert(ctx, Event{
		Kind:     KindDownload,
		ObjectID: id,
		Class:    class,
		Client:   client,
		Size:     size,
		Format:   format,
	})
}

func (l *Ledger) insert(ctx context.Context, e Event) error {
	if l == nil {
		return nil
	}
	if e.At.IsZero() {
		e.At = l.now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (at_unix, kind, object_id, class, filename, client, size, sha256, format)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.UnixNano(), string(e.Kind), e.ObjectID, e.Class, e.Filename, e.Client, e.Size, e.SHA256, e.Format,
	)
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).WithField("object_id", e.ObjectID).Error("Could not write audit event")
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

// Events returns the events recorded for id in insertion order.
func (l *Ledger) Events(ctx context.Context, id string) ([]Event, error) {
	if l == nil {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT at_unix, kind, object_id, class, filename, client, size, sha256, format
		 FROM events WHERE object_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			at   int64
			kind string
		)
		err := rows.Scan(&at, &kind, &e.ObjectID, &e.Class, &e.Filename, &e.Client, &e.Size, &e.SHA256, &e.Format)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.At = time.Unix(0, at)
		e.Kind = Kind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("audit database path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}
