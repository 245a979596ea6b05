package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/tmpdrop/client/filesystem"
)

// DefaultSettleDelay is how long a file has to stay untouched before it is reported.
const DefaultSettleDelay = time.Millisecond * 500

// Watcher reports regular files created or rewritten in the watched directories once writes to
// them have settled.
type Watcher struct {
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
	settle  time.Duration
	files   chan string
}

func New(logger *logrus.Logger, settle time.Duration) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	return &Watcher{
		logger:  logger,
		watcher: watcher,
		settle:  settle,
		files:   make(chan string),
	}, nil
}

func (w *Watcher) Add(dirPath string) error {
	err := w.watcher.Add(dirPath)
	if err != nil {
		return fmt.Errorf("add dir to watcher: %w", err)
	}

	w.logger.WithField("dir", dirPath).Debug("Watching directory...")
	return nil
}

// Files returns the channel settled file paths are sent on. It is closed when Start returns.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Start consumes filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	defer close(w.files)

	ticker := time.NewTicker(max(w.settle/2, time.Millisecond))
	defer ticker.Stop()

	// path -> time of the last write seen
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filesystem.IsIgnored(event.Name) {
				// ignore hidden and temporary files (e.g. file.txt~ that are automatically created by editors)
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			info, err := os.Lstat(event.Name)
			if err != nil {
				w.logger.WithField("path", event.Name).WithError(err).Warn("Failed to get stat info processing fs watcher event, ignoring")
				continue
			}
			if info.IsDir() {
				if event.Has(fsnotify.Create) {
					err = w.Add(event.Name)
					if err != nil {
						w.logger.WithError(err).Warn("Failed to add newly created directory to watcher, ignoring")
					}
				}
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}

			w.logger.WithField("file", event.Name).Debug("File changed")
			pending[event.Name] = time.Now()

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				select {
				case <-ctx.Done():
					return
				case w.files <- path:
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// todo: in a production system we may wanna know what is this error by having a metric or something
			w.logger.WithError(err).Error("Received error from watcher")
		}
	}
}

func (w *Watcher) Close() {
	_ = w.watcher.Close()
}
