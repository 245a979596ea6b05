package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type Watcher interface {
	Add(dirPath string) error
}

type FileSink interface {
	Enqueue(ctx context.Context, path string) error
}

// Walk walks through the given directory recursively performing the following actions:
//  1. Add every non-hidden directory to the watcher, if one is given
//  2. Hand every non-hidden regular file to the sink, if one is given
func Walk(ctx context.Context, log *logrus.Logger, rootDir string, watcher Watcher, sink FileSink) error {
	logger := log.WithField("root_dir", rootDir)
	logger.Info("Walking directory")

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if IsIgnored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if watcher == nil {
				return nil
			}
			// the fsnotify module suggests not to add individual files to the watcher
			err = watcher.Add(path)
			if err != nil {
				return fmt.Errorf("add dir to watcher: %w", err)
			}
			return nil
		}

		if !d.Type().IsRegular() || sink == nil {
			// skip irregular files e.g. symlinks
			return nil
		}

		err = sink.Enqueue(ctx, path)
		if err != nil {
			logger.WithField("path", path).WithError(err).Error("Error handing file to sink")
			return fmt.Errorf("enqueue file: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// IsIgnored reports whether path names a hidden file or an editor temp file.
func IsIgnored(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, "~") {
		return true
	}
	return name != "." && strings.HasPrefix(name, ".")
}
