package filesystem_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tmpdrop/client/filesystem"
	"github.com/hedisam/tmpdrop/client/filesystem/mocks"
)

//go:generate moq -out mocks/file_sink.go -pkg mocks -skip-ensure . FileSink
//go:generate moq -out mocks/watcher.go -pkg mocks -skip-ensure . Watcher

func TestWalk(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		existingDirs          []string
		existingFiles         []string
		existingSymlinks      map[string]string
		expectedWatchedDirs   []string
		expectedEnqueuedFiles []string
	}{
		"empty": {
			existingDirs:          []string{},
			existingFiles:         []string{},
			existingSymlinks:      nil,
			expectedWatchedDirs:   []string{"."},
			expectedEnqueuedFiles: []string{},
		},
		"single file": {
			existingDirs:          []string{},
			existingFiles:         []string{"file1.txt"},
			existingSymlinks:      nil,
			expectedWatchedDirs:   []string{"."},
			expectedEnqueuedFiles: []string{"file1.txt"},
		},
		"nested structure": {
			existingDirs:          []string{"a", "a/b"},
			existingFiles:         []string{"a/b/c.txt"},
			existingSymlinks:      nil,
			expectedWatchedDirs:   []string{".", "a", "a/b"},
			expectedEnqueuedFiles: []string{"a/b/c.txt"},
		},
		"skip hidden and temp": {
			existingDirs:          []string{".git"},
			existingFiles:         []string{".hidden", "temp~", "visible.txt", ".git/HEAD"},
			existingSymlinks:      nil,
			expectedWatchedDirs:   []string{"."},
			expectedEnqueuedFiles: []string{"visible.txt"},
		},
		"skip symlinks": {
			existingDirs:          []string{},
			existingFiles:         []string{"real.txt"},
			existingSymlinks:      map[string]string{"link": "real.txt"},
			expectedWatchedDirs:   []string{"."},
			expectedEnqueuedFiles: []string{"real.txt"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()

			for _, d := range tc.existingDirs {
				path := filepath.Join(root, d)
				err := os.MkdirAll(path, 0755)
				require.NoError(t, err)
			}

			for _, f := range tc.existingFiles {
				path := filepath.Join(root, f)
				err := os.WriteFile(path, []byte("data"), 0644)
				require.NoError(t, err)
			}

			for link, target := range tc.existingSymlinks {
				linkPath := filepath.Join(root, link)
				targetPath := filepath.Join(root, target)
				err := os.Symlink(targetPath, linkPath)
				require.NoError(t, err)
			}

			watcherMock := &mocks.WatcherMock{
				AddFunc: func(dirPath string) error {
					rel, err := filepath.Rel(root, dirPath)
					require.NoError(t, err)
					assert.Contains(t, tc.expectedWatchedDirs, rel)
					return nil
				},
			}

			sinkMock := &mocks.FileSinkMock{
				EnqueueFunc: func(_ context.Context, path string) error {
					rel, err := filepath.Rel(root, path)
					require.NoError(t, err)
					assert.Contains(t, tc.expectedEnqueuedFiles, rel)
					return nil
				},
			}
			logger := logrus.New()
			logger.SetOutput(io.Discard)
			err := filesystem.Walk(context.Background(), logger, root, watcherMock, sinkMock)
			require.NoError(t, err)

			assert.Equal(t, len(tc.expectedWatchedDirs), len(watcherMock.AddCalls()))
			assert.Equal(t, len(tc.expectedEnqueuedFiles), len(sinkMock.EnqueueCalls()))
		})
	}
}

func TestWalkWithoutWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b.txt"), []byte("data"), 0644))

	sinkMock := &mocks.FileSinkMock{
		EnqueueFunc: func(context.Context, string) error { return nil },
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	err := filesystem.Walk(context.Background(), logger, root, nil, sinkMock)
	require.NoError(t, err)

	require.Len(t, sinkMock.EnqueueCalls(), 1)
	assert.Equal(t, filepath.Join(root, "a", "b.txt"), sinkMock.EnqueueCalls()[0].Path)
}

func TestWalkStopsOnSinkError(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("data"), 0644))
	}

	errBoom := errors.New("boom")
	sinkMock := &mocks.FileSinkMock{
		EnqueueFunc: func(context.Context, string) error { return errBoom },
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	err := filesystem.Walk(context.Background(), logger, root, nil, sinkMock)
	require.ErrorIs(t, err, errBoom)
	assert.Len(t, sinkMock.EnqueueCalls(), 1)
}

func TestIsIgnored(t *testing.T) {
	tests := map[string]struct {
		path string
		want bool
	}{
		"regular":     {path: "dir/file.txt", want: false},
		"hidden":      {path: "dir/.env", want: true},
		"editor temp": {path: "dir/notes.txt~", want: true},
		"dot":         {path: ".", want: false},
		"hidden dir":  {path: "/home/u/.cache", want: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, filesystem.IsIgnored(tc.path))
		})
	}
}
