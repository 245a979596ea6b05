package filesystem_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tmpdrop/server/internal/blobstorage/filesystem"
)

const maxSize = 64

func newFS(t *testing.T, opts ...filesystem.Option) (*filesystem.FileSystem, string) {
	t.Helper()
	tmpDir := t.TempDir()
	fs, err := filesystem.New(logrus.New(), tmpDir, maxSize, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	return fs, tmpDir
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// I haven't used table testing here because each case can have its own custom setup and putting them
// into one table would hide what is really going on
func TestPut(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		fs, tmpDir := newFS(t)
		data := []byte("hello world")

		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Durable, data))

		content, err := os.ReadFile(filepath.Join(tmpDir, "abc123"))
		require.NoError(t, err)
		assert.Equal(t, data, content)

		info, err := os.Stat(filepath.Join(tmpDir, "abc123"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		// no staging files are left behind
		assert.Equal(t, []string{"abc123"}, dirNames(t, tmpDir))
	})

	t.Run("disposable objects carry the suffix", func(t *testing.T) {
		fs, tmpDir := newFS(t)

		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Disposable, []byte("x")))
		assert.Equal(t, []string{"abc123.d"}, dirNames(t, tmpDir))
	})

	t.Run("size ceiling", func(t *testing.T) {
		fs, tmpDir := newFS(t)

		require.NoError(t, fs.Put(ctx, "atmax1", filesystem.Durable, bytes.Repeat([]byte("a"), maxSize)))

		err := fs.Put(ctx, "over01", filesystem.Durable, bytes.Repeat([]byte("a"), maxSize+1))
		require.ErrorIs(t, err, filesystem.ErrTooLarge)
		assert.Equal(t, []string{"atmax1"}, dirNames(t, tmpDir))
	})

	t.Run("never overwrites an existing object", func(t *testing.T) {
		fs, tmpDir := newFS(t)

		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Durable, []byte("first")))
		err := fs.Put(ctx, "abc123", filesystem.Durable, []byte("second"))
		require.ErrorIs(t, err, filesystem.ErrAlreadyExists)

		content, err := os.ReadFile(filepath.Join(tmpDir, "abc123"))
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), content)
	})

	t.Run("id taken by the other class", func(t *testing.T) {
		fs, tmpDir := newFS(t)

		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Disposable, []byte("first")))
		err := fs.Put(ctx, "abc123", filesystem.Durable, []byte("second"))
		require.ErrorIs(t, err, filesystem.ErrAlreadyExists)
		assert.Equal(t, []string{"abc123.d"}, dirNames(t, tmpDir))
	})

	t.Run("invalid ids", func(t *testing.T) {
		fs, _ := newFS(t)

		for _, id := range []string{"", "../x", "a/b", ".hidden", "abc.d"} {
			err := fs.Put(ctx, id, filesystem.Durable, []byte("x"))
			require.ErrorIs(t, err, filesystem.ErrInvalidID, id)
		}
	})

	t.Run("cancelled put is never published", func(t *testing.T) {
		fs, tmpDir := newFS(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := fs.Put(cctx, "abc123", filesystem.Durable, []byte("partial"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, dirNames(t, tmpDir))
	})

	t.Run("create failure due to perms", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		fs, tmpDir := newFS(t)
		require.NoError(t, os.Chmod(tmpDir, 0o500))
		t.Cleanup(func() { _ = os.Chmod(tmpDir, 0o700) })

		err := fs.Put(ctx, "abc123", filesystem.Durable, []byte("nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create staging file")
	})

	t.Run("concurrent puts of one id across classes", func(t *testing.T) {
		for range 50 {
			fs, tmpDir := newFS(t)

			var wg sync.WaitGroup
			var ok atomic.Int32
			for _, class := range []filesystem.Class{filesystem.Durable, filesystem.Disposable} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := fs.Put(ctx, "abc123", class, []byte("x"))
					if err == nil {
						ok.Add(1)
						return
					}
					assert.ErrorIs(t, err, filesystem.ErrAlreadyExists)
				}()
			}
			wg.Wait()

			assert.LessOrEqual(t, ok.Load(), int32(1))
			assert.Len(t, dirNames(t, tmpDir), int(ok.Load()))
		}
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	require.NoError(t, fs.Put(ctx, "abc123", filesystem.Durable, []byte("data")))

	for range 3 {
		data, err := fs.Get(ctx, "abc123", filesystem.Durable)
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), data)
	}

	_, err := fs.Get(ctx, "abc123", filesystem.Disposable)
	require.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = fs.Get(ctx, "zzz999", filesystem.Durable)
	require.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestTakeDisposable(t *testing.T) {
	ctx := context.Background()

	t.Run("readable exactly once", func(t *testing.T) {
		fs, tmpDir := newFS(t)
		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Disposable, []byte("secret")))

		data, err := fs.TakeDisposable(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), data)

		_, err = fs.TakeDisposable(ctx, "abc123")
		require.ErrorIs(t, err, filesystem.ErrNotFound)
		assert.Empty(t, dirNames(t, tmpDir))
	})

	t.Run("durable objects cannot be taken", func(t *testing.T) {
		fs, _ := newFS(t)
		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Durable, []byte("keep")))

		_, err := fs.TakeDisposable(ctx, "abc123")
		require.ErrorIs(t, err, filesystem.ErrNotFound)
	})

	t.Run("concurrent takes deliver once", func(t *testing.T) {
		const readers = 16
		for range 20 {
			fs, tmpDir := newFS(t)
			payload := []byte("only once")
			require.NoError(t, fs.Put(ctx, "abc123", filesystem.Disposable, payload))

			start := make(chan struct{})
			var wg sync.WaitGroup
			var wins, misses atomic.Int32
			for range readers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					data, err := fs.TakeDisposable(ctx, "abc123")
					switch {
					case err == nil:
						assert.Equal(t, payload, data)
						wins.Add(1)
					case errors.Is(err, filesystem.ErrNotFound):
						misses.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.EqualValues(t, 1, wins.Load())
			assert.EqualValues(t, readers-1, misses.Load())
			assert.Empty(t, dirNames(t, tmpDir))
		}
	})
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	require.NoError(t, fs.Put(ctx, "durab1", filesystem.Durable, []byte("x")))
	require.NoError(t, fs.Put(ctx, "dispo1", filesystem.Disposable, []byte("x")))

	tests := map[string]struct {
		id     string
		exists bool
	}{
		"durable":    {id: "durab1", exists: true},
		"disposable": {id: "dispo1", exists: true},
		"missing":    {id: "nope00", exists: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ok, err := fs.Exists(tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.exists, ok)
		})
	}
}

func TestAge(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	fs, tmpDir := newFS(t, filesystem.WithClock(func() time.Time { return now }))
	require.NoError(t, fs.Put(ctx, "abc123", filesystem.Durable, []byte("x")))

	written := now.Add(-90 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(tmpDir, "abc123"), written, written))

	age, err := fs.Age(ctx, "abc123", filesystem.Durable)
	require.NoError(t, err)
	assert.InDelta(t, float64(90*time.Second), float64(age), float64(time.Second))

	_, err = fs.Age(ctx, "abc123", filesystem.Disposable)
	require.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		fs, tmpDir := newFS(t)
		require.NoError(t, fs.Put(ctx, "abc123", filesystem.Disposable, []byte("data")))

		require.NoError(t, fs.Remove(ctx, "abc123", filesystem.Disposable))
		_, err := os.Stat(filepath.Join(tmpDir, "abc123.d"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("no errors when file does not exist", func(t *testing.T) {
		fs, _ := newFS(t)
		require.NoError(t, fs.Remove(ctx, "missing", filesystem.Durable))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	fs, tmpDir := newFS(t)
	require.NoError(t, fs.Put(ctx, "durab1", filesystem.Durable, []byte("abc")))
	require.NoError(t, fs.Put(ctx, "dispo1", filesystem.Disposable, []byte("abcdef")))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "converts"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".put-leftover"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".DS_Store"), []byte("x"), 0o600))

	objects, err := fs.List(ctx)
	require.NoError(t, err)

	byID := make(map[string]filesystem.ObjectInfo)
	for _, o := range objects {
		byID[o.ID] = o
	}
	require.Len(t, byID, 2)
	assert.Equal(t, filesystem.Durable, byID["durab1"].Class)
	assert.EqualValues(t, 3, byID["durab1"].Size)
	assert.Equal(t, filesystem.Disposable, byID["dispo1"].Class)
	assert.Equal(t, "dispo1.d", byID["dispo1"].Filename())
	assert.False(t, byID["dispo1"].ModTime.IsZero())

	staging, err := fs.ListStaging(ctx)
	require.NoError(t, err)
	require.Len(t, staging, 1)
	assert.Equal(t, ".put-leftover", staging[0].Name)

	require.NoError(t, fs.RemoveStaging(ctx, ".put-leftover"))
	require.Error(t, fs.RemoveStaging(ctx, ".DS_Store"))
	staging, err = fs.ListStaging(ctx)
	require.NoError(t, err)
	assert.Empty(t, staging)
}
