package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DisposableSuffix marks objects that are deleted by their first read.
	DisposableSuffix = ".d"

	stagingPutPrefix  = ".put-"
	stagingTakePrefix = ".take-"
	objectFileMode    = 0o600
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAlreadyExists = errors.New("object already exists")
	ErrTooLarge      = errors.New("object too large")
	ErrInvalidID     = errors.New("invalid object id")
)

// Class is the lifetime class of a stored object.
type Class int

const (
	Durable Class = iota
	Disposable
)

func (c Class) String() string {
	if c == Disposable {
		return "disposable"
	}
	return "durable"
}

func (c Class) filename(id string) string {
	if c == Disposable {
		return id + DisposableSuffix
	}
	return id
}

func (c Class) other() Class {
	if c == Disposable {
		return Durable
	}
	return Disposable
}

// ObjectInfo describes a stored object as found in a directory listing.
type ObjectInfo struct {
	ID      string
	Class   Class
	ModTime time.Time
	Size    int64
}

// Filename returns the on-disk name of the object.
func (o ObjectInfo) Filename() string {
	return o.Class.filename(o.ID)
}

// StagingInfo describes a hidden file that an in-flight write or take goes through.
type StagingInfo struct {
	Name    string
	ModTime time.Time
}

// FileSystem stores objects as files in a single directory. Both lifetime classes share the
// directory, disposable objects carry DisposableSuffix. A write is staged in a hidden file and
// hard-linked to its public name, so readers never see partial content and an existing object is
// never overwritten. Disposable reads rename the object to a private name first, which only one
// caller can win.
type FileSystem struct {
	logger  *logrus.Logger
	dir     *os.Root
	maxSize int64
	now     func() time.Time
}

type Option func(*FileSystem)

// WithClock overrides the clock used to compute object ages.
func WithClock(now func() time.Time) Option {
	return func(fs *FileSystem) {
		fs.now = now
	}
}

func New(logger *logrus.Logger, rootDir string, maxSize int64, opts ...Option) (*FileSystem, error) {
	logger.WithField("root_dir", rootDir).Info("Getting directory-limited filesystem access")

	if maxSize < 1 {
		return nil, fmt.Errorf("max object size must be positive, got %d", maxSize)
	}

	dir, err := os.OpenRoot(rootDir)
	if err != nil {
		return nil, fmt.Errorf("open root dir: %w", err)
	}

	fs := &FileSystem{
		logger:  logger,
		dir:     dir,
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fs)
	}

	return fs, nil
}

func (fs *FileSystem) Close() error {
	return fs.dir.Close()
}

// MaxSize returns the size ceiling enforced by Put.
func (fs *FileSystem) MaxSize() int64 {
	return fs.maxSize
}

// Put stores data under id in the given class. It fails with ErrTooLarge before writing anything
// if data exceeds the ceiling, and with ErrAlreadyExists if the id is taken in either class.
func (fs *FileSystem) Put(ctx context.Context, id string, class Class, data []byte) error {
	logger := fs.logger.WithContext(ctx).WithFields(logrus.Fields{
		"object_id": id,
		"class":     class,
	})

	if err := validateID(id); err != nil {
		return err
	}
	if int64(len(data)) > fs.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), fs.maxSize)
	}

	staging := stagingPutPrefix + uuid.NewString()
	f, err := fs.dir.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, objectFileMode)
	if err != nil {
		logger.WithError(err).Error("Could not create staging file when putting object in filesystem")
		return fmt.Errorf("create staging file: %w", err)
	}
	// the public name is a second link to the same inode, dropping the staging name is always safe
	defer fs.removeQuietly(ctx, staging)

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logger.WithError(err).Error("Could not write to staging file when putting object in filesystem")
		return fmt.Errorf("write to staging file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		logger.WithError(err).Warn("Put cancelled before the object was published")
		return fmt.Errorf("put object: %w", err)
	}

	name := class.filename(id)
	err = fs.dir.Link(staging, name)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
		logger.WithError(err).Error("Could not publish object in filesystem")
		return fmt.Errorf("link object file: %w", err)
	}

	// an id must never live in both classes; whoever links second sees the sibling and backs off.
	// both may back off, which only costs the callers a retry.
	taken, err := fs.exists(class.other().filename(id))
	if err != nil || taken {
		fs.removeQuietly(ctx, name)
		if err != nil {
			return fmt.Errorf("check sibling object: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyExists, class.other().filename(id))
	}

	return nil
}

// Get reads the object without side effects.
func (fs *FileSystem) Get(ctx context.Context, id string, class Class) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := fs.dir.ReadFile(class.filename(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		fs.logger.WithContext(ctx).WithField("object_id", id).WithError(err).Error("Could not read object file")
		return nil, fmt.Errorf("read object file: %w", err)
	}

	return data, nil
}

// TakeDisposable reads and deletes a disposable object. Concurrent callers race on a rename to a
// private name; exactly one wins and the rest get ErrNotFound.
func (fs *FileSystem) TakeDisposable(ctx context.Context, id string) ([]byte, error) {
	logger := fs.logger.WithContext(ctx).WithField("object_id", id)

	if err := validateID(id); err != nil {
		return nil, err
	}

	private := stagingTakePrefix + uuid.NewString()
	err := fs.dir.Rename(Disposable.filename(id), private)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		logger.WithError(err).Error("Could not claim disposable object")
		return nil, fmt.Errorf("claim disposable object: %w", err)
	}
	defer fs.removeQuietly(ctx, private)

	data, err := fs.dir.ReadFile(private)
	if err != nil {
		logger.WithError(err).Error("Could not read claimed disposable object, it is lost")
		return nil, fmt.Errorf("read claimed object: %w", err)
	}

	return data, nil
}

// Exists reports whether id is taken in either class.
func (fs *FileSystem) Exists(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	for _, class := range []Class{Durable, Disposable} {
		ok, err := fs.exists(class.filename(id))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Age returns how long ago the object was written.
func (fs *FileSystem) Age(_ context.Context, id string, class Class) (time.Duration, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}
	info, err := fs.dir.Lstat(class.filename(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("stat object file: %w", err)
	}
	return fs.now().Sub(info.ModTime()), nil
}

// Remove deletes the object. Removing a missing object is not an error.
func (fs *FileSystem) Remove(ctx context.Context, id string, class Class) error {
	logger := fs.logger.WithContext(ctx).WithField("object_id", id)

	if err := validateID(id); err != nil {
		return err
	}

	err := fs.dir.Remove(class.filename(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		logger.WithError(err).Error("Could not remove file from filesystem")
		return fmt.Errorf("remove object file: %w", err)
	}

	return nil
}

// List returns every object in the directory. Hidden files and directories are skipped.
func (fs *FileSystem) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := fs.readDir()
	if err != nil {
		return nil, err
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// removed between the listing and the stat
			fs.logger.WithContext(ctx).WithField("name", name).WithError(err).Debug("Skipping vanished object")
			continue
		}

		obj := ObjectInfo{
			ID:      name,
			Class:   Durable,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if id, ok := strings.CutSuffix(name, DisposableSuffix); ok {
			obj.ID = id
			obj.Class = Disposable
		}
		if validateID(obj.ID) != nil {
			continue
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

// ListStaging returns the hidden files used by in-flight puts and takes. Files that survive a
// crash are reclaimed by the sweeper.
func (fs *FileSystem) ListStaging(context.Context) ([]StagingInfo, error) {
	entries, err := fs.readDir()
	if err != nil {
		return nil, err
	}

	var staging []StagingInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isStagingName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		staging = append(staging, StagingInfo{Name: name, ModTime: info.ModTime()})
	}

	return staging, nil
}

// RemoveStaging deletes a staging file returned by ListStaging.
func (fs *FileSystem) RemoveStaging(_ context.Context, name string) error {
	if !isStagingName(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q is not a staging file", name)
	}
	err := fs.dir.Remove(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}

func (fs *FileSystem) readDir() ([]os.DirEntry, error) {
	d, err := fs.dir.Open(".")
	if err != nil {
		return nil, fmt.Errorf("open root dir for listing: %w", err)
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("list root dir: %w", err)
	}
	return entries, nil
}

func (fs *FileSystem) exists(name string) (bool, error) {
	_, err := fs.dir.Lstat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %q: %w", name, err)
}

func (fs *FileSystem) removeQuietly(ctx context.Context, name string) {
	err := fs.dir.Remove(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fs.logger.WithContext(ctx).WithField("name", name).WithError(err).Warn("Could not remove file")
	}
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `./\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func isStagingName(name string) bool {
	return strings.HasPrefix(name, stagingPutPrefix) || strings.HasPrefix(name, stagingTakePrefix)
}
