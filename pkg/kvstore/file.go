package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"
)

const lockRetryDelay = 20 * time.Millisecond

// File stores every key in one msgpack-encoded file. Reads take a shared
// lock and writes an exclusive one on a sibling ".lock" file; the data file
// itself is replaced atomically.
type File struct {
	path string
	lock *flock.Flock
	now  Clock
}

// NewFile opens (or prepares) a file store at path. The parent directory is
// created when missing. A nil clock uses time.Now.
func NewFile(path string, now Clock) (*File, error) {
	if path == "" {
		return nil, errors.New("kvstore: empty file path")
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  now,
	}, nil
}

// Path returns the data file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.acquire(ctx, false); err != nil {
		return nil, err
	}
	items, err := f.read()
	f.release()
	if err != nil {
		return nil, err
	}

	r, ok := items[key]
	if !ok || r.expired(f.now()) {
		return nil, ErrNotFound
	}
	return r.Value, nil
}

func (f *File) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return f.update(ctx, func(items map[string]record) {
		items[key] = newRecord(value, ttl, f.now())
	})
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.update(ctx, func(items map[string]record) {
		delete(items, key)
	})
}

func (f *File) Close() error {
	return f.lock.Close()
}

// update runs a read-modify-write cycle under the exclusive lock, dropping
// expired records on the way.
func (f *File) update(ctx context.Context, mutate func(map[string]record)) error {
	if err := f.acquire(ctx, true); err != nil {
		return err
	}
	defer f.release()

	items, err := f.read()
	if err != nil {
		// a corrupt file is rewritten rather than blocking every future write
		log.Warnf("Discarding unreadable store file %s: %v", f.path, err)
		items = make(map[string]record)
	}
	now := f.now()
	for k, r := range items {
		if r.expired(now) {
			delete(items, k)
		}
	}
	mutate(items)

	data, err := msgpack.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}
	if err := utils.WriteFileAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	return nil
}

func (f *File) read() (map[string]record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}
	items := make(map[string]record)
	if len(data) == 0 {
		return items, nil
	}
	if err := msgpack.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding store file: %w", err)
	}
	return items, nil
}

func (f *File) acquire(ctx context.Context, exclusive bool) error {
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = f.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = f.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("locking store file: %w", err)
	}
	if !ok {
		return fmt.Errorf("locking store file: %s is busy", f.path)
	}
	return nil
}

func (f *File) release() {
	if err := f.lock.Unlock(); err != nil {
		log.Warnf("Failed to unlock %s: %v", f.lock.Path(), err)
	}
}
