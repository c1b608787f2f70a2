package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	fileName = "db.json"
	lockName = "db.json.lock"

	fileLockRetry = 10 * time.Millisecond
)

// FileStore keeps the document as pretty-printed JSON and replaces it with
// write-temp-then-rename. In-process callers queue on lock; other processes
// sharing the data dir (serve and the admin CLI) are excluded by an advisory
// lock on db.json.lock, taken after lock.
type FileStore struct {
	path  string
	lock  fifoLock
	flock *flock.Flock
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		path:  filepath.Join(dir, fileName),
		flock: flock.New(filepath.Join(dir, lockName)),
	}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// acquire takes the in-process queue, then the cross-process file lock.
func (s *FileStore) acquire(ctx context.Context) (release func(), err error) {
	if err := s.lock.Lock(ctx); err != nil {
		return nil, err
	}
	locked, err := s.flock.TryLockContext(ctx, fileLockRetry)
	if err != nil || !locked {
		s.lock.Unlock()
		if err == nil {
			err = errors.New("store file lock not acquired")
		}
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return func() {
		_ = s.flock.Unlock()
		s.lock.Unlock()
	}, nil
}

func (s *FileStore) Read(ctx context.Context) (*Snapshot, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.load()
}

func (s *FileStore) Mutate(ctx context.Context, fn func(*Snapshot) error) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	snap, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	return s.write(snap)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() (*Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		snap := &Snapshot{}
		snap.normalize()
		if err := s.write(snap); err != nil {
			return nil, err
		}
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	snap.normalize()
	return &snap, nil
}

func (s *FileStore) write(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(s.path), fileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("open temp store: %w", err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp)
		}
	}()

	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	committed = true
	return nil
}
