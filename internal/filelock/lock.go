package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// retryInterval is how often LockContext retries a non-blocking flock.
const retryInterval = 10 * time.Millisecond

// Lock is an exclusive flock(2) on a single lock file.
type Lock struct {
	path string
	file *os.File
}

// New returns a Lock on path. The file is created on first acquisition.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

func (l *Lock) open() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

// Lock blocks until the exclusive lock is held.
func (l *Lock) Lock() error {
	if l.file != nil {
		return fmt.Errorf("lock %s already held", l.path)
	}
	f, err := l.open()
	if err != nil {
		return err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: %w", err)
	}
	l.file = f
	return nil
}

// TryLock acquires the lock without blocking. It returns false when another
// holder has it.
func (l *Lock) TryLock() (bool, error) {
	if l.file != nil {
		return false, fmt.Errorf("lock %s already held", l.path)
	}
	f, err := l.open()
	if err != nil {
		return false, err
	}
	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}
	l.file = f
	return true, nil
}

// LockContext polls TryLock until it succeeds or ctx is done. A context that
// can never be done blocks in flock instead of polling.
func (l *Lock) LockContext(ctx context.Context) error {
	if ctx.Done() == nil {
		return l.Lock()
	}
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.TryLock()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for lock %s: %w", l.path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock. Unlocking a lock that is not held is a no-op.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("funlock: %w", err)
	}
	return f.Close()
}

// WithLock runs fn while holding an exclusive lock on path.
func WithLock(ctx context.Context, path string, fn func() error) (err error) {
	l := New(path)
	if err := l.LockContext(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := l.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}
