package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultDir is the mailbox directory name under the data root.
const DefaultDir = "virtual_dropbox"

// tempPrefix marks in-flight writes. Listing ignores these files.
const tempPrefix = ".tmp-"

// Store is raw byte storage keyed by address.
//
// Create must be exclusive: when the address already holds content it
// returns an error matching fs.ErrExist and leaves the content untouched.
// Read returns an error matching fs.ErrNotExist for an empty address.
type Store interface {
	Create(ctx context.Context, addr Address, data []byte) error
	Read(ctx context.Context, addr Address) ([]byte, error)
	Exists(ctx context.Context, addr Address) (bool, error)
	// List returns the message file names present in a channel.
	List(ctx context.Context, ch Channel) ([]string, error)
	// Location describes the store root, for diagnostics.
	Location() string
}

// Notifier is implemented by stores that can signal changes to a channel.
// Each receive on the returned channel means "something may have changed";
// callers re-check with Exists.
type Notifier interface {
	Notify(ctx context.Context, ch Channel) (<-chan struct{}, error)
}

// FileStore keeps one file per address under a root directory.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir. Directories are created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Location returns the root directory.
func (s *FileStore) Location() string { return s.root }

// Path returns the file path for addr.
func (s *FileStore) Path(addr Address) string {
	return filepath.Join(s.root, string(addr.Channel), addr.FileName())
}

func (s *FileStore) channelDir(ch Channel) string {
	return filepath.Join(s.root, string(ch))
}

// Create writes data to a synced temp file and hard-links it to the target,
// which fails if the target exists. Filesystems without hard links fall back
// to an existence check followed by rename.
func (s *FileStore) Create(ctx context.Context, addr Address, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.channelDir(addr.Channel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mailbox: create directory: %w", err)
	}

	tmp := filepath.Join(dir, tempPrefix+uuid.NewString())
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("mailbox: write temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	target := s.Path(addr)
	err := os.Link(tmp, target)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("mailbox: %s: %w", addr, fs.ErrExist)
	case linkUnsupported(err):
		if _, statErr := os.Lstat(target); statErr == nil {
			return fmt.Errorf("mailbox: %s: %w", addr, fs.ErrExist)
		}
		if err := os.Rename(tmp, target); err != nil {
			return fmt.Errorf("mailbox: rename temp file: %w", err)
		}
	default:
		return fmt.Errorf("mailbox: link temp file: %w", err)
	}
	syncDir(dir)
	return nil
}

// linkUnsupported reports link errors that mean "this filesystem has no
// hard links" rather than a real failure.
func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.EMLINK)
}

// Read returns the file content at addr.
func (s *FileStore) Read(ctx context.Context, addr Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(addr))
	if err != nil {
		return nil, fmt.Errorf("mailbox: read %s: %w", addr, err)
	}
	return data, nil
}

// Exists reports whether addr has a file.
func (s *FileStore) Exists(ctx context.Context, addr Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(addr))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("mailbox: stat %s: %w", addr, err)
}

// List returns the regular, non-temp file names in a channel directory. A
// missing directory is an empty channel.
func (s *FileStore) List(ctx context.Context, ch Channel) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.channelDir(ch))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mailbox: list %s: %w", ch, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) > 0 && e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Notify watches the channel directory with fsnotify. The watch is removed
// when ctx is done.
func (s *FileStore) Notify(ctx context.Context, ch Channel) (<-chan struct{}, error) {
	dir := s.channelDir(ch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mailbox: create directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("mailbox: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("mailbox: watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer func() { _ = watcher.Close() }()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
					continue
				}
				select {
				case out <- struct{}{}:
				default: // a wake-up is already pending
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
