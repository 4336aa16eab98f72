package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/biobot-lab/biobot/internal/filelock"
)

// currentKey is the single top-level key of the registry record.
const currentKey = "current"

// record is the on-disk shape of the registry file.
type record struct {
	Current []string `json:"current"`
}

// FileRegistry stores the registry as a JSON document.
type FileRegistry struct {
	path string
}

// NewFileRegistry returns a registry backed by the JSON file at path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// Location returns the record path.
func (r *FileRegistry) Location() string { return r.path }

// LockPath returns the advisory lock file guarding the record.
func (r *FileRegistry) LockPath() string { return r.path + ".lock" }

// Close is a no-op; the file registry holds no open handles between calls.
func (r *FileRegistry) Close() error { return nil }

// Load reads the record without taking the lock. Writers replace the record
// by rename, so a reader sees either the old or the new document.
func (r *FileRegistry) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.read()
}

// Append registers id under the exclusive lock.
func (r *FileRegistry) Append(ctx context.Context, id string) (int, error) {
	var index int
	err := filelock.WithLock(ctx, r.LockPath(), func() error {
		ids, err := r.read()
		if err != nil {
			return err
		}
		if slices.Contains(ids, id) {
			return errors.NewAlreadyExistsError("experiment", id)
		}
		ids = append(ids, id)
		if err := r.write(ids); err != nil {
			return err
		}
		index = len(ids) - 1
		return nil
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

// Resolve returns the identifier at index.
func (r *FileRegistry) Resolve(ctx context.Context, index int) (string, error) {
	ids, err := r.Load(ctx)
	if err != nil {
		return "", err
	}
	id, ok := resolveIndex(ids, index)
	if !ok {
		return "", errors.NewNotFoundError("experiment", strconv.Itoa(index))
	}
	return id, nil
}

// Len returns the number of registered experiments.
func (r *FileRegistry) Len(ctx context.Context) (int, error) {
	ids, err := r.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (r *FileRegistry) read() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return decode(r.path, data)
}

// decode parses a registry document. Anything other than an object with a
// "current" array of strings is corrupt; a null array is an empty registry.
func decode(path string, data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, errors.NewRegistryCorruptError(path, errors.New("empty file"))
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewRegistryCorruptError(path, err)
	}
	raw, ok := doc[currentKey]
	if !ok {
		return nil, errors.NewRegistryCorruptError(path, fmt.Errorf("missing %q key", currentKey))
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, errors.NewRegistryCorruptError(path, fmt.Errorf("%q: %w", currentKey, err))
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// write replaces the record atomically: a uniquely named temp file in the
// same directory is synced and renamed over the target.
func (r *FileRegistry) write(ids []string) error {
	data, err := json.MarshalIndent(record{Current: ids}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(r.path)+".tmp-"+uuid.NewString())

	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	syncDir(dir)
	return nil
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

// syncDir flushes the directory entry after a rename. Errors are ignored;
// some filesystems do not support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
