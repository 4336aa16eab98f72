package registry

import (
	"context"
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default record names relative to the data root.
const (
	DefaultFileName   = "experiment_ids.json"
	DefaultSQLiteName = "experiment_ids.db"
)

// Registry is the experiment index. Implementations must make Append atomic
// with respect to other processes sharing the same record.
type Registry interface {
	// Load returns every registered identifier in index order.
	Load(ctx context.Context) ([]string, error)
	// Append registers id and returns its index. An id that is already
	// registered yields an AlreadyExistsError and changes nothing.
	Append(ctx context.Context, id string) (int, error)
	// Resolve returns the identifier at index.
	Resolve(ctx context.Context, index int) (string, error)
	// Len returns the number of registered experiments.
	Len(ctx context.Context) (int, error)
	// Location describes where the record lives, for diagnostics.
	Location() string
	Close() error
}

// ValidBackends returns the backends that other processes can see.
// BackendMemory is accepted by Open but lives only as long as the process.
func ValidBackends() []string {
	return []string{BackendFile, BackendSQLite}
}

// Open returns the registry for backend. Relative paths are resolved against
// root; an empty path selects the default record name for the backend.
func Open(backend, root, path string) (Registry, error) {
	resolve := func(def string) string {
		if path == "" {
			path = def
		}
		if filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(root, path)
	}

	switch backend {
	case BackendFile, "":
		return NewFileRegistry(resolve(DefaultFileName)), nil
	case BackendSQLite:
		return NewSQLiteRegistry(resolve(DefaultSQLiteName))
	case BackendMemory:
		return NewMemoryRegistry(), nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", backend)
	}
}

// resolveIndex is the shared range check behind Resolve.
func resolveIndex(ids []string, index int) (string, bool) {
	if index < 0 || index >= len(ids) {
		return "", false
	}
	return ids[index], true
}
