package registry

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/biobot-lab/biobot/internal/errors"
)

// MemoryRegistry is a process-local registry.
type MemoryRegistry struct {
	mu  sync.Mutex
	ids []string
}

// NewMemoryRegistry returns an empty registry seeded with ids, if any.
func NewMemoryRegistry(ids ...string) *MemoryRegistry {
	return &MemoryRegistry{ids: slices.Clone(ids)}
}

func (r *MemoryRegistry) Location() string { return "memory" }

func (r *MemoryRegistry) Close() error { return nil }

func (r *MemoryRegistry) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.ids)
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (r *MemoryRegistry) Append(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.ids, id) {
		return -1, errors.NewAlreadyExistsError("experiment", id)
	}
	r.ids = append(r.ids, id)
	return len(r.ids) - 1, nil
}

func (r *MemoryRegistry) Resolve(ctx context.Context, index int) (string, error) {
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

func (r *MemoryRegistry) Len(ctx context.Context) (int, error) {
	ids, err := r.Load(ctx)
	return len(ids), err
}
