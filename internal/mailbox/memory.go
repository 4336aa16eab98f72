package mailbox

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sync"
)

// MemoryStore is a process-local Store. It also implements Notifier so
// waiters wake as soon as a message is created.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[Address][]byte
	waiters map[Channel][]chan struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[Address][]byte),
		waiters: make(map[Channel][]chan struct{}),
	}
}

func (s *MemoryStore) Location() string { return "memory" }

func (s *MemoryStore) Create(ctx context.Context, addr Address, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[addr]; ok {
		return fmt.Errorf("mailbox: %s: %w", addr, fs.ErrExist)
	}
	s.data[addr] = slices.Clone(data)
	for _, w := range s.waiters[addr.Channel] {
		select {
		case w <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, addr Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[addr]
	if !ok {
		return nil, fmt.Errorf("mailbox: %s: %w", addr, fs.ErrNotExist)
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Exists(ctx context.Context, addr Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[addr]
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, ch Channel) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for addr := range s.data {
		if addr.Channel == ch {
			names = append(names, addr.FileName())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Put stores raw bytes at addr, replacing any content. It bypasses the
// exclusive-create rule so tests can plant corrupt or foreign messages.
func (s *MemoryStore) Put(addr Address, data []byte) {
	s.mu.Lock()
	s.data[addr] = slices.Clone(data)
	s.mu.Unlock()
}

func (s *MemoryStore) Notify(ctx context.Context, ch Channel) (<-chan struct{}, error) {
	w := make(chan struct{}, 1)
	s.mu.Lock()
	s.waiters[ch] = append(s.waiters[ch], w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.waiters[ch] = slices.DeleteFunc(s.waiters[ch], func(c chan struct{}) bool { return c == w })
		s.mu.Unlock()
	}()
	return w, nil
}
