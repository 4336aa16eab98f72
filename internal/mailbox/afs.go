package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// AFSStore keeps messages under a viant/afs base URL such as
// "mem://localhost/dropbox" or "file:///srv/dropbox".
//
// afs has no exclusive create. Create uploads to a temp object, checks the
// target and moves the temp object into place; the check and move are
// serialized within the process only.
type AFSStore struct {
	fs      afs.Service
	baseURL string
	mu      sync.Mutex
}

// NewAFSStore returns a store rooted at baseURL. A nil service selects
// afs.New().
func NewAFSStore(service afs.Service, baseURL string) *AFSStore {
	if service == nil {
		service = afs.New()
	}
	return &AFSStore{fs: service, baseURL: strings.TrimRight(baseURL, "/")}
}

// Location returns the base URL.
func (s *AFSStore) Location() string { return s.baseURL }

// URL returns the object URL for addr.
func (s *AFSStore) URL(addr Address) string {
	return url.Join(s.baseURL, path.Join(string(addr.Channel), addr.FileName()))
}

func (s *AFSStore) channelURL(ch Channel) string {
	return url.Join(s.baseURL, string(ch))
}

func (s *AFSStore) Create(ctx context.Context, addr Address, data []byte) error {
	target := s.URL(addr)
	tmp := url.Join(s.channelURL(addr.Channel), tempPrefix+uuid.NewString())

	if err := s.fs.Upload(ctx, tmp, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("mailbox: upload temp object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.fs.Exists(ctx, target)
	if err != nil {
		_ = s.fs.Delete(ctx, tmp)
		return fmt.Errorf("mailbox: check %s: %w", addr, err)
	}
	if exists {
		_ = s.fs.Delete(ctx, tmp)
		return fmt.Errorf("mailbox: %s: %w", addr, fs.ErrExist)
	}
	if err := s.fs.Move(ctx, tmp, target); err != nil {
		_ = s.fs.Delete(ctx, tmp)
		return fmt.Errorf("mailbox: move temp object: %w", err)
	}
	return nil
}

func (s *AFSStore) Read(ctx context.Context, addr Address) ([]byte, error) {
	target := s.URL(addr)
	exists, err := s.fs.Exists(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("mailbox: check %s: %w", addr, err)
	}
	if !exists {
		return nil, fmt.Errorf("mailbox: %s: %w", addr, fs.ErrNotExist)
	}
	data, err := s.fs.DownloadWithURL(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("mailbox: download %s: %w", addr, err)
	}
	return data, nil
}

func (s *AFSStore) Exists(ctx context.Context, addr Address) (bool, error) {
	exists, err := s.fs.Exists(ctx, s.URL(addr))
	if err != nil {
		return false, fmt.Errorf("mailbox: check %s: %w", addr, err)
	}
	return exists, nil
}

func (s *AFSStore) List(ctx context.Context, ch Channel) ([]string, error) {
	dir := s.channelURL(ch)
	exists, err := s.fs.Exists(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("mailbox: check %s: %w", ch, err)
	}
	if !exists {
		return nil, nil
	}
	objects, err := s.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("mailbox: list %s: %w", ch, err)
	}
	var names []string
	for _, obj := range objects {
		if obj.IsDir() || strings.HasPrefix(obj.Name(), ".") {
			continue
		}
		names = append(names, obj.Name())
	}
	return names, nil
}
