package mailbox

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/biobot-lab/biobot/internal/event"
)

const expID = "20240101120000"

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), DefaultDir)),
		"memory": NewMemoryStore(),
		"afs":    NewAFSStore(nil, "mem://localhost/"+t.Name()),
	}
}

// plant writes raw bytes at addr regardless of content.
func plant(t *testing.T, s Store, addr Address, data string) {
	t.Helper()
	if err := s.Create(context.Background(), addr, []byte(data)); err != nil {
		t.Fatalf("plant %s: %v", addr, err)
	}
}

func TestMailbox_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mb := New(store)
			addr := Address{Channel: Observations, ID: expID, Iteration: 0}

			msg, err := ParsePayload(expID, []byte(`{"od600": 0.42, "tags": ["a", "b"]}`))
			if err != nil {
				t.Fatal(err)
			}
			res, err := mb.Put(ctx, addr, msg)
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if res.Existed {
				t.Error("first Put should not report Existed")
			}

			got, err := mb.Get(ctx, addr)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ID != expID {
				t.Errorf("ID = %q, want %q", got.ID, expID)
			}
			want, _ := json.Marshal(msg)
			have, _ := json.Marshal(got)
			if !Equivalent(want, have) {
				t.Errorf("fields lost: put %s, got %s", want, have)
			}
		})
	}
}

func TestMailbox_PutIdentityMismatch(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mb := New(store)
			addr := Address{Channel: Interventions, ID: expID, Iteration: 0}

			_, err := mb.Put(ctx, addr, NewMessage("20240101120001"))
			if !errors.Is(err, errors.ErrIdentityMismatch) {
				t.Fatalf("Put() = %v, want ErrIdentityMismatch", err)
			}
			if ok, _ := mb.Exists(ctx, addr); ok {
				t.Error("nothing should be written on identity mismatch")
			}
		})
	}
}

func TestMailbox_PutExisting(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			bus := event.NewBus()
			var drift, written int
			bus.Subscribe(event.TypeMessageDrift, func(event.Event) { drift++ })
			bus.Subscribe(event.TypeMessageWritten, func(event.Event) { written++ })

			mb := New(store, WithBus(bus))
			addr := Address{Channel: Observations, ID: expID, Iteration: 1}
			msg, _ := NewMessage(expID).WithField("v", 1)

			if _, err := mb.Put(ctx, addr, msg); err != nil {
				t.Fatal(err)
			}

			// Identical resend is accepted and flagged.
			res, err := mb.Put(ctx, addr, msg)
			if err != nil {
				t.Fatalf("identical Put: %v", err)
			}
			if !res.Existed {
				t.Error("identical Put should report Existed")
			}
			if drift != 1 || written != 2 {
				t.Errorf("drift=%d written=%d, want 1 and 2", drift, written)
			}

			// Different content is a conflict and the original survives.
			other, _ := NewMessage(expID).WithField("v", 2)
			_, err = mb.Put(ctx, addr, other)
			if !errors.Is(err, errors.ErrAddressConflict) {
				t.Fatalf("conflicting Put = %v, want ErrAddressConflict", err)
			}
			got, err := mb.Get(ctx, addr)
			if err != nil {
				t.Fatal(err)
			}
			if string(got.Fields["v"]) != "1" {
				t.Errorf("original content overwritten: v=%s", got.Fields["v"])
			}
		})
	}
}

func TestMailbox_PutOverMalformedConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	addr := Address{Channel: Observations, ID: expID, Iteration: 0}
	store.Put(addr, []byte("garbage"))

	_, err := New(store).Put(ctx, addr, NewMessage(expID))
	if !errors.Is(err, errors.ErrAddressConflict) {
		t.Errorf("Put() = %v, want ErrAddressConflict", err)
	}
}

func TestMailbox_GetErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		content string // empty means absent
		want    error
	}{
		{name: "absent", want: errors.ErrNotFound},
		{name: "not json", content: "hello", want: errors.ErrMalformedMessage},
		{name: "array", content: `["ID"]`, want: errors.ErrMalformedMessage},
		{name: "missing id", content: `{"id": "` + expID + `"}`, want: errors.ErrMalformedMessage},
		{name: "numeric id", content: `{"ID": 20240101120000}`, want: errors.ErrMalformedMessage},
		{name: "empty id", content: `{"ID": ""}`, want: errors.ErrMalformedMessage},
		{name: "foreign id", content: `{"ID": "20231231235959"}`, want: errors.ErrIdentityMismatch},
	}

	for name, store := range stores(t) {
		for i, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				addr := Address{Channel: Observations, ID: expID, Iteration: i}
				if tt.content != "" {
					plant(t, store, addr, tt.content)
				}
				_, err := New(store).Get(ctx, addr)
				if !errors.Is(err, tt.want) {
					t.Errorf("Get() = %v, want %v", err, tt.want)
				}
			})
		}
	}
}

func TestMailbox_IdentityMismatchIsDistinct(t *testing.T) {
	store := NewMemoryStore()
	addr := Address{Channel: Interventions, ID: expID, Iteration: 0}
	store.Put(addr, []byte(`{"ID": "other"}`))

	_, err := New(store).Get(context.Background(), addr)
	if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrMalformedMessage) {
		t.Errorf("identity mismatch collapsed into another kind: %v", err)
	}
	if errors.Kind(err) != errors.KindIdentityMismatch {
		t.Errorf("Kind = %q", errors.Kind(err))
	}
}

func TestMailbox_Iterations(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mb := New(store)
			for _, i := range []int{2, 0, 1, 10} {
				if _, err := mb.Put(ctx, Address{Channel: Observations, ID: expID, Iteration: i}, NewMessage(expID)); err != nil {
					t.Fatal(err)
				}
			}
			// Another experiment whose ID shares a prefix.
			if _, err := mb.Put(ctx, Address{Channel: Observations, ID: expID + "-1", Iteration: 5}, NewMessage(expID+"-1")); err != nil {
				t.Fatal(err)
			}

			got, err := mb.Iterations(ctx, Observations, expID)
			if err != nil {
				t.Fatal(err)
			}
			want := []int{0, 1, 2, 10}
			if len(got) != len(want) {
				t.Fatalf("Iterations() = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Iterations()[%d] = %d, want %d", i, got[i], want[i])
				}
			}

			none, err := mb.Iterations(ctx, Interventions, expID)
			if err != nil || len(none) != 0 {
				t.Errorf("empty channel: %v, %v", none, err)
			}
		})
	}
}

func TestMailbox_Wait(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mb := New(store, WithPollInterval(20*time.Millisecond))
			addr := Address{Channel: Interventions, ID: expID, Iteration: 0}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var wg sync.WaitGroup
			var waitErr error
			wg.Go(func() { waitErr = mb.Wait(ctx, addr) })

			time.Sleep(50 * time.Millisecond)
			if _, err := mb.Put(context.Background(), addr, NewMessage(expID)); err != nil {
				t.Fatal(err)
			}
			wg.Wait()
			if waitErr != nil {
				t.Errorf("Wait() = %v", waitErr)
			}
		})
	}
}

func TestMailbox_WaitTimeout(t *testing.T) {
	mb := New(NewMemoryStore(), WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := mb.Wait(ctx, Address{Channel: Observations, ID: expID, Iteration: 3})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestFileStore_CreateExclusive(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), DefaultDir)
	store := NewFileStore(root)
	addr := Address{Channel: Observations, ID: expID, Iteration: 0}

	if err := store.Create(ctx, addr, []byte(`{"ID":"a"}`)); err != nil {
		t.Fatal(err)
	}
	err := store.Create(ctx, addr, []byte(`{"ID":"b"}`))
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("second Create = %v, want ErrExist", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "observations", expID+"_0.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"ID":"a"}` {
		t.Errorf("content = %s", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "observations"))
	if len(entries) != 1 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestFileStore_ConcurrentCreateOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), DefaultDir))
	addr := Address{Channel: Interventions, ID: expID, Iteration: 4}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := range 10 {
		wg.Go(func() {
			err := store.Create(ctx, addr, []byte{byte('0' + i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, os.ErrExist) {
				t.Errorf("Create: %v", err)
			}
		})
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestFileStore_ListIgnoresTempFiles(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), DefaultDir)
	store := NewFileStore(root)

	names, err := store.List(ctx, Observations)
	if err != nil || len(names) != 0 {
		t.Fatalf("missing directory should list empty: %v, %v", names, err)
	}

	dir := filepath.Join(root, "observations")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{expID + "_0.json", tempPrefix + "abandoned", "README"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err = store.List(ctx, Observations)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("List() = %v, want the message and README only", names)
	}
}
