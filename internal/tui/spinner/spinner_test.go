package spinner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestEnabled(t *testing.T) {
	var buf bytes.Buffer
	if Enabled(&buf, true) {
		t.Error("a buffer is not a terminal")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if Enabled(f, true) {
		t.Error("a regular file is not a terminal")
	}
	if Enabled(os.Stdout, false) {
		t.Error("disabled setting must win")
	}
}

func TestRun_DisabledCallsFnDirectly(t *testing.T) {
	var buf bytes.Buffer
	want := errors.New("step failed")
	err := Run(context.Background(), &buf, false, "working", func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Run() = %v, want %v", err, want)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled spinner wrote %q", buf.String())
	}
}

func TestRun_StopsAfterFn(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	err := Run(context.Background(), &buf, true, "writing observation", func(context.Context) error {
		calls++
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times", calls)
	}
}

func TestSpinner_StopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := Start(context.Background(), &buf, "x")
	s.Stop()
	s.Stop()
}

func TestModel(t *testing.T) {
	m := newModel("capturing")
	if m.Init() == nil {
		t.Error("Init should start ticking")
	}
	if v := m.View(); !bytes.Contains([]byte(v), []byte("capturing")) {
		t.Errorf("View() = %q, want label", v)
	}

	next, cmd := m.Update(stopMsg{})
	if cmd == nil {
		t.Fatal("stop should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("stop should return tea.Quit")
	}
	if next.View() != "" {
		t.Errorf("View after stop = %q, want empty", next.View())
	}
}
