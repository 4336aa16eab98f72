// Package spinner shows a one-line progress animation while a command works.
//
// The animation is a bubbletea program on its own goroutine. It never reads
// stdin, installs no signal handlers and is stopped by the command as soon as
// the data operation returns, whatever its outcome.
package spinner

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	frameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// Enabled reports whether a spinner should be drawn on out: the setting must
// allow it and out must be a terminal.
func Enabled(out io.Writer, allowed bool) bool {
	if !allowed {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type stopMsg struct{}

type model struct {
	spin  spinner.Model
	label string
	done  bool
}

func newModel(label string) model {
	s := spinner.New(spinner.WithSpinner(spinner.Line), spinner.WithStyle(frameStyle))
	return model{spin: s, label: label}
}

func (m model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}
	return m.spin.View() + " " + labelStyle.Render(m.label)
}

// Spinner is a running animation.
type Spinner struct {
	program *tea.Program
	wg      sync.WaitGroup
	once    sync.Once
}

// Start draws label with an animated frame on out until Stop is called or
// ctx is done.
func Start(ctx context.Context, out io.Writer, label string) *Spinner {
	s := &Spinner{
		program: tea.NewProgram(newModel(label),
			tea.WithContext(ctx),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
			tea.WithFPS(30),
		),
	}
	s.wg.Go(func() {
		_, _ = s.program.Run()
	})
	return s
}

// Stop ends the animation, clears its line and waits for the program to
// exit. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.program.Send(stopMsg{})
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			s.program.Kill()
			<-done
		}
	})
}

// Run calls fn, showing label while it runs when enabled is true. The
// spinner is stopped before Run returns, so fn's result is never delayed by
// the animation.
func Run(ctx context.Context, out io.Writer, enabled bool, label string, fn func(context.Context) error) error {
	if !enabled {
		return fn(ctx)
	}
	s := Start(ctx, out, label)
	err := fn(ctx)
	s.Stop()
	return err
}
