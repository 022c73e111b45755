// Package app renders download progress for the terminal.
package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mgdl/pkg/app/components"
	"github.com/kerbaras/mgdl/pkg/services"
)

type batchStartedMsg struct{ total int }

type itemMsg services.Progress

type labelDoneMsg struct {
	label  string
	failed int
}

type logLineMsg string

type stopMsg struct{}

// progressModel is the bubbletea model behind ProgressUI.
type progressModel struct {
	tracker *components.ProgressTracker
}

func (m *progressModel) Init() tea.Cmd { return nil }

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.tracker.SetWidth(msg.Width)
	case batchStartedMsg:
		m.tracker.Start(msg.total)
	case itemMsg:
		m.tracker.Update(services.Progress(msg))
	case labelDoneMsg:
		return m, tea.Println(m.tracker.Complete(msg.label, msg.failed))
	case logLineMsg:
		return m, tea.Println(string(msg))
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	return m.tracker.View()
}

// ProgressUI is a services.Reporter drawing live progress bars. It is also
// an io.Writer: log lines written while it runs are printed above the bars.
type ProgressUI struct {
	program *tea.Program
	out     io.Writer
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

func NewProgressUI(ctx context.Context, out io.Writer) *ProgressUI {
	model := &progressModel{tracker: components.NewProgressTracker(80)}
	return &ProgressUI{
		program: tea.NewProgram(model,
			tea.WithContext(ctx),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		out:  out,
		done: make(chan struct{}),
	}
}

// Start runs the program in the background until Stop.
func (u *ProgressUI) Start() {
	go func() {
		defer close(u.done)
		_, _ = u.program.Run()
	}()
}

// Stop flushes pending events and restores the terminal. Later writes go
// straight to the output.
func (u *ProgressUI) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stopped {
		return
	}
	u.program.Send(stopMsg{})
	<-u.done
	u.stopped = true
}

func (u *ProgressUI) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stopped {
		return u.out.Write(p)
	}
	u.program.Send(logLineMsg(strings.TrimRight(string(p), "\n")))
	return len(p), nil
}

func (u *ProgressUI) BatchStarted(total int) {
	u.program.Send(batchStartedMsg{total: total})
}

func (u *ProgressUI) ItemCompleted(p services.Progress) {
	u.program.Send(itemMsg(p))
}

func (u *ProgressUI) LabelCompleted(label string, failed int) {
	u.program.Send(labelDoneMsg{label: label, failed: failed})
}

func (u *ProgressUI) BatchFinished(int, int) {}

// LogReporter reports progress as log lines, for non-interactive output.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) BatchStarted(total int) {
	r.logger.Info("fetching pages", "total", total)
}

func (r *LogReporter) ItemCompleted(p services.Progress) {
	if p.Err != nil {
		r.logger.Warn("page failed", "chapter", p.Label, "done", p.Done, "total", p.Total, "error", p.Err)
		return
	}
	r.logger.Debug("page done", "chapter", p.Label, "done", p.Done, "total", p.Total)
}

func (r *LogReporter) LabelCompleted(label string, failed int) {
	if failed > 0 {
		r.logger.Warn("chapter incomplete", "chapter", label, "failed", failed)
		return
	}
	r.logger.Info("chapter complete", "chapter", label)
}

func (r *LogReporter) BatchFinished(succeeded, failed int) {
	r.logger.Info("fetch finished", "succeeded", succeeded, "failed", failed)
}

var (
	_ io.Writer         = (*ProgressUI)(nil)
	_ services.Reporter = (*ProgressUI)(nil)
	_ services.Reporter = (*LogReporter)(nil)
)
