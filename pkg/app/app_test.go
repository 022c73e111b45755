package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/kerbaras/mgdl/pkg/app/components"
	"github.com/kerbaras/mgdl/pkg/services"
)

func TestProgressModelUpdate(t *testing.T) {
	m := &progressModel{tracker: components.NewProgressTracker(60)}

	m.Update(batchStartedMsg{total: 2})
	m.Update(itemMsg(services.Progress{Label: "chapter_0001-01", LabelDone: 1, LabelTotal: 2, Done: 1, Total: 2}))
	assert.Contains(t, m.View(), "1/2 pages")

	_, cmd := m.Update(labelDoneMsg{label: "chapter_0001-01"})
	assert.NotNil(t, cmd)

	_, cmd = m.Update(logLineMsg("level=INFO msg=\"pages scheduled\""))
	assert.NotNil(t, cmd)

	_, cmd = m.Update(stopMsg{})
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestProgressUIStopReturns(t *testing.T) {
	var out bytes.Buffer
	ui := NewProgressUI(context.Background(), &out)
	ui.Start()
	ui.BatchStarted(1)
	ui.ItemCompleted(services.Progress{Label: "chapter_0001-01", LabelDone: 1, LabelTotal: 1, Done: 1, Total: 1})
	ui.LabelCompleted("chapter_0001-01", 0)
	ui.BatchFinished(1, 0)

	stopped := make(chan struct{})
	go func() {
		ui.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("progress UI did not stop")
	}
}

func TestProgressUIWritesAfterStop(t *testing.T) {
	var out bytes.Buffer
	ui := NewProgressUI(context.Background(), &out)
	ui.Start()

	n, err := ui.Write([]byte("while running\n"))
	assert.NoError(t, err)
	assert.Equal(t, len("while running\n"), n)

	ui.Stop()
	ui.Stop()
	out.Reset()

	_, err = ui.Write([]byte("after stop\n"))
	assert.NoError(t, err)
	assert.Equal(t, "after stop\n", out.String())
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	r.BatchStarted(2)
	r.ItemCompleted(services.Progress{Label: "chapter_0001-01", Done: 1, Total: 2, Err: errors.New("boom")})
	r.LabelCompleted("chapter_0001-01", 1)
	r.BatchFinished(1, 1)

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "\n"))
	assert.Contains(t, out, "page failed")
	assert.Contains(t, out, "chapter incomplete")
	assert.Contains(t, out, "succeeded=1 failed=1")
}
