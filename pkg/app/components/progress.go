package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kerbaras/mgdl/pkg/app/styles"
	"github.com/kerbaras/mgdl/pkg/services"
)

// maxVisible caps the chapters rendered at once; finished ones scroll away.
const maxVisible = 6

type chapterState struct {
	done, total, failed int
}

// ProgressTracker folds scheduler events into a renderable view.
type ProgressTracker struct {
	chapters map[string]*chapterState
	// finished labels ignore late events
	finished map[string]bool
	done     int
	total    int
	failed   int
	width    int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		chapters: make(map[string]*chapterState),
		finished: make(map[string]bool),
		width:    width,
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

func (p *ProgressTracker) Start(total int) {
	p.chapters = make(map[string]*chapterState)
	p.finished = make(map[string]bool)
	p.done, p.total, p.failed = 0, total, 0
}

// Update folds one task event in. Events can arrive out of order, so counts
// only move forward.
func (p *ProgressTracker) Update(progress services.Progress) {
	if progress.Err != nil {
		p.failed++
	}
	p.done = max(p.done, progress.Done)
	p.total = progress.Total
	if p.finished[progress.Label] {
		return
	}
	ch, ok := p.chapters[progress.Label]
	if !ok {
		ch = &chapterState{}
		p.chapters[progress.Label] = ch
	}
	ch.done = max(ch.done, progress.LabelDone)
	ch.total = progress.LabelTotal
	if progress.Err != nil {
		ch.failed++
	}
}

// Complete drops a finished chapter and returns its summary line.
func (p *ProgressTracker) Complete(label string, failed int) string {
	ch := p.chapters[label]
	delete(p.chapters, label)
	p.finished[label] = true
	pages := 0
	if ch != nil {
		pages = ch.total
	}
	if failed > 0 {
		return styles.StatusError.Render(fmt.Sprintf("✗ %s: %d of %d pages failed", label, failed, pages))
	}
	return styles.StatusCompleted.Render(fmt.Sprintf("✓ %s (%d pages)", label, pages))
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.chapters) > 0
}

func (p *ProgressTracker) View() string {
	if p.total == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Downloading %d/%d pages", p.done, p.total)))
	if p.failed > 0 {
		b.WriteString(" ")
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("%d failed", p.failed)))
	}
	b.WriteString("\n")
	b.WriteString(renderProgressBar(p.done, p.total, p.barWidth()))
	b.WriteString("\n\n")

	labels := make([]string, 0, len(p.chapters))
	for label := range p.chapters {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if len(labels) > maxVisible {
		labels = labels[:maxVisible]
	}
	for _, label := range labels {
		ch := p.chapters[label]
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("%-18s", label)))
		b.WriteString(renderProgressBar(ch.done, ch.total, p.barWidth()/2))
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf(" %d/%d", ch.done, ch.total)))
		b.WriteString("\n")
	}
	return b.String()
}

func (p *ProgressTracker) barWidth() int {
	if p.width <= 4 {
		return 40
	}
	return p.width - 4
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}
