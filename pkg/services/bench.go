package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/natefinch/atomic"
)

// Bench is a Recorder that aggregates timings for one run.
type Bench struct {
	mu      sync.Mutex
	started time.Time
	now     func() time.Time

	scrape          time.Duration
	discoveries     []time.Duration
	chaptersSkipped int
	pages           []time.Duration
	pageBytes       int64
	pagesSkipped    int
}

func NewBench() *Bench {
	return &Bench{started: time.Now(), now: time.Now}
}

func (b *Bench) ScrapeFinished(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrape += d
}

func (b *Bench) ChapterDiscovered(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discoveries = append(b.discoveries, d)
}

func (b *Bench) ChapterSkipped() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chaptersSkipped++
}

func (b *Bench) PageDownloaded(d time.Duration, bytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = append(b.pages, d)
	b.pageBytes += int64(bytes)
}

func (b *Bench) PageSkipped() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pagesSkipped++
}

type TimingStats struct {
	Count  int           `json:"count"`
	Total  time.Duration `json:"total_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Median time.Duration `json:"median_ns"`
	Max    time.Duration `json:"max_ns"`
}

func newTimingStats(samples []time.Duration) TimingStats {
	st := TimingStats{Count: len(samples)}
	if len(samples) == 0 {
		return st
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, d := range sorted {
		st.Total += d
	}
	st.Mean = st.Total / time.Duration(len(sorted))
	st.Median = sorted[len(sorted)/2]
	st.Max = sorted[len(sorted)-1]
	return st
}

type BenchReport struct {
	RunID           string        `json:"run_id"`
	Work            string        `json:"work"`
	StartedAt       time.Time     `json:"started_at"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	Scrape          time.Duration `json:"scrape_ns"`
	Discovery       TimingStats   `json:"chapter_discovery"`
	ChaptersSkipped int           `json:"chapters_skipped"`
	Pages           TimingStats   `json:"pages"`
	PagesSkipped    int           `json:"pages_skipped"`
	Bytes           int64         `json:"bytes"`
}

// Finish snapshots the collected measurements.
func (b *Bench) Finish(work string) *BenchReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &BenchReport{
		RunID:           uuid.NewString(),
		Work:            work,
		StartedAt:       b.started,
		Elapsed:         b.now().Sub(b.started),
		Scrape:          b.scrape,
		Discovery:       newTimingStats(b.discoveries),
		ChaptersSkipped: b.chaptersSkipped,
		Pages:           newTimingStats(b.pages),
		PagesSkipped:    b.pagesSkipped,
		Bytes:           b.pageBytes,
	}
}

// WriteJSON stores the report as bench_<timestamp>.json in dir.
func (r *BenchReport) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bench dir: %w", err)
	}
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("bench_%s.json", r.StartedAt.UTC().Format("20060102T150405Z"))
	dest := filepath.Join(dir, name)
	if err := atomic.WriteFile(dest, bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("write bench report: %w", err)
	}
	return dest, nil
}

func (r *BenchReport) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("bench %s (%s)", r.Work, r.RunID))
	t.AppendHeader(table.Row{"Phase", "Count", "Total", "Mean", "Median", "Max"})
	t.AppendRow(table.Row{"scrape", 1, r.Scrape.Round(time.Millisecond), "", "", ""})
	t.AppendRow(statsRow("chapter discovery", r.Discovery))
	t.AppendRow(statsRow("page download", r.Pages))
	t.AppendSeparator()
	t.AppendRow(table.Row{"chapters skipped", r.ChaptersSkipped, "", "", "", ""})
	t.AppendRow(table.Row{"pages skipped", r.PagesSkipped, "", "", "", ""})
	t.AppendFooter(table.Row{"elapsed", "", r.Elapsed.Round(time.Millisecond), humanize.Bytes(uint64(r.Bytes)), "", ""})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func statsRow(phase string, st TimingStats) table.Row {
	ms := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }
	return table.Row{phase, humanize.Comma(int64(st.Count)), ms(st.Total), ms(st.Mean), ms(st.Median), ms(st.Max)}
}
