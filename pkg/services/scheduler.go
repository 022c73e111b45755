package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/kerbaras/mgdl/pkg/data"
)

const DefaultConcurrency = 16

// PageFetcher fetches page bytes, retrying transient failures.
type PageFetcher interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Task is one page to store under Dir. Label groups tasks for progress
// reporting, usually by chapter.
type Task struct {
	Item  data.Item
	Dir   string
	Label string
}

// Path returns the destination file, <Dir>/<NNN>.<ext>, with the extension
// taken from the source URL path.
func (t Task) Path() (string, error) {
	u, err := url.Parse(t.Item.SourceURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" {
		return "", fmt.Errorf("page url %q has no file extension", t.Item.SourceURL)
	}
	return filepath.Join(t.Dir, fmt.Sprintf("%03d.%s", t.Item.Sequence, ext)), nil
}

type Result struct {
	Scheduled int
	Succeeded int
	Failed    int
	Bytes     int64
}

// Scheduler runs page tasks with at most limit fetches in flight.
type Scheduler struct {
	fetcher  PageFetcher
	limit    int
	reporter Reporter
	recorder Recorder
	logger   *slog.Logger
}

type SchedulerOption func(*Scheduler)

func WithReporter(r Reporter) SchedulerOption { return func(s *Scheduler) { s.reporter = r } }

func WithRecorder(r Recorder) SchedulerOption { return func(s *Scheduler) { s.recorder = r } }

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

func NewScheduler(fetcher PageFetcher, limit int, opts ...SchedulerOption) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	s := &Scheduler{
		fetcher:  fetcher,
		limit:    limit,
		reporter: NopReporter{},
		recorder: NopRecorder{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes every task and waits for all of them to finish. Pages written
// by successful tasks stay on disk when siblings fail. The returned error is a
// *BatchError carrying the first failure in task order.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) (Result, error) {
	res := Result{Scheduled: len(tasks)}
	if len(tasks) == 0 {
		return res, nil
	}

	sem := semaphore.NewWeighted(int64(s.limit))
	errs := make([]error, len(tasks))

	labelTotal := make(map[string]int)
	labelDone := make(map[string]int)
	labelFailed := make(map[string]int)
	for _, t := range tasks {
		labelTotal[t.Label]++
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	done := 0

	s.reporter.BatchStarted(len(tasks))
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.runTask(ctx, sem, task)

			mu.Lock()
			done++
			labelDone[task.Label]++
			if err != nil {
				errs[i] = err
				res.Failed++
				labelFailed[task.Label]++
			} else {
				res.Succeeded++
				res.Bytes += int64(n)
			}
			p := Progress{
				Label:      task.Label,
				LabelDone:  labelDone[task.Label],
				LabelTotal: labelTotal[task.Label],
				Done:       done,
				Total:      len(tasks),
				Err:        err,
			}
			labelComplete := labelDone[task.Label] == labelTotal[task.Label]
			failed := labelFailed[task.Label]
			mu.Unlock()

			// events may reach the reporter out of order
			s.reporter.ItemCompleted(p)
			if labelComplete {
				s.reporter.LabelCompleted(task.Label, failed)
			}
		}()
	}
	wg.Wait()
	s.reporter.BatchFinished(res.Succeeded, res.Failed)

	if res.Failed == 0 {
		return res, nil
	}
	batchErr := &BatchError{Failed: res.Failed, Total: len(tasks)}
	for _, err := range errs {
		if err != nil {
			batchErr.First = err
			break
		}
	}
	return res, batchErr
}

func (s *Scheduler) runTask(ctx context.Context, sem *semaphore.Weighted, task Task) (int, error) {
	dest, err := task.Path()
	if err != nil {
		return 0, &TaskError{Task: task, Kind: "parse", Err: err}
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return 0, &TaskError{Task: task, Kind: "canceled", Err: err}
	}
	defer sem.Release(1)

	start := time.Now()
	body, err := s.fetcher.GetBytes(ctx, task.Item.SourceURL)
	if err != nil {
		s.logger.Warn("page fetch failed", "label", task.Label, "sequence", task.Item.Sequence, "error", err)
		return 0, &TaskError{Task: task, Kind: fetchKind(err), Err: err}
	}
	if err := atomic.WriteFile(dest, bytes.NewReader(body)); err != nil {
		return 0, &TaskError{Task: task, Kind: "filesystem", Err: err}
	}
	s.recorder.PageDownloaded(time.Since(start), len(body))
	s.logger.Debug("page stored", "path", dest, "bytes", len(body))
	return len(body), nil
}

func fetchKind(err error) string {
	if kind := ErrorKind(err); kind != "unknown" {
		return kind
	}
	return "fetch"
}
