package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kerbaras/mgdl/pkg/data"
	"github.com/kerbaras/mgdl/pkg/sources"
)

const DefaultDiscoveryConcurrency = 4

// Repository is the store the controller owns for the duration of an operation.
type Repository interface {
	Upsert(ctx context.Context, work *data.Work) (*data.Work, error)
	GetBySlug(ctx context.Context, slug string) (*data.Work, error)
	ListByStatus(ctx context.Context, status data.Status) ([]*data.Work, error)
	List(ctx context.Context) ([]*data.Work, error)
	DeleteBySlug(ctx context.Context, slug string) error
	Reset(ctx context.Context) error
}

// Exporter packages the downloaded chapters of a work.
type Exporter interface {
	Export(work *data.Work, workDir, outDir string) (string, error)
}

type State int

const (
	StateIdle State = iota
	StateScraping
	StatePersisted
	StateDiscovering
	StateScheduled
	StateFetching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScraping:
		return "scraping"
	case StatePersisted:
		return "persisted"
	case StateDiscovering:
		return "discovering"
	case StateScheduled:
		return "scheduled"
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ControllerConfig struct {
	MangaDir             string
	Concurrency          int
	DiscoveryConcurrency int
	// ContinueOnError keeps UpdateAll and ConsolidateAll going past a failed
	// work and joins the errors.
	ContinueOnError bool
	Logger          *slog.Logger
	Reporter        Reporter
	Recorder        Recorder
	Exporter        Exporter
}

type DownloadOptions struct {
	Range *ChapterRange
	Force bool
}

// Summary describes one fetch operation on a single work.
type Summary struct {
	Work            *data.Work
	Chapters        int
	ChaptersSkipped int
	PagesSkipped    int
	Result          Result
}

type MangaController struct {
	source    sources.Source
	repo      Repository
	tracker   *Tracker
	scheduler *Scheduler
	exporter  Exporter
	recorder  Recorder
	logger    *slog.Logger

	discoveryLimit  int
	continueOnError bool

	mu    sync.Mutex
	state State
}

func NewMangaController(source sources.Source, repo Repository, fetcher PageFetcher, cfg ControllerConfig) *MangaController {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}
	discovery := cfg.DiscoveryConcurrency
	if discovery <= 0 {
		discovery = DefaultDiscoveryConcurrency
	}

	return &MangaController{
		source:  source,
		repo:    repo,
		tracker: NewTracker(cfg.MangaDir, repo, logger),
		scheduler: NewScheduler(fetcher, cfg.Concurrency,
			WithReporter(reporter), WithRecorder(recorder), WithSchedulerLogger(logger)),
		exporter:        cfg.Exporter,
		recorder:        recorder,
		logger:          logger,
		discoveryLimit:  discovery,
		continueOnError: cfg.ContinueOnError,
	}
}

// State reports the phase of the last or current operation.
func (c *MangaController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *MangaController) transition(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("state transition", "from", prev, "to", s)
}

// fail moves to StateFailed and returns err unchanged.
func (c *MangaController) fail(err error) error {
	c.transition(StateFailed)
	return err
}

func (c *MangaController) Tracker() *Tracker { return c.tracker }

// Add scrapes the work at locator and persists it.
func (c *MangaController) Add(ctx context.Context, locator string) (*data.Work, []data.Chapter, error) {
	c.transition(StateIdle)
	work, chapters, err := c.scrape(ctx, locator)
	if err != nil {
		return nil, nil, c.fail(err)
	}
	c.transition(StateDone)
	return work, chapters, nil
}

func (c *MangaController) scrape(ctx context.Context, locator string) (*data.Work, []data.Chapter, error) {
	c.transition(StateScraping)
	start := time.Now()
	work, chapters, err := c.source.FetchWork(ctx, locator)
	if err != nil {
		return nil, nil, fmt.Errorf("scrape %s: %w", locator, err)
	}
	c.recorder.ScrapeFinished(time.Since(start))

	stored, err := c.repo.Upsert(ctx, work)
	if err != nil {
		return nil, nil, fmt.Errorf("persist %s: %w", work.Name, err)
	}
	c.transition(StatePersisted)
	c.logger.Info("work persisted", "name", stored.Name, "slug", stored.Slug, "status", stored.Status, "chapters", len(chapters))
	return stored, chapters, nil
}

// Download scrapes the work and fetches every page not yet on disk. Force
// refetches pages that already exist.
func (c *MangaController) Download(ctx context.Context, locator string, opts DownloadOptions) (*Summary, error) {
	c.transition(StateIdle)
	work, chapters, err := c.scrape(ctx, locator)
	if err != nil {
		return nil, c.fail(err)
	}
	if opts.Range != nil {
		chapters = opts.Range.Filter(chapters)
		c.logger.Info("chapter range applied", "range", opts.Range.String(), "chapters", len(chapters))
	}
	return c.fetchChapters(ctx, work, chapters, !opts.Force)
}

// Update fetches the chapters of a stored work that have no local directory.
// Pages missing inside an existing chapter directory are left to Consolidate.
func (c *MangaController) Update(ctx context.Context, slug string) (*Summary, error) {
	c.transition(StateIdle)
	work, chapters, err := c.rescrape(ctx, slug)
	if err != nil {
		return nil, c.fail(err)
	}

	majors, err := c.tracker.ExistingChapterMajors(c.tracker.WorkDir(work.Slug))
	if err != nil {
		return nil, c.fail(err)
	}
	var missing []data.Chapter
	for _, ch := range chapters {
		if _, ok := majors[ch.Major()]; ok {
			c.recorder.ChapterSkipped()
			continue
		}
		missing = append(missing, ch)
	}
	c.logger.Info("update", "slug", work.Slug, "chapters", len(chapters), "new", len(missing))

	summary, err := c.fetchChapters(ctx, work, missing, false)
	if summary != nil {
		summary.ChaptersSkipped += len(chapters) - len(missing)
	}
	return summary, err
}

// UpdateAll reconciles the Ongoing works against the filesystem and updates
// the survivors.
func (c *MangaController) UpdateAll(ctx context.Context) error {
	works, err := c.repo.ListByStatus(ctx, data.StatusOngoing)
	if err != nil {
		return fmt.Errorf("list ongoing works: %w", err)
	}
	works, err = c.tracker.Reconcile(ctx, works)
	if err != nil {
		return err
	}
	return c.forEach(ctx, works, "update", func(w *data.Work) error {
		_, err := c.Update(ctx, w.Slug)
		return err
	})
}

// Consolidate backfills missing pages of every chapter of a stored work.
func (c *MangaController) Consolidate(ctx context.Context, slug string) (*Summary, error) {
	c.transition(StateIdle)
	work, chapters, err := c.rescrape(ctx, slug)
	if err != nil {
		return nil, c.fail(err)
	}
	return c.fetchChapters(ctx, work, chapters, true)
}

// ConsolidateAll consolidates every stored work that has a local directory.
func (c *MangaController) ConsolidateAll(ctx context.Context) error {
	works, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list works: %w", err)
	}
	var present []*data.Work
	for _, w := range works {
		if _, err := os.Stat(c.tracker.WorkDir(w.Slug)); err != nil {
			c.logger.Info("skipping work without local directory", "slug", w.Slug)
			continue
		}
		present = append(present, w)
	}
	return c.forEach(ctx, present, "consolidate", func(w *data.Work) error {
		_, err := c.Consolidate(ctx, w.Slug)
		return err
	})
}

func (c *MangaController) Reset(ctx context.Context) error {
	if err := c.repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	c.logger.Info("store reset")
	return nil
}

func (c *MangaController) Library(ctx context.Context) ([]*data.Work, error) {
	return c.repo.List(ctx)
}

// Export packages the downloaded chapters of slug into outDir.
func (c *MangaController) Export(ctx context.Context, slug, outDir string) (string, error) {
	if c.exporter == nil {
		return "", errors.New("no exporter configured")
	}
	work, err := c.repo.GetBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	return c.exporter.Export(work, c.tracker.WorkDir(work.Slug), outDir)
}

func (c *MangaController) rescrape(ctx context.Context, slug string) (*data.Work, []data.Chapter, error) {
	stored, err := c.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	return c.scrape(ctx, c.source.WorkLocator(stored.Identifier))
}

func (c *MangaController) forEach(ctx context.Context, works []*data.Work, op string, fn func(*data.Work) error) error {
	var errs []error
	for _, w := range works {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		c.logger.Info("batch "+op, "slug", w.Slug)
		if err := fn(w); err != nil {
			err = fmt.Errorf("%s %s: %w", op, w.Slug, err)
			if !c.continueOnError {
				return err
			}
			c.logger.Error("batch item failed", "op", op, "slug", w.Slug, "kind", ErrorKind(err), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discovered struct {
	items []data.Item
	err   error
}

// fetchChapters discovers the pages of every chapter, then schedules the
// ones to fetch. With skipExisting, pages already on disk are excluded.
// A chapter whose discovery fails is reported but does not stop the others.
func (c *MangaController) fetchChapters(ctx context.Context, work *data.Work, chapters []data.Chapter, skipExisting bool) (*Summary, error) {
	summary := &Summary{Work: work, Chapters: len(chapters)}

	c.transition(StateDiscovering)
	found := make([]discovered, len(chapters))
	var g errgroup.Group
	g.SetLimit(c.discoveryLimit)
	for i, ch := range chapters {
		g.Go(func() error {
			start := time.Now()
			items, err := c.source.FetchChapterItems(ctx, ch.Identifier)
			if err == nil {
				c.recorder.ChapterDiscovered(time.Since(start))
			}
			found[i] = discovered{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return summary, c.fail(err)
	}

	var (
		discoveryErrs []error
		tasks         []Task
	)
	seen := make(map[string]struct{})
	for i, ch := range chapters {
		if err := found[i].err; err != nil {
			c.logger.Warn("chapter discovery failed", "chapter", ch.Ordinal, "kind", ErrorKind(err), "error", err)
			discoveryErrs = append(discoveryErrs, fmt.Errorf("chapter %s: %w", ch.Ordinal, err))
			continue
		}

		dir := c.tracker.ChapterDir(work.Slug, ch)
		have := map[int]struct{}{}
		if skipExisting {
			var err error
			if have, err = c.tracker.ExistingItemSequences(dir); err != nil {
				return summary, c.fail(err)
			}
		}

		var pending []Task
		for _, item := range found[i].items {
			if _, ok := have[item.Sequence]; ok {
				summary.PagesSkipped++
				c.recorder.PageSkipped()
				continue
			}
			task := Task{Item: item, Dir: dir, Label: ch.DirName()}
			dest, err := task.Path()
			if err == nil {
				if _, dup := seen[dest]; dup {
					continue
				}
				seen[dest] = struct{}{}
			}
			pending = append(pending, task)
		}
		if len(pending) == 0 {
			summary.ChaptersSkipped++
			c.recorder.ChapterSkipped()
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return summary, c.fail(fmt.Errorf("create chapter dir: %w", err))
		}
		tasks = append(tasks, pending...)
	}

	c.transition(StateScheduled)
	c.logger.Info("pages scheduled", "slug", work.Slug, "tasks", len(tasks), "skipped", summary.PagesSkipped)

	c.transition(StateFetching)
	res, runErr := c.scheduler.Run(ctx, tasks)
	summary.Result = res

	if err := errors.Join(append(discoveryErrs, runErr)...); err != nil {
		return summary, c.fail(err)
	}
	c.transition(StateDone)
	return summary, nil
}
