package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mgdl/pkg/app"
	"github.com/kerbaras/mgdl/pkg/config"
	"github.com/kerbaras/mgdl/pkg/data"
	"github.com/kerbaras/mgdl/pkg/integrations"
	"github.com/kerbaras/mgdl/pkg/logging"
	"github.com/kerbaras/mgdl/pkg/services"
	"github.com/kerbaras/mgdl/pkg/sources"
	"github.com/kerbaras/mgdl/pkg/utils"
)

// runtime holds everything a command needs. It owns the store and the
// instance lock until Close.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	lock       *flock.Flock
	repo       *data.Repository
	controller *services.MangaController
	bench      *services.Bench
	ui         *app.ProgressUI
}

// openRuntime loads the config, takes the instance lock and opens the store.
// needSource additionally requires a configured base_url.
func openRuntime(ctx context.Context, needSource bool) (*runtime, error) {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if needSource {
		if err := cfg.RequireBaseURL(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another mgdl instance is running (lock %s)", cfg.LockPath())
	}

	repo, err := data.Open(ctx, cfg.Store.Driver, cfg.StorePath())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	rt := &runtime{cfg: cfg, lock: lock, repo: repo}
	reporter := rt.startProgress(ctx, needSource)

	// while the progress UI runs, log lines are printed above it
	var logOut io.Writer = os.Stderr
	if rt.ui != nil {
		logOut = rt.ui
	}
	logger, err := logging.NewFromConfig(cfg, logOut, quietFlag)
	if err != nil {
		rt.settle()
		_ = repo.Close()
		_ = lock.Unlock()
		return nil, err
	}
	rt.logger = logger
	if reporter == nil {
		reporter = app.NewLogReporter(logger)
	}

	api := utils.NewAPI(
		utils.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		utils.WithUserAgent(cfg.Fetch.UserAgent),
		utils.WithPolicy(cfg.RetryPolicy()),
		utils.WithRateLimitMarker(cfg.Fetch.RateLimitMarker),
		utils.WithLogger(logger),
	)
	site := sources.NewSite(cfg.BaseURL, api, logger)

	var recorder services.Recorder
	if benchFlag {
		rt.bench = services.NewBench()
		recorder = rt.bench
	}

	controllerCfg := services.ControllerConfig{
		MangaDir:             cfg.MangaDir,
		Concurrency:          cfg.Fetch.Concurrency,
		DiscoveryConcurrency: cfg.Fetch.DiscoveryConcurrency,
		ContinueOnError:      cfg.Batch.ContinueOnError,
		Logger:               logger,
		Reporter:             reporter,
		Recorder:             recorder,
		Exporter:             integrations.NewEPubExporter(logger),
	}
	rt.controller = services.NewMangaController(site, repo, api, controllerCfg)
	return rt, nil
}

// startProgress picks the progress reporter. A nil result means plain log
// lines, which need the logger built afterwards.
func (rt *runtime) startProgress(ctx context.Context, fetching bool) services.Reporter {
	switch {
	case quietFlag || !fetching:
		return services.NopReporter{}
	case isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()):
		rt.ui = app.NewProgressUI(ctx, os.Stderr)
		rt.ui.Start()
		return rt.ui
	default:
		return nil
	}
}

// settle stops the progress UI so plain output is not overdrawn.
func (rt *runtime) settle() {
	if rt.ui != nil {
		rt.ui.Stop()
		rt.ui = nil
	}
}

// Close writes the bench report and releases the store and lock.
func (rt *runtime) Close(work string) error {
	rt.settle()
	var errs []error
	if rt.bench != nil {
		report := rt.bench.Finish(work)
		report.Render(os.Stdout)
		path, err := report.WriteJSON(rt.cfg.DataDir)
		if err != nil {
			errs = append(errs, err)
		} else {
			rt.logger.Info("bench report written", "path", path)
		}
	}
	if err := rt.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := rt.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	return errors.Join(errs...)
}

// withRuntime runs fn against an open runtime and always closes it.
func withRuntime(cmd *cobra.Command, needSource bool, work string, fn func(rt *runtime) error) (err error) {
	rt, err := openRuntime(cmd.Context(), needSource)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, rt.Close(work))
	}()
	return fn(rt)
}

func (rt *runtime) printSummary(w io.Writer, s *services.Summary) {
	rt.settle()
	if s == nil || s.Work == nil {
		return
	}
	fmt.Fprintf(w, "%s: %d chapters, %d pages fetched (%s), %d failed, %d pages already present\n",
		s.Work.Slug,
		s.Chapters,
		s.Result.Succeeded,
		humanize.Bytes(uint64(s.Result.Bytes)),
		s.Result.Failed,
		s.PagesSkipped,
	)
	if s.ChaptersSkipped > 0 {
		fmt.Fprintf(w, "%s: %d chapters skipped\n", s.Work.Slug, s.ChaptersSkipped)
	}
}
