package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mgdl/pkg/data"
	"github.com/kerbaras/mgdl/pkg/sources"
)

func newTestController(t *testing.T, src sources.Source, repo Repository, fetcher PageFetcher, mutate ...func(*ControllerConfig)) (*MangaController, string) {
	t.Helper()
	mangaDir := t.TempDir()
	cfg := ControllerConfig{MangaDir: mangaDir, Concurrency: 4, ContinueOnError: true}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewMangaController(src, repo, fetcher, cfg), mangaDir
}

func TestControllerAdd(t *testing.T) {
	cat := testCatalog()
	repo := newMockRepository()
	c, _ := newTestController(t, cat.source(), repo, &mockFetcher{})

	work, chapters, err := c.Add(context.Background(), "https://example.com/series/abc123")
	require.NoError(t, err)
	assert.Equal(t, "test_manga", work.Slug)
	assert.Len(t, chapters, 2)
	assert.Equal(t, StateDone, c.State())

	stored, err := repo.GetBySlug(context.Background(), "test_manga")
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored.Identifier)
}

func TestControllerAddParseFailure(t *testing.T) {
	src := &mockSource{fetchWorkFunc: func(context.Context, string) (*data.Work, []data.Chapter, error) {
		return nil, nil, &sources.ParseError{Page: "work page", Reason: "name not found"}
	}}
	repo := newMockRepository()
	c, _ := newTestController(t, src, repo, &mockFetcher{})

	_, _, err := c.Add(context.Background(), "https://example.com/series/abc123")
	assert.ErrorIs(t, err, sources.ErrParse)
	assert.Equal(t, "parse", ErrorKind(err))
	assert.Equal(t, StateFailed, c.State())

	works, _ := repo.List(context.Background())
	assert.Empty(t, works)
}

func TestControllerAddStoreConflict(t *testing.T) {
	cat := testCatalog()
	repo := newMockRepository(&data.Work{Identifier: "zzz", Name: "Test-Manga", Slug: "test_manga", Status: data.StatusOngoing})
	c, _ := newTestController(t, cat.source(), repo, &mockFetcher{})

	_, _, err := c.Add(context.Background(), "https://example.com/series/abc123")
	assert.ErrorIs(t, err, data.ErrConflict)
	assert.Equal(t, "conflict", ErrorKind(err))
}

func TestControllerDownloadWithRange(t *testing.T) {
	cat := testCatalog()
	fetcher := &mockFetcher{}
	c, mangaDir := newTestController(t, cat.source(), newMockRepository(), fetcher)

	r, err := ParseChapterRange("2..")
	require.NoError(t, err)
	summary, err := c.Download(context.Background(), "https://example.com/series/abc123", DownloadOptions{Range: r})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Chapters)
	assert.Equal(t, 2, summary.Result.Succeeded)
	assert.NoDirExists(t, filepath.Join(mangaDir, "test_manga", "chapter_0001-01"))
	assert.FileExists(t, filepath.Join(mangaDir, "test_manga", "chapter_0002-01", "001.png"))
	assert.FileExists(t, filepath.Join(mangaDir, "test_manga", "chapter_0002-01", "002.png"))
}

func TestControllerDownloadContinuesPastBrokenChapter(t *testing.T) {
	cat := testCatalog()
	src := cat.source()
	src.fetchChapterItemsFunc = func(_ context.Context, id string) ([]data.Item, error) {
		if id == "ch1" {
			return nil, &sources.ParseError{Page: "chapter images", Reason: "no pages found for chapter"}
		}
		return cat.items[id], nil
	}
	c, mangaDir := newTestController(t, src, newMockRepository(), &mockFetcher{})

	summary, err := c.Download(context.Background(), "https://example.com/series/abc123", DownloadOptions{})
	assert.ErrorIs(t, err, sources.ErrParse)
	assert.Equal(t, StateFailed, c.State())
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Result.Succeeded)
	assert.Equal(t, 2, countFiles(t, filepath.Join(mangaDir, "test_manga", "chapter_0002-01")))
	assert.NoDirExists(t, filepath.Join(mangaDir, "test_manga", "chapter_0001-01"))
}

func TestControllerDeduplicatesDestinations(t *testing.T) {
	cat := testCatalog()
	cat.items["ch1"] = append(cat.items["ch1"], data.Item{SourceURL: "https://mirror.example.com/ch1/1.jpg", Sequence: 1})
	fetcher := &mockFetcher{}
	c, _ := newTestController(t, cat.source(), newMockRepository(), fetcher)

	summary, err := c.Download(context.Background(), "https://example.com/series/abc123", DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Result.Scheduled)
	assert.Equal(t, 4, fetcher.total())
}

func TestControllerUpdateOnlyFetchesMissingChapters(t *testing.T) {
	cat := testCatalog()
	repo := newMockRepository(&cat.work)
	fetcher := &mockFetcher{}
	c, mangaDir := newTestController(t, cat.source(), repo, fetcher)

	// chapter 1 exists but is missing page 2; update must not backfill it
	ch1 := filepath.Join(mangaDir, "test_manga", "chapter_0001-01")
	writePages(t, ch1, "001.jpg")

	summary, err := c.Update(context.Background(), "test_manga")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Result.Succeeded)
	assert.Equal(t, 1, summary.ChaptersSkipped)
	assert.Equal(t, 1, countFiles(t, ch1))
	assert.Equal(t, 2, countFiles(t, filepath.Join(mangaDir, "test_manga", "chapter_0002-01")))

	// consolidate backfills the missing page
	summary, err = c.Consolidate(context.Background(), "test_manga")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Result.Succeeded)
	assert.Equal(t, 3, summary.PagesSkipped)
	assert.Equal(t, 2, countFiles(t, ch1))
}

func TestControllerUpdateMissingWork(t *testing.T) {
	c, _ := newTestController(t, testCatalog().source(), newMockRepository(), &mockFetcher{})
	_, err := c.Update(context.Background(), "nope")
	assert.ErrorIs(t, err, data.ErrNotFound)
	assert.Equal(t, StateFailed, c.State())
}

func TestControllerUpdateAllReconcilesFirst(t *testing.T) {
	cat := testCatalog()
	gone := &data.Work{Identifier: "gone1", Name: "Gone", Slug: "gone", Status: data.StatusOngoing}
	repo := newMockRepository(&cat.work, gone)

	var scraped []string
	src := cat.source()
	inner := src.fetchWorkFunc
	src.fetchWorkFunc = func(ctx context.Context, locator string) (*data.Work, []data.Chapter, error) {
		scraped = append(scraped, locator)
		return inner(ctx, locator)
	}
	c, mangaDir := newTestController(t, src, repo, &mockFetcher{})
	require.NoError(t, os.MkdirAll(filepath.Join(mangaDir, "test_manga"), 0o755))

	require.NoError(t, c.UpdateAll(context.Background()))
	assert.Equal(t, []string{"https://example.com/series/abc123"}, scraped)

	_, err := repo.GetBySlug(context.Background(), "gone")
	assert.ErrorIs(t, err, data.ErrNotFound)
	assert.Equal(t, 4, countFiles(t, filepath.Join(mangaDir, "test_manga")))
}

func TestControllerUpdateAllErrorPolicy(t *testing.T) {
	first := &data.Work{Identifier: "a1", Name: "Alpha", Slug: "alpha", Status: data.StatusOngoing}
	second := &data.Work{Identifier: "b1", Name: "Beta", Slug: "beta", Status: data.StatusOngoing}

	for _, continueOnError := range []bool{true, false} {
		t.Run(map[bool]string{true: "continue", false: "abort"}[continueOnError], func(t *testing.T) {
			var scraped []string
			src := &mockSource{
				fetchWorkFunc: func(_ context.Context, locator string) (*data.Work, []data.Chapter, error) {
					scraped = append(scraped, locator)
					return nil, nil, errors.New("remote down")
				},
			}
			c, mangaDir := newTestController(t, src, newMockRepository(first, second), &mockFetcher{},
				func(cfg *ControllerConfig) { cfg.ContinueOnError = continueOnError })
			require.NoError(t, os.MkdirAll(filepath.Join(mangaDir, "alpha"), 0o755))
			require.NoError(t, os.MkdirAll(filepath.Join(mangaDir, "beta"), 0o755))

			err := c.UpdateAll(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "update alpha")
			if continueOnError {
				assert.Len(t, scraped, 2)
				assert.Contains(t, err.Error(), "update beta")
			} else {
				assert.Len(t, scraped, 1)
				assert.NotContains(t, err.Error(), "update beta")
			}
		})
	}
}

func TestControllerConsolidateAllSkipsMissingDirs(t *testing.T) {
	cat := testCatalog()
	other := &data.Work{Identifier: "o1", Name: "Other", Slug: "other", Status: data.StatusComplete}
	repo := newMockRepository(&cat.work, other)

	var scraped []string
	src := cat.source()
	inner := src.fetchWorkFunc
	src.fetchWorkFunc = func(ctx context.Context, locator string) (*data.Work, []data.Chapter, error) {
		scraped = append(scraped, locator)
		return inner(ctx, locator)
	}
	c, mangaDir := newTestController(t, src, repo, &mockFetcher{})
	writePages(t, filepath.Join(mangaDir, "test_manga", "chapter_0001-01"), "001.jpg", "002.jpg")

	require.NoError(t, c.ConsolidateAll(context.Background()))
	assert.Equal(t, []string{"https://example.com/series/abc123"}, scraped)
	assert.Equal(t, 4, countFiles(t, filepath.Join(mangaDir, "test_manga")))
}

func TestControllerReset(t *testing.T) {
	repo := newMockRepository(&testCatalog().work)
	c, _ := newTestController(t, testCatalog().source(), repo, &mockFetcher{})

	require.NoError(t, c.Reset(context.Background()))
	assert.Equal(t, 1, repo.resets)
	works, err := c.Library(context.Background())
	require.NoError(t, err)
	assert.Empty(t, works)
}

type exporterFunc func(work *data.Work, workDir, outDir string) (string, error)

func (f exporterFunc) Export(work *data.Work, workDir, outDir string) (string, error) {
	return f(work, workDir, outDir)
}

func TestControllerExport(t *testing.T) {
	cat := testCatalog()
	repo := newMockRepository(&cat.work)

	c, _ := newTestController(t, cat.source(), repo, &mockFetcher{})
	_, err := c.Export(context.Background(), "test_manga", t.TempDir())
	assert.Error(t, err)

	var gotDir string
	c, mangaDir := newTestController(t, cat.source(), repo, &mockFetcher{}, func(cfg *ControllerConfig) {
		cfg.Exporter = exporterFunc(func(work *data.Work, workDir, outDir string) (string, error) {
			gotDir = workDir
			return filepath.Join(outDir, work.Slug+".epub"), nil
		})
	})
	out, err := c.Export(context.Background(), "test_manga", "/out")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "test_manga.epub"), out)
	assert.Equal(t, filepath.Join(mangaDir, "test_manga"), gotDir)
}
