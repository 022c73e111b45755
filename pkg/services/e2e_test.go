package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mgdl/pkg/data"
)

func TestE2E_DownloadResumeAndForce(t *testing.T) {
	ctx := context.Background()
	repo, err := data.Open(ctx, data.DriverSQLite, filepath.Join(t.TempDir(), "mgdl.db"))
	require.NoError(t, err)
	defer repo.Close()

	cat := testCatalog()
	fetcher := &mockFetcher{}
	bench := NewBench()
	c, mangaDir := newTestController(t, cat.source(), repo, fetcher, func(cfg *ControllerConfig) {
		cfg.Recorder = bench
	})
	const locator = "https://example.com/series/abc123"

	t.Run("first download writes every page", func(t *testing.T) {
		summary, err := c.Download(ctx, locator, DownloadOptions{})
		require.NoError(t, err)
		assert.Equal(t, 4, summary.Result.Scheduled)
		assert.Equal(t, 4, countFiles(t, filepath.Join(mangaDir, "test_manga")))
		assert.FileExists(t, filepath.Join(mangaDir, "test_manga", "chapter_0001-01", "001.jpg"))
		assert.FileExists(t, filepath.Join(mangaDir, "test_manga", "chapter_0002-01", "002.png"))
		assert.Equal(t, StateDone, c.State())
	})

	t.Run("second download schedules nothing", func(t *testing.T) {
		summary, err := c.Download(ctx, locator, DownloadOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Result.Scheduled)
		assert.Equal(t, 4, summary.PagesSkipped)
		assert.Equal(t, 2, summary.ChaptersSkipped)
		assert.Equal(t, 4, fetcher.total())
	})

	t.Run("force refetches everything", func(t *testing.T) {
		summary, err := c.Download(ctx, locator, DownloadOptions{Force: true})
		require.NoError(t, err)
		assert.Equal(t, 4, summary.Result.Scheduled)
		assert.Equal(t, 8, fetcher.total())
		assert.Equal(t, 4, countFiles(t, filepath.Join(mangaDir, "test_manga")))
	})

	t.Run("work persisted once", func(t *testing.T) {
		works, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, works, 1)
		assert.Equal(t, "Test Manga", works[0].Name)
		assert.Equal(t, data.StatusOngoing, works[0].Status)
	})

	t.Run("bench report", func(t *testing.T) {
		report := bench.Finish("Test Manga")
		assert.Equal(t, 8, report.Pages.Count)
		assert.Equal(t, 4, report.PagesSkipped)
		assert.Equal(t, 6, report.Discovery.Count)
		assert.NotEmpty(t, report.RunID)

		path, err := report.WriteJSON(t.TempDir())
		require.NoError(t, err)
		assert.FileExists(t, path)
	})
}
