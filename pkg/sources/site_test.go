package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mgdl/pkg/data"
	"github.com/kerbaras/mgdl/pkg/utils"
)

func newTestSite(t *testing.T) (*Site, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/series/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture(t, "work.html")))
	})
	mux.HandleFunc("/series/abc123/full-chapter-list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture(t, "chapters.html")))
	})
	mux.HandleFunc("/chapters/ch-a1/images", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "long_strip", r.URL.Query().Get("reading_style"))
		w.Write([]byte(fixture(t, "images.html")))
	})
	mux.HandleFunc("/chapters/empty/images", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>no pages</p>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	api := utils.NewAPI(utils.WithPolicy(utils.Policy{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		Sleep:        func(context.Context, time.Duration) error { return nil },
	}))
	return NewSite(server.URL+"/", api, nil), server
}

func TestSiteWorkLocator(t *testing.T) {
	site := NewSite("https://example.com/", nil, nil)
	assert.Equal(t, "https://example.com/series/abc123", site.WorkLocator("abc123"))
}

func TestSiteFetchWork(t *testing.T) {
	site, server := newTestSite(t)

	work, chapters, err := site.FetchWork(context.Background(), server.URL+"/series/abc123")
	require.NoError(t, err)
	assert.Equal(t, "Test Manga", work.Name)
	assert.Equal(t, "abc123", work.Identifier)
	require.Len(t, chapters, 3)
	assert.Equal(t, "0001-01", chapters[0].Ordinal)
}

func TestSiteFetchChapterItems(t *testing.T) {
	site, server := newTestSite(t)

	items, err := site.FetchChapterItems(context.Background(), "ch-a1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, data.Item{SourceURL: server.URL + "/relative/03.png", Sequence: 3}, items[2])
}

func TestSiteFetchChapterItemsEmpty(t *testing.T) {
	site, _ := newTestSite(t)

	_, err := site.FetchChapterItems(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrParse)
}

func TestSiteFetchWorkNotFound(t *testing.T) {
	site, server := newTestSite(t)

	_, _, err := site.FetchWork(context.Background(), server.URL+"/series/missing")
	var statusErr *utils.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}
