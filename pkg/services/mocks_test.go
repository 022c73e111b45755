package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mgdl/pkg/data"
)

type mockSource struct {
	fetchWorkFunc         func(ctx context.Context, locator string) (*data.Work, []data.Chapter, error)
	fetchChapterItemsFunc func(ctx context.Context, chapterID string) ([]data.Item, error)
}

func (m *mockSource) FetchWork(ctx context.Context, locator string) (*data.Work, []data.Chapter, error) {
	return m.fetchWorkFunc(ctx, locator)
}

func (m *mockSource) FetchChapterItems(ctx context.Context, chapterID string) ([]data.Item, error) {
	return m.fetchChapterItemsFunc(ctx, chapterID)
}

func (m *mockSource) WorkLocator(identifier string) string {
	return "https://example.com/series/" + identifier
}

// mockRepository is an in-memory Repository keyed by name.
type mockRepository struct {
	mu     sync.Mutex
	works  map[string]*data.Work
	resets int
}

func newMockRepository(works ...*data.Work) *mockRepository {
	r := &mockRepository{works: make(map[string]*data.Work)}
	for _, w := range works {
		cp := *w
		r.works[w.Name] = &cp
	}
	return r
}

func (r *mockRepository) Upsert(_ context.Context, w *data.Work) (*data.Work, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, existing := range r.works {
		if name != w.Name && existing.Slug == w.Slug {
			return nil, fmt.Errorf("slug %s: %w", w.Slug, data.ErrConflict)
		}
	}
	cp := *w
	r.works[w.Name] = &cp
	out := cp
	return &out, nil
}

func (r *mockRepository) GetBySlug(_ context.Context, slug string) (*data.Work, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.works {
		if w.Slug == slug {
			cp := *w
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("work %q: %w", slug, data.ErrNotFound)
}

func (r *mockRepository) ListByStatus(_ context.Context, status data.Status) ([]*data.Work, error) {
	return r.list(func(w *data.Work) bool { return w.Status == status }), nil
}

func (r *mockRepository) List(context.Context) ([]*data.Work, error) {
	return r.list(func(*data.Work) bool { return true }), nil
}

func (r *mockRepository) list(keep func(*data.Work) bool) []*data.Work {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*data.Work
	for _, w := range r.works {
		if keep(w) {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *mockRepository) DeleteBySlug(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, w := range r.works {
		if w.Slug == slug {
			delete(r.works, name)
		}
	}
	return nil
}

func (r *mockRepository) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.works = make(map[string]*data.Work)
	r.resets++
	return nil
}

// mockFetcher serves page bytes and counts requests per url.
type mockFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	getFunc func(ctx context.Context, url string) ([]byte, error)
}

func (f *mockFetcher) GetBytes(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[url]++
	f.mu.Unlock()
	if f.getFunc != nil {
		return f.getFunc(ctx, url)
	}
	return []byte("page:" + url), nil
}

func (f *mockFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// catalog is a fake remote source holding one work.
type catalog struct {
	work     data.Work
	chapters []data.Chapter
	items    map[string][]data.Item
}

func testCatalog() *catalog {
	return &catalog{
		work: data.Work{
			Identifier: "abc123",
			Name:       "Test Manga",
			Slug:       "test_manga",
			Creators:   "Jane Doe",
			Status:     data.StatusOngoing,
		},
		chapters: []data.Chapter{
			{Identifier: "ch1", Ordinal: "0001-01"},
			{Identifier: "ch2", Ordinal: "0002-01"},
		},
		items: map[string][]data.Item{
			"ch1": {
				{SourceURL: "https://cdn.example.com/ch1/1.jpg", Sequence: 1},
				{SourceURL: "https://cdn.example.com/ch1/2.jpg", Sequence: 2},
			},
			"ch2": {
				{SourceURL: "https://cdn.example.com/ch2/1.png?sig=x", Sequence: 1},
				{SourceURL: "https://cdn.example.com/ch2/2.png?sig=y", Sequence: 2},
			},
		},
	}
}

func (c *catalog) source() *mockSource {
	return &mockSource{
		fetchWorkFunc: func(_ context.Context, locator string) (*data.Work, []data.Chapter, error) {
			w := c.work
			return &w, append([]data.Chapter(nil), c.chapters...), nil
		},
		fetchChapterItemsFunc: func(_ context.Context, id string) ([]data.Item, error) {
			items, ok := c.items[id]
			if !ok {
				return nil, fmt.Errorf("chapter %s: %w", id, data.ErrNotFound)
			}
			return items, nil
		},
	}
}

func writePages(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return n
}
