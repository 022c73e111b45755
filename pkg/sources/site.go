package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kerbaras/mgdl/pkg/data"
	"github.com/kerbaras/mgdl/pkg/utils"
)

// Fetcher is the subset of utils.API the site needs.
type Fetcher interface {
	GetText(ctx context.Context, url string) (string, error)
}

// Site scrapes the series catalog served under baseURL.
type Site struct {
	api     Fetcher
	baseURL string
	logger  *slog.Logger
}

func NewSite(baseURL string, api Fetcher, logger *slog.Logger) *Site {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Site{
		api:     api,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (s *Site) WorkLocator(identifier string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, LocatorMarker, identifier)
}

func (s *Site) chapterListURL(identifier string) string {
	return s.WorkLocator(identifier) + "/full-chapter-list"
}

func (s *Site) chapterImagesURL(chapterID string) string {
	return fmt.Sprintf("%s/chapters/%s/images?is_prev=False&current_page=1&reading_style=long_strip", s.baseURL, chapterID)
}

func (s *Site) FetchWork(ctx context.Context, locator string) (*data.Work, []data.Chapter, error) {
	body, err := s.api.GetText(ctx, locator)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch work page: %w", err)
	}
	work, err := ParseWork(body, locator)
	if err != nil {
		return nil, nil, err
	}

	listURL := s.chapterListURL(work.Identifier)
	body, err = s.api.GetText(ctx, listURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch chapter list: %w", err)
	}
	chapters, err := ParseChapters(body)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("scraped work", "name", work.Name, "identifier", work.Identifier, "chapters", len(chapters))
	return work, chapters, nil
}

func (s *Site) FetchChapterItems(ctx context.Context, chapterID string) ([]data.Item, error) {
	pageURL := s.chapterImagesURL(chapterID)
	body, err := s.api.GetText(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch chapter %s: %w", chapterID, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, err)
	}
	items, err := ParseItems(body, base)
	if err != nil {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, err)
	}
	return items, nil
}

var _ Source = (*Site)(nil)
var _ Fetcher = (*utils.API)(nil)
