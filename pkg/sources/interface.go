package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/kerbaras/mgdl/pkg/data"
)

// Source is the content catalog. Implementations fetch and parse remote pages
// and only expose the parsed result.
type Source interface {
	// FetchWork scrapes the work page at locator and its full chapter list,
	// ordered by ordinal.
	FetchWork(ctx context.Context, locator string) (*data.Work, []data.Chapter, error)
	// FetchChapterItems returns the pages of a chapter ordered by sequence.
	// A chapter without pages is a parse failure.
	FetchChapterItems(ctx context.Context, chapterID string) ([]data.Item, error)
	// WorkLocator rebuilds the current work page locator from a stored identifier.
	WorkLocator(identifier string) string
}

// ErrParse is matched by every ParseError. Parse failures are never retried.
var ErrParse = errors.New("unexpected page structure")

// ParseError reports a remote page that no longer matches the expected layout.
type ParseError struct {
	Page   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Page, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) ErrorKind() string { return "parse" }
