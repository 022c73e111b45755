package data

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the publication state reported by the source.
type Status string

const (
	StatusOngoing  Status = "Ongoing"
	StatusComplete Status = "Complete"
	StatusUnknown  Status = "Unknown"
)

// ParseStatus maps the free-form status label of a source page onto Status.
func ParseStatus(label string) Status {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "ongoing", "releasing", "publishing":
		return StatusOngoing
	case "complete", "completed", "finished":
		return StatusComplete
	default:
		return StatusUnknown
	}
}

// Work is a tracked title. Slug is the lookup key.
type Work struct {
	Identifier string
	Name       string
	Slug       string
	Creators   string
	Status     Status
}

func (w *Work) String() string {
	return fmt.Sprintf("%s (%s) [%s]", w.Name, w.Slug, w.Status)
}

// Chapter is recomputed on every scrape and never persisted.
type Chapter struct {
	Identifier string
	Ordinal    string // "MMMM-mm"
}

// Major returns the major part of the ordinal, or -1 if the ordinal is malformed.
func (c Chapter) Major() int {
	major, _, err := SplitOrdinal(c.Ordinal)
	if err != nil {
		return -1
	}
	return major
}

// ChapterDirPrefix prefixes every chapter directory name.
const ChapterDirPrefix = "chapter_"

// DirName is the on-disk directory name of the chapter inside its work directory.
func (c Chapter) DirName() string {
	return ChapterDirPrefix + c.Ordinal
}

// Item is a single page of a chapter.
type Item struct {
	SourceURL string
	Sequence  int
}

// FormatOrdinal renders a zero-padded ordinal so that lexical order equals
// numeric (major, minor) order.
func FormatOrdinal(major, minor int) string {
	return fmt.Sprintf("%04d-%02d", major, minor)
}

// OrdinalFromRaw converts a source chapter number ("12", "5.5") into an ordinal.
// A number without a minor part gets minor 01.
func OrdinalFromRaw(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid chapter number %q", raw)
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 1:
		if nums[0] > 9999 {
			return "", fmt.Errorf("chapter number %q out of range", raw)
		}
		return FormatOrdinal(nums[0], 1), nil
	case 2:
		if nums[0] > 9999 || nums[1] > 99 {
			return "", fmt.Errorf("chapter number %q out of range", raw)
		}
		return FormatOrdinal(nums[0], nums[1]), nil
	default:
		return "", fmt.Errorf("invalid chapter number format %q", raw)
	}
}

// SplitOrdinal parses "MMMM-mm" back into its numeric parts.
func SplitOrdinal(ordinal string) (major, minor int, err error) {
	majorStr, minorStr, ok := strings.Cut(ordinal, "-")
	if !ok || len(majorStr) != 4 || len(minorStr) != 2 {
		return 0, 0, fmt.Errorf("malformed ordinal %q", ordinal)
	}
	if major, err = strconv.Atoi(majorStr); err != nil {
		return 0, 0, fmt.Errorf("malformed ordinal %q", ordinal)
	}
	if minor, err = strconv.Atoi(minorStr); err != nil {
		return 0, 0, fmt.Errorf("malformed ordinal %q", ordinal)
	}
	return major, minor, nil
}
