package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kerbaras/mgdl/pkg/data"
)

// ChapterRange is an inclusive filter over chapter majors. A negative bound
// is open.
type ChapterRange struct {
	From int
	To   int
}

// ParseChapterRange accepts "N", "N..", "..M" and "N..M".
func ParseChapterRange(s string) (*ChapterRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty chapter range")
	}

	lo, hi, isRange := strings.Cut(s, "..")
	if !isRange {
		n, err := parseBound(s)
		if err != nil {
			return nil, err
		}
		return &ChapterRange{From: n, To: n}, nil
	}
	if lo == "" && hi == "" {
		return nil, fmt.Errorf("chapter range %q has no bounds", s)
	}

	r := &ChapterRange{From: -1, To: -1}
	var err error
	if lo != "" {
		if r.From, err = parseBound(lo); err != nil {
			return nil, err
		}
	}
	if hi != "" {
		if r.To, err = parseBound(hi); err != nil {
			return nil, err
		}
	}
	if r.From >= 0 && r.To >= 0 && r.From > r.To {
		return nil, fmt.Errorf("chapter range %q is reversed", s)
	}
	return r, nil
}

func parseBound(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid chapter number %q", s)
	}
	return n, nil
}

func (r *ChapterRange) Contains(major int) bool {
	if major < 0 {
		return false
	}
	if r.From >= 0 && major < r.From {
		return false
	}
	if r.To >= 0 && major > r.To {
		return false
	}
	return true
}

// Filter keeps the chapters whose major falls inside r, preserving order.
func (r *ChapterRange) Filter(chapters []data.Chapter) []data.Chapter {
	if r == nil {
		return chapters
	}
	out := make([]data.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if r.Contains(ch.Major()) {
			out = append(out, ch)
		}
	}
	return out
}

func (r *ChapterRange) String() string {
	switch {
	case r.From >= 0 && r.From == r.To:
		return strconv.Itoa(r.From)
	case r.From < 0:
		return fmt.Sprintf("..%d", r.To)
	case r.To < 0:
		return fmt.Sprintf("%d..", r.From)
	default:
		return fmt.Sprintf("%d..%d", r.From, r.To)
	}
}
