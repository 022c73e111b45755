package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kerbaras/mgdl/pkg/data"
)

// Tracker reads the on-disk layout <mangaDir>/<slug>/chapter_<ordinal>/<NNN>.<ext>,
// which is the source of truth for what has already been fetched.
type Tracker struct {
	mangaDir string
	repo     Repository
	logger   *slog.Logger
}

func NewTracker(mangaDir string, repo Repository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{mangaDir: mangaDir, repo: repo, logger: logger}
}

func (t *Tracker) WorkDir(slug string) string {
	return filepath.Join(t.mangaDir, slug)
}

func (t *Tracker) ChapterDir(slug string, ch data.Chapter) string {
	return filepath.Join(t.mangaDir, slug, ch.DirName())
}

// ExistingItemSequences returns the page sequences already stored in dir.
// A missing directory yields an empty set.
func (t *Tracker) ExistingItemSequences(dir string) (map[int]struct{}, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	seqs := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if seq, ok := pageSequence(e.Name()); ok {
			seqs[seq] = struct{}{}
		}
	}
	return seqs, nil
}

// ExistingChapterMajors returns the chapter majors that have a directory
// under workDir. Minor ordinals are ignored.
func (t *Tracker) ExistingChapterMajors(workDir string) (map[int]struct{}, error) {
	entries, err := readDir(workDir)
	if err != nil {
		return nil, err
	}
	majors := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ordinal, ok := strings.CutPrefix(e.Name(), data.ChapterDirPrefix)
		if !ok {
			continue
		}
		major, _, err := data.SplitOrdinal(ordinal)
		if err != nil {
			continue
		}
		majors[major] = struct{}{}
	}
	return majors, nil
}

// Reconcile drops Ongoing works whose directory no longer exists and returns
// the survivors. Works with another status pass through untouched.
func (t *Tracker) Reconcile(ctx context.Context, works []*data.Work) ([]*data.Work, error) {
	kept := make([]*data.Work, 0, len(works))
	for _, w := range works {
		if w.Status != data.StatusOngoing {
			kept = append(kept, w)
			continue
		}
		_, err := os.Stat(t.WorkDir(w.Slug))
		switch {
		case err == nil:
			kept = append(kept, w)
		case errors.Is(err, fs.ErrNotExist):
			if err := t.repo.DeleteBySlug(ctx, w.Slug); err != nil {
				return nil, fmt.Errorf("reconcile %s: %w", w.Slug, err)
			}
			t.logger.Info("removed work with missing directory", "slug", w.Slug, "dir", t.WorkDir(w.Slug))
		default:
			return nil, fmt.Errorf("reconcile %s: %w", w.Slug, err)
		}
	}
	return kept, nil
}

func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return entries, nil
}

// tempSuffixDigits is the shortest run of trailing digits treated as the
// random suffix os.CreateTemp appends to "<NNN>.<ext>" during atomic writes.
// Real extensions such as "jp2" end in far fewer digits.
const tempSuffixDigits = 6

// pageSequence parses "007.jpg" into 7. Leftover temporary files from
// interrupted writes ("007.jpg4057372039") are rejected.
func pageSequence(name string) (int, bool) {
	stem, ext, ok := strings.Cut(name, ".")
	if !ok || stem == "" || ext == "" {
		return 0, false
	}
	trailing := 0
	for _, r := range ext {
		switch {
		case r >= '0' && r <= '9':
			trailing++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			trailing = 0
		default:
			return 0, false
		}
	}
	if trailing >= tempSuffixDigits {
		return 0, false
	}
	seq, err := strconv.Atoi(stem)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
