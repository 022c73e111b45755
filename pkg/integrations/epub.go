package integrations

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/kerbaras/mgdl/pkg/data"
)

// EPubExporter compiles the chapter directories of a downloaded work into a
// single EPub, chapters in ordinal order and pages in filename order.
type EPubExporter struct {
	logger *slog.Logger
}

func NewEPubExporter(logger *slog.Logger) *EPubExporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EPubExporter{logger: logger}
}

type chapterDir struct {
	name  string
	major int
	minor int
}

func (p *EPubExporter) Export(work *data.Work, workDir, outDir string) (string, error) {
	chapters, err := listChapters(workDir)
	if err != nil {
		return "", err
	}
	if len(chapters) == 0 {
		return "", fmt.Errorf("no downloaded chapters for %s", work.Slug)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	e, err := epub.NewEpub(work.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	if work.Creators != "" {
		e.SetAuthor(work.Creators)
	}
	e.SetDescription(fmt.Sprintf("%s (%s)", work.Name, work.Status))
	e.SetLang("en")

	added := 0
	for _, ch := range chapters {
		n, err := p.addChapter(e, filepath.Join(workDir, ch.name), ch)
		if err != nil {
			return "", fmt.Errorf("failed to add %s: %w", ch.name, err)
		}
		added += n
	}
	if added == 0 {
		return "", fmt.Errorf("no pages found for %s", work.Slug)
	}

	outputPath := filepath.Join(outDir, work.Slug+".epub")
	if err := e.Write(outputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	p.logger.Info("epub written", "path", outputPath, "chapters", len(chapters), "pages", added)
	return outputPath, nil
}

func listChapters(workDir string) ([]chapterDir, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read work directory: %w", err)
	}
	var chapters []chapterDir
	for _, entry := range entries {
		ordinal, ok := strings.CutPrefix(entry.Name(), data.ChapterDirPrefix)
		if !entry.IsDir() || !ok {
			continue
		}
		major, minor, err := data.SplitOrdinal(ordinal)
		if err != nil {
			continue
		}
		chapters = append(chapters, chapterDir{name: entry.Name(), major: major, minor: minor})
	}
	// ordinals are fixed width, so name order is chapter order
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].name < chapters[j].name })
	return chapters, nil
}

// addChapter adds one chapter section and returns the number of pages added.
// Empty chapter directories are skipped.
func (p *EPubExporter) addChapter(e *epub.Epub, dir string, ch chapterDir) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read chapter directory: %w", err)
	}

	var images []string
	for _, file := range files {
		if !file.IsDir() && isImageFile(file.Name()) {
			images = append(images, file.Name())
		}
	}
	if len(images) == 0 {
		p.logger.Warn("empty chapter directory", "dir", dir)
		return 0, nil
	}
	sort.Strings(images)

	title := fmt.Sprintf("Chapter %d", ch.major)
	if ch.minor != 1 {
		title = fmt.Sprintf("Chapter %d.%d", ch.major, ch.minor)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", title)
	for i, name := range images {
		// page names repeat across chapters
		internalPath, err := e.AddImage(filepath.Join(dir, name), ch.name+"_"+name)
		if err != nil {
			return 0, fmt.Errorf("failed to add image %s: %w", name, err)
		}
		fmt.Fprintf(&body,
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`+"\n",
			internalPath, i+1)
	}

	if _, err := e.AddSection(body.String(), title, ch.name+".xhtml", ""); err != nil {
		return 0, fmt.Errorf("failed to add section: %w", err)
	}
	return len(images), nil
}

func isImageFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif":
		return true
	}
	return false
}
