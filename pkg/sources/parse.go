package sources

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kerbaras/mgdl/pkg/data"
	"github.com/kerbaras/mgdl/pkg/utils"
)

// LocatorMarker is the path segment preceding a work identifier in its locator.
const LocatorMarker = "series"

// IdentifierFromLocator extracts the segment following /series/ in locator.
func IdentifierFromLocator(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("parse locator %q: %w", locator, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == LocatorMarker && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", fmt.Errorf("no /%s/<identifier> segment in %q", LocatorMarker, locator)
}

// ParseWork extracts the work metadata from a work page. Name and identifier
// are required; creators and status may be blank.
func ParseWork(body, locator string) (*data.Work, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &ParseError{Page: "work page", Reason: err.Error()}
	}

	h1 := findFirst(doc, "h1")
	if h1 == nil {
		return nil, &ParseError{Page: "work page", Reason: "name not found"}
	}
	name := textOf(h1)
	if name == "" {
		return nil, &ParseError{Page: "work page", Reason: "name is empty"}
	}

	identifier, err := IdentifierFromLocator(locator)
	if err != nil {
		return nil, &ParseError{Page: "work page", Reason: err.Error()}
	}

	slug := utils.Slugify(name)
	if slug == "" {
		return nil, &ParseError{Page: "work page", Reason: fmt.Sprintf("name %q has no usable characters", name)}
	}

	var creators, status string
	for _, ul := range findAll(doc, "ul") {
		if !hasClasses(ul, "flex", "flex-col", "gap-4") {
			continue
		}
		for _, li := range findAll(ul, "li") {
			strong := findFirst(li, "strong")
			if strong == nil {
				continue
			}
			label := strings.NewReplacer(":", "", "(s)", "").Replace(textOf(strong))
			switch strings.TrimSpace(label) {
			case "Author":
				var names []string
				for _, a := range findAll(li, "a") {
					if t := textOf(a); t != "" {
						names = append(names, t)
					}
				}
				creators = strings.Join(names, ", ")
			case "Status":
				if a := findFirst(li, "a"); a != nil {
					status = textOf(a)
				}
			}
		}
		break
	}

	return &data.Work{
		Identifier: identifier,
		Name:       name,
		Slug:       slug,
		Creators:   creators,
		Status:     data.ParseStatus(status),
	}, nil
}

// ParseChapters extracts chapters from the full chapter list. Links whose text
// carries no "Chapter <n>" token are ignored. The result is deduplicated by
// ordinal and sorted ascending.
func ParseChapters(body string) ([]data.Chapter, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &ParseError{Page: "chapter list", Reason: err.Error()}
	}

	seen := make(map[string]bool)
	var chapters []data.Chapter
	for _, a := range findAll(doc, "a") {
		href, ok := attr(a, "href")
		if !ok {
			continue
		}
		raw, ok := chapterNumber(textOf(a))
		if !ok {
			continue
		}

		ordinal, err := data.OrdinalFromRaw(raw)
		if err != nil {
			return nil, &ParseError{Page: "chapter list", Reason: err.Error()}
		}
		id := lastSegment(href)
		if id == "" {
			return nil, &ParseError{Page: "chapter list", Reason: fmt.Sprintf("no chapter identifier in %q", href)}
		}
		if seen[ordinal] {
			continue
		}
		seen[ordinal] = true
		chapters = append(chapters, data.Chapter{Identifier: id, Ordinal: ordinal})
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Ordinal < chapters[j].Ordinal
	})
	return chapters, nil
}

// ParseItems extracts the pages of a chapter from its images page. An image is
// a page when its alt text ends in the page number ("Page 3"). Relative image
// URLs are resolved against base.
func ParseItems(body string, base *url.URL) ([]data.Item, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &ParseError{Page: "chapter images", Reason: err.Error()}
	}

	seen := make(map[int]bool)
	var items []data.Item
	for _, img := range findAll(doc, "img") {
		alt, ok := attr(img, "alt")
		if !ok {
			continue
		}
		fields := strings.Fields(alt)
		if len(fields) == 0 {
			continue
		}
		seq, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			continue
		}
		if seq <= 0 {
			return nil, &ParseError{Page: "chapter images", Reason: fmt.Sprintf("invalid page number %d", seq)}
		}
		if seen[seq] {
			return nil, &ParseError{Page: "chapter images", Reason: fmt.Sprintf("duplicate page number %d", seq)}
		}

		src, _ := attr(img, "src")
		src = strings.TrimSpace(src)
		if src == "" {
			return nil, &ParseError{Page: "chapter images", Reason: fmt.Sprintf("page %d has no url", seq)}
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}

		seen[seq] = true
		items = append(items, data.Item{SourceURL: src, Sequence: seq})
	}

	if len(items) == 0 {
		return nil, &ParseError{Page: "chapter images", Reason: "no pages found for chapter"}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })
	return items, nil
}

func chapterNumber(text string) (string, bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if f == "Chapter" && i+1 < len(fields) {
			return fields[i+1], true
		}
	}
	return "", false
}

func lastSegment(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	parts := strings.Split(strings.Trim(href, "/"), "/")
	return parts[len(parts)-1]
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClasses(n *html.Node, classes ...string) bool {
	value, ok := attr(n, "class")
	if !ok {
		return false
	}
	present := make(map[string]bool)
	for _, c := range strings.Fields(value) {
		present[c] = true
	}
	for _, c := range classes {
		if !present[c] {
			return false
		}
	}
	return true
}

// textOf returns the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
