package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify derives the filesystem-safe lookup key of a title: diacritics are
// stripped to their base letters, every run of other characters becomes a
// single "_", and the result is trimmed and lowercased.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	slug := nonAlphanumeric.ReplaceAllString(stripped, "_")
	return strings.ToLower(strings.Trim(slug, "_"))
}
