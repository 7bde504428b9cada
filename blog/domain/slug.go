package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// slugStrip matches everything a slug may not contain
	slugStrip       = regexp.MustCompile(`[^a-z0-9-]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Slugify converts a title to a URL slug: accents are folded, the result is lowercased,
// whitespace becomes hyphens, everything outside [a-z0-9-] is dropped and hyphen runs collapse.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(strings.TrimSpace(result))
	result = whitespaceRun.ReplaceAllString(result, "-")
	result = slugStrip.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")

	return strings.Trim(result, "-")
}

// NormalizeTerm is the canonical form of a category or tag name: lowercase with whitespace
// runs replaced by single hyphens.
func NormalizeTerm(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
