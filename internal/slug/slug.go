// Package slug turns scraped text into names that are safe to use as
// directories and files.
package slug

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// Placeholder is used when no validity text could be found on the page.
	Placeholder = "sem_data"

	DefaultMaxLen = 80
)

var (
	unsafeRun  = regexp.MustCompile(`[\\/*?:"<>|\s]+`)
	nonPathRun = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscore = regexp.MustCompile(`_{2,}`)
)

// Sanitize maps arbitrary text to a filesystem safe slug. Accents are kept.
// Empty input yields Placeholder.
func Sanitize(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	s := unsafeRun.ReplaceAllString(strings.TrimSpace(text), "_")
	s = strings.Trim(s, "_")
	s = truncate(s, maxLen)
	s = strings.TrimRight(s, "_")
	if s == "" || s == "." || s == ".." {
		return Placeholder
	}
	return s
}

// StripAccents removes diacritics: "São Luís" becomes "Sao Luis".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold is used for loose comparisons of store and state names.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(StripAccents(s)))
}

// Path builds an ASCII directory name from store, city or state text.
func Path(text string) string {
	s := StripAccents(strings.TrimSpace(text))
	s = strings.Join(strings.Fields(s), "_")
	s = nonPathRun.ReplaceAllString(s, "")
	s = underscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_-")
	if s == "" {
		return "loja"
	}
	return truncate(s, DefaultMaxLen)
}

// FileName names a saved page after its journal, page and sub index plus a
// UTC timestamp, e.g. encarte_j01_p003_s01_20261019T101500Z.jpg.
func FileName(prefix string, journal, page, sub int, at time.Time, ext string) string {
	if prefix == "" {
		prefix = "encarte"
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s_j%02d_p%03d_s%02d_%s.%s",
		Path(prefix), journal, page, sub, at.UTC().Format("20060102T150405Z"), nonPathRun.ReplaceAllString(ext, ""))
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
