package common

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeText collapses runs of whitespace (including newlines and
// non-breaking spaces from rendered HTML) into single spaces and trims the
// edges. Scraped text goes through this before any keyword matching.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most max bytes without splitting a rune. Scraped
// Spanish text is full of multibyte accented characters, so a plain byte
// slice can leave invalid UTF-8 at the cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// SanitizeURL performs basic cleanup on URLs scraped out of listing pages.
// Removes whitespace, trailing punctuation, and wrapping characters that
// survive sloppy markup.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	trailingChars := []string{",", ".", ")", "}", "]", "\"", "'", ">", ";"}
	for _, char := range trailingChars {
		cleaned = strings.TrimSuffix(cleaned, char)
	}

	leadingChars := []string{"(", "[", "<", "\"", "'"}
	for _, char := range leadingChars {
		cleaned = strings.TrimPrefix(cleaned, char)
	}

	return strings.TrimSpace(cleaned)
}

// ResolveURL turns href into an absolute URL against base. Already-absolute
// hrefs are returned cleaned; anything unparseable yields "".
func ResolveURL(base, href string) string {
	href = SanitizeURL(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

var urlPattern = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.]*[a-zA-Z0-9](/[^\s]*)?$`)

// SanitizeAndValidateURLs sanitizes all URLs and returns (sanitized URLs,
// invalid URLs). Invalid URLs are those that fail validation even after
// sanitization.
func SanitizeAndValidateURLs(urls []string) ([]string, []string) {
	sanitized := make([]string, 0, len(urls))
	var invalidURLs []string

	for _, rawURL := range urls {
		cleaned := SanitizeURL(rawURL)

		if cleaned == "" {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		// Literal spaces must be pre-encoded as %20.
		if strings.Contains(cleaned, " ") {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		if !urlPattern.MatchString(cleaned) {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		parsed, err := url.Parse(cleaned)
		if err != nil {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		if parsed.Host == "" {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		if strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}

		sanitized = append(sanitized, cleaned)
	}

	return sanitized, invalidURLs
}

// Dedupe returns the input with duplicates removed, preserving first-seen
// order.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
