package pub

import (
	"regexp"
	"strings"
	"time"
)

var yearOnly = regexp.MustCompile(`^\d{4}$`)

// dateLayouts are tried in order against PublishedAt strings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a publication date string. Supported shapes are full
// date-time, date-only and year-only (which maps to January 1st).
// Returns the zero time when the string cannot be parsed.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	if yearOnly.MatchString(s) {
		if t, err := time.Parse("2006", s); err == nil {
			return t
		}
	}

	return time.Time{}
}

// IsRelevant checks a publication against include/exclude term sets over
// the lowercased title+abstract. Exclude terms take precedence; with no
// exclude hit, at least one include term must match.
func IsRelevant(p *Publication, include, exclude []string) bool {
	text := p.Text()

	for _, term := range exclude {
		if strings.Contains(text, strings.ToLower(term)) {
			return false
		}
	}

	for _, term := range include {
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}

	return false
}

// IsFresh reports whether the publication was published within maxAgeDays
// of now. A missing or unparsable date fails closed.
func IsFresh(p *Publication, maxAgeDays int, now time.Time) bool {
	if p.PublishedAt == "" {
		return false
	}

	published := ParseDate(p.PublishedAt)
	if published.IsZero() {
		return false
	}

	return now.Sub(published) <= time.Duration(maxAgeDays)*24*time.Hour
}
