// Package region resolves topic display names to canonical region keys
// and builds the deterministic backfill query sets for them.
package region

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// regionMap maps normalized topic names to canonical region keys. Kept as
// an ordered slice so the substring pass is deterministic.
var regionMap = []struct {
	name string
	key  string
}{
	{"турция", "turkey"},
	{"закавказье", "transcaucasia"},
	{"алтай", "altai"},
	{"тюмень", "tyumen"},
	{"юго-восточная азия", "se_asia"},
	{"юва", "se_asia"},
	{"регион кавказских минеральных вод", "kmv"},
	{"кавказские минеральные воды", "kmv"},
	{"кмв", "kmv"},
}

// Resolver derives region keys from topic display names.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// InferRegionKey resolves a topic name to a region key: exact match
// against the static table, then substring match, then a deterministic
// slugified fallback. Identical input always yields identical output;
// region keys become part of persisted identity material.
func (r *Resolver) InferRegionKey(topicName string) string {
	normalized := NormalizeTopicName(topicName)

	for _, e := range regionMap {
		if e.name == normalized {
			return e.key
		}
	}

	for _, e := range regionMap {
		if strings.Contains(normalized, e.name) {
			return e.key
		}
	}

	return Slugify(normalized)
}

// NormalizeTopicName trims, lowercases and unifies ё to е.
func NormalizeTopicName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "ё", "е")
}

// translit maps Cyrillic letters to their ASCII transliteration. Soft and
// hard signs drop entirely.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ж': "zh", 'з': "z", 'и': "i", 'й': "i",
	'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh",
	'щ': "shch", 'ы': "y", 'э': "e", 'ю': "yu", 'я': "ya",
	'ь': "", 'ъ': "",
}

// Slugify turns an arbitrary topic name into a stable ASCII slug:
// lowercase, transliterate Cyrillic letter-by-letter, NFKD-normalize,
// keep ASCII alphanumerics and underscore, collapse repeated underscores.
// Empty results fall back to "topic".
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")

	var b strings.Builder
	var prev rune
	for _, r := range s {
		// "й" directly after "ы" is dropped so endings like "-ный"
		// slug to "ny" instead of "nyi".
		if r == 'й' && prev == 'ы' {
			continue
		}
		if t, ok := translit[r]; ok {
			b.WriteString(t)
		} else {
			b.WriteRune(r)
		}
		prev = r
	}

	// Cyrillic is already ASCII here, so NFKD only splits leftover
	// composed characters into base letters plus combining marks.
	decomposed := norm.NFKD.String(b.String())

	var out []rune
	for _, r := range decomposed {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'):
			out = append(out, r)
		case unicode.Is(unicode.Mn, r):
			// Combining marks left by NFKD are dropped.
		default:
			out = append(out, '_')
		}
	}

	slug := collapseUnderscores(string(out))
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "topic"
	}
	return slug
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
