package refresh

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/geotherm/geopress/pkg/pub"
)

// NormalizeQuery canonicalizes a search query so cosmetic variants of
// the same query map to one identity. Lowercases, folds ё to е,
// unifies quote and dash characters, expands № to "no ", turns other
// punctuation into spaces and collapses whitespace.
func NormalizeQuery(q string) string {
	s := strings.ToLower(strings.TrimSpace(q))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'ё':
			b.WriteRune('е')
		case '«', '»', '“', '”', '„', '‟':
			b.WriteRune('"')
		case '’', '‘':
			b.WriteRune('\'')
		case '–', '—', '−':
			b.WriteRune('-')
		case '№':
			b.WriteString("no ")
		default:
			b.WriteRune(r)
		}
	}

	// Rejected characters become spaces, never deletions, so punctuation
	// between words still separates them.
	var out strings.Builder
	out.Grow(b.Len())
	for _, r := range b.String() {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out.WriteRune(r)
		case r == '*' || r == '"' || r == '\'' || r == '-':
			out.WriteRune(r)
		default:
			out.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(out.String()), " ")
}

// ExternalID derives the stable dedup identity for a publication found
// while refreshing a region. Discovery results hash the originating
// site and normalized query so one query counts once per region.
// Everything else falls back to the concrete record fields.
func ExternalID(regionKey string, p *pub.Publication) string {
	var raw string
	if p.Prov.Site != "" {
		raw = regionKey + "|" + p.Prov.Site + "|" + NormalizeQuery(p.Prov.Query)
	} else {
		raw = regionKey + "|" + p.Source + "|" + p.URL + "|" + p.Abstract
	}
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
