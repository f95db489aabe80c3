package pub

import "strings"

// Publication is the standardized candidate model produced by all providers.
type Publication struct {
	ID          string
	Source      string
	Title       string
	Abstract    string
	URL         string
	Year        int
	PublishedAt string
	Authors     []string
	Journal     string
	Keywords    []string
	PubTypes    []string
	Prov        Provenance
}

// Provenance carries the discovery fields that feed stable identity
// generation. Both fields must be set for the site/query identity scheme
// to apply; otherwise the source/url/abstract fallback is used.
type Provenance struct {
	Site  string
	Query string
}

// QuerySpec describes one search request against a publications source.
type QuerySpec struct {
	Source       string
	Name         string
	Query        string
	LanguageHint string
	Tags         []string
	MaxResults   int
}

// ScoreResult is the outcome of scoring a publication.
type ScoreResult struct {
	Score        int
	Reasons      []string
	HighPriority bool
}

// Text returns the lowercased title+abstract string the filters and
// scoring rules match against.
func (p *Publication) Text() string {
	return strings.ToLower(p.Title + " " + p.Abstract)
}
