package region

import (
	"fmt"
	"strings"

	"github.com/geotherm/geopress/pkg/pub"
)

// Search-term markers combined with region anchors. The boolean syntax
// targets the discovery sites' advanced search.
const (
	chemMarker = `("химическ* состав" OR минерализац* OR "ионный состав" OR pH OR дебит OR ` +
		`температура OR радон OR "сероводород" OR CO2 OR углекисл*)`
	clinMarker = `("питьевое лечение" OR "внутреннее применение" OR бальнеотерап* OR ` +
		`курортолог* OR "санаторно-курортн*" OR показани* OR противопоказани*)`
	sourceObjMarker = `(источник* OR скважин* OR каптаж OR галерея OR "паспорт источника" OR ` +
		`"режим эксплуатации" OR "санитарная охрана")`
	docMarker = `("методические указания" OR "клинические наблюдения" OR диссертац* OR ` +
		`автореферат OR "гидрогеологическ* отчет" OR "паспорт скважины")`
)

const (
	// DiscoverySource tags every backfill query spec.
	DiscoverySource = "eurasia_discovery"

	// maxGeneratedQueries caps the builder output.
	maxGeneratedQueries = 14

	queryMaxResults = 20
)

var displayNames = map[string]string{
	"kmv":           "KMW",
	"transcaucasia": "Transcaucasia",
	"altai":         "Altai",
	"tyumen":        "Tyumen",
	"turkey":        "Turkey",
	"se_asia":       "SE Asia",
}

// QueryBuilder generates backfill query sets for regions.
type QueryBuilder struct{}

// NewQueryBuilder creates a QueryBuilder.
func NewQueryBuilder() *QueryBuilder { return &QueryBuilder{} }

// BuildBackfillQueries generates the bounded, deduplicated query list for
// a region, in fixed order: per-resort chemistry queries, per-resort
// source-object queries, a combined chemistry+clinical query, a
// chemistry-only query and up to two document queries. Same region key
// and profile table yield the identical list on every run.
func (b *QueryBuilder) BuildBackfillQueries(regionKey, topicName string) []pub.QuerySpec {
	profile := GetProfile(regionKey)

	geoAnchors := profile.GeoAnchors
	if len(geoAnchors) > 2 {
		geoAnchors = geoAnchors[:2]
	}

	var queries []pub.QuerySpec
	seen := make(map[string]bool)

	appendQuery := func(name, query string) {
		if seen[query] {
			return
		}
		seen[query] = true
		queries = append(queries, pub.QuerySpec{
			Source:       DiscoverySource,
			Name:         name,
			Query:        query,
			LanguageHint: "ru",
			Tags:         []string{"backfill_ru", regionKey},
			MaxResults:   queryMaxResults,
		})
	}

	display := formatName(regionKey)

	for _, resort := range profile.ResortAnchors {
		appendQuery(
			fmt.Sprintf("%s %s chemistry", display, resort),
			anchoredQuery(resort, geoAnchors, chemMarker),
		)
	}

	for _, resort := range profile.ResortAnchors {
		appendQuery(
			fmt.Sprintf("%s %s wells", display, resort),
			anchoredQuery(resort, geoAnchors, sourceObjMarker),
		)
	}

	switch {
	case len(geoAnchors) >= 2:
		appendQuery(
			fmt.Sprintf("%s chemistry + clinical", display),
			fmt.Sprintf(`("%s" OR "%s") AND %s AND %s`, geoAnchors[0], geoAnchors[1], chemMarker, clinMarker),
		)
	case len(geoAnchors) == 1:
		appendQuery(
			fmt.Sprintf("%s chemistry + clinical", display),
			fmt.Sprintf(`"%s" AND %s AND %s`, geoAnchors[0], chemMarker, clinMarker),
		)
	default:
		appendQuery(
			fmt.Sprintf("%s chemistry + clinical", display),
			fmt.Sprintf(`"%s" AND %s AND %s`, topicName, chemMarker, clinMarker),
		)
	}

	if len(geoAnchors) >= 1 {
		appendQuery(
			fmt.Sprintf("%s chemistry", display),
			fmt.Sprintf(`"%s" AND %s`, geoAnchors[0], chemMarker),
		)
		appendQuery(
			fmt.Sprintf("%s documents", display),
			fmt.Sprintf(`"%s" AND %s AND %s`, geoAnchors[0], docMarker, sourceObjMarker),
		)
		appendQuery(
			fmt.Sprintf("%s documents only", display),
			fmt.Sprintf(`"%s" AND %s`, geoAnchors[0], docMarker),
		)
	}

	if len(queries) > maxGeneratedQueries {
		queries = queries[:maxGeneratedQueries]
	}
	return queries
}

func anchoredQuery(resort string, geoAnchors []string, marker string) string {
	if len(geoAnchors) > 0 {
		return fmt.Sprintf(`("%s" OR "%s") AND %s`, resort, geoAnchors[0], marker)
	}
	return fmt.Sprintf(`"%s" AND %s`, resort, marker)
}

func formatName(regionKey string) string {
	if name, ok := displayNames[regionKey]; ok {
		return name
	}
	return strings.ToUpper(regionKey)
}
