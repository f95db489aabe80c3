package region

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildBackfillQueriesKMV(t *testing.T) {
	t.Parallel()

	b := NewQueryBuilder()
	specs := b.BuildBackfillQueries("kmv", "КМВ")

	if len(specs) != 14 {
		t.Fatalf("got %d queries, want 14", len(specs))
	}

	for i, spec := range specs {
		if spec.Source != DiscoverySource {
			t.Errorf("spec %d source = %q", i, spec.Source)
		}
		if spec.LanguageHint != "ru" {
			t.Errorf("spec %d language hint = %q", i, spec.LanguageHint)
		}
		if !reflect.DeepEqual(spec.Tags, []string{"backfill_ru", "kmv"}) {
			t.Errorf("spec %d tags = %v", i, spec.Tags)
		}
		if spec.MaxResults != 20 {
			t.Errorf("spec %d max results = %d", i, spec.MaxResults)
		}
	}

	// Resort chemistry queries come first and carry the first geo anchor.
	if !strings.Contains(specs[0].Query, "Ессентуки") {
		t.Fatalf("first query = %q", specs[0].Query)
	}
	if !strings.Contains(specs[0].Query, "Кавказские Минеральные Воды") {
		t.Fatalf("first query missing geo anchor: %q", specs[0].Query)
	}
}

func TestBuildBackfillQueriesDeduped(t *testing.T) {
	t.Parallel()

	b := NewQueryBuilder()
	specs := b.BuildBackfillQueries("altai", "Алтай")

	seen := make(map[string]bool)
	for _, spec := range specs {
		if seen[spec.Query] {
			t.Fatalf("duplicate query: %q", spec.Query)
		}
		seen[spec.Query] = true
	}
}

func TestBuildBackfillQueriesDeterministic(t *testing.T) {
	t.Parallel()

	b := NewQueryBuilder()
	first := b.BuildBackfillQueries("turkey", "Турция")
	for i := 0; i < 5; i++ {
		again := b.BuildBackfillQueries("turkey", "Турция")
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestBuildBackfillQueriesUnknownRegion(t *testing.T) {
	t.Parallel()

	b := NewQueryBuilder()
	specs := b.BuildBackfillQueries("kamchatka", "Камчатка")

	if len(specs) == 0 {
		t.Fatal("unknown region must still generate queries")
	}
	for _, spec := range specs {
		if !strings.Contains(spec.Query, "kamchatka") {
			t.Errorf("query missing fallback anchor: %q", spec.Query)
		}
	}
}
