package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/geotherm/geopress/pkg/pub"
)

const epmcPayload = `{
  "resultList": {
    "result": [
      {
        "pmid": "12345",
        "doi": "10.1000/thermal.2024",
        "title": "Balneotherapy in knee osteoarthritis",
        "abstractText": "A randomized controlled trial of thermal water.",
        "authorString": "Ivanov A; Petrov B",
        "journalTitle": "Int J Balneology",
        "firstPublicationDate": "2024-02-10",
        "pubYear": "2024",
        "pubTypeList": {"pubType": ["Randomized Controlled Trial", "Journal Article"]},
        "keywordList": {"keyword": ["balneotherapy", "thermal water"]}
      },
      {
        "pmcid": "PMC99999",
        "title": "Hot spring microbiology",
        "pubYear": "2023"
      }
    ]
  }
}`

func TestEuropePMCFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format param = %q", r.URL.Query().Get("format"))
		}
		fmt.Fprint(w, epmcPayload)
	}))
	defer srv.Close()

	e := NewEuropePMC(srv.URL)
	result, err := e.Fetch(context.Background(), pub.QuerySpec{Query: "balneotherapy", MaxResults: 25})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Pubs) != 2 {
		t.Fatalf("got %d pubs", len(result.Pubs))
	}

	p := result.Pubs[0]
	if p.ID != "12345" {
		t.Fatalf("id = %q", p.ID)
	}
	if p.URL != "https://doi.org/10.1000/thermal.2024" {
		t.Fatalf("url = %q", p.URL)
	}
	if p.PublishedAt != "2024-02-10" || p.Year != 2024 {
		t.Fatalf("published = %q, year = %d", p.PublishedAt, p.Year)
	}
	if !reflect.DeepEqual(p.Authors, []string{"Ivanov A", "Petrov B"}) {
		t.Fatalf("authors = %v", p.Authors)
	}
	if !reflect.DeepEqual(p.PubTypes, []string{"Randomized Controlled Trial", "Journal Article"}) {
		t.Fatalf("pub types = %v", p.PubTypes)
	}

	// PMCID fallback for URL and identity.
	q := result.Pubs[1]
	if q.ID != "PMC99999" {
		t.Fatalf("fallback id = %q", q.ID)
	}
	if q.URL != "https://europepmc.org/article/PMC/PMC99999" {
		t.Fatalf("fallback url = %q", q.URL)
	}
	if q.PublishedAt != "2023" || q.Year != 2023 {
		t.Fatalf("fallback published = %q, year = %d", q.PublishedAt, q.Year)
	}
}

func TestEuropePMCRussianQueriesNotSupported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not call the API for Russian queries")
	}))
	defer srv.Close()

	e := NewEuropePMC(srv.URL)
	result, err := e.Fetch(context.Background(), pub.QuerySpec{Query: "нарзан", LanguageHint: "ru"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !result.NotSupported {
		t.Fatal("expected NotSupported")
	}
}
