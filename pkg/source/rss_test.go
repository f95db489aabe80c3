package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geotherm/geopress/pkg/pub"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>GeoNews</title>
    <item>
      <title>Новый мониторинг минеральных источников</title>
      <link>https://example.org/monitoring</link>
      <guid>guid-1</guid>
      <description>Обзор результатов мониторинга.</description>
      <pubDate>Mon, 15 Apr 2024 10:00:00 GMT</pubDate>
      <category>гидрогеология</category>
    </item>
    <item>
      <title>Вторая запись</title>
      <link>https://example.org/two</link>
      <guid>guid-2</guid>
      <description>Описание.</description>
    </item>
  </channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	provider := NewRSS([]RSSFeed{{Name: "geonews", URL: srv.URL}})
	result, err := provider.Fetch(context.Background(), pub.QuerySpec{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Pubs) != 2 {
		t.Fatalf("got %d pubs", len(result.Pubs))
	}

	p := result.Pubs[0]
	if p.ID != "guid-1" {
		t.Fatalf("id = %q", p.ID)
	}
	if p.Source != "rss:geonews" {
		t.Fatalf("source = %q", p.Source)
	}
	if p.URL != "https://example.org/monitoring" {
		t.Fatalf("url = %q", p.URL)
	}
	if p.PublishedAt != "2024-04-15 10:00:00" {
		t.Fatalf("published = %q", p.PublishedAt)
	}
	if p.Prov.Site != "" {
		t.Fatalf("feed items must not carry discovery provenance: %+v", p.Prov)
	}

	// Items without a date stay, the freshness gate rejects them later.
	if result.Pubs[1].PublishedAt != "" {
		t.Fatalf("second published = %q", result.Pubs[1].PublishedAt)
	}
}

func TestRSSFetchSkipsBrokenFeeds(t *testing.T) {
	t.Parallel()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	provider := NewRSS([]RSSFeed{
		{Name: "bad", URL: bad.URL},
		{Name: "good", URL: good.URL},
	})
	result, err := provider.Fetch(context.Background(), pub.QuerySpec{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Pubs) != 2 {
		t.Fatalf("got %d pubs, want the good feed only", len(result.Pubs))
	}
}

func TestRSSFetchDeclinesQuerySpecs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("feed provider must not serve query-driven specs")
	}))
	defer srv.Close()

	provider := NewRSS([]RSSFeed{{Name: "geonews", URL: srv.URL}})
	result, err := provider.Fetch(context.Background(), pub.QuerySpec{Query: `"Нарзан" AND дебит`})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !result.NotSupported {
		t.Fatal("expected NotSupported for a query-driven spec")
	}
}

func TestRSSFetchCapsResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	provider := NewRSS([]RSSFeed{{Name: "geonews", URL: srv.URL}})
	result, err := provider.Fetch(context.Background(), pub.QuerySpec{MaxResults: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Pubs) != 1 {
		t.Fatalf("got %d pubs, want 1", len(result.Pubs))
	}
}
