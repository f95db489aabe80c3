package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/geotherm/geopress/pkg/pub"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS collects publications from configured RSS/Atom feeds. Feeds are
// passive, so query-driven specs come back as NotSupported; only the
// feed-polling specs of RSS-mode topics are served.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []RSSFeed
}

// NewRSS creates a new RSS provider.
func NewRSS(feeds []RSSFeed) *RSS {
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
	}
}

func (r *RSS) Name() string { return "rss" }

func (r *RSS) Fetch(ctx context.Context, spec pub.QuerySpec) (FetchResult, error) {
	if spec.Query != "" {
		return FetchResult{NotSupported: true}, nil
	}

	var all []pub.Publication

	for _, feed := range r.feeds {
		pubs, err := r.fetchFeed(ctx, feed)
		if err != nil {
			// One broken feed must not sink the rest.
			continue
		}
		all = append(all, pubs...)
	}

	max := spec.MaxResults
	if max > 0 && len(all) > max {
		all = all[:max]
	}
	return FetchResult{Pubs: all}, nil
}

func (r *RSS) fetchFeed(ctx context.Context, feed RSSFeed) ([]pub.Publication, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "geopress/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	var pubs []pub.Publication
	for _, entry := range parsed.Items {
		publishedAt := ""
		if entry.PublishedParsed != nil {
			publishedAt = entry.PublishedParsed.UTC().Format("2006-01-02 15:04:05")
		} else if entry.UpdatedParsed != nil {
			publishedAt = entry.UpdatedParsed.UTC().Format("2006-01-02 15:04:05")
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		var authors []string
		if entry.Author != nil && entry.Author.Name != "" {
			authors = append(authors, entry.Author.Name)
		}

		pubs = append(pubs, pub.Publication{
			ID:          entry.GUID,
			Source:      "rss:" + feed.Name,
			Title:       entry.Title,
			Abstract:    entry.Description,
			URL:         link,
			PublishedAt: publishedAt,
			Authors:     authors,
			Keywords:    entry.Categories,
		})
	}

	return pubs, nil
}
