package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/geotherm/geopress/pkg/pub"
)

const cyberleninkaBaseURL = "https://cyberleninka.ru"

// CyberLeninka searches the CyberLeninka open-science library by scraping
// its search result pages.
type CyberLeninka struct {
	client  *http.Client
	baseURL string
}

// NewCyberLeninka creates the provider. An empty baseURL uses the public
// site.
func NewCyberLeninka(baseURL string) *CyberLeninka {
	if baseURL == "" {
		baseURL = cyberleninkaBaseURL
	}
	return &CyberLeninka{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *CyberLeninka) Name() string { return "cyberleninka" }

// Fetch runs one search query and parses the result cards. Every
// publication carries site/query provenance so the refresh cycle can
// derive a stable identity from the query itself.
func (c *CyberLeninka) Fetch(ctx context.Context, spec pub.QuerySpec) (FetchResult, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(spec.Query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", "geopress/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch cyberleninka search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("cyberleninka search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("parse cyberleninka search page: %w", err)
	}

	max := spec.MaxResults
	if max <= 0 {
		max = 20
	}

	var pubs []pub.Publication
	doc.Find("ul.list li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		p, ok := c.parseResult(sel, spec)
		if !ok {
			return true
		}
		pubs = append(pubs, p)
		return len(pubs) < max
	})

	return FetchResult{Pubs: pubs}, nil
}

func (c *CyberLeninka) parseResult(sel *goquery.Selection, spec pub.QuerySpec) (pub.Publication, bool) {
	link := sel.Find("h2.title a").First()
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return pub.Publication{}, false
	}

	href, _ := link.Attr("href")
	pageURL := ""
	if href != "" {
		pageURL = c.baseURL + href
	}

	abstract := strings.TrimSpace(sel.Find("p").First().Text())
	year := parseYear(strings.TrimSpace(sel.Find("span").First().Text()))

	p := pub.Publication{
		ID:       href,
		Source:   "cyberleninka",
		Title:    title,
		Abstract: abstract,
		URL:      pageURL,
		Year:     year,
		Prov: pub.Provenance{
			Site:  "cyberleninka",
			Query: spec.Query,
		},
	}
	if year > 0 {
		p.PublishedAt = strconv.Itoa(year)
	}
	return p, true
}

func parseYear(s string) int {
	for _, field := range strings.Fields(s) {
		if len(field) == 4 {
			if y, err := strconv.Atoi(field); err == nil && y > 1800 && y < 2200 {
				return y
			}
		}
	}
	return 0
}
