package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/geotherm/geopress/pkg/pub"
)

const europePMCBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMC queries the Europe PMC REST search API. The backfill query
// language is Russian boolean syntax Europe PMC does not index, so
// Russian-hinted query specs come back as NotSupported and the refresh
// cycle treats them as empty.
type EuropePMC struct {
	client  *http.Client
	baseURL string
}

// NewEuropePMC creates the provider. An empty baseURL uses the public
// API endpoint.
func NewEuropePMC(baseURL string) *EuropePMC {
	if baseURL == "" {
		baseURL = europePMCBaseURL
	}
	return &EuropePMC{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (e *EuropePMC) Name() string { return "europepmc" }

type epmcResponse struct {
	ResultList struct {
		Result []epmcResult `json:"result"`
	} `json:"resultList"`
}

type epmcResult struct {
	PMID                 string `json:"pmid"`
	PMCID                string `json:"pmcid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AbstractText         string `json:"abstractText"`
	AuthorString         string `json:"authorString"`
	JournalTitle         string `json:"journalTitle"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	PubYear              string `json:"pubYear"`
	PubTypeList          struct {
		PubType []string `json:"pubType"`
	} `json:"pubTypeList"`
	KeywordList struct {
		Keyword []string `json:"keyword"`
	} `json:"keywordList"`
}

func (e *EuropePMC) Fetch(ctx context.Context, spec pub.QuerySpec) (FetchResult, error) {
	if spec.LanguageHint == "ru" {
		return FetchResult{NotSupported: true}, nil
	}

	pageSize := spec.MaxResults
	if pageSize <= 0 {
		pageSize = 25
	}

	searchURL := fmt.Sprintf("%s/search?query=%s&format=json&pageSize=%d",
		e.baseURL, url.QueryEscape(spec.Query), pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("create europepmc request: %w", err)
	}
	req.Header.Set("User-Agent", "geopress/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch europepmc: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("europepmc status %d", resp.StatusCode)
	}

	var parsed epmcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return FetchResult{}, fmt.Errorf("decode europepmc response: %w", err)
	}

	pubs := make([]pub.Publication, 0, len(parsed.ResultList.Result))
	for _, r := range parsed.ResultList.Result {
		pubs = append(pubs, r.toPublication())
	}
	return FetchResult{Pubs: pubs}, nil
}

func (r epmcResult) toPublication() pub.Publication {
	id := r.PMID
	if id == "" {
		id = r.PMCID
	}
	if id == "" {
		id = r.DOI
	}

	pageURL := ""
	switch {
	case r.DOI != "":
		pageURL = "https://doi.org/" + r.DOI
	case r.PMID != "":
		pageURL = "https://europepmc.org/article/MED/" + r.PMID
	case r.PMCID != "":
		pageURL = "https://europepmc.org/article/PMC/" + r.PMCID
	}

	publishedAt := r.FirstPublicationDate
	year := 0
	if len(publishedAt) >= 4 {
		year, _ = strconv.Atoi(publishedAt[:4])
	}
	if year == 0 && r.PubYear != "" {
		year, _ = strconv.Atoi(r.PubYear)
		if publishedAt == "" && year > 0 {
			publishedAt = r.PubYear
		}
	}

	var authors []string
	for _, a := range strings.Split(r.AuthorString, ";") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}

	return pub.Publication{
		ID:          id,
		Source:      "europepmc",
		Title:       r.Title,
		Abstract:    r.AbstractText,
		URL:         pageURL,
		Year:        year,
		PublishedAt: publishedAt,
		Authors:     authors,
		Journal:     r.JournalTitle,
		Keywords:    r.KeywordList.Keyword,
		PubTypes:    r.PubTypeList.PubType,
	}
}
