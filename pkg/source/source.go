// Package source contains the clients that fetch candidate publications
// from external discovery sites and feeds.
package source

import (
	"context"

	"github.com/geotherm/geopress/pkg/pub"
)

// FetchResult is the tagged outcome of a provider fetch. NotSupported
// means the provider cannot serve this query shape; the caller treats it
// as zero results plus a warning, not a failure. Transport and parse
// problems surface as ordinary errors.
type FetchResult struct {
	Pubs         []pub.Publication
	NotSupported bool
}

// Provider is the interface every publications client implements.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, spec pub.QuerySpec) (FetchResult, error)
}
