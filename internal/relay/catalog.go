package relay

import (
	"context"
	"errors"
)

// ErrCatalogUnavailable reports that the external media catalog could not
// be queried. Callers surface it as a server error instead of returning a
// partial or empty listing silently.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// CatalogImage is one entry from the external media catalog.
type CatalogImage struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// Catalog is a read-through query adapter over the external media store.
// It performs no caching and has no coupling to the event path.
type Catalog interface {
	// ListRecent returns up to max images whose upload path starts with
	// prefix, most recent first.
	ListRecent(ctx context.Context, prefix string, max int) ([]CatalogImage, error)
}
