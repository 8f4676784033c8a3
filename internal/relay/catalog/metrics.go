package catalog

import (
	"context"
	"time"

	"relay/internal/relay"
	"relay/internal/relay/metrics"
)

// MetricsCatalog wraps a relay.Catalog with metrics collection.
type MetricsCatalog struct {
	catalog  relay.Catalog
	registry *metrics.Registry
}

// NewMetricsCatalog creates a new instrumented catalog.
func NewMetricsCatalog(catalog relay.Catalog, registry *metrics.Registry) relay.Catalog {
	return &MetricsCatalog{
		catalog:  catalog,
		registry: registry,
	}
}

// ListRecent implements relay.Catalog.ListRecent with metrics collection.
func (c *MetricsCatalog) ListRecent(ctx context.Context, prefix string, max int) ([]relay.CatalogImage, error) {
	start := time.Now()

	images, err := c.catalog.ListRecent(ctx, prefix, max)
	duration := time.Since(start)

	c.registry.RecordCatalogRequest(duration, err)

	return images, err
}
