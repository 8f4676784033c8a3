package catalog

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"relay/internal/relay"
	"relay/internal/relay/tracing"
)

// TracedCatalog wraps a relay.Catalog with distributed tracing.
// Layer order: TracedCatalog -> MetricsCatalog -> Cloudinary (real thing)
type TracedCatalog struct {
	catalog relay.Catalog
	tracer  *tracing.Tracer
}

// NewTracedCatalog creates a traced catalog wrapping an instrumented one.
func NewTracedCatalog(catalog relay.Catalog, tracer *tracing.Tracer) relay.Catalog {
	return &TracedCatalog{
		catalog: catalog,
		tracer:  tracer,
	}
}

// ListRecent implements relay.Catalog.ListRecent with distributed tracing.
func (c *TracedCatalog) ListRecent(ctx context.Context, prefix string, max int) ([]relay.CatalogImage, error) {
	ctx, span := c.tracer.StartSpan(ctx, "catalog.list_recent")
	defer span.End()

	span.SetAttributes(c.tracer.CatalogAttributes(prefix, max)...)

	images, err := c.catalog.ListRecent(ctx, prefix, max)

	if err != nil {
		c.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(c.tracer.ErrorAttributes(err)...)

	return images, err
}
