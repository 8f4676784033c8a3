// Package couchbase provides a small typed abstraction over the
// Couchbase Go SDK for the operations the relay's durable-log backend
// needs: insert-only writes plus key reads for operational inspection.
package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// Couchbase is a typed wrapper around one Couchbase collection.
type Couchbase[T any] struct {
	cluster    *gocb.Cluster
	collection *gocb.Collection
}

// New creates a typed wrapper. All parameters are required.
func New[T any](cluster *gocb.Cluster, collection *gocb.Collection) (*Couchbase[T], error) {
	if cluster == nil || collection == nil {
		return nil, errors.New("invalid Couchbase parameters: cluster and collection must not be nil")
	}

	return &Couchbase[T]{
		cluster:    cluster,
		collection: collection,
	}, nil
}

// Insert creates a new document with the given key. The key is expected
// to be unique; an existing document is an error.
func (c *Couchbase[T]) Insert(ctx context.Context, key string, value T, opts *gocb.InsertOptions) error {
	if opts == nil {
		opts = new(gocb.InsertOptions)
	}
	opts.Context = ctx

	_, err := c.collection.Insert(key, value, opts)
	if err != nil {
		return fmt.Errorf("failed to insert document with key %s: %w", key, err)
	}

	return nil
}

// Get retrieves a document by key and unmarshals it into type T.
func (c *Couchbase[T]) Get(ctx context.Context, key string, opts *gocb.GetOptions) (*T, error) {
	if opts == nil {
		opts = new(gocb.GetOptions)
	}
	opts.Context = ctx

	res, err := c.collection.Get(key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, err)
	}

	var v T
	if err := res.Content(&v); err != nil {
		return nil, fmt.Errorf("failed to parse document content for key %s: %w", key, err)
	}

	return &v, nil
}

// Close closes the cluster connection.
func (c *Couchbase[T]) Close() error {
	return c.cluster.Close(nil)
}
