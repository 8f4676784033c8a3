package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"relay/internal/couchbase"
	"relay/internal/relay"
	"relay/internal/validator"
)

// Couchbase appends servo records as immutable documents in a Couchbase
// collection, as an alternative durable-log backend to the sheet
// webhook. Records are insert-only; nothing in the relay reads them
// back.
type Couchbase struct {
	store *couchbase.Couchbase[relay.ServoRecord]
}

// NewCouchbase creates a couchbase sink over the given store.
func NewCouchbase(store *couchbase.Couchbase[relay.ServoRecord]) (*Couchbase, error) {
	c := Couchbase{store: store}

	if err := validator.Validate("couchbase-sink", c.store); err != nil {
		return nil, fmt.Errorf("failed to validate couchbase sink deps: %w", err)
	}

	return &c, nil
}

// Name implements relay.Sink.
func (c *Couchbase) Name() string { return "couchbase" }

// Append implements relay.Sink.
func (c *Couchbase) Append(ctx context.Context, record relay.ServoRecord) error {
	key := RecordKey(uuid.NewString())
	if err := c.store.Insert(ctx, key, record, nil); err != nil {
		return fmt.Errorf("failed to insert servo record: %w", err)
	}

	return nil
}

// RecordKey builds the document key for one mirrored servo record.
func RecordKey(id string) string {
	return fmt.Sprintf("servo::%s", id)
}
