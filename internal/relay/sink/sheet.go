// Package sink provides the external durable-log backends the forwarder
// appends servo records to.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"relay/internal/relay"
	"relay/internal/validator"
)

// Sheet appends records to a spreadsheet-backed log behind a single
// webhook-style write endpoint. The endpoint accepts arbitrary
// structured rows as JSON; anything other than a 2xx is a failure.
type Sheet struct {
	url    string
	client *http.Client
}

// NewSheet creates a sheet sink writing to the given endpoint URL.
func NewSheet(url string, timeout time.Duration) (*Sheet, error) {
	s := Sheet{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}

	if err := validator.Validate("sheet-sink", s.url, timeout); err != nil {
		return nil, fmt.Errorf("failed to validate sheet sink deps: %w", err)
	}

	return &s, nil
}

// Name implements relay.Sink.
func (s *Sheet) Name() string { return "sheet" }

// Append implements relay.Sink. It posts the record as one JSON row.
func (s *Sheet) Append(ctx context.Context, record relay.ServoRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post record: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("log endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
