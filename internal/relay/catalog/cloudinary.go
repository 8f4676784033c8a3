// Package catalog implements the read-through adapter over the external
// media catalog. It is a pure query translation: no caching, no coupling
// to the event path, and any upstream failure is surfaced to the caller
// as relay.ErrCatalogUnavailable.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"relay/internal/relay"
	"relay/internal/validator"
)

// Config holds the catalog credentials and query defaults.
type Config struct {
	BaseURL   string        `env:"CLOUDINARY_BASE_URL" envDefault:"https://api.cloudinary.com"`
	CloudName string        `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string        `env:"CLOUDINARY_API_KEY"`
	APISecret string        `env:"CLOUDINARY_API_SECRET"`
	Timeout   time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`
}

// Cloudinary queries a Cloudinary-style admin API for recent uploads.
type Cloudinary struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// listResponse mirrors the admin API resource listing body.
type listResponse struct {
	Resources []struct {
		SecureURL string `json:"secure_url"`
		CreatedAt string `json:"created_at"`
	} `json:"resources"`
}

// NewCloudinary creates a catalog client.
func NewCloudinary(config Config, logger *zap.Logger) (*Cloudinary, error) {
	c := Cloudinary{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.Named("catalog"),
	}

	if err := validator.Validate("catalog",
		config.BaseURL, config.CloudName, config.APIKey, config.APISecret, config.Timeout); err != nil {
		return nil, fmt.Errorf("failed to validate catalog deps: %w", err)
	}

	return &c, nil
}

// ListRecent implements relay.Catalog. It asks the admin API for
// descending upload order and returns the rows as-is, most recent first.
func (c *Cloudinary) ListRecent(ctx context.Context, prefix string, max int) ([]relay.CatalogImage, error) {
	endpoint := fmt.Sprintf("%s/v1_1/%s/resources/image/upload", c.config.BaseURL, c.config.CloudName)

	query := url.Values{}
	query.Set("prefix", prefix)
	query.Set("max_results", strconv.Itoa(max))
	query.Set("direction", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", relay.ErrCatalogUnavailable, err)
	}
	req.SetBasicAuth(c.config.APIKey, c.config.APISecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relay.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: admin API returned status %d", relay.ErrCatalogUnavailable, resp.StatusCode)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode listing: %v", relay.ErrCatalogUnavailable, err)
	}

	images := make([]relay.CatalogImage, 0, len(body.Resources))
	for _, res := range body.Resources {
		images = append(images, relay.CatalogImage{
			URL:       res.SecureURL,
			Timestamp: res.CreatedAt,
		})
	}

	c.logger.Debug("catalog listed", zap.String("prefix", prefix), zap.Int("count", len(images)))

	return images, nil
}
