package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"relay/internal/relay"
)

func testClient(t *testing.T, baseURL string) *Cloudinary {
	t.Helper()
	c, err := NewCloudinary(Config{
		BaseURL:   baseURL,
		CloudName: "pond",
		APIKey:    "key",
		APISecret: "secret",
		Timeout:   time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCloudinary: %v", err)
	}
	return c
}

func TestListRecentQueryShape(t *testing.T) {
	var gotPath, gotPrefix, gotMax, gotDirection string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefix = r.URL.Query().Get("prefix")
		gotMax = r.URL.Query().Get("max_results")
		gotDirection = r.URL.Query().Get("direction")
		gotUser, gotPass, _ = r.BasicAuth()
		json.NewEncoder(w).Encode(map[string]any{"resources": []any{}})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.ListRecent(context.Background(), "hama", 10); err != nil {
		t.Fatalf("ListRecent: %v", err)
	}

	if gotPath != "/v1_1/pond/resources/image/upload" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPrefix != "hama" || gotMax != "10" || gotDirection != "desc" {
		t.Errorf("query = prefix:%q max:%q direction:%q", gotPrefix, gotMax, gotDirection)
	}
	if gotUser != "key" || gotPass != "secret" {
		t.Errorf("basic auth = %q:%q", gotUser, gotPass)
	}
}

func TestListRecentPreservesUpstreamOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]string{
				{"secure_url": "https://img/3.jpg", "created_at": "2026-08-29T10:00:00Z"},
				{"secure_url": "https://img/2.jpg", "created_at": "2026-08-29T09:00:00Z"},
				{"secure_url": "https://img/1.jpg", "created_at": "2026-08-29T08:00:00Z"},
			},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	images, err := c.ListRecent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}

	want := []relay.CatalogImage{
		{URL: "https://img/3.jpg", Timestamp: "2026-08-29T10:00:00Z"},
		{URL: "https://img/2.jpg", Timestamp: "2026-08-29T09:00:00Z"},
		{URL: "https://img/1.jpg", Timestamp: "2026-08-29T08:00:00Z"},
	}
	if len(images) != len(want) {
		t.Fatalf("got %d images, want %d", len(images), len(want))
	}
	for i := range want {
		if images[i] != want[i] {
			t.Errorf("image %d = %+v, want %+v", i, images[i], want[i])
		}
	}
}

func TestListRecentUpstreamErrorIsCatalogUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.ListRecent(context.Background(), "", 10); !errors.Is(err, relay.ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestListRecentTransportErrorIsCatalogUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.ListRecent(context.Background(), "", 10); !errors.Is(err, relay.ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestListRecentMalformedBodyIsCatalogUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	if _, err := c.ListRecent(context.Background(), "", 10); !errors.Is(err, relay.ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestNewCloudinaryRequiresCredentials(t *testing.T) {
	_, err := NewCloudinary(Config{
		BaseURL: "https://api.cloudinary.com",
		Timeout: time.Second,
	}, zap.NewNop())
	if err == nil {
		t.Error("NewCloudinary accepted missing credentials")
	}
}
