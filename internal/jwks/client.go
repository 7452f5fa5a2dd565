// Package jwks fetches the JSON Web Key sets Benchling publishes per app.
package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
)

// HTTPClient is the subset of *http.Client the key client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches per-app key sets. It performs no caching and no retries;
// every AppKeys call is exactly one HTTP request, bounded only by the
// injected HTTP client's timeout and the caller's context.
type Client struct {
	baseURL string
	http    HTTPClient
	logger  logging.Logger
}

// NewClient creates a key client for the given API base URL, for example
// "https://tenant.benchling.com". A nil httpClient falls back to
// http.DefaultClient.
func NewClient(baseURL string, httpClient HTTPClient, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// StatusError is returned when the key set endpoint answers outside 2xx.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("key set request to %s returned status %d", e.URL, e.StatusCode)
}

type document struct {
	Keys []JWK `json:"keys"`
}

// AppKeys fetches the key set registered for the app. A response without
// at least one key is an error.
func (c *Client) AppKeys(ctx context.Context, appID string) ([]JWK, error) {
	url := fmt.Sprintf("%s/api/v1/apps/%s/jwks", c.baseURL, appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching key set: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading key set response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding key set: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, fmt.Errorf("key set for app %s is empty", appID)
	}

	c.logger.Debug("Fetched app key set",
		logging.Field{Key: "app_id", Value: appID},
		logging.Field{Key: "keys", Value: len(doc.Keys)})

	return doc.Keys, nil
}
