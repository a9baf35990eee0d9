// Package api is the REST client for the synchronization endpoints. The
// realtime websocket session lives in internal/client/realtime; this client
// covers snapshots and mutations.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/internhub/internhub/pkg/api"
)

// Client is the HTTP client for the sync server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates an API client. token is the bearer credential issued by
// the identity service.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitialSync fetches the full visible snapshot.
func (c *Client) InitialSync(ctx context.Context) (*api.InitialSnapshot, error) {
	var resp api.InitialSnapshot
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync/initial", nil, &resp); err != nil {
		return nil, fmt.Errorf("initial sync request failed: %w", err)
	}
	return &resp, nil
}

// IncrementalSync fetches entities of entityType changed strictly after
// since. The response may carry Resync=true, in which case the caller must
// discard its cursor and fall back to InitialSync.
func (c *Client) IncrementalSync(ctx context.Context, entityType string, since time.Time) (*api.IncrementalSnapshot, error) {
	query := url.Values{"entity_type": {entityType}}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var resp api.IncrementalSnapshot
	path := "/api/v1/sync/incremental?" + query.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("incremental sync request failed: %w", err)
	}
	return &resp, nil
}

// Mutate submits a mutation. Rejections come back as *api.MutationError so
// callers can distinguish a final rejection (rollback, drop from the queue)
// from a transient failure (retry).
func (c *Client) Mutate(ctx context.Context, req api.MutationRequest) (*api.MutationResponse, error) {
	var resp api.MutationResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/mutations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doRequest performs an HTTP request with the bearer token attached.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var mutErr api.MutationError
		if err := json.Unmarshal(respBody, &mutErr); err == nil && mutErr.Code != "" {
			return &mutErr
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
