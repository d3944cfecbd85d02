package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Ensure RESTUpserter implements Upserter
var _ Upserter = (*RESTUpserter)(nil)

const (
	// DefaultRESTTimeout bounds one upsert request
	DefaultRESTTimeout = 15 * time.Second

	// maxErrorBody is how much of a failed response body is kept in the error
	maxErrorBody = 512
)

// RESTUpserter writes batches through a PostgREST-compatible endpoint
// (e.g. Supabase) using merge-duplicates conflict resolution.
type RESTUpserter struct {
	endpoint   string
	serviceKey string
	client     *http.Client
}

// NewRESTUpserter creates an upserter for table under baseURL.
func NewRESTUpserter(baseURL, serviceKey, table string) (*RESTUpserter, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("REST base URL is required")
	}
	if serviceKey == "" {
		return nil, fmt.Errorf("REST service key is required")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	query := url.Values{}
	query.Set("on_conflict", strings.Join(conflictColumns, ","))
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", strings.TrimSuffix(baseURL, "/"), table, query.Encode())

	return &RESTUpserter{
		endpoint:   endpoint,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: DefaultRESTTimeout},
	}, nil
}

// UpsertOdds posts the batch. Non-2xx responses are returned as errors that
// include the status and the head of the body.
func (u *RESTUpserter) UpsertOdds(ctx context.Context, records []OddsRecord) error {
	if len(records) == 0 {
		return nil
	}

	payload, err := json.Marshal(DedupeLatest(records))
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", u.serviceKey)
	req.Header.Set("Authorization", "Bearer "+u.serviceKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Close releases idle connections.
func (u *RESTUpserter) Close() error {
	u.client.CloseIdleConnections()
	return nil
}
