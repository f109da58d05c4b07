package polling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const syncPath = "/api/v1/notifications/sync"

// RateLimitError carries the server's Retry-After hint. It unwraps to
// ErrRateLimited so callers can match with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("sync rate limited by server, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// HTTPSource fetches the feed over the service's REST API.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source for the given service base URL. The token is
// sent as a bearer credential on every request.
func NewHTTPSource(baseURL, token string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

// syncResponse matches the server's success envelope.
type syncResponse struct {
	Data Feed `json:"data"`
}

// Fetch performs one sync request.
func (s *HTTPSource) Fetch(ctx context.Context) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+syncPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("sync request: unexpected status %d", resp.StatusCode)
	}

	var body syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}

	return &body.Data, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
