package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSource fetches payloads from the remote quote provider.
type HTTPSource struct {
	client *resty.Client
}

// NewHTTPSource creates an HTTPSource whose requests time out after timeout.
// A zero timeout disables the client-side limit.
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPSource{client: client}
}

// Name returns the source name
func (s *HTTPSource) Name() string { return "http" }

// Fetch performs a GET on url and decodes the JSON body.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (Payload, error) {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	payload, err := DecodePayload(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
