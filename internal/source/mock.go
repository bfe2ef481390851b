package source

import (
	"context"
	_ "embed"
	"fmt"
	"os"
)

//go:embed mock_response.json
var builtinMockResponse []byte

// MockSource returns the same payload for every request.
type MockSource struct {
	body []byte
}

// NewMockSource creates a MockSource serving the built-in sample payload.
func NewMockSource() *MockSource {
	return &MockSource{body: builtinMockResponse}
}

// NewMockSourceFromFile creates a MockSource serving the JSON payload stored at path.
func NewMockSourceFromFile(path string) (*MockSource, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock payload: %w", err)
	}
	if _, err := DecodePayload(body); err != nil {
		return nil, fmt.Errorf("invalid mock payload %s: %w", path, err)
	}
	return &MockSource{body: body}, nil
}

// NewMockSourceFromBytes creates a MockSource serving body.
func NewMockSourceFromBytes(body []byte) *MockSource {
	return &MockSource{body: body}
}

// Name returns the source name
func (s *MockSource) Name() string { return "mock" }

// Fetch ignores url and decodes a fresh copy of the stored payload.
func (s *MockSource) Fetch(ctx context.Context, url string) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := DecodePayload(s.body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mock payload: %w", err)
	}
	return payload, nil
}
