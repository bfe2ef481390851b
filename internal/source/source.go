// Package source provides the data sources that return raw intraday payloads.
package source

import (
	"context"
	"encoding/json"
	"strings"
)

// TimeSeriesMarker is the substring identifying the bar block of a payload.
const TimeSeriesMarker = "Time Series"

// Payload is a decoded response body: top-level keys mapped to their raw JSON values.
type Payload map[string]json.RawMessage

// HasTimeSeries reports whether any top-level key names a time series block.
// Provider errors and rate-limit notices arrive with HTTP 200 and have none.
func (p Payload) HasTimeSeries() bool {
	for k := range p {
		if strings.Contains(k, TimeSeriesMarker) {
			return true
		}
	}
	return false
}

// DataSource fetches one raw payload per request URL.
type DataSource interface {
	Fetch(ctx context.Context, url string) (Payload, error)
	Name() string
}

// DecodePayload decodes a response body into a Payload.
func DecodePayload(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}
