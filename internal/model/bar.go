package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the layout used for the index column of persisted tables.
const TimestampLayout = "2006-01-02 15:04:05"

// timestampLayouts are accepted when reading timestamps back, most specific first.
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// Bar represents one OHLCV observation at a single timestamp
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ParseTimestamp parses a timestamp in any of the accepted layouts.
// Zone-less values are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp formats ts the way it is written to the index column.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}
