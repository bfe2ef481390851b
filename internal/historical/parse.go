package historical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sabarim/intraday/internal/model"
	"github.com/sabarim/intraday/internal/source"
)

// Provider field names inside each time series entry
const (
	fieldOpen   = "1. open"
	fieldHigh   = "2. high"
	fieldLow    = "3. low"
	fieldClose  = "4. close"
	fieldVolume = "5. volume"
)

// providerMessageKeys carry the provider's explanation when no data is returned
var providerMessageKeys = []string{"Error Message", "Note", "Information"}

// RawRecord is one time series entry before type coercion
type RawRecord struct {
	Timestamp string
	Fields    map[string]string
}

// flexText accepts a JSON string or number and keeps its text.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexText(n.String())
	return nil
}

// ParsePayload converts a provider payload into a Table sorted by timestamp.
func ParsePayload(p source.Payload) (model.Table, error) {
	key, ok := timeSeriesKey(p)
	if !ok {
		return model.Table{}, &ParseError{Kind: ErrMissingKey, Detail: providerMessage(p)}
	}

	records, err := DecodeRecords(key, p[key])
	if err != nil {
		return model.Table{}, err
	}

	bars := make([]model.Bar, 0, len(records))
	for _, rec := range records {
		b, err := recordToBar(rec)
		if err != nil {
			return model.Table{}, err
		}
		bars = append(bars, b)
	}
	return model.NewTable(bars), nil
}

// timeSeriesKey returns the first key, in sorted order, naming a time series block.
func timeSeriesKey(p source.Payload) (string, bool) {
	keys := make([]string, 0, len(p))
	for k := range p {
		if strings.Contains(k, source.TimeSeriesMarker) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

func providerMessage(p source.Payload) string {
	for _, k := range providerMessageKeys {
		raw, ok := p[k]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			return msg
		}
		return string(raw)
	}
	return ""
}

// DecodeRecords decodes the block stored under key into records ordered by timestamp.
func DecodeRecords(key string, block json.RawMessage) ([]RawRecord, error) {
	var entries map[string]map[string]flexText
	if err := json.Unmarshal(block, &entries); err != nil {
		return nil, &ParseError{Kind: ErrMalformedBlock, Key: key, Err: err}
	}

	records := make([]RawRecord, 0, len(entries))
	for ts, fields := range entries {
		rec := RawRecord{Timestamp: ts, Fields: make(map[string]string, len(fields))}
		for name, v := range fields {
			rec.Fields[name] = string(v)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return records, nil
}

func recordToBar(rec RawRecord) (model.Bar, error) {
	ts, err := model.ParseTimestamp(rec.Timestamp)
	if err != nil {
		return model.Bar{}, &ParseError{Kind: ErrBadTimestamp, Key: rec.Timestamp, Value: rec.Timestamp, Err: err}
	}

	b := model.Bar{Timestamp: ts}
	prices := []struct {
		name string
		dst  *float64
	}{
		{fieldOpen, &b.Open},
		{fieldHigh, &b.High},
		{fieldLow, &b.Low},
		{fieldClose, &b.Close},
	}
	for _, p := range prices {
		v, err := floatField(rec, p.name)
		if err != nil {
			return model.Bar{}, err
		}
		*p.dst = v
	}

	b.Volume, err = volumeField(rec)
	if err != nil {
		return model.Bar{}, err
	}
	return b, nil
}

func rawField(rec RawRecord, name string) (string, error) {
	v, ok := rec.Fields[name]
	if !ok {
		return "", &ParseError{Kind: ErrMissingField, Key: rec.Timestamp, Field: name}
	}
	return strings.TrimSpace(v), nil
}

func floatField(rec RawRecord, name string) (float64, error) {
	s, err := rawField(rec, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("not a finite number")
	}
	if err != nil {
		return 0, &ParseError{Kind: ErrBadNumber, Key: rec.Timestamp, Field: name, Value: s, Err: err}
	}
	return v, nil
}

// volumeField accepts integers and float text with no fractional part ("1200.0").
func volumeField(rec RawRecord) (int64, error) {
	s, err := rawField(rec, fieldVolume)
	if err != nil {
		return 0, err
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err == nil && (f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64) {
		err = fmt.Errorf("not an integer")
	}
	if err != nil {
		return 0, &ParseError{Kind: ErrBadNumber, Key: rec.Timestamp, Field: fieldVolume, Value: s, Err: err}
	}
	return int64(f), nil
}
