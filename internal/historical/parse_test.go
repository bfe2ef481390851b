package historical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabarim/intraday/internal/source"
)

func payload(t *testing.T, body string) source.Payload {
	t.Helper()
	p, err := source.DecodePayload([]byte(body))
	require.NoError(t, err)
	return p
}

func TestParsePayload_MapsFieldsAndSorts(t *testing.T) {
	p := payload(t, `{
		"Meta Data": {"2. Symbol": "SPY"},
		"Time Series (1min)": {
			"2010-01-04 09:32:00": {"1. open": "113.29", "2. high": "113.35", "3. low": "113.26", "4. close": "113.33", "5. volume": "720408"},
			"2010-01-04 09:30:00": {"1. open": "113.26", "2. high": "113.31", "3. low": "113.20", "4. close": "113.30", "5. volume": "1239512"},
			"2010-01-04 09:31:00": {"1. open": 113.31, "2. high": 113.33, "3. low": 113.23, "4. close": 113.29, "5. volume": 981654}
		}
	}`)

	table, err := ParsePayload(p)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	first := table.At(0)
	assert.Equal(t, time.Date(2010, 1, 4, 9, 30, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, 113.26, first.Open)
	assert.Equal(t, 113.31, first.High)
	assert.Equal(t, 113.20, first.Low)
	assert.Equal(t, 113.30, first.Close)
	assert.Equal(t, int64(1239512), first.Volume)

	assert.Equal(t, 113.29, table.At(1).Close)
	assert.Equal(t, int64(981654), table.At(1).Volume)
	assert.Equal(t, time.Date(2010, 1, 4, 9, 32, 0, 0, time.UTC), table.At(2).Timestamp)
}

func TestParsePayload_EmptyBlock(t *testing.T) {
	table, err := ParsePayload(payload(t, `{"Time Series (5min)": {}}`))
	require.NoError(t, err)
	assert.True(t, table.Empty())
}

func TestParsePayload_MissingKey(t *testing.T) {
	p := payload(t, `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`)

	_, err := ParsePayload(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid API call. Please retry or visit the documentation.", perr.Detail)
	assert.Contains(t, err.Error(), "Invalid API call")
}

func TestParsePayload_MissingKeyWithoutMessage(t *testing.T) {
	_, err := ParsePayload(payload(t, `{}`))
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestParsePayload_Failures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		kind      error
		wantField string
	}{
		{
			name: "block is not an object",
			body: `{"Time Series (1min)": ["a", "b"]}`,
			kind: ErrMalformedBlock,
		},
		{
			name: "entry is not an object",
			body: `{"Time Series (1min)": {"2010-01-04 09:30:00": "113.3"}}`,
			kind: ErrMalformedBlock,
		},
		{
			name:      "missing close",
			body:      `{"Time Series (1min)": {"2010-01-04 09:30:00": {"1. open": "1", "2. high": "2", "3. low": "0.5", "5. volume": "10"}}}`,
			kind:      ErrMissingField,
			wantField: "4. close",
		},
		{
			name:      "missing volume",
			body:      `{"Time Series (1min)": {"2010-01-04 09:30:00": {"1. open": "1", "2. high": "2", "3. low": "0.5", "4. close": "1.5"}}}`,
			kind:      ErrMissingField,
			wantField: "5. volume",
		},
		{
			name:      "price is not a number",
			body:      `{"Time Series (1min)": {"2010-01-04 09:30:00": {"1. open": "abc", "2. high": "2", "3. low": "0.5", "4. close": "1.5", "5. volume": "10"}}}`,
			kind:      ErrBadNumber,
			wantField: "1. open",
		},
		{
			name:      "fractional volume",
			body:      `{"Time Series (1min)": {"2010-01-04 09:30:00": {"1. open": "1", "2. high": "2", "3. low": "0.5", "4. close": "1.5", "5. volume": "10.5"}}}`,
			kind:      ErrBadNumber,
			wantField: "5. volume",
		},
		{
			name: "bad timestamp",
			body: `{"Time Series (1min)": {"yesterday": {"1. open": "1", "2. high": "2", "3. low": "0.5", "4. close": "1.5", "5. volume": "10"}}}`,
			kind: ErrBadTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload(payload(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantField, perr.Field)
		})
	}
}

func TestParsePayload_VolumeWithZeroFraction(t *testing.T) {
	p := payload(t, `{"Time Series (1min)": {"2010-01-04 09:30:00": {"1. open": "1", "2. high": "2", "3. low": "0.5", "4. close": "1.5", "5. volume": "1200.0"}}}`)

	table, err := ParsePayload(p)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, int64(1200), table.At(0).Volume)
}

func TestParsePayload_BuiltinMock(t *testing.T) {
	p, err := source.NewMockSource().Fetch(context.Background(), "")
	require.NoError(t, err)

	table, err := ParsePayload(p)
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())
}

func TestDecodeRecords_Ordered(t *testing.T) {
	records, err := DecodeRecords("Time Series (1min)", []byte(`{
		"2010-01-04 09:31:00": {"4. close": "2"},
		"2010-01-04 09:30:00": {"4. close": 1}
	}`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2010-01-04 09:30:00", records[0].Timestamp)
	assert.Equal(t, "1", records[0].Fields["4. close"])
	assert.Equal(t, "2", records[1].Fields["4. close"])
}
