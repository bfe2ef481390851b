package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Fetch_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_INTRADAY", r.URL.Query().Get("function"))
		assert.Equal(t, "2010-01", r.URL.Query().Get("month"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"Meta Data": {"2. Symbol": "SPY"},
			"Time Series (1min)": {
				"2010-01-04 09:31:00": {"1. open": "113.31", "2. high": "113.33", "3. low": "113.23", "4. close": "113.29", "5. volume": "981654"}
			}
		}`))
	}))
	defer server.Close()

	src := NewHTTPSource(5 * time.Second)
	payload, err := src.Fetch(context.Background(), server.URL+"/query?function=TIME_SERIES_INTRADAY&month=2010-01")
	require.NoError(t, err)

	assert.Contains(t, payload, "Meta Data")
	assert.Contains(t, payload, "Time Series (1min)")
	assert.Equal(t, "http", src.Name())
}

func TestHTTPSource_Fetch_HTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
	}{
		{"bad request", http.StatusBadRequest},
		{"unauthorized", http.StatusUnauthorized},
		{"too many requests", http.StatusTooManyRequests},
		{"internal server error", http.StatusInternalServerError},
		{"service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("upstream says no"))
			}))
			defer server.Close()

			_, err := NewHTTPSource(5*time.Second).Fetch(context.Background(), server.URL)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "status")
			assert.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestHTTPSource_Fetch_InvalidJSON(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"garbage": `{invalid json`,
		"array":   `[1, 2, 3]`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := NewHTTPSource(5*time.Second).Fetch(context.Background(), server.URL)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "decode")
		})
	}
}

func TestHTTPSource_Fetch_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewHTTPSource(5*time.Second).Fetch(ctx, server.URL)
	assert.Error(t, err)
}
