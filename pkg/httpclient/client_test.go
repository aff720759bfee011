package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryingClient(maxRetries int) *Client {
	return New(Config{
		Timeout:         5 * time.Second,
		MaxRetries:      maxRetries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 10,
	})
}

func do(ctx context.Context, c *Client, method, url, body string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Do(ctx, req)
}

// countingServer answers with statuses in order, repeating the last one.
func countingServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		if n > len(statuses) {
			n = len(statuses)
		}
		w.WriteHeader(statuses[n-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 50, cfg.MaxConnsPerHost)
}

func TestDo_PassesBodyAndResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"customer_name":"Amy"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":7}`))
	}))
	defer server.Close()

	resp, err := do(context.Background(), retryingClient(0), http.MethodPost, server.URL, `{"customer_name":"Amy"}`)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"order_id":7}`, string(body))
}

func TestDo_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		statuses  []int
		wantCode  int
		wantTries int32
	}{
		{"get recovers after 5xx", http.MethodGet, []int{503, 502, 200}, 200, 3},
		{"get gives up after retries", http.MethodGet, []int{503}, 503, 4},
		{"get does not retry 501", http.MethodGet, []int{501}, 501, 1},
		{"get does not retry 4xx", http.MethodGet, []int{404}, 404, 1},
		{"post never retried", http.MethodPost, []int{502, 200}, 502, 1},
		{"patch never retried", http.MethodPatch, []int{503, 204}, 503, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, hits := countingServer(t, tt.statuses...)

			resp, err := do(context.Background(), retryingClient(3), tt.method, server.URL, "")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantTries, hits.Load())
		})
	}
}

func TestDo_ContextEndsRetries(t *testing.T) {
	server, hits := countingServer(t, http.StatusServiceUnavailable)
	client := New(Config{
		Timeout:         5 * time.Second,
		MaxRetries:      10,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    500 * time.Millisecond,
		MaxConnsPerHost: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := do(ctx, client, http.MethodGet, server.URL, "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, hits.Load(), int32(3))
}

func TestDo_TransportErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := do(context.Background(), retryingClient(1), http.MethodGet, url, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestBackoff(t *testing.T) {
	c := New(Config{RetryWaitMin: 100 * time.Millisecond, RetryWaitMax: 300 * time.Millisecond})
	for attempt, base := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 300 * time.Millisecond, 9: 300 * time.Millisecond} {
		d := c.backoff(attempt)
		assert.GreaterOrEqual(t, d, base*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, d, base*5/4, "attempt %d", attempt)
	}
}

func TestIsIdempotent(t *testing.T) {
	assert.True(t, isIdempotent(http.MethodGet))
	assert.True(t, isIdempotent(http.MethodHead))
	assert.False(t, isIdempotent(http.MethodPost))
	assert.False(t, isIdempotent(http.MethodPatch))
	assert.False(t, isIdempotent(http.MethodDelete))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	// context.DeadlineExceeded satisfies net.Error.
	assert.True(t, isRetryableError(context.DeadlineExceeded))
}

func TestAddJitter(t *testing.T) {
	const base = time.Second
	lo, hi := base, base
	for i := 0; i < 200; i++ {
		d := addJitter(base)
		assert.GreaterOrEqual(t, d, base*3/4)
		assert.LessOrEqual(t, d, base*5/4)
		lo, hi = min(lo, d), max(hi, d)
	}
	assert.Greater(t, hi-lo, 50*time.Millisecond)
	assert.Zero(t, addJitter(0))
}
