package clients

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		want       bool
	}{
		{"throttled", http.StatusTooManyRequests, nil, true},
		{"request timeout", http.StatusRequestTimeout, nil, true},
		{"bad gateway", http.StatusBadGateway, nil, true},
		{"origin down", http.StatusServiceUnavailable, nil, true},
		{"image missing", http.StatusNotFound, nil, false},
		{"image removed", http.StatusGone, nil, false},
		{"hotlink forbidden", http.StatusForbidden, nil, false},
		{"not implemented", http.StatusNotImplemented, nil, false},
		{"connection reset", 0, errors.New("read: connection reset by peer"), true},
		{"unknown host", 0, &net.DNSError{Err: "no such host", Name: "cdn.invalid", IsNotFound: true}, false},
		{"dns timeout", 0, &net.DNSError{Err: "i/o timeout", Name: "cdn.example.com", IsTimeout: true}, true},
		{"untrusted certificate", 0, fmt.Errorf("get: %w", x509.UnknownAuthorityError{}), false},
		{"cancelled", 0, context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.statusCode, tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	r := NewRetrier(&RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second})

	tests := []struct {
		name       string
		attempt    int
		retryAfter time.Duration
		low, high  time.Duration
	}{
		{"first retry", 0, 0, 50 * time.Millisecond, 100 * time.Millisecond},
		{"third retry", 2, 0, 200 * time.Millisecond, 400 * time.Millisecond},
		{"capped", 10, 0, 500 * time.Millisecond, time.Second},
		{"huge attempt", 200, 0, 500 * time.Millisecond, time.Second},
		{"retry after honored", 0, 300 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond},
		{"retry after capped", 0, time.Minute, time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				got := r.Backoff(tt.attempt, tt.retryAfter)
				assert.GreaterOrEqual(t, got, tt.low)
				assert.LessOrEqual(t, got, tt.high)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "3", 3 * time.Second},
		{"padded seconds", " 7 ", 7 * time.Second},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"date in the past", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"negative seconds", "-5", 0},
		{"garbage", "soon", 0},
		{"missing", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.value != "" {
				header.Set("Retry-After", tt.value)
			}
			assert.Equal(t, tt.want, RetryAfter(header, now))
		})
	}
}

func TestDoHTTP_StopsOnNonRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resp, result := NewRetrier(fastConfig()).DoHTTP(context.Background(), "get", func(ctx context.Context) (*http.Response, error) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		return http.DefaultClient.Do(req)
	})
	require.NotNil(t, resp)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDoHTTP_ExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 2
	resp, result := NewRetrier(cfg).DoHTTP(context.Background(), "get", func(ctx context.Context) (*http.Response, error) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		return http.DefaultClient.Do(req)
	})
	require.NotNil(t, resp)
	resp.Body.Close()

	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}
