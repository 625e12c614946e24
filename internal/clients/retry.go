package clients

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls how media downloads are retried
type RetryConfig struct {
	MaxRetries     int           // Retries after the first attempt
	InitialBackoff time.Duration // Wait ceiling for the first retry
	MaxBackoff     time.Duration // Upper bound for any wait, Retry-After included
}

// DefaultRetryConfig returns the retry configuration used for media downloads
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// RetryResult contains the result of a retry operation
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
	RetryAfter    time.Duration // From Retry-After header if present
}

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

// Retryable reports whether a failed download attempt may succeed if repeated.
// A media host answering 4xx will answer the same way again, except for
// throttling and timeout statuses. 501 and 505 are permanent server answers.
func Retryable(statusCode int, err error) bool {
	if err != nil {
		return retryableTransportError(err)
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported:
		return false
	}
	return statusCode >= 500
}

// retryableTransportError rejects failures that no amount of retrying fixes:
// an unknown host, an untrusted certificate or a cancelled request.
func retryableTransportError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}
	var authorityErr x509.UnknownAuthorityError
	if errors.As(err, &authorityErr) {
		return false
	}
	var hostErr x509.HostnameError
	return !errors.As(err, &hostErr)
}

// Backoff returns the wait before retry number attempt (zero based). A
// Retry-After sent by the media host is honored up to MaxBackoff. Otherwise
// the ceiling doubles per attempt and the wait is drawn from its upper half,
// so parallel downloads throttled together do not retry in lockstep.
func (r *Retrier) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, r.config.MaxBackoff)
	}

	ceiling := r.config.MaxBackoff
	if attempt < 32 {
		if d := r.config.InitialBackoff << attempt; d > 0 && d < ceiling {
			ceiling = d
		}
	}
	half := ceiling / 2
	if half <= 0 {
		return ceiling
	}
	return half + rand.N(ceiling-half+1)
}

// RetryAfter reads a Retry-After header as either delta seconds or an HTTP
// date relative to now. Missing, malformed and past values yield zero.
func RetryAfter(header http.Header, now time.Time) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// RetryableResponseFunc performs one HTTP attempt
type RetryableResponseFunc func(ctx context.Context) (*http.Response, error)

// DoHTTP executes an HTTP operation with retry logic. Bodies of discarded
// attempts are drained and closed; the returned response, if any, belongs to
// the caller.
func (r *Retrier) DoHTTP(ctx context.Context, operation string, fn RetryableResponseFunc) (*http.Response, *RetryResult) {
	result := &RetryResult{}
	startTime := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1
		result.RetryAfter = 0

		resp, err := fn(ctx)
		result.LastError = err

		if err != nil {
			if ctx.Err() != nil || !Retryable(0, err) || attempt >= r.config.MaxRetries {
				result.LastError = fmt.Errorf("%s failed after %d attempt(s): %w", operation, result.Attempts, err)
				result.TotalDuration = time.Since(startTime)
				return nil, result
			}
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				result.TotalDuration = time.Since(startTime)
				return resp, result
			}

			result.RetryAfter = RetryAfter(resp.Header, time.Now())

			if !Retryable(resp.StatusCode, nil) || attempt >= r.config.MaxRetries {
				result.TotalDuration = time.Since(startTime)
				return resp, result
			}
			discard(resp)
		}

		backoff := r.Backoff(attempt, result.RetryAfter)

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return nil, result
		case <-time.After(backoff):
		}
	}

	result.TotalDuration = time.Since(startTime)
	return nil, result
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
