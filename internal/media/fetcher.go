package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/clients"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPFetcher downloads media over HTTP with a shared rate limit and retries
// on transient failures.
type HTTPFetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *clients.Retrier
	logger     *logrus.Entry
}

type FetcherConfig struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
}

func NewHTTPFetcher(cfg FetcherConfig, logger *logrus.Entry) *HTTPFetcher {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryConfig := clients.DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retryConfig.MaxRetries = cfg.MaxRetries
	}

	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retrier:    clients.NewRetrier(retryConfig),
		logger:     logger.WithField("component", "media_fetcher"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, result := f.retrier.DoHTTP(ctx, "fetch "+rawURL, func(ctx context.Context) (*http.Response, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return f.httpClient.Do(req)
	})

	if resp == nil {
		f.logger.WithError(result.LastError).WithFields(logrus.Fields{
			"url":      rawURL,
			"attempts": result.Attempts,
		}).Warn("Media fetch failed")
		return nil, apperrors.Transient("MEDIA_FETCH_FAILED", result.LastError, "failed to fetch %s", rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		f.logger.WithFields(logrus.Fields{
			"url":         rawURL,
			"status_code": resp.StatusCode,
			"attempts":    result.Attempts,
		}).Warn("Media fetch returned non-success status")
		return nil, apperrors.Transient("MEDIA_FETCH_FAILED",
			fmt.Errorf("unexpected status %d", resp.StatusCode), "failed to fetch %s", rawURL)
	}
	return resp.Body, nil
}
