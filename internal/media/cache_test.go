package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"catalog-service/internal/apperrors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls atomic.Int32
	body  string
	err   error
	delay time.Duration
}

func (f *countingFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestCache(t *testing.T, fetcher Fetcher) (*Cache, Config) {
	t.Helper()
	cfg := Config{
		ImageDir:          t.TempDir(),
		DocumentDir:       t.TempDir(),
		BaseURL:           "http://localhost:8080/",
		PublicImagePrefix: "/static/images",
	}
	return NewCache(cfg, fetcher, testLogger()), cfg
}

func TestResolve_FetchesOnceForRepeatedURL(t *testing.T) {
	fetcher := &countingFetcher{body: "png-bytes"}
	cache, cfg := newTestCache(t, fetcher)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, "https://cdn.example.com/doors/door1.png", MediaTypeImage)
	require.NoError(t, err)
	second, err := cache.Resolve(ctx, "https://cdn.example.com/doors/door1.png", MediaTypeImage)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.ImageDir, "door1.png"), first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	content, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))
}

func TestResolve_ConcurrentMissesShareDownload(t *testing.T) {
	fetcher := &countingFetcher{body: "png-bytes", delay: 50 * time.Millisecond}
	cache, _ := newTestCache(t, fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Resolve(context.Background(), "https://cdn.example.com/door1.png", MediaTypeImage)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

// gatedFetcher blocks until release is closed and fails if its context was
// cancelled in the meantime, the way an HTTP request would.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (f *gatedFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	<-f.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("png-bytes")), nil
}

func TestResolve_CancelledCallerDoesNotFailSharedDownload(t *testing.T) {
	fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	cache, cfg := newTestCache(t, fetcher)
	const url = "https://cdn.example.com/door1.png"

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(leaderCtx, url, MediaTypeImage)
		leaderErr <- err
	}()
	<-fetcher.started

	type result struct {
		path string
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		p, err := cache.Resolve(context.Background(), url, MediaTypeImage)
		follower <- result{p, err}
	}()

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(fetcher.release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(cfg.ImageDir, "door1.png"), res.path)
	assert.FileExists(t, res.path)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolve_SameTrailingSegmentSharesFile(t *testing.T) {
	fetcher := &countingFetcher{body: "first"}
	cache, _ := newTestCache(t, fetcher)
	ctx := context.Background()

	a, err := cache.Resolve(ctx, "https://a.example.com/x/photo.jpg", MediaTypeImage)
	require.NoError(t, err)
	b, err := cache.Resolve(ctx, "https://b.example.com/y/photo.jpg", MediaTypeImage)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolve_FetchFailureIsTransient(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("connection refused")}
	cache, cfg := newTestCache(t, fetcher)

	_, err := cache.Resolve(context.Background(), "https://cdn.example.com/door1.png", MediaTypeImage)

	assert.ErrorIs(t, err, apperrors.ErrTransient)
	entries, readErr := os.ReadDir(cfg.ImageDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestResolve_MissingDirectoryIsConfigurationError(t *testing.T) {
	fetcher := &countingFetcher{body: "x"}
	cache := NewCache(Config{ImageDir: filepath.Join(t.TempDir(), "missing")}, fetcher, testLogger())

	_, err := cache.Resolve(context.Background(), "https://cdn.example.com/door1.png", MediaTypeImage)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, err = cache.Resolve(context.Background(), "https://cdn.example.com/manual.pdf", MediaTypeDocument)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestFileNameFromURL(t *testing.T) {
	name, err := FileNameFromURL("https://cdn.example.com/a/b/door1.png?v=3")
	require.NoError(t, err)
	assert.Equal(t, "door1.png", name)

	name, err = FileNameFromURL("door2.png")
	require.NoError(t, err)
	assert.Equal(t, "door2.png", name)

	_, err = FileNameFromURL("https://cdn.example.com/")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPublicURL(t *testing.T) {
	cache, _ := newTestCache(t, &countingFetcher{})

	u, err := cache.PublicURL("/var/lib/catalog/images/door1.png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/static/images/door1.png", u)

	noBase := NewCache(Config{PublicImagePrefix: "images"}, nil, testLogger())
	_, err = noBase.PublicURL("door1.png")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	noPrefix := NewCache(Config{BaseURL: "http://localhost"}, nil, testLogger())
	_, err = noPrefix.PublicURL("door1.png")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestFileOperations(t *testing.T) {
	cache, cfg := newTestCache(t, &countingFetcher{})

	p, err := cache.Save("import.csv", MediaTypeDocument, strings.NewReader("name,imgPath\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.DocumentDir, "import.csv"), p)

	exists, err := cache.Exists("import.csv", MediaTypeDocument)
	require.NoError(t, err)
	assert.True(t, exists)

	r, err := cache.Open("import.csv", MediaTypeDocument)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	r.Close()
	assert.Equal(t, "name,imgPath\n", string(content))

	require.NoError(t, cache.Delete("import.csv", MediaTypeDocument))
	assert.ErrorIs(t, cache.Delete("import.csv", MediaTypeDocument), apperrors.ErrNotFound)

	_, err = cache.Open("import.csv", MediaTypeDocument)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = cache.Path("../etc/passwd", MediaTypeDocument)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestHTTPFetcher_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("image-data"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(FetcherConfig{RequestsPerSecond: 100, Timeout: 5 * time.Second, MaxRetries: 2}, testLogger())

	body, err := fetcher.Fetch(context.Background(), server.URL+"/door1.png")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)

	assert.Equal(t, "image-data", string(data))
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcher_NotFoundIsTransientError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	fetcher := NewHTTPFetcher(FetcherConfig{RequestsPerSecond: 100, MaxRetries: 2}, testLogger())

	_, err := fetcher.Fetch(context.Background(), server.URL+"/missing.png")
	assert.ErrorIs(t, err, apperrors.ErrTransient)
}
