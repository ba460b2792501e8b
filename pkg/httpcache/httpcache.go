// Package httpcache provides HTTP response caching with thundering herd prevention.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// UserAgent identifies fedifinder to remote servers.
const UserAgent = "fedifinder/1.0 (+https://github.com/codeGROOVE-dev/fedifinder)"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 256 * 1024

// Cacher allows external cache implementations for sharing across packages.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a new Cache with disk persistence at ~/.cache/fedifinder.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "fedifinder"))
}

// NewNull creates a Cache with no persistence (all gets miss, all sets discard).
// Concurrent identical requests are still collapsed into one.
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a new Cache with disk persistence at the specified path.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("fedifinder", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// URLToKey converts a URL to a cache key using SHA256 hash.
func URLToKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Stats tracks cache hit/miss statistics for one Fetcher.
type Stats struct {
	Hits   int64
	Misses int64
}

// Fetcher performs GET requests through a cache. It is safe for concurrent use.
type Fetcher struct {
	cache    Cacher
	client   *http.Client
	limiter  *DomainRateLimiter
	logger   *slog.Logger
	attempts uint
	hits     atomic.Int64
	misses   atomic.Int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCache sets the response cache. Without one, every request goes to the network.
func WithCache(cache Cacher) FetcherOption {
	return func(f *Fetcher) { f.cache = cache }
}

// WithClient sets the HTTP client.
func WithClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithAttempts sets the total number of attempts for transient failures.
// The default of 1 disables retries.
func WithAttempts(n uint) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithRateLimiter paces requests per domain.
func WithRateLimiter(limiter *DomainRateLimiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = limiter }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   slog.Default(),
		attempts: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats returns the hit/miss counts of this fetcher.
func (f *Fetcher) Stats() Stats {
	return Stats{Hits: f.hits.Load(), Misses: f.misses.Load()}
}

// Fetch fetches req with caching. Concurrent calls for the same URL share one
// request. Non-2xx responses are cached as markers so that a missing account
// is not asked again until the entry expires. Transport errors, timeouts and
// cancellations are returned to the caller and never stored.
func (f *Fetcher) Fetch(ctx context.Context, req *http.Request) ([]byte, error) {
	if f.cache == nil {
		f.misses.Add(1)
		return f.doFetch(ctx, req)
	}

	var wasFetched bool
	data, err := f.cache.GetSet(ctx, URLToKey(req.URL.String()), func(ctx context.Context) ([]byte, error) {
		wasFetched = true
		f.misses.Add(1)
		f.logger.DebugContext(ctx, "cache miss", "url", req.URL.String())
		body, fetchErr := f.doFetch(ctx, req)
		if fetchErr != nil {
			var httpErr *HTTPError
			if errors.As(fetchErr, &httpErr) {
				return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode), nil
			}
			return nil, fetchErr
		}
		return body, nil
	}, f.cache.TTL())
	if err != nil {
		return nil, err
	}

	if !wasFetched {
		f.hits.Add(1)
		f.logger.DebugContext(ctx, "cache hit", "url", req.URL.String())
	}

	s := string(data)
	if errCode, found := strings.CutPrefix(s, "ERROR:"); found {
		code, _ := strconv.Atoi(errCode) //nolint:errcheck // 0 is acceptable default
		return nil, &HTTPError{StatusCode: code, URL: req.URL.String()}
	}

	return data, nil
}

func (f *Fetcher) doFetch(ctx context.Context, req *http.Request) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	return retry.DoWithData(
		func() ([]byte, error) {
			if f.limiter != nil {
				f.limiter.Wait(ctx, req.URL.String())
			}

			resp, err := f.client.Do(req.WithContext(ctx))
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
			}

			return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			f.logger.DebugContext(ctx, "retrying HTTP request", "attempt", n+1, "url", req.URL.String(), "error", err)
		}),
	)
}

// isRetryableError returns true for transient errors that should be retried.
func isRetryableError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false // 4xx errors (except 429) are permanent
		}
	}
	// Network errors, timeouts, etc. are retryable
	return true
}
