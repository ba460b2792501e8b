package httpcache

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// DomainRateLimiter enforces a minimum delay between requests to the same domain.
// It is safe for concurrent use from multiple goroutines.
type DomainRateLimiter struct {
	lastRequest sync.Map // map[string]time.Time
	mu          sync.Map // map[string]*sync.Mutex - per-domain locks
	minDelay    time.Duration
}

// NewDomainRateLimiter creates a rate limiter that enforces minDelay between
// requests to the same domain.
func NewDomainRateLimiter(minDelay time.Duration) *DomainRateLimiter {
	return &DomainRateLimiter{minDelay: minDelay}
}

// Wait blocks until it's safe to make a request to the given URL's domain,
// or until ctx is done.
func (r *DomainRateLimiter) Wait(ctx context.Context, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return
	}
	domain := u.Host

	muI, _ := r.mu.LoadOrStore(domain, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	delay := r.minDelay
	if lastI, ok := r.lastRequest.Load(domain); ok {
		if last, ok := lastI.(time.Time); ok {
			if elapsed := time.Since(last); elapsed < delay {
				timer := time.NewTimer(delay - elapsed)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
				}
			}
		}
	}

	r.lastRequest.Store(domain, time.Now())
}
