// Package webfinger looks up acct: identifiers via WebFinger (RFC 7033).
//
// A lookup asks https://<host>/.well-known/webfinger?resource=acct:<user>@<host>
// for a JSON Resource Descriptor (JRD). When that fails the client can fall
// back to plain http and to the host-meta lrdd template, matching how many
// smaller fediverse servers are deployed.
package webfinger

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/fedifinder/pkg/httpcache"
)

// ProfilePageRel is the link relation of a browsable profile page.
const ProfilePageRel = "http://webfinger.net/rel/profile-page" //nolint:revive // WebFinger spec uses http URI

// ErrInvalidResource is returned for identifiers without a user and host.
var ErrInvalidResource = errors.New("invalid webfinger resource")

// Link is one entry of a descriptor's links array.
type Link struct {
	Rel      string `json:"rel"`
	Type     string `json:"type,omitempty"`
	Href     string `json:"href,omitempty"`
	Template string `json:"template,omitempty"`
}

// Descriptor is a JSON Resource Descriptor.
type Descriptor struct {
	Subject string   `json:"subject"`
	Aliases []string `json:"aliases,omitempty"`
	Links   []Link   `json:"links"`
}

// ProfilePage returns the first profile-page link, if any.
func (d *Descriptor) ProfilePage() (Link, bool) {
	if d == nil {
		return Link{}, false
	}
	for _, l := range d.Links {
		if l.Rel == ProfilePageRel {
			return l, true
		}
	}
	return Link{}, false
}

// Client performs WebFinger lookups. It is safe for concurrent use.
type Client struct {
	fetcher     *httpcache.Fetcher
	logger      *slog.Logger
	tlsOnly     bool
	uriFallback bool
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache       httpcache.Cacher
	httpClient  *http.Client
	logger      *slog.Logger
	limiter     *httpcache.DomainRateLimiter
	timeout     time.Duration
	attempts    uint
	tlsOnly     bool
	uriFallback bool
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithHTTPClient sets the HTTP client. Its Timeout is overridden by WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithTimeout bounds each HTTP request. The default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithAttempts sets how many times a transient failure is tried. The default is 1.
func WithAttempts(n uint) Option {
	return func(c *config) { c.attempts = n }
}

// WithRateLimiter paces requests to each server.
func WithRateLimiter(limiter *httpcache.DomainRateLimiter) Option {
	return func(c *config) { c.limiter = limiter }
}

// WithTLSOnly disables the plain-http fallback.
func WithTLSOnly() Option {
	return func(c *config) { c.tlsOnly = true }
}

// WithoutHostMeta disables the host-meta fallback.
func WithoutHostMeta() Option {
	return func(c *config) { c.uriFallback = false }
}

// New creates a WebFinger client.
func New(opts ...Option) *Client {
	cfg := &config{
		logger:      slog.Default(),
		timeout:     5 * time.Second,
		attempts:    1,
		uriFallback: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	hc := &http.Client{}
	if cfg.httpClient != nil {
		clone := *cfg.httpClient
		hc = &clone
	}
	hc.Timeout = cfg.timeout

	fopts := []httpcache.FetcherOption{
		httpcache.WithClient(hc),
		httpcache.WithLogger(cfg.logger),
		httpcache.WithAttempts(cfg.attempts),
	}
	if cfg.cache != nil {
		fopts = append(fopts, httpcache.WithCache(cfg.cache))
	}
	if cfg.limiter != nil {
		fopts = append(fopts, httpcache.WithRateLimiter(cfg.limiter))
	}

	return &Client{
		fetcher:     httpcache.NewFetcher(fopts...),
		logger:      cfg.logger,
		tlsOnly:     cfg.tlsOnly,
		uriFallback: cfg.uriFallback,
	}
}

// Stats returns cache statistics for this client's requests.
func (c *Client) Stats() httpcache.Stats {
	return c.fetcher.Stats()
}

// Resource converts an identifier into an acct: URI and the host to query.
// Accepted forms: acct:user@host, user@host, @user@host. The host may carry a port.
func Resource(identifier string) (resource, host string, err error) {
	id := strings.TrimSpace(identifier)
	id = strings.TrimPrefix(id, "acct:")
	id = strings.TrimPrefix(id, "@")

	i := strings.LastIndex(id, "@")
	if i <= 0 || i == len(id)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidResource, identifier)
	}
	host = id[i+1:]
	if strings.ContainsAny(host, "/?#") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidResource, identifier)
	}
	return "acct:" + id, host, nil
}

// Lookup fetches the descriptor for identifier. A transport error, non-2xx
// response or undecodable body is returned as an error; a decodable
// descriptor is returned even if it carries no links.
func (c *Client) Lookup(ctx context.Context, identifier string) (*Descriptor, error) {
	resource, host, err := Resource(identifier)
	if err != nil {
		return nil, err
	}

	query := "resource=" + url.QueryEscape(resource)
	d, err := c.fetchJRD(ctx, "https://"+host+"/.well-known/webfinger?"+query)
	if err == nil {
		return d, nil
	}
	firstErr := err

	var httpErr *httpcache.HTTPError
	if !c.tlsOnly && !errors.As(err, &httpErr) {
		c.logger.DebugContext(ctx, "https webfinger failed, trying http", "resource", resource, "error", err)
		if d, err := c.fetchJRD(ctx, "http://"+host+"/.well-known/webfinger?"+query); err == nil {
			return d, nil
		}
	}

	if c.uriFallback {
		c.logger.DebugContext(ctx, "webfinger failed, trying host-meta", "resource", resource, "error", firstErr)
		if d, err := c.lookupHostMeta(ctx, host, resource); err == nil {
			return d, nil
		}
	}

	return nil, firstErr
}

func (c *Client) fetchJRD(ctx context.Context, endpoint string) (*Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/jrd+json, application/json")

	body, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	var d Descriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor from %s: %w", endpoint, err)
	}
	return &d, nil
}

// hostMeta is the subset of an XRD host-meta document needed to find the
// WebFinger template.
type hostMeta struct {
	XMLName xml.Name `xml:"XRD"`
	Links   []struct {
		Rel      string `xml:"rel,attr"`
		Type     string `xml:"type,attr"`
		Template string `xml:"template,attr"`
	} `xml:"Link"`
}

func (c *Client) lookupHostMeta(ctx context.Context, host, resource string) (*Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host+"/.well-known/host-meta", http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xrd+xml, application/xml")

	body, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	var hm hostMeta
	if err := xml.Unmarshal(body, &hm); err != nil {
		return nil, fmt.Errorf("decode host-meta from %s: %w", host, err)
	}

	lastErr := fmt.Errorf("no lrdd template in host-meta for %s", host)
	for _, l := range hm.Links {
		if l.Rel != "lrdd" || !strings.Contains(l.Template, "{uri}") {
			continue
		}
		endpoint := strings.ReplaceAll(l.Template, "{uri}", url.QueryEscape(resource))
		if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
			continue
		}
		c.logger.DebugContext(ctx, "following host-meta template", "host", host, "endpoint", endpoint, "type", l.Type)
		d, err := c.fetchJRD(ctx, endpoint)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}

	return nil, lastErr
}
