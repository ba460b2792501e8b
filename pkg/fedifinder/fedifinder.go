// Package fedifinder finds the fediverse accounts of followed profiles.
//
// Basic usage:
//
//	profiles, err := source.Load("following.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep := fedifinder.Find(ctx, profiles)
//	for _, r := range rep.Results {
//	    fmt.Println(r.Handle, r.Verified)
//	}
//
// Or check a single handle:
//
//	ok := fedifinder.Verify(ctx, "@alice@mastodon.social")
package fedifinder

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/fedifinder/pkg/handle"
	"github.com/codeGROOVE-dev/fedifinder/pkg/httpcache"
	"github.com/codeGROOVE-dev/fedifinder/pkg/profile"
	"github.com/codeGROOVE-dev/fedifinder/pkg/report"
	"github.com/codeGROOVE-dev/fedifinder/pkg/verify"
	"github.com/codeGROOVE-dev/fedifinder/pkg/webfinger"
)

type (
	// Profile re-exports profile.Profile for convenience.
	Profile = profile.Profile
	// Handle re-exports handle.Handle for convenience.
	Handle = handle.Handle
	// Result re-exports verify.Result for convenience.
	Result = verify.Result
	// Report re-exports report.Report for convenience.
	Report = report.Report
	// HTTPCache re-exports httpcache.Cache for convenience.
	HTTPCache = httpcache.Cache
)

// Option configures a Finder.
type Option func(*config)

//nolint:govet // fieldalignment: intentional layout for readability
type config struct {
	cache       httpcache.Cacher
	logger      *slog.Logger
	observer    verify.Observer
	lookup      verify.Lookuper
	timeout     time.Duration
	attempts    uint
	concurrency int
	pace        time.Duration
	tlsOnly     bool
	noHostMeta  bool
}

// WithHTTPCache sets the HTTP cache for WebFinger responses.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithObserver receives every verification result as it settles.
func WithObserver(o verify.Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithLookuper replaces the WebFinger client. The HTTP options are then ignored.
func WithLookuper(l verify.Lookuper) Option {
	return func(c *config) { c.lookup = l }
}

// WithTimeout sets the per-request timeout. The default is 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithAttempts sets how many times a transient lookup failure is tried.
func WithAttempts(n uint) Option {
	return func(c *config) { c.attempts = n }
}

// WithConcurrency caps lookups in flight. n <= 0 means no cap.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}

// WithDomainDelay spaces out requests to the same server by at least d.
func WithDomainDelay(d time.Duration) Option {
	return func(c *config) { c.pace = d }
}

// WithTLSOnly disables the plain-http WebFinger fallback.
func WithTLSOnly() Option {
	return func(c *config) { c.tlsOnly = true }
}

// WithoutHostMeta disables the host-meta fallback.
func WithoutHostMeta() Option {
	return func(c *config) { c.noHostMeta = true }
}

// Finder runs the extract, deduplicate and verify pipeline.
type Finder struct {
	extractor *handle.Extractor
	verifier  *verify.Verifier
	client    *webfinger.Client // nil when a custom Lookuper is set
	logger    *slog.Logger
}

// New creates a Finder.
func New(opts ...Option) *Finder {
	cfg := &config{
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Finder{
		extractor: handle.NewExtractor(handle.WithLogger(cfg.logger)),
		logger:    cfg.logger,
	}

	lookup := cfg.lookup
	if lookup == nil {
		wopts := []webfinger.Option{
			webfinger.WithLogger(cfg.logger),
			webfinger.WithTimeout(cfg.timeout),
		}
		if cfg.cache != nil {
			wopts = append(wopts, webfinger.WithHTTPCache(cfg.cache))
		}
		if cfg.attempts > 0 {
			wopts = append(wopts, webfinger.WithAttempts(cfg.attempts))
		}
		if cfg.pace > 0 {
			wopts = append(wopts, webfinger.WithRateLimiter(httpcache.NewDomainRateLimiter(cfg.pace)))
		}
		if cfg.tlsOnly {
			wopts = append(wopts, webfinger.WithTLSOnly())
		}
		if cfg.noHostMeta {
			wopts = append(wopts, webfinger.WithoutHostMeta())
		}
		f.client = webfinger.New(wopts...)
		lookup = f.client
	}

	vopts := []verify.Option{
		verify.WithLogger(cfg.logger),
		verify.WithConcurrency(cfg.concurrency),
	}
	if cfg.observer != nil {
		vopts = append(vopts, verify.WithObserver(cfg.observer))
	}
	f.verifier = verify.New(lookup, vopts...)

	return f
}

// Collect extracts candidate handles from every profile into one set.
// Nil profiles are skipped.
func (f *Finder) Collect(ctx context.Context, profiles []*Profile) *handle.Set {
	return Collect(ctx, profiles, f.extractor)
}

// Run extracts, deduplicates and verifies the handles in profiles. Results
// are sorted by handle and carry the labels of the profiles that mentioned
// them. Run always settles every lookup; per-handle failures are recorded in
// the results.
func (f *Finder) Run(ctx context.Context, profiles []*Profile) *Report {
	set := f.Collect(ctx, profiles)
	handles := set.Sorted()
	f.logger.InfoContext(ctx, "verifying handles", "profiles", len(profiles), "handles", len(handles))

	start := time.Now()
	results := f.verifier.VerifyAll(ctx, handles)
	for i := range results {
		results[i].Sources = set.Sources(results[i].Handle)
	}

	summary := verify.Summarize(results)
	attrs := []any{
		"verified", summary.Verified, "not_found", summary.NotFound,
		"failed", summary.Failed, "elapsed", time.Since(start).Round(time.Millisecond),
	}
	if f.client != nil {
		st := f.client.Stats()
		attrs = append(attrs, "cache_hits", st.Hits, "cache_misses", st.Misses)
	}
	f.logger.InfoContext(ctx, "verification complete", attrs...)

	return &Report{Results: results, Summary: summary, Profiles: len(profiles)}
}

// Verify reports whether identifier has a live fediverse profile page.
func (f *Finder) Verify(ctx context.Context, identifier string) bool {
	return f.verifier.Verify(ctx, identifier)
}

// Collect runs e over every profile's text and aggregates the handles.
func Collect(ctx context.Context, profiles []*Profile, e *handle.Extractor) *handle.Set {
	set := handle.NewSet()
	for _, p := range profiles {
		if p == nil {
			continue
		}
		set.AddAll(e.Extract(ctx, p.Text()), p.Label())
	}
	return set
}

// Find runs the pipeline over profiles with a Finder built from opts.
func Find(ctx context.Context, profiles []*Profile, opts ...Option) *Report {
	return New(opts...).Run(ctx, profiles)
}

// Verify checks a single identifier with a Finder built from opts.
func Verify(ctx context.Context, identifier string, opts ...Option) bool {
	return New(opts...).Verify(ctx, identifier)
}

// FindHandles returns the candidate handles in text without verifying them.
func FindHandles(text string) []Handle {
	return handle.Extract(text)
}
