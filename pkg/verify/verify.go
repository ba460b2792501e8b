// Package verify confirms candidate handles against the WebFinger discovery protocol.
package verify

import (
	"context"
	"log/slog"

	"github.com/codeGROOVE-dev/fedifinder/pkg/handle"
	"github.com/codeGROOVE-dev/fedifinder/pkg/webfinger"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of one verification.
type Status string

// Verification outcomes. Only StatusVerified counts as verified; callers that
// want to treat "could not determine" differently from "confirmed absent"
// can tell StatusNotFound and StatusFailed apart.
const (
	StatusVerified Status = "verified"  // descriptor has a profile-page link
	StatusNotFound Status = "not_found" // descriptor decoded, no profile-page link
	StatusFailed   Status = "failed"    // lookup error: timeout, DNS, non-2xx, undecodable body
)

// Lookuper resolves an identifier to a WebFinger descriptor.
// *webfinger.Client satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, identifier string) (*webfinger.Descriptor, error)
}

// Result is the verification outcome for one handle.
type Result struct {
	Handle     handle.Handle `json:"handle"`
	Verified   bool          `json:"verified"`
	Status     Status        `json:"status"`
	ProfileURL string        `json:"profile_url,omitempty"`
	Error      string        `json:"error,omitempty"`
	Sources    []string      `json:"sources,omitempty"` // source profiles that mentioned the handle
}

// Observer is notified once per settled verification. Implementations must be
// safe for concurrent use.
type Observer interface {
	Checked(ctx context.Context, r Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Result)

// Checked calls f.
func (f ObserverFunc) Checked(ctx context.Context, r Result) { f(ctx, r) }

// SlogObserver logs each result at debug level.
type SlogObserver struct {
	Logger *slog.Logger
}

// Checked logs r.
func (o SlogObserver) Checked(ctx context.Context, r Result) {
	attrs := []any{"handle", r.Handle, "status", r.Status}
	if r.Error != "" {
		attrs = append(attrs, "error", r.Error)
	}
	o.Logger.DebugContext(ctx, "handle checked", attrs...)
}

// Verifier checks handles. It holds no per-run state and is safe for concurrent use.
type Verifier struct {
	lookup      Lookuper
	observer    Observer
	concurrency int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithObserver sets the observer notified for every result.
func WithObserver(o Observer) Option {
	return func(v *Verifier) { v.observer = o }
}

// WithLogger logs every result to logger via SlogObserver.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.observer = SlogObserver{Logger: logger} }
}

// WithConcurrency caps the number of lookups in flight during VerifyAll.
// n <= 0 means no cap.
func WithConcurrency(n int) Option {
	return func(v *Verifier) { v.concurrency = n }
}

// New creates a Verifier backed by lookup.
func New(lookup Lookuper, opts ...Option) *Verifier {
	v := &Verifier{
		lookup:   lookup,
		observer: SlogObserver{Logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check verifies a single handle. It never fails: lookup errors become
// StatusFailed.
func (v *Verifier) Check(ctx context.Context, h handle.Handle) Result {
	r := v.check(ctx, h)
	v.observer.Checked(ctx, r)
	return r
}

func (v *Verifier) check(ctx context.Context, h handle.Handle) Result {
	r := Result{Handle: h, Status: StatusFailed}

	d, err := v.lookup.Lookup(ctx, h.Acct())
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if d == nil {
		r.Error = "empty descriptor"
		return r
	}

	link, ok := d.ProfilePage()
	if !ok {
		r.Status = StatusNotFound
		return r
	}

	r.Status = StatusVerified
	r.Verified = true
	r.ProfileURL = link.Href
	return r
}

// Verify reports whether identifier (@user@host, user@host or acct:user@host)
// has a live profile page. Unparsable identifiers and lookup failures report false.
func (v *Verifier) Verify(ctx context.Context, identifier string) bool {
	h, err := handle.Parse(identifier)
	if err != nil {
		v.observer.Checked(ctx, Result{Handle: handle.Handle(identifier), Status: StatusFailed, Error: err.Error()})
		return false
	}
	return v.Check(ctx, h).Verified
}

// VerifyAll checks every handle concurrently and returns once all lookups
// have settled. Results are index-aligned with handles. A canceled ctx makes
// the remaining lookups fail rather than aborting the run.
func (v *Verifier) VerifyAll(ctx context.Context, handles []handle.Handle) []Result {
	results := make([]Result, len(handles))

	var g errgroup.Group
	if v.concurrency > 0 {
		g.SetLimit(v.concurrency)
	}

	for i, h := range handles {
		g.Go(func() error {
			results[i] = v.Check(ctx, h)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return results
}

// Summary counts the outcomes of one run.
type Summary struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusVerified:
			s.Verified++
		case StatusNotFound:
			s.NotFound++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
