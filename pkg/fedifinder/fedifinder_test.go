package fedifinder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/codeGROOVE-dev/fedifinder/pkg/handle"
	"github.com/codeGROOVE-dev/fedifinder/pkg/verify"
	"github.com/codeGROOVE-dev/fedifinder/pkg/webfinger"
	"github.com/google/go-cmp/cmp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapLookup answers from a map keyed by acct; missing keys fail with a transport-like error.
type mapLookup struct {
	descriptors map[string]*webfinger.Descriptor
	calls       atomic.Int32
}

func (m *mapLookup) Lookup(_ context.Context, identifier string) (*webfinger.Descriptor, error) {
	m.calls.Add(1)
	d, ok := m.descriptors[identifier]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return d, nil
}

func profilePage(href string) *webfinger.Descriptor {
	return &webfinger.Descriptor{Links: []webfinger.Link{{Rel: webfinger.ProfilePageRel, Href: href}}}
}

func TestCollect(t *testing.T) {
	profiles := []*Profile{
		{Username: "one", Description: "toots at @alice@example.org"},
		nil,
		{Username: "two", URL: "https://example.org/@alice"},
		{Username: "three", Description: "nothing to see here"},
		{Username: "four", Name: "Bob 🐘 bob@social.example.net"},
	}

	set := Collect(context.Background(), profiles, handle.NewExtractor(handle.WithLogger(testLogger())))

	want := []Handle{"@alice@example.org", "@bob@social.example.net"}
	if diff := cmp.Diff(want, set.Sorted()); diff != "" {
		t.Errorf("Sorted mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"one", "two"}, set.Sources("@alice@example.org")); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	lookup := &mapLookup{descriptors: map[string]*webfinger.Descriptor{
		"alice@example.org":      profilePage("https://example.org/@alice"),
		"bob@social.example.net": {Subject: "acct:bob@social.example.net"},
		"carol@mastodon.example": profilePage("https://mastodon.example/@carol"),
	}}

	profiles := []*Profile{
		{Username: "one", Description: "find me at @alice@example.org or https://mastodon.example/@carol"},
		{Username: "two", URL: "https://example.org/@alice"},
		{Username: "three", Location: "bob@social.example.net"},
		{Username: "four", PinnedPost: "moved to dave@gone.example"},
		{Username: "five", Description: "https://twitter.com/@ignored"},
	}

	f := New(WithLookuper(lookup), WithLogger(testLogger()))
	rep := f.Run(context.Background(), profiles)

	type row struct {
		Handle  Handle
		Status  verify.Status
		Sources []string
	}
	var got []row
	for _, r := range rep.Results {
		got = append(got, row{r.Handle, r.Status, r.Sources})
	}
	want := []row{
		{"@alice@example.org", verify.StatusVerified, []string{"one", "two"}},
		{"@bob@social.example.net", verify.StatusNotFound, []string{"three"}},
		{"@carol@mastodon.example", verify.StatusVerified, []string{"one"}},
		{"@dave@gone.example", verify.StatusFailed, []string{"four"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run mismatch (-want +got):\n%s", diff)
	}

	if rep.Profiles != len(profiles) {
		t.Errorf("Profiles = %d, want %d", rep.Profiles, len(profiles))
	}
	wantSummary := verify.Summary{Total: 4, Verified: 2, NotFound: 1, Failed: 1}
	if diff := cmp.Diff(wantSummary, rep.Summary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	if got := lookup.calls.Load(); got != 4 {
		t.Errorf("lookups = %d, want one per unique handle (4)", got)
	}
}

func TestRunNoProfiles(t *testing.T) {
	lookup := &mapLookup{}
	rep := New(WithLookuper(lookup), WithLogger(testLogger())).Run(context.Background(), nil)
	if len(rep.Results) != 0 || rep.Summary.Total != 0 {
		t.Errorf("Run(nil) = %+v, want empty report", rep)
	}
	if lookup.calls.Load() != 0 {
		t.Error("no lookups expected for empty input")
	}
}

// serverClient returns a client that sends every request to server. The
// httptest certificate is valid for example.com, so handles on that domain
// can be resolved end to end.
func serverClient(server *httptest.Server) *http.Client {
	c := server.Client()
	tr := c.Transport.(*http.Transport).Clone() //nolint:errcheck,forcetypeassert // httptest always uses *http.Transport
	addr := server.Listener.Addr().String()
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
	c.Transport = tr
	return c
}

func TestFindWithWebFingerServer(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/.well-known/webfinger" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resource := r.URL.Query().Get("resource")
		w.Header().Set("Content-Type", "application/jrd+json")
		switch resource {
		case "acct:alice@example.com":
			_, _ = w.Write([]byte(`{"subject":"acct:alice@example.com","links":[{"rel":"http://webfinger.net/rel/profile-page","href":"https://example.com/@alice"}]}`)) //nolint:errcheck // test
		case "acct:bob@example.com":
			_, _ = w.Write([]byte(`{"subject":"acct:bob@example.com","links":[{"rel":"self","href":"https://example.com/users/bob"}]}`)) //nolint:errcheck // test
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	opts := []Option{
		WithLogger(testLogger()),
		WithTLSOnly(),
		WithoutHostMeta(),
	}
	client := webfinger.New(webfinger.WithHTTPClient(serverClient(server)), webfinger.WithLogger(testLogger()),
		webfinger.WithTLSOnly(), webfinger.WithoutHostMeta())
	f := New(append(opts, WithLookuper(client))...)
	ctx := context.Background()

	profiles := []*Profile{
		{Username: "one", Description: "@alice@example.com"},
		{Username: "two", URL: "https://example.com/@alice"},
		{Username: "three", Description: "bob@example.com and https://example.com/u/carol"},
	}
	rep := f.Run(ctx, profiles)

	got := make(map[Handle]verify.Status)
	for _, r := range rep.Results {
		got[r.Handle] = r.Status
	}
	want := map[Handle]verify.Status{
		"@alice@example.com": verify.StatusVerified,
		"@bob@example.com":   verify.StatusNotFound,
		"@carol@example.com": verify.StatusFailed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run mismatch (-want +got):\n%s", diff)
	}
	if rep.Results[0].ProfileURL != "https://example.com/@alice" {
		t.Errorf("ProfileURL = %q", rep.Results[0].ProfileURL)
	}

	if !f.Verify(ctx, "acct:alice@example.com") {
		t.Error("alice should verify")
	}
	if f.Verify(ctx, "@bob@example.com") {
		t.Error("bob has no profile page and should not verify")
	}
	if requests.Load() == 0 {
		t.Error("server was never queried")
	}
}

func TestVerifyUnparsable(t *testing.T) {
	lookup := &mapLookup{}
	if Verify(context.Background(), "not a handle", WithLookuper(lookup), WithLogger(testLogger())) {
		t.Error("Verify of garbage should be false")
	}
	if lookup.calls.Load() != 0 {
		t.Error("unparsable identifiers must not reach the network")
	}
}

func TestFindHandles(t *testing.T) {
	got := FindHandles("Ⓐlice | @alice@example.org, https://pixelfed.example/u/alice")
	want := []Handle{"@alice@example.org", "@alice@pixelfed.example"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindHandles mismatch (-want +got):\n%s", diff)
	}
}
