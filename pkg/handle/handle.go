// Package handle extracts fediverse handles from free-form profile text.
//
// Extraction runs in fixed stages: Normalize collapses decorative unicode,
// Tokenize splits on separators, FilterBlocked drops known noise, and
// Classify maps each surviving token to at most one Handle.
//
//	for _, h := range handle.Extract("find me at https://mastodon.social/@alice") {
//	    fmt.Println(h) // @alice@mastodon.social
//	}
package handle

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is returned when a string cannot be parsed as a handle.
var ErrInvalid = errors.New("invalid handle")

// Handle is a fediverse handle in canonical form: @localpart@domain.
type Handle string

// canonicalPattern is the invariant every Handle satisfies.
var canonicalPattern = regexp.MustCompile(`^@[A-Za-z0-9_]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]+$`)

// Valid reports whether h has exactly one leading sigil, a word-character
// localpart, one separating sigil and a host-like domain.
func (h Handle) Valid() bool {
	return canonicalPattern.MatchString(string(h))
}

// Acct returns the handle without its leading sigil (localpart@domain).
func (h Handle) Acct() string {
	return strings.TrimPrefix(string(h), "@")
}

// Local returns the localpart.
func (h Handle) Local() string {
	local, _, _ := strings.Cut(h.Acct(), "@")
	return local
}

// Domain returns the domain part.
func (h Handle) Domain() string {
	_, domain, _ := strings.Cut(h.Acct(), "@")
	return domain
}

func (h Handle) String() string { return string(h) }

// New builds a handle from a localpart and domain.
func New(local, domain string) (Handle, error) {
	h := Handle("@" + local + "@" + domain)
	if !h.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalid, string(h))
	}
	return h, nil
}

// Parse accepts @user@host.tld, user@host.tld and acct:user@host.tld.
// Case is folded to match handles produced by extraction.
func Parse(s string) (Handle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "acct:")
	s = strings.TrimPrefix(s, "@")
	local, domain, ok := strings.Cut(s, "@")
	if !ok {
		return "", fmt.Errorf("%w: %q: missing domain", ErrInvalid, s)
	}
	return New(local, domain)
}
