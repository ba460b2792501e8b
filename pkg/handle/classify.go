package handle

import (
	"errors"
	"regexp"
)

// Kind names the rule that accepted a token.
type Kind string

// Rule kinds, in evaluation order.
const (
	KindCanonical    Kind = "canonical"     // @user@host.tld
	KindMissingSigil Kind = "missing-sigil" // user@host.tld
	KindProfileURL   Kind = "profile-url"   // host.tld/@user, host.tld/u/user, ...
)

// ErrNoMatch is returned by Classify for tokens no rule accepts.
var ErrNoMatch = errors.New("no rule matched")

// rule pairs a token pattern with the strategy that turns a matching token
// into a handle.
type rule struct {
	kind    Kind
	pattern *regexp.Regexp
	build   func(token string) (Handle, error)
}

// rules are evaluated in order; the first whose pattern matches decides the
// outcome for the token. New URL conventions go into nameConventions and the
// profile-url pattern below.
var rules = []rule{
	{
		kind:    KindCanonical,
		pattern: regexp.MustCompile(`(?i)^@[a-z0-9_]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]+$`),
		build:   func(t string) (Handle, error) { return Handle(t), nil },
	},
	{
		kind:    KindMissingSigil,
		pattern: regexp.MustCompile(`(?i)^[a-z0-9_]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]+$`),
		build:   func(t string) (Handle, error) { return Handle("@" + t), nil },
	},
	{
		kind:    KindProfileURL,
		pattern: regexp.MustCompile(`(?i)^.+\.[a-z]+.*/(?:@|profile/|u/|c/|a/)[a-z0-9_]+/*$`),
		build:   FromURL,
	},
}

// Classify maps a single normalized token to a handle. It returns the kind of
// rule that matched, or ErrNoMatch. A matching profile-url token whose name
// or domain cannot be recovered returns an error wrapping ErrInvalid.
func Classify(token string) (Handle, Kind, error) {
	for _, r := range rules {
		if !r.pattern.MatchString(token) {
			continue
		}
		h, err := r.build(token)
		if err != nil {
			return "", r.kind, err
		}
		return h, r.kind, nil
	}
	return "", "", ErrNoMatch
}
