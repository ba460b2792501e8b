package handle

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// nameConvention extracts the account name from a profile URL for one family
// of server software. Conventions are tried in order; the first that applies
// wins, even if it yields an empty name.
type nameConvention struct {
	name    string
	applies func(u string) bool
	extract func(u string) string
}

var (
	pathOrQuery  = regexp.MustCompile(`[/?]`)
	channelSplit = regexp.MustCompile(`/c/|/a/`)
)

var nameConventions = []nameConvention{
	{
		// Mastodon, Misskey, Pixelfed: host.tld/@name, host.tld/web/@name
		name:    "at-sign",
		applies: func(u string) bool { return strings.Contains(u, "@") },
		extract: func(u string) string {
			for _, seg := range pathOrQuery.Split(u, -1) {
				if strings.Contains(seg, "@") {
					return strings.Replace(seg, "@", "", 1)
				}
			}
			return ""
		},
	},
	{
		// Friendica: sub.host.tld/profile/name
		name:    "profile-path",
		applies: func(u string) bool { return strings.Contains(u, "/profile/") },
		extract: func(u string) string { return afterLast(u, "/profile/") },
	},
	{
		// diaspora*: host.tld/u/name
		name:    "u-path",
		applies: func(u string) bool { return strings.Contains(u, "/u/") },
		extract: func(u string) string { return afterLast(u, "/u/") },
	},
	{
		// PeerTube: host.tld/c/channel, host.tld/a/account
		name:    "peertube",
		applies: channelSplit.MatchString,
		extract: func(u string) string {
			parts := channelSplit.Split(u, -1)
			name, _, _ := strings.Cut(parts[len(parts)-1], "/")
			return name
		},
	},
}

func afterLast(s, sep string) string {
	i := strings.LastIndex(s, sep)
	return strings.TrimRight(s[i+len(sep):], "/")
}

// NameFromURL returns the account name (without @) embedded in a profile URL,
// or "" if no known convention applies.
func NameFromURL(u string) string {
	for _, c := range nameConventions {
		if c.applies(u) {
			return c.extract(u)
		}
	}
	return ""
}

var schemePrefix = regexp.MustCompile(`(?i)^http`)

// FromURL converts a profile URL (with or without scheme) into a handle.
// Fully qualified URLs contribute their hostname; bare ones their first path
// segment.
func FromURL(u string) (Handle, error) {
	name := NameFromURL(u)
	if name == "" {
		return "", fmt.Errorf("%w: no account name in %q", ErrInvalid, u)
	}

	var domain string
	if schemePrefix.MatchString(u) {
		parsed, err := url.Parse(u)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		domain = parsed.Hostname()
	} else {
		domain, _, _ = strings.Cut(u, "/")
	}

	return New(name, domain)
}
