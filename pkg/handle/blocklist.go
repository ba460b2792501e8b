package handle

import (
	"regexp"
	"strings"
)

// blockEntry is one known source of handle-shaped false positives.
type blockEntry struct {
	pattern string
	domain  bool // match only as a whole domain: followed by end of token or "/"
}

// blocklist lists mail providers, link shorteners, donation platforms,
// generic contact addresses and non-federated social networks. Entries are
// substrings of the normalized token; most are deliberately broad.
var blocklist = []blockEntry{
	// mail
	{pattern: "gmail.com", domain: true},
	{pattern: "hey.com", domain: true},
	{pattern: "protonmail"},
	{pattern: "pobox"},
	{pattern: "mail@"},
	{pattern: "contact@"},
	{pattern: "kontakt@"},
	{pattern: "press@"},
	{pattern: "support@"},
	{pattern: "info@"},

	// link shorteners and link-in-bio pages
	{pattern: "bit.ly", domain: true},
	{pattern: "t.co", domain: true},
	{pattern: "linktr.ee", domain: true},
	{pattern: "pronouns.page", domain: true},
	{pattern: "pinboardxing.com", domain: true},

	// donations
	{pattern: "patreon"},
	{pattern: "donate"},

	// non-federated platforms
	{pattern: "twitter.com", domain: true},
	{pattern: "t.me", domain: true},
	{pattern: "medium.com", domain: true},
	{pattern: "tiktok.com", domain: true},
	{pattern: "youtube.com", domain: true},
	{pattern: "traewelling.de", domain: true},
	{pattern: "facebook"},
	{pattern: "instagram"},
	{pattern: "github"},
	{pattern: "mixcloud"},
	{pattern: "researchgate"},
	{pattern: "observablehq"},

	// site sections that look like paths but never identify a person
	{pattern: "about"},
	{pattern: "imprint"},
	{pattern: "impressum"},
	{pattern: "blog"},
	{pattern: "news"},
}

var blockPattern = compileBlocklist(blocklist)

func compileBlocklist(entries []blockEntry) *regexp.Regexp {
	alts := make([]string, 0, len(entries))
	for _, e := range entries {
		p := regexp.QuoteMeta(e.pattern)
		if e.domain {
			p += `(?:$|/)`
		}
		alts = append(alts, p)
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

// Blocked reports whether token matches a known non-identity pattern.
func Blocked(token string) bool {
	return blockPattern.MatchString(token)
}

// FilterBlocked returns tokens with blocked entries removed.
func FilterBlocked(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if !Blocked(t) {
			out = append(out, t)
		}
	}
	return out
}
