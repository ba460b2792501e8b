// Package profile defines the source-platform profile record that handles are extracted from.
package profile

import (
	"errors"
	"strings"
)

// Common errors returned by profile sources.
var (
	ErrNoProfiles = errors.New("no profiles")
)

// Profile is one followed account on the source platform (Twitter/X).
// It is read-only to the extraction pipeline.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`             // Source platform account ID
	Username string `json:"username,omitempty" yaml:"username,omitempty"` // Handle on the source platform (without @ prefix)

	// Free-text fields scanned for fediverse handles
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`               // Display name
	Description string `json:"description,omitempty" yaml:"description,omitempty"` // Bio
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`       // Free-text location
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`                 // Profile website field
	PinnedPost  string `json:"pinned_post,omitempty" yaml:"pinned_post,omitempty"` // Text of the pinned post, if any

	// Expanded targets of shortened links in the URL and description fields
	Links []string `json:"links,omitempty" yaml:"links,omitempty"`
}

// Text joins the textual fields of p into a single blob for handle extraction.
// Empty fields contribute empty strings, so the result always has the same
// number of separators.
func (p *Profile) Text() string {
	if p == nil {
		return ""
	}
	parts := []string{p.Name, p.Description, p.Location, p.PinnedPost, p.URL}
	parts = append(parts, p.Links...)
	return strings.Join(parts, " ")
}

// Label returns a short identifier for log lines and result attribution.
func (p *Profile) Label() string {
	switch {
	case p == nil:
		return ""
	case p.Username != "":
		return p.Username
	case p.ID != "":
		return p.ID
	default:
		return p.Name
	}
}
