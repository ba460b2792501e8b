// Package source loads followed-account profiles from exported files.
//
// Two shapes are accepted, as JSON or YAML:
//
//   - a plain list of profile objects (see profile.Profile for field names);
//   - a Twitter API v2 users/:id/following response requested with
//     expansions=pinned_tweet_id and user.fields=name,description,url,location,entities.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codeGROOVE-dev/fedifinder/pkg/profile"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned when input is neither a profile list nor a following response.
var ErrUnknownFormat = errors.New("unrecognized profile export format")

type urlEntity struct {
	URL         string `json:"url" yaml:"url"`
	ExpandedURL string `json:"expanded_url" yaml:"expanded_url"`
}

type twitterUser struct {
	ID            string `json:"id" yaml:"id"`
	Username      string `json:"username" yaml:"username"`
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description" yaml:"description"`
	Location      string `json:"location" yaml:"location"`
	URL           string `json:"url" yaml:"url"`
	PinnedTweetID string `json:"pinned_tweet_id" yaml:"pinned_tweet_id"`
	Entities      struct {
		URL struct {
			URLs []urlEntity `json:"urls" yaml:"urls"`
		} `json:"url" yaml:"url"`
		Description struct {
			URLs []urlEntity `json:"urls" yaml:"urls"`
		} `json:"description" yaml:"description"`
	} `json:"entities" yaml:"entities"`
}

type followingResponse struct {
	Data     []twitterUser `json:"data" yaml:"data"`
	Includes struct {
		Tweets []struct {
			ID   string `json:"id" yaml:"id"`
			Text string `json:"text" yaml:"text"`
		} `json:"tweets" yaml:"tweets"`
	} `json:"includes" yaml:"includes"`
	Meta map[string]any `json:"meta" yaml:"meta"`
}

// Load reads profiles from path; "-" reads standard input.
func Load(path string) ([]*profile.Profile, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profiles: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	ps, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// Read decodes profiles from r. Input starting with '{' or '[' is decoded as
// JSON, anything else as YAML.
func Read(r io.Reader) ([]*profile.Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, profile.ErrNoProfiles
	}

	switch data[0] {
	case '[':
		var ps []*profile.Profile
		if err := json.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("decode profile list: %w", err)
		}
		return compact(ps), nil
	case '{':
		var resp followingResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode following response: %w", err)
		}
		return fromResponse(&resp)
	default:
		return readYAML(data)
	}
}

func readYAML(data []byte) ([]*profile.Profile, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, ErrUnknownFormat
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var ps []*profile.Profile
		if err := root.Decode(&ps); err != nil {
			return nil, fmt.Errorf("decode profile list: %w", err)
		}
		return compact(ps), nil
	case yaml.MappingNode:
		var resp followingResponse
		if err := root.Decode(&resp); err != nil {
			return nil, fmt.Errorf("decode following response: %w", err)
		}
		return fromResponse(&resp)
	default:
		return nil, ErrUnknownFormat
	}
}

func fromResponse(resp *followingResponse) ([]*profile.Profile, error) {
	if resp.Data == nil {
		return nil, ErrUnknownFormat
	}
	return fromFollowing(resp), nil
}

func compact(ps []*profile.Profile) []*profile.Profile {
	out := ps[:0]
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func fromFollowing(resp *followingResponse) []*profile.Profile {
	pinned := make(map[string]string, len(resp.Includes.Tweets))
	for _, t := range resp.Includes.Tweets {
		pinned[t.ID] = t.Text
	}

	out := make([]*profile.Profile, 0, len(resp.Data))
	for i := range resp.Data {
		u := &resp.Data[i]
		p := &profile.Profile{
			ID:          u.ID,
			Username:    u.Username,
			Name:        u.Name,
			Description: u.Description,
			Location:    u.Location,
			URL:         u.URL,
		}
		if u.PinnedTweetID != "" {
			p.PinnedPost = pinned[u.PinnedTweetID]
		}
		p.Links = expandedLinks(u.Entities.URL.URLs, u.Entities.Description.URLs)
		out = append(out, p)
	}
	return out
}

// expandedLinks returns the unshortened targets of t.co links.
func expandedLinks(groups ...[]urlEntity) []string {
	var links []string
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, e := range g {
			link := strings.TrimSpace(e.ExpandedURL)
			if link == "" || link == e.URL || seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
		}
	}
	return links
}
