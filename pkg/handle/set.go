package handle

import "sort"

// Set is a deduplicated collection of handles. It remembers which sources
// (profile labels) mentioned each handle. A Set is not safe for concurrent
// writers; the pipeline fills it sequentially.
type Set struct {
	sources map[Handle][]string
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{sources: make(map[Handle][]string)}
}

// Add records h as mentioned by source. Empty sources are not recorded, and
// a source is recorded at most once per handle.
func (s *Set) Add(h Handle, source string) {
	srcs, ok := s.sources[h]
	if !ok {
		s.sources[h] = nil
	}
	if source == "" {
		return
	}
	for _, existing := range srcs {
		if existing == source {
			return
		}
	}
	s.sources[h] = append(srcs, source)
}

// AddAll records every handle in hs as mentioned by source.
func (s *Set) AddAll(hs []Handle, source string) {
	for _, h := range hs {
		s.Add(h, source)
	}
}

// Merge adds every handle and source from other.
func (s *Set) Merge(other *Set) {
	for h, srcs := range other.sources {
		if len(srcs) == 0 {
			s.Add(h, "")
		}
		for _, src := range srcs {
			s.Add(h, src)
		}
	}
}

// Contains reports whether h is in the set.
func (s *Set) Contains(h Handle) bool {
	_, ok := s.sources[h]
	return ok
}

// Len returns the number of unique handles.
func (s *Set) Len() int { return len(s.sources) }

// Sources returns the labels of the profiles that mentioned h.
func (s *Set) Sources(h Handle) []string {
	return s.sources[h]
}

// Sorted returns the handles in lexical order.
func (s *Set) Sorted() []Handle {
	out := make([]Handle, 0, len(s.sources))
	for h := range s.sources {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
