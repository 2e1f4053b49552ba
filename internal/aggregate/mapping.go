// Package aggregate accumulates email to source mappings from concurrent
// workers.
package aggregate

import "sort"

// SourceSet is the set of source identifiers an email was seen at.
type SourceSet map[string]struct{}

// NewSourceSet returns a set holding ids.
func NewSourceSet(ids ...string) SourceSet {
	s := make(SourceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s SourceSet) Add(id string) {
	s[id] = struct{}{}
}

// Sorted returns the members in lexical order.
func (s SourceSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Mapping maps an email address to where it was found.
type Mapping map[string]SourceSet

// Add records that email was seen at source.
func (m Mapping) Add(email, source string) {
	set, ok := m[email]
	if !ok {
		set = make(SourceSet, 1)
		m[email] = set
	}
	set.Add(source)
}

// Union merges other into m.
func (m Mapping) Union(other Mapping) {
	for email, sources := range other {
		set, ok := m[email]
		if !ok {
			set = make(SourceSet, len(sources))
			m[email] = set
		}
		for id := range sources {
			set[id] = struct{}{}
		}
	}
}

// Clone returns a deep copy.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	out.Union(m)
	return out
}

// Emails returns the keys in lexical order.
func (m Mapping) Emails() []string {
	out := make([]string, 0, len(m))
	for email := range m {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}
