// Package aclist implements AircraftList (spec §3): a named set of
// literal aircraft identifiers, loaded once at startup and read-only
// thereafter.
package aclist

import "strings"

// List is a named set of literal identifiers.
type List struct {
	Name    string
	members map[string]struct{}
}

// New builds a List from literal identifiers, normalized the same way
// Report identifiers are (trimmed, uppercased) so membership tests never
// miss on case or whitespace.
func New(name string, idents []string) List {
	l := List{Name: name, members: make(map[string]struct{}, len(idents))}
	for _, id := range idents {
		l.members[normalize(id)] = struct{}{}
	}
	return l
}

// Contains reports whether ident is a literal member of the list.
func (l List) Contains(ident string) bool {
	_, ok := l.members[normalize(ident)]
	return ok
}

func normalize(ident string) string {
	return strings.ToUpper(strings.TrimSpace(ident))
}

// Registry resolves list names to Lists, built once at config-compile
// time. It is the lookup target for the `aircraft_list` /
// `exclude_aircraft_list` conditions.
type Registry struct {
	lists map[string]List
}

// NewRegistry builds a Registry from a name -> literal-identifiers map,
// the shape spec §6's `aircraft_lists` config block loads into.
func NewRegistry(raw map[string][]string) *Registry {
	r := &Registry{lists: make(map[string]List, len(raw))}
	for name, idents := range raw {
		r.lists[name] = New(name, idents)
	}
	return r
}

// Lookup returns the named list and whether it exists — a missing list
// referenced by a rule is a startup configuration error (spec §7), not a
// silently-empty list.
func (r *Registry) Lookup(name string) (List, bool) {
	if r == nil {
		return List{}, false
	}
	l, ok := r.lists[name]
	return l, ok
}
