// Package subscription tracks which instruments each session wants to receive.
package subscription

import (
	"sort"
	"sync"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
)

// Set is a set of supported symbols. A nil Set is empty.
type Set map[string]struct{}

func (s Set) Has(sym string) bool {
	_, ok := s[sym]
	return ok
}

func (s Set) Len() int { return len(s) }

// Symbols returns the members sorted alphabetically.
func (s Set) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for sym := range s {
		out[sym] = struct{}{}
	}
	return out
}

type entry struct {
	mu      sync.Mutex
	symbols Set
}

// Registry maps session ids to subscription sets. The id map lock is only
// held for lookups; reads and writes of one session's set lock that entry.
type Registry struct {
	catalog *instrument.Catalog

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewRegistry(catalog *instrument.Catalog) *Registry {
	return &Registry{
		catalog: catalog,
		entries: make(map[string]*entry),
	}
}

// Set replaces the session's subscriptions with the supported subset of
// requested. Unknown symbols are dropped. Returns the stored set.
func (r *Registry) Set(sessionID string, requested []string) Set {
	filtered := make(Set, len(requested))
	for _, sym := range requested {
		if r.catalog.Supported(sym) {
			filtered[sym] = struct{}{}
		}
	}

	e := r.entry(sessionID)
	e.mu.Lock()
	e.symbols = filtered
	e.mu.Unlock()

	return filtered.clone()
}

// Get returns a copy of the session's subscriptions; unknown ids yield an empty set.
func (r *Registry) Get(sessionID string) Set {
	r.mu.RLock()
	e, ok := r.entries[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Set{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.symbols.clone()
}

// Remove deletes the session's entry. Absent ids are ignored.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) entry(sessionID string) *entry {
	r.mu.RLock()
	e, ok := r.entries[sessionID]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[sessionID]; ok {
		return e
	}
	e = &entry{}
	r.entries[sessionID] = e
	return e
}
