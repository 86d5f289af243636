// Package registry provides a generic thread-safe name lookup table.
//
// rxgraph uses it to resolve checkpoint codecs and store backends by the
// names that appear in configuration:
//
//	codecs := registry.New[Codec]("codec")
//	codecs.Register("json", JSON)
//
//	c, err := codecs.Resolve(cfg.Store.Codec)
//	if err != nil {
//	    // err lists the registered names
//	}
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotRegistered indicates a name has no registered value.
var ErrNotRegistered = errors.New("not registered")

// NotRegisteredError reports a failed lookup along with the names that are known.
type NotRegisteredError struct {
	// Kind describes what the registry holds (e.g. "codec").
	Kind string
	// Name is the name that was looked up.
	Name string
	// Known lists the registered names, sorted.
	Known []string
}

// Error implements the error interface.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("%s %q not registered (known: %s)", e.Kind, e.Name, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrNotRegistered for errors.Is support.
func (e *NotRegisteredError) Unwrap() error {
	return ErrNotRegistered
}

// Registry maps names to values.
// It uses sync.RWMutex since lookups vastly outnumber registrations.
type Registry[V any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]V
}

// New creates an empty registry. kind is used in error messages.
func New[V any](kind string) *Registry[V] {
	return &Registry[V]{
		kind:    kind,
		entries: make(map[string]V),
	}
}

// Register adds or replaces the value for name.
// Names are case-insensitive.
func (r *Registry[V]) Register(name string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[strings.ToLower(name)] = value
}

// Get returns the value for name and whether it exists.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[strings.ToLower(name)]
	return v, ok
}

// Resolve returns the value for name, or a *NotRegisteredError.
func (r *Registry[V]) Resolve(name string) (V, error) {
	if v, ok := r.Get(name); ok {
		return v, nil
	}
	var zero V
	return zero, &NotRegisteredError{Kind: r.kind, Name: name, Known: r.Names()}
}

// Has returns true if name is registered.
func (r *Registry[V]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
