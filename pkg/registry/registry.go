package registry

import (
	"reflect"
	"sort"
	"sync"
)

// Factory builds a fresh, zero-configured instance of a registered type.
type Factory func() any

// Entry describes a registered type.
type Entry struct {
	Identity string
	Type     reflect.Type
	Factory  Factory
}

// Registry maps identity encodings to constructible types.
// Go cannot look a type up by name at runtime, so every type that must be
// resolvable from persisted text has to be registered here first.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used when none is injected.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Identity returns the process-independent encoding of t.
// Named types encode as "<import path>.<Name>", pointers add a leading "*".
// A nil type encodes as the empty string.
func Identity(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		return "*" + Identity(t.Elem())
	}
	if t.Name() == "" || t.PkgPath() == "" {
		// Builtins and unnamed composites have no import path.
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Register adds a type to the registry and returns its identity.
// If the identity is already registered, it is overwritten.
func (r *Registry) Register(t reflect.Type, fn Factory) string {
	id := Identity(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = Entry{
		Identity: id,
		Type:     t,
		Factory:  fn,
	}
	return id
}

// Unregister removes an identity. Unknown identities are ignored.
func (r *Registry) Unregister(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, identity)
}

// Lookup finds the entry registered under identity.
func (r *Registry) Lookup(identity string) (Entry, bool) {
	if identity == "" {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identity]
	return e, ok
}

// LookupType finds the entry registered for t.
func (r *Registry) LookupType(t reflect.Type) (Entry, bool) {
	e, ok := r.Lookup(Identity(t))
	if !ok || e.Type != t {
		return Entry{}, false
	}
	return e, true
}

// List returns all entries sorted by identity.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}
