// File: bollywood/registry.go
package bollywood

import (
	"sort"
	"sync"
)

// Handle is an addressable endpoint that the registry indexes by name.
// *Process is the in-process implementation.
type Handle interface {
	Name() string
	Post(msg Message) error
}

// Registry maps actor names to handles. It does not own the actors it
// indexes; entries live between an actor's Start and Stop.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Handle)}
}

// Register indexes h under name, replacing any previous handle.
func (r *Registry) Register(name string, h Handle) {
	r.mu.Lock()
	r.byName[name] = h
	r.mu.Unlock()
}

// Deregister removes name unconditionally.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	delete(r.byName, name)
	r.mu.Unlock()
}

// release removes name only while it still points at h, so a stopping actor
// never evicts a newer registrant of the same name.
func (r *Registry) release(name string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.byName[name]; ok && current == h {
		delete(r.byName, name)
		return true
	}
	return false
}

// Find looks up a handle by name.
func (r *Registry) Find(name string) (Handle, bool) {
	r.mu.RLock()
	h, ok := r.byName[name]
	r.mu.RUnlock()
	return h, ok
}

// IsRegistered reports whether name has an entry.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.Find(name)
	return ok
}

// Count returns the number of entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Names returns a sorted snapshot of the registered names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.byName = make(map[string]Handle)
	r.mu.Unlock()
}
