package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/strandkit/strand/core/action"
)

// Registry maps dotted handler names ("user.byID") to action factories.
// Routes reference handlers by name, so a handler set can be swapped while
// the serving loop keeps resolving lock-free.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[map[string]action.Factory]
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := map[string]action.Factory{}
	r.entries.Store(&empty)
	return r
}

// Register adds one factory under a dotted name. Re-registering a name
// replaces the previous factory.
func (r *Registry) Register(name string, f action.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.entries.Load()
	next := make(map[string]action.Factory, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[name] = f
	r.entries.Store(&next)
}

// Resolve looks up a factory by its dotted name.
func (r *Registry) Resolve(name string) (action.Factory, bool) {
	f, ok := (*r.entries.Load())[name]
	return f, ok
}

// Reload replaces the whole handler set atomically.
func (r *Registry) Reload(entries map[string]action.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]action.Factory, len(entries))
	for k, v := range entries {
		next[k] = v
	}
	r.entries.Store(&next)
}

// Names returns the registered handler names, for diagnostics.
func (r *Registry) Names() []string {
	m := *r.entries.Load()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}

// Build resolves a name and runs its factory against the route args.
func (r *Registry) Build(name string, args map[string]any) (any, error) {
	f, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("registry: no handler named %q", name)
	}
	return f(args)
}
