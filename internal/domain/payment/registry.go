package payment

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves gateways by name.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
	fallback string
}

func NewRegistry(fallback string, gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway), fallback: fallback}
	for _, g := range gws {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

// Get returns the named gateway, or the default one when name is empty.
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return g, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
