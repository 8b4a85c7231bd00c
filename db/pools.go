package db

import (
	"context"
	"fmt"
	"sync"
)

// Pools holds named connection pools opened from configuration, so handlers
// can share databases by name instead of threading *Pool values around.
type Pools struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// OpenAll connects every configured pool. On any failure it closes the pools
// already opened and returns the error.
func OpenAll(ctx context.Context, cfgs map[string]Config) (*Pools, error) {
	ps := &Pools{pools: make(map[string]*Pool, len(cfgs))}
	for name, cfg := range cfgs {
		p, err := Open(ctx, cfg)
		if err != nil {
			ps.Close()
			return nil, fmt.Errorf("db: pool %q: %w", name, err)
		}
		ps.pools[name] = p
	}
	return ps, nil
}

// Get returns the named pool.
func (ps *Pools) Get(name string) (*Pool, error) {
	ps.mu.RLock()
	p, ok := ps.pools[name]
	ps.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("db: no pool named %q", name)
	}
	return p, nil
}

// Names lists the configured pool names.
func (ps *Pools) Names() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	names := make([]string, 0, len(ps.pools))
	for name := range ps.pools {
		names = append(names, name)
	}
	return names
}

// Close releases every pool.
func (ps *Pools) Close() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for name, p := range ps.pools {
		p.Close()
		delete(ps.pools, name)
	}
}
