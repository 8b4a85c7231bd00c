package router

import "sync/atomic"

// Router wraps a Table behind an atomic pointer so the serving loop reads
// routes lock-free while another goroutine installs a rebuilt table.
type Router struct {
	table atomic.Pointer[Table]
}

// New returns a router serving the given table.
func New(t *Table) *Router {
	r := &Router{}
	r.table.Store(t)
	return r
}

// Resolve matches against the current table.
func (r *Router) Resolve(path string) (*Route, Params, bool) {
	return r.table.Load().Resolve(path)
}

// Swap installs a new table. In-flight resolutions finish against the old
// one.
func (r *Router) Swap(t *Table) {
	r.table.Store(t)
}
