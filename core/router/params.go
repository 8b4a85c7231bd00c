package router

// Param is one captured, coerced path value. Ordered by capture position,
// so routes with repeated tags keep every occurrence.
type Param struct {
	Name  string
	Value any
}

// Params holds a route's captured values in positional order.
type Params []Param

// Get returns the first value captured under name.
func (ps Params) Get(name string) (any, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Int returns the first int64 captured under name.
func (ps Params) Int(name string) (int64, bool) {
	v, ok := ps.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// Float returns the first float64 captured under name.
func (ps Params) Float(name string) (float64, bool) {
	v, ok := ps.Get(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Bool returns the first bool captured under name.
func (ps Params) Bool(name string) (bool, bool) {
	v, ok := ps.Get(name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// String returns the first string captured under name.
func (ps Params) String(name string) (string, bool) {
	v, ok := ps.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Map flattens params to a name-keyed map. Repeated names keep the first
// occurrence.
func (ps Params) Map() map[string]any {
	m := make(map[string]any, len(ps))
	for _, p := range ps {
		if _, dup := m[p.Name]; !dup {
			m[p.Name] = p.Value
		}
	}
	return m
}
