package model

import (
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind is a field's coercion target.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	Email
	Domain
	IPAddress
)

var (
	emailRe  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	domainRe = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// Field describes one validated input.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Default  any

	// Pattern constrains string fields.
	Pattern *regexp.Regexp
	// Min and Max bound numeric fields; both zero means unbounded.
	Min, Max float64
	// Groups restricts which validation groups include this field. Empty
	// means every group.
	Groups []string
	// When makes the requirement conditional: the field is treated as
	// required only when it returns true for the raw parameters. Nil leaves
	// Required as-is.
	When func(params map[string][]string) bool
	// Message overrides the generated error text. $1 expands to the field
	// name and $3 to the failed constraint.
	Message string
}

func (f Field) inGroup(group string) bool {
	if group == "" || len(f.Groups) == 0 {
		return true
	}
	for _, g := range f.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Errors maps field names to validation failures.
type Errors map[string]string

func (e Errors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("model: ")
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name + ": " + e[name])
	}
	return b.String()
}

// Values holds coerced field values keyed by field name.
type Values map[string]any

// Int returns a coerced int64 value.
func (v Values) Int(name string) int64 {
	n, _ := v[name].(int64)
	return n
}

// Float returns a coerced float64 value.
func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

// Bool returns a coerced bool value.
func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// String returns a string value.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Model is an ordered set of fields validated together.
type Model struct {
	fields []Field
}

// New builds a model. Duplicate field names panic, since that is a
// programming error rather than bad input.
func New(fields ...Field) *Model {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			panic(fmt.Sprintf("model: duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}
	return &Model{fields: fields}
}

// Validate coerces and checks raw request parameters. group selects which
// fields participate; "" means all. On failure the Errors map names every
// failing field, not just the first.
func (m *Model) Validate(params map[string][]string, group string) (Values, Errors) {
	values := make(Values, len(m.fields))
	errs := make(Errors)

	for _, f := range m.fields {
		if !f.inGroup(group) {
			continue
		}

		required := f.Required
		if f.When != nil {
			required = required && f.When(params)
		}

		raws, present := params[f.Name]
		if !present || len(raws) == 0 || raws[0] == "" {
			switch {
			case f.Default != nil:
				values[f.Name] = f.Default
			case required:
				errs[f.Name] = f.message("required")
			}
			continue
		}
		raw := raws[0]

		val, err := coerce(f, raw)
		if err != nil {
			errs[f.Name] = f.message(err.Error())
			continue
		}
		values[f.Name] = val
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return values, nil
}

func (f Field) message(constraint string) string {
	if f.Message == "" {
		return constraint
	}
	return strings.NewReplacer("$1", f.Name, "$3", constraint).Replace(f.Message)
}

func coerce(f Field, raw string) (any, error) {
	switch f.Kind {
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer")
		}
		if err := checkRange(f, float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case Float:
		fv, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number")
		}
		if err := checkRange(f, fv); err != nil {
			return nil, err
		}
		return fv, nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("not a boolean")
		}
		return b, nil
	case Email:
		if !emailRe.MatchString(raw) {
			return nil, fmt.Errorf("not an email address")
		}
		return raw, nil
	case Domain:
		if !domainRe.MatchString(raw) {
			return nil, fmt.Errorf("not a domain name")
		}
		return raw, nil
	case IPAddress:
		if net.ParseIP(raw) == nil {
			return nil, fmt.Errorf("not an IP address")
		}
		return raw, nil
	default:
		if f.Pattern != nil && !f.Pattern.MatchString(raw) {
			return nil, fmt.Errorf("does not match %s", f.Pattern)
		}
		if err := checkLength(f, raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
}

func checkRange(f Field, v float64) error {
	if f.Min == 0 && f.Max == 0 {
		return nil
	}
	if v < f.Min {
		return fmt.Errorf("below minimum %v", f.Min)
	}
	if f.Max > 0 && v > f.Max {
		return fmt.Errorf("above maximum %v", f.Max)
	}
	return nil
}

func checkLength(f Field, s string) error {
	if f.Min == 0 && f.Max == 0 {
		return nil
	}
	n := float64(len(s))
	if n < f.Min {
		return fmt.Errorf("shorter than %v", f.Min)
	}
	if f.Max > 0 && n > f.Max {
		return fmt.Errorf("longer than %v", f.Max)
	}
	return nil
}
