package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Typed capture tags. A route pattern names each capture group with the
// type its value coerces to, e.g. "/user/(number:\d+)"; the tag doubles as
// the parameter name.
var captureTypes = map[string]Kind{
	"number": KindInt,
	"word":   KindString,
	"float":  KindFloat,
	"bool":   KindBool,
	"str":    KindString,
	"string": KindString,
}

// Kind is the coercion target of a captured parameter.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

type capture struct {
	name  string
	group string
	kind  Kind
	idx   int
}

// Route is one entry in the ordered table: either a literal path matched
// exactly, or a compiled pattern with typed captures. HandlerRef is the
// dotted name resolved through the action registry at match time.
type Route struct {
	Pattern    string
	HandlerRef string
	Args       map[string]any

	literal  bool
	re       *regexp.Regexp
	captures []capture
}

// Table is an ordered route table. Registration order is match order: the
// first route whose pattern matches and whose captures coerce wins.
type Table struct {
	routes []*Route
}

// NewTable builds an empty table.
func NewTable() *Table {
	return &Table{}
}

// Register appends a route. Patterns containing no '(' are literal and
// matched by string equality; anything else compiles to an anchored regexp
// after typed-group rewriting. Unknown capture tags fail here, not at
// match time.
func (t *Table) Register(pattern, handlerRef string, args map[string]any) error {
	route := &Route{Pattern: pattern, HandlerRef: handlerRef, Args: args}

	if !strings.ContainsRune(pattern, '(') {
		route.literal = true
		t.routes = append(t.routes, route)
		return nil
	}

	rewritten, captures, err := rewritePattern(pattern)
	if err != nil {
		return err
	}
	re, err := regexp.Compile("^" + rewritten + "$")
	if err != nil {
		return fmt.Errorf("router: pattern %q: %w", pattern, err)
	}
	// Captures resolve by named-group index, so stray capturing groups in
	// a user's regex cannot shift them.
	for i := range captures {
		captures[i].idx = re.SubexpIndex(captures[i].group)
	}
	route.re = re
	route.captures = captures
	t.routes = append(t.routes, route)
	return nil
}

// Len reports the number of registered routes.
func (t *Table) Len() int { return len(t.routes) }

// Resolve walks the table in order and returns the first route whose
// pattern matches the path and whose captured values coerce to their
// declared types. A coercion failure falls through to the next route.
func (t *Table) Resolve(path string) (*Route, Params, bool) {
	for _, route := range t.routes {
		if route.literal {
			if route.Pattern == path {
				return route, nil, true
			}
			continue
		}

		m := route.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params, ok := coerce(route.captures, m)
		if !ok {
			continue
		}
		return route, params, true
	}
	return nil, nil, false
}

// rewritePattern converts "(tag:regex)" groups to "(?P<tag_N>regex)" and
// records the coercion kind per group. A paren scanner rather than a regex
// keeps nested groups inside the user's regex intact.
func rewritePattern(pattern string) (string, []capture, error) {
	var (
		out      strings.Builder
		captures []capture
		depth    int
	)

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			out.WriteByte(c)
			out.WriteByte(pattern[i+1])
			i++
			continue
		}
		if c != '(' {
			if c == ')' && depth > 0 {
				depth--
			}
			out.WriteByte(c)
			continue
		}

		// Inside a user regex group, or a non-capturing group: pass through.
		if depth > 0 || strings.HasPrefix(pattern[i:], "(?") {
			depth++
			out.WriteByte(c)
			continue
		}

		tag, tagged := groupTag(pattern[i+1:])
		if !tagged {
			// Untagged group: matched but produces no param, so it must
			// not shift capture positions.
			out.WriteString("(?:")
			depth++
			continue
		}
		kind, known := captureTypes[tag]
		if !known {
			return "", nil, fmt.Errorf("router: pattern %q: unknown capture type %q", pattern, tag)
		}

		groupName := fmt.Sprintf("%s_%d", tag, len(captures))
		captures = append(captures, capture{name: tag, group: groupName, kind: kind})
		out.WriteString("(?P<" + groupName + ">")
		depth++
		i += 1 + len(tag)
	}

	return out.String(), captures, nil
}

// groupTag reads a lowercase identifier followed by ':' from the start of a
// group body. Anything else means the group is untagged.
func groupTag(rest string) (string, bool) {
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == ':' {
			return rest[:i], i > 0
		}
		if c < 'a' || c > 'z' {
			return "", false
		}
	}
	return "", false
}

func coerce(captures []capture, match []string) (Params, bool) {
	params := make(Params, 0, len(captures))
	for _, cp := range captures {
		raw := match[cp.idx]
		switch cp.kind {
		case KindInt:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, false
			}
			params = append(params, Param{Name: cp.name, Value: n})
		case KindFloat:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, false
			}
			params = append(params, Param{Name: cp.name, Value: f})
		case KindBool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, false
			}
			params = append(params, Param{Name: cp.name, Value: b})
		default:
			params = append(params, Param{Name: cp.name, Value: raw})
		}
	}
	return params, true
}
