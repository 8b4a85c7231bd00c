package router

import (
	"strings"
	"testing"
)

func mustRegister(t *testing.T, tab *Table, pattern, ref string) {
	t.Helper()
	if err := tab.Register(pattern, ref, nil); err != nil {
		t.Fatalf("Register(%q): %v", pattern, err)
	}
}

func TestTableLiteralMatch(t *testing.T) {
	tab := NewTable()
	mustRegister(t, tab, "/health", "system.health")
	mustRegister(t, tab, "/", "system.index")

	route, params, ok := tab.Resolve("/health")
	if !ok || route.HandlerRef != "system.health" {
		t.Fatalf("resolve /health: %v %v", route, ok)
	}
	if params != nil {
		t.Fatalf("literal route produced params: %v", params)
	}

	if _, _, ok := tab.Resolve("/health/"); ok {
		t.Fatal("literal match must be exact")
	}
}

func TestTableTypedCaptures(t *testing.T) {
	tab := NewTable()
	mustRegister(t, tab, `/user/(number:\d+)`, "user.byID")
	mustRegister(t, tab, `/user/(word:[a-z]+)`, "user.byName")
	mustRegister(t, tab, `/scale/(float:[\d.]+)/on/(bool:true|false)`, "scale.set")

	route, params, ok := tab.Resolve("/user/42")
	if !ok || route.HandlerRef != "user.byID" {
		t.Fatalf("resolve: %v %v", route, ok)
	}
	if n, _ := params.Int("number"); n != 42 {
		t.Fatalf("number = %v", params)
	}

	route, params, ok = tab.Resolve("/user/alice")
	if !ok || route.HandlerRef != "user.byName" {
		t.Fatalf("resolve: %v %v", route, ok)
	}
	if s, _ := params.String("word"); s != "alice" {
		t.Fatalf("word = %v", params)
	}

	_, params, ok = tab.Resolve("/scale/2.5/on/true")
	if !ok {
		t.Fatal("scale route did not match")
	}
	if f, _ := params.Float("float"); f != 2.5 {
		t.Fatalf("float = %v", params)
	}
	if b, _ := params.Bool("bool"); !b {
		t.Fatalf("bool = %v", params)
	}
}

func TestTableOrderedFirstMatch(t *testing.T) {
	tab := NewTable()
	mustRegister(t, tab, `/item/(word:\w+)`, "item.first")
	mustRegister(t, tab, `/item/(word:\w+)`, "item.second")

	route, _, ok := tab.Resolve("/item/x")
	if !ok || route.HandlerRef != "item.first" {
		t.Fatalf("first registration must win, got %v", route)
	}
}

func TestTableCoercionFallthrough(t *testing.T) {
	// \d{20} overflows int64, so coercion fails and the next route takes
	// the path.
	tab := NewTable()
	mustRegister(t, tab, `/n/(number:\d+)`, "n.int")
	mustRegister(t, tab, `/n/(word:\d+)`, "n.raw")

	route, params, ok := tab.Resolve("/n/99999999999999999999")
	if !ok || route.HandlerRef != "n.raw" {
		t.Fatalf("fallthrough failed: %v %v", route, ok)
	}
	if s, _ := params.String("word"); s != "99999999999999999999" {
		t.Fatalf("word = %v", params)
	}
}

func TestTableUnknownTag(t *testing.T) {
	tab := NewTable()
	err := tab.Register(`/x/(uuid:[0-9a-f-]+)`, "x.get", nil)
	if err == nil {
		t.Fatal("unknown tag must fail at registration")
	}
	if !strings.Contains(err.Error(), "uuid") {
		t.Fatalf("error should name the tag: %v", err)
	}
	if tab.Len() != 0 {
		t.Fatal("failed registration must not add a route")
	}
}

func TestTableUntaggedGroup(t *testing.T) {
	// Untagged groups match but yield no params and do not shift the
	// positions of tagged captures.
	tab := NewTable()
	mustRegister(t, tab, `/(v1|v2)/item/(number:\d+)`, "item.get")

	_, params, ok := tab.Resolve("/v2/item/9")
	if !ok {
		t.Fatal("no match")
	}
	if len(params) != 1 {
		t.Fatalf("params = %v", params)
	}
	if n, _ := params.Int("number"); n != 9 {
		t.Fatalf("number = %v", params)
	}
}

func TestTableStrayCapturingGroup(t *testing.T) {
	// A capturing group nested in a user's regex must not shift the typed
	// captures that follow it.
	tab := NewTable()
	mustRegister(t, tab, `/f/((a|b)c)/(number:\d+)`, "f.get")

	_, params, ok := tab.Resolve("/f/ac/7")
	if !ok {
		t.Fatal("no match")
	}
	if len(params) != 1 {
		t.Fatalf("params = %v", params)
	}
	if n, _ := params.Int("number"); n != 7 {
		t.Fatalf("number = %v", params)
	}
}

func TestTableNestedUserGroups(t *testing.T) {
	tab := NewTable()
	mustRegister(t, tab, `/v/(word:(?:ab|cd)+)`, "v.get")

	_, params, ok := tab.Resolve("/v/abcd")
	if !ok {
		t.Fatal("nested non-capturing group did not match")
	}
	if s, _ := params.String("word"); s != "abcd" {
		t.Fatalf("word = %v", params)
	}
}

func TestTableNoMatch(t *testing.T) {
	tab := NewTable()
	mustRegister(t, tab, `/user/(number:\d+)`, "user.byID")
	if _, _, ok := tab.Resolve("/missing"); ok {
		t.Fatal("unexpected match")
	}
}

func TestRouterSwap(t *testing.T) {
	old := NewTable()
	mustRegister(t, old, "/a", "old.a")
	r := New(old)

	if route, _, ok := r.Resolve("/a"); !ok || route.HandlerRef != "old.a" {
		t.Fatalf("before swap: %v %v", route, ok)
	}

	next := NewTable()
	mustRegister(t, next, "/a", "new.a")
	r.Swap(next)

	if route, _, ok := r.Resolve("/a"); !ok || route.HandlerRef != "new.a" {
		t.Fatalf("after swap: %v %v", route, ok)
	}
}
