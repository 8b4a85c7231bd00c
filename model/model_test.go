package model

import (
	"regexp"
	"strings"
	"testing"
)

func userModel() *Model {
	return New(
		Field{Name: "name", Kind: String, Required: true, Pattern: regexp.MustCompile(`^[a-z]+$`)},
		Field{Name: "age", Kind: Int, Min: 1, Max: 150},
		Field{Name: "score", Kind: Float, Default: 0.5},
		Field{Name: "admin", Kind: Bool, Groups: []string{"create"}},
	)
}

func TestValidateHappyPath(t *testing.T) {
	values, errs := userModel().Validate(map[string][]string{
		"name":  {"alice"},
		"age":   {"30"},
		"admin": {"true"},
	}, "")
	if errs != nil {
		t.Fatalf("errs = %v", errs)
	}
	if values.String("name") != "alice" {
		t.Fatalf("name = %v", values["name"])
	}
	if values.Int("age") != 30 {
		t.Fatalf("age = %v", values["age"])
	}
	if values.Float("score") != 0.5 {
		t.Fatalf("default not applied: %v", values["score"])
	}
	if !values.Bool("admin") {
		t.Fatalf("admin = %v", values["admin"])
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	_, errs := userModel().Validate(map[string][]string{
		"name": {"Not Lowercase"},
		"age":  {"999"},
	}, "")
	if errs == nil {
		t.Fatal("expected errors")
	}
	if _, ok := errs["name"]; !ok {
		t.Fatalf("name error missing: %v", errs)
	}
	if _, ok := errs["age"]; !ok {
		t.Fatalf("age error missing: %v", errs)
	}
	if !strings.Contains(errs.Error(), "age: above maximum") {
		t.Fatalf("Error() = %q", errs.Error())
	}
}

func TestValidateRequired(t *testing.T) {
	_, errs := userModel().Validate(map[string][]string{}, "")
	if errs["name"] != "required" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestValidateGroups(t *testing.T) {
	// admin belongs only to the create group and must be ignored in
	// update.
	values, errs := userModel().Validate(map[string][]string{
		"name":  {"bob"},
		"admin": {"not-a-bool"},
	}, "update")
	if errs != nil {
		t.Fatalf("errs = %v", errs)
	}
	if _, ok := values["admin"]; ok {
		t.Fatal("out-of-group field validated")
	}
}

func TestValidateCoercionFailures(t *testing.T) {
	m := New(
		Field{Name: "n", Kind: Int},
		Field{Name: "f", Kind: Float},
		Field{Name: "b", Kind: Bool},
	)
	tests := []struct {
		field string
		raw   string
	}{
		{"n", "abc"},
		{"f", "x.y"},
		{"b", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, errs := m.Validate(map[string][]string{tt.field: {tt.raw}}, "")
			if errs[tt.field] == "" {
				t.Fatalf("no error for %s=%q: %v", tt.field, tt.raw, errs)
			}
		})
	}
}

func TestValidateNetworkKinds(t *testing.T) {
	m := New(
		Field{Name: "email", Kind: Email},
		Field{Name: "host", Kind: Domain},
		Field{Name: "addr", Kind: IPAddress},
	)
	tests := []struct {
		field string
		raw   string
		ok    bool
	}{
		{"email", "alice@example.com", true},
		{"email", "not-an-email", false},
		{"host", "api.example.co.uk", true},
		{"host", "-bad-.example", false},
		{"addr", "192.168.0.1", true},
		{"addr", "::1", true},
		{"addr", "999.1.1.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.raw, func(t *testing.T) {
			_, errs := m.Validate(map[string][]string{tt.field: {tt.raw}}, "")
			if tt.ok && errs != nil {
				t.Fatalf("errs = %v", errs)
			}
			if !tt.ok && errs[tt.field] == "" {
				t.Fatalf("accepted %s=%q", tt.field, tt.raw)
			}
		})
	}
}

func TestValidateConditionalRequirement(t *testing.T) {
	m := New(
		Field{Name: "company", Kind: String, Required: true, When: func(params map[string][]string) bool {
			return len(params["business"]) > 0 && params["business"][0] == "true"
		}},
	)

	if _, errs := m.Validate(map[string][]string{"business": {"false"}}, ""); errs != nil {
		t.Fatalf("errs = %v", errs)
	}
	_, errs := m.Validate(map[string][]string{"business": {"true"}}, "")
	if errs["company"] != "required" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestValidateMessageTemplate(t *testing.T) {
	m := New(
		Field{Name: "age", Kind: Int, Required: true, Message: "field $1 failed: $3"},
	)
	_, errs := m.Validate(map[string][]string{}, "")
	if errs["age"] != "field age failed: required" {
		t.Fatalf("errs = %v", errs)
	}
	_, errs = m.Validate(map[string][]string{"age": {"abc"}}, "")
	if errs["age"] != "field age failed: not an integer" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestNewPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(Field{Name: "x"}, Field{Name: "x"})
}
