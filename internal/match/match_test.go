package match

import (
	"strings"
	"testing"

	"github.com/blackcoderx/talon/internal/value"
)

func mapOf(pairs ...any) value.Value {
	om := value.NewOrderedMap()
	for i := 0; i < len(pairs); i += 2 {
		om.Set(pairs[i].(string), pairs[i+1].(value.Value))
	}
	return value.NewMap(om)
}

func TestMatchEqualsScalars(t *testing.T) {
	cases := []struct {
		name string
		exp  value.Value
		act  value.Value
		pass bool
	}{
		{"equal strings", value.NewString("hi"), value.NewString("hi"), true},
		{"different strings", value.NewString("hi"), value.NewString("bye"), false},
		{"int vs float coercion", value.NewInt(5), value.NewFloat(5.0), true},
		{"different numbers", value.NewInt(5), value.NewInt(6), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := Match(OpEquals, c.exp, c.act)
			if r.Pass != c.pass {
				t.Fatalf("Match(==, %v, %v) pass = %v, want %v (%s)", c.exp, c.act, r.Pass, c.pass, r.Message)
			}
		})
	}
}

func TestMatchNumericMismatchMessageFormat(t *testing.T) {
	r := Match(OpEquals, value.NewInt(2), value.NewInt(1))
	if r.Pass {
		t.Fatal("expected mismatch to fail")
	}
	if !strings.Contains(r.Message, "expected: 2 actual: 1") {
		t.Fatalf("message %q does not contain %q", r.Message, "expected: 2 actual: 1")
	}
}

func TestMatchMarkers(t *testing.T) {
	cases := []struct {
		name string
		exp  value.Value
		act  value.Value
		pass bool
	}{
		{"#string matches a string", value.NewString("#string"), value.NewString("anything"), true},
		{"#string rejects a number", value.NewString("#string"), value.NewInt(1), false},
		{"#number matches int", value.NewString("#number"), value.NewInt(1), true},
		{"#notpresent accepts missing key", value.NewString("#notpresent"), value.NotPresent(), true},
		{"#present rejects missing key", value.NewString("#present"), value.NotPresent(), false},
		{"#uuid matches a uuid string", value.NewString("#uuid"), value.NewString("550e8400-e29b-41d4-a716-446655440000"), true},
		{"#uuid rejects a non-uuid string", value.NewString("#uuid"), value.NewString("not-a-uuid"), false},
		{"#regex matches", value.NewString("#regex ^[a-z]+$"), value.NewString("abc"), true},
		{"#regex rejects", value.NewString("#regex ^[a-z]+$"), value.NewString("ABC"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := Match(OpEquals, c.exp, c.act)
			if r.Pass != c.pass {
				t.Fatalf("pass = %v, want %v (%s)", r.Pass, c.pass, r.Message)
			}
		})
	}
}

func TestMatchMapIgnoresNotPresentForMissingKeys(t *testing.T) {
	expected := mapOf("a", value.NewInt(1), "b", value.NewString("#notpresent"))
	actual := mapOf("a", value.NewInt(1))
	r := Match(OpEquals, expected, actual)
	if !r.Pass {
		t.Fatalf("expected pass, got fail: %s", r.Message)
	}
}

func TestMatchContains(t *testing.T) {
	expected := mapOf("a", value.NewInt(1))
	actual := mapOf("a", value.NewInt(1), "b", value.NewInt(2))
	r := Match(OpContains, expected, actual)
	if !r.Pass {
		t.Fatalf("expected contains to pass, got: %s", r.Message)
	}

	r2 := Match(OpEquals, expected, actual)
	if r2.Pass {
		t.Fatal("expected == to fail when actual has an extra key")
	}
}

func TestMatchContainsOnlyRequiresExactKeyCount(t *testing.T) {
	expected := mapOf("a", value.NewInt(1))
	actual := mapOf("a", value.NewInt(1), "b", value.NewInt(2))
	r := Match(OpContainsOnly, expected, actual)
	if r.Pass {
		t.Fatal("expected contains only to fail when actual has an extra key")
	}
}

func TestMatchContainsAnyList(t *testing.T) {
	expected := value.NewList([]value.Value{value.NewInt(1), value.NewInt(99)})
	actual := value.NewList([]value.Value{value.NewInt(1), value.NewInt(2)})
	r := Match(OpContainsAny, expected, actual)
	if !r.Pass {
		t.Fatalf("expected contains any to pass, got: %s", r.Message)
	}
}

func TestMatchNotEquals(t *testing.T) {
	r := Match(OpNotEquals, value.NewInt(1), value.NewInt(2))
	if !r.Pass {
		t.Fatal("expected != to pass for distinct values")
	}
	r2 := Match(OpNotEquals, value.NewInt(1), value.NewInt(1))
	if r2.Pass {
		t.Fatal("expected != to fail for equal values")
	}
}

func TestParseOp(t *testing.T) {
	cases := map[string]Op{
		"":                    OpEquals,
		"!=":                  OpNotEquals,
		"contains":            OpContains,
		"contains deep":       OpContainsDeep,
		"contains only":       OpContainsOnly,
		"contains only deep":  OpContainsOnlyDeep,
		"contains any":        OpContainsAny,
		"contains any deep":   OpContainsAnyDeep,
		"!contains":           OpNotContains,
	}
	for text, want := range cases {
		if got := ParseOp(text); got != want {
			t.Fatalf("ParseOp(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestFormatNumberTrimsWholeFloats(t *testing.T) {
	if got := FormatNumber(value.NewFloat(5.0)); got != "5" {
		t.Fatalf("FormatNumber(5.0) = %q, want %q", got, "5")
	}
	if got := FormatNumber(value.NewFloat(5.5)); got != "5.5" {
		t.Fatalf("FormatNumber(5.5) = %q, want %q", got, "5.5")
	}
}
