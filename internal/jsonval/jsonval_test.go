package jsonval

import "testing"

func TestParsePreservesObjectKeyOrder(t *testing.T) {
	v, err := Parse(`{"z": 1, "a": 2, "m": 3}`)
	if err != nil {
		t.Fatal(err)
	}
	om, ok := v.IntoMap()
	if !ok {
		t.Fatal("expected a map")
	}
	keys := om.Keys()
	want := []string{"z", "a", "m"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys[%d] = %q, want %q (got %v)", i, keys[i], k, keys)
		}
	}
}

func TestParseNestedStructures(t *testing.T) {
	v, err := Parse(`{"list": [1, 2, {"nested": true}], "n": null}`)
	if err != nil {
		t.Fatal(err)
	}
	om, _ := v.IntoMap()
	listV, _ := om.Get("list")
	list, ok := listV.IntoList()
	if !ok || len(list) != 3 {
		t.Fatalf("expected a 3-element list, got %v", list)
	}
	nested, _ := list[2].IntoMap()
	nv, _ := nested.Get("nested")
	b, _ := nv.IntoBool()
	if !b {
		t.Fatal("expected nested.nested = true")
	}
	nullV, _ := om.Get("n")
	if !nullV.IsNull() {
		t.Fatal("expected n to be null")
	}
}

func TestParseNumberDistinguishesIntAndFloat(t *testing.T) {
	v, err := Parse(`{"i": 5, "f": 5.5}`)
	if err != nil {
		t.Fatal(err)
	}
	om, _ := v.IntoMap()
	iv, _ := om.Get("i")
	fv, _ := om.Get("f")
	if n, ok := iv.IntoInt(); !ok || n != 5 {
		t.Fatalf("i = %v, want int 5", iv)
	}
	if f, ok := fv.IntoFloat(); !ok || f != 5.5 {
		t.Fatalf("f = %v, want float 5.5", fv)
	}
}

func TestIsJSONLiteral(t *testing.T) {
	cases := map[string]bool{
		"  { \"a\": 1 }": true,
		"[1, 2, 3]":      true,
		"not json":       false,
		"":                false,
	}
	for text, want := range cases {
		if got := IsJSONLiteral(text); got != want {
			t.Fatalf("IsJSONLiteral(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestQueryJSONPathBasic(t *testing.T) {
	doc, err := Parse(`{"store": {"items": [{"id": 1}, {"id": 2}, {"id": 3}]}}`)
	if err != nil {
		t.Fatal(err)
	}
	results, err := Query("$.store.items[*].id", doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
}

func TestQueryFirstReturnsFalseOnNoMatch(t *testing.T) {
	doc, err := Parse(`{"a": 1}`)
	if err != nil {
		t.Fatal(err)
	}
	_, found, err := QueryFirst("$.missing", doc)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no match for a missing path")
	}
}
