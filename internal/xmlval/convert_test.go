package xmlval

import (
	"testing"

	"github.com/blackcoderx/talon/internal/value"
)

func TestToMapWithAttributesAndText(t *testing.T) {
	n, err := Parse(`<cat id="1">felix</cat>`)
	if err != nil {
		t.Fatal(err)
	}
	om := ToMap(n)
	idV, ok := om.Get("@id")
	if !ok {
		t.Fatal("expected @id attribute key")
	}
	id, _ := idV.IntoString()
	if id != "1" {
		t.Fatalf("@id = %q, want 1", id)
	}
	textV, ok := om.Get("#text")
	if !ok {
		t.Fatal("expected #text key")
	}
	text, _ := textV.IntoString()
	if text != "felix" {
		t.Fatalf("#text = %q, want felix", text)
	}
}

func TestToMapRepeatedChildTagsBecomeList(t *testing.T) {
	n, err := Parse(`<store><item>a</item><item>b</item></store>`)
	if err != nil {
		t.Fatal(err)
	}
	om := ToMap(n)
	v, ok := om.Get("item")
	if !ok {
		t.Fatal("expected item key")
	}
	list, ok := v.IntoList()
	if !ok || len(list) != 2 {
		t.Fatalf("expected a 2-element list, got %v", v)
	}
}

func TestFromMapBuildsElementTree(t *testing.T) {
	om := value.NewOrderedMap()
	om.Set("@id", value.NewString("5"))
	om.Set("name", value.NewString("felix"))

	n := FromMap("cat", om)
	if n.Tag() != "cat" {
		t.Fatalf("Tag() = %q, want cat", n.Tag())
	}
	idV, ok := n.Attr("id")
	if !ok || idV != "5" {
		t.Fatalf("Attr(id) = (%q, %v), want (5, true)", idV, ok)
	}
	children := n.Children()
	if len(children) != 1 || children[0].Tag() != "name" || children[0].Text() != "felix" {
		t.Fatalf("expected one child name=felix, got %v", children)
	}
}

func TestFromMapListBecomesRepeatedChildren(t *testing.T) {
	om := value.NewOrderedMap()
	om.Set("item", value.NewList([]value.Value{value.NewString("a"), value.NewString("b")}))

	n := FromMap("store", om)
	children := n.Children()
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}
	if children[0].Text() != "a" || children[1].Text() != "b" {
		t.Fatalf("children texts = %q, %q", children[0].Text(), children[1].Text())
	}
}

func TestToMapFromMapRoundTrip(t *testing.T) {
	original := value.NewOrderedMap()
	original.Set("name", value.NewString("felix"))
	original.Set("age", value.NewString("3"))

	n := FromMap("cat", original)
	back := ToMap(n)

	nameV, _ := back.Get("name")
	ageV, _ := back.Get("age")
	name, _ := nameV.IntoString()
	age, _ := ageV.IntoString()
	if name != "felix" || age != "3" {
		t.Fatalf("round trip mismatch: name=%q age=%q", name, age)
	}
}
