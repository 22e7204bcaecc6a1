package xmlval

import "testing"

func TestParseAndSerializeRoundTrip(t *testing.T) {
	n, err := Parse(`<cat><name>felix</name></cat>`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Tag() != "cat" {
		t.Fatalf("Tag() = %q, want cat", n.Tag())
	}
	children := n.Children()
	if len(children) != 1 || children[0].Tag() != "name" {
		t.Fatalf("expected one child 'name', got %v", children)
	}
	if children[0].Text() != "felix" {
		t.Fatalf("Text() = %q, want felix", children[0].Text())
	}
}

func TestSerializeOmitsXMLDeclaration(t *testing.T) {
	n, err := Parse(`<a>hi</a>`)
	if err != nil {
		t.Fatal(err)
	}
	s := n.Serialize()
	if len(s) == 0 {
		t.Fatal("expected non-empty serialization")
	}
	if containsDeclaration(s) {
		t.Fatalf("Serialize() included an xml declaration: %q", s)
	}
}

func containsDeclaration(s string) bool {
	for i := 0; i+5 <= len(s); i++ {
		if s[i:i+5] == "<?xml" {
			return true
		}
	}
	return false
}

func TestAttrSetAndGet(t *testing.T) {
	n := NewElement("root")
	n.SetAttr("id", "42")
	v, ok := n.Attr("id")
	if !ok || v != "42" {
		t.Fatalf("Attr(id) = (%q, %v), want (42, true)", v, ok)
	}
	n.RemoveAttr("id")
	if _, ok := n.Attr("id"); ok {
		t.Fatal("expected id to be removed")
	}
}

func TestFindElementsByPath(t *testing.T) {
	n, err := Parse(`<store><item id="1"/><item id="2"/></store>`)
	if err != nil {
		t.Fatal(err)
	}
	found, err := n.Find("item")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("got %d items, want 2", len(found))
	}
}

func TestFindAttrResolvesAttributePath(t *testing.T) {
	n, err := Parse(`<store><item id="7"/></store>`)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := n.FindAttr("item/@id")
	if !ok || v != "7" {
		t.Fatalf("FindAttr = (%q, %v), want (7, true)", v, ok)
	}
}

func TestEvalFunctionCount(t *testing.T) {
	n, err := Parse(`<store><item/><item/><item/></store>`)
	if err != nil {
		t.Fatal(err)
	}
	got, err := n.EvalFunction("count(item)")
	if err != nil {
		t.Fatal(err)
	}
	if got.(int64) != 3 {
		t.Fatalf("count = %v, want 3", got)
	}
}

func TestCoerceNumeric(t *testing.T) {
	if got := CoerceNumeric("42"); got != int64(42) {
		t.Fatalf("CoerceNumeric(42) = %v (%T), want int64(42)", got, got)
	}
	if got := CoerceNumeric("3.14"); got != 3.14 {
		t.Fatalf("CoerceNumeric(3.14) = %v, want 3.14", got)
	}
	if got := CoerceNumeric("hello"); got != "hello" {
		t.Fatalf("CoerceNumeric(hello) = %v, want hello", got)
	}
}

func TestImportAdoptsNodeIntoOwningDocument(t *testing.T) {
	parent, err := Parse(`<a></a>`)
	if err != nil {
		t.Fatal(err)
	}
	child, err := Parse(`<b>x</b>`)
	if err != nil {
		t.Fatal(err)
	}
	imported := parent.Import(child)
	if imported.Tag() != "b" {
		t.Fatalf("imported.Tag() = %q, want b", imported.Tag())
	}
	kids := parent.Children()
	if len(kids) != 1 || kids[0].Tag() != "b" {
		t.Fatalf("expected parent to gain one child 'b', got %v", kids)
	}
}

func TestRemoveSelfDetachesFromParent(t *testing.T) {
	n, err := Parse(`<a><b/></a>`)
	if err != nil {
		t.Fatal(err)
	}
	kids := n.Children()
	if len(kids) != 1 {
		t.Fatalf("expected 1 child, got %d", len(kids))
	}
	kids[0].RemoveSelf()
	if len(n.Children()) != 0 {
		t.Fatal("expected child to be removed after RemoveSelf")
	}
}
