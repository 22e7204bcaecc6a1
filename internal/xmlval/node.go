// Package xmlval implements the XML node-tree variant (value.Value kind
// KindXML) on top of github.com/beevik/etree, including the XPath-subset
// addressing the `match`/embedded-expansion keywords need.
package xmlval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Node wraps a single etree.Element together with the owning document,
// the document being needed so new elements/attributes created on this
// node are serialized without a stray XML declaration.
type Node struct {
	elem *etree.Element
	doc  *etree.Document
}

// Parse reads an XML literal into a root Node.
func Parse(xmlText string) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		return nil, fmt.Errorf("xmlval: parse: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("xmlval: document has no root element")
	}
	return &Node{elem: root, doc: doc}, nil
}

// NewElement creates a standalone root element with the given tag name.
func NewElement(tag string) *Node {
	doc := etree.NewDocument()
	el := doc.CreateElement(tag)
	return &Node{elem: el, doc: doc}
}

func wrap(doc *etree.Document, el *etree.Element) *Node {
	return &Node{elem: el, doc: doc}
}

// Element exposes the underlying etree element for packages (expand,
// expr) that need direct child/attribute manipulation beyond this
// package's capability methods.
func (n *Node) Element() *etree.Element { return n.elem }

// Tag returns the element's tag name.
func (n *Node) Tag() string { return n.elem.Tag }

// Serialize renders this node (and its subtree) as XML text with no XML
// declaration, satisfying value.XMLNode.
func (n *Node) Serialize() string {
	doc := etree.NewDocument()
	doc.SetRoot(n.elem.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// Text returns the element's direct text content (CDATA nodes coerce to
// plain string).
func (n *Node) Text() string {
	return n.elem.Text()
}

// SetText replaces the element's text content.
func (n *Node) SetText(s string) {
	n.elem.SetText(s)
}

// Attr returns an attribute value by name.
func (n *Node) Attr(name string) (string, bool) {
	a := n.elem.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// SetAttr sets an attribute, creating it if absent.
func (n *Node) SetAttr(name, val string) {
	n.elem.CreateAttr(name, val)
}

// RemoveAttr deletes an attribute (the `##()` optional-placeholder case
// on an attribute).
func (n *Node) RemoveAttr(name string) {
	n.elem.RemoveAttr(name)
}

// Children returns the element's direct child elements in document order.
func (n *Node) Children() []*Node {
	kids := n.elem.ChildElements()
	out := make([]*Node, len(kids))
	for i, k := range kids {
		out[i] = wrap(n.doc, k)
	}
	return out
}

// CreateChild appends a new child element with the given tag.
func (n *Node) CreateChild(tag string) *Node {
	return wrap(n.doc, n.elem.CreateElement(tag))
}

// RemoveSelf detaches this node from its parent (a `##()` placeholder on
// the only child of an element removes the element).
func (n *Node) RemoveSelf() {
	if p := n.elem.Parent(); p != nil {
		p.RemoveChild(n.elem)
	}
}

// Import copies other into this node's owning document and appends it
// as a child — the cross-document adoption needed when an embedded
// expression evaluates to an XML node.
func (n *Node) Import(other *Node) *Node {
	copy := other.elem.Copy()
	n.elem.AddChild(copy)
	return wrap(n.doc, copy)
}

// Find resolves an etree path expression (the XPath subset this package
// supports — element/attribute/predicate addressing, not the full XPath
// axis set) relative to this node.
func (n *Node) Find(path string) ([]*Node, error) {
	if fn, arg, ok := parseXPathFunction(path); ok {
		return n.evalFunctionAsNodes(fn, arg)
	}
	els := n.elem.FindElements(normalizeAttrPath(path))
	out := make([]*Node, len(els))
	for i, e := range els {
		out[i] = wrap(n.doc, e)
	}
	return out, nil
}

// FindAttr resolves a path ending in /@name to an attribute value.
func (n *Node) FindAttr(path string) (string, bool) {
	idx := strings.LastIndex(path, "/@")
	if idx < 0 {
		return "", false
	}
	elPath, attrName := path[:idx], path[idx+2:]
	var el *etree.Element
	if elPath == "" || elPath == "." {
		el = n.elem
	} else {
		el = n.elem.FindElement(elPath)
	}
	if el == nil {
		return "", false
	}
	a := el.SelectAttr(attrName)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// normalizeAttrPath returns path unchanged; it does not strip a trailing
// "/@attr" segment. Callers needing an attribute use FindAttr instead.
func normalizeAttrPath(path string) string {
	return path
}

// EvalFunction evaluates the small set of XPath functions this package
// supports (count(...) plus numeric coercion of its result).
func (n *Node) EvalFunction(expr string) (any, error) {
	fn, arg, ok := parseXPathFunction(expr)
	if !ok {
		return nil, fmt.Errorf("xmlval: not a function expression: %q", expr)
	}
	switch fn {
	case "count":
		els := n.elem.FindElements(arg)
		return int64(len(els)), nil
	default:
		return nil, fmt.Errorf("xmlval: unsupported xpath function %q", fn)
	}
}

func (n *Node) evalFunctionAsNodes(fn, arg string) ([]*Node, error) {
	v, err := n.EvalFunction(fn + "(" + arg + ")")
	if err != nil {
		return nil, err
	}
	_ = v
	return nil, fmt.Errorf("xmlval: function %q does not produce a node-set", fn)
}

func parseXPathFunction(expr string) (fn, arg string, ok bool) {
	expr = strings.TrimSpace(expr)
	open := strings.Index(expr, "(")
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return "", "", false
	}
	name := expr[:open]
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return "", "", false
		}
	}
	if name == "" {
		return "", "", false
	}
	return name, expr[open+1 : len(expr)-1], true
}

// CoerceNumeric converts a string result into int64/float64, coercing
// numeric strings to int/float as appropriate and falling back to the
// original string.
func CoerceNumeric(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
