package xmlval

import (
	"github.com/blackcoderx/talon/internal/value"
)

// ToMap coerces an XML node into an ordered map: attributes become
// "@name" keys; a child element with neither attributes nor children
// becomes its plain string text, any other child a nested map; an
// element's own text is kept as "#text" only when it has no child
// elements. Repeated child tags become a list. The `json` keyword does
// not call it; an XML value assigned with `json` stays XML.
func ToMap(n *Node) *value.OrderedMap {
	om := value.NewOrderedMap()
	for _, a := range n.elem.Attr {
		om.Set("@"+a.Key, value.NewString(a.Value))
	}
	children := n.Children()
	if len(children) == 0 {
		text := n.Text()
		if om.Len() == 0 {
			return singleTextMap(text)
		}
		if text != "" {
			om.Set("#text", value.NewString(text))
		}
		return om
	}
	byTag := map[string][]value.Value{}
	order := []string{}
	for _, c := range children {
		v := childValue(c)
		if _, seen := om.Get(c.Tag()); !seen {
			if _, ok := indexOf(order, c.Tag()); !ok {
				order = append(order, c.Tag())
			}
		}
		byTag[c.Tag()] = append(byTag[c.Tag()], v)
	}
	for _, tag := range order {
		vs := byTag[tag]
		if len(vs) == 1 {
			om.Set(tag, vs[0])
		} else {
			om.Set(tag, value.NewList(vs))
		}
	}
	return om
}

func childValue(c *Node) value.Value {
	if len(c.Children()) == 0 && len(c.elem.Attr) == 0 {
		return value.NewString(c.Text())
	}
	return value.NewMap(ToMap(c))
}

func singleTextMap(text string) *value.OrderedMap {
	om := value.NewOrderedMap()
	if text != "" {
		om.Set("#text", value.NewString(text))
	}
	return om
}

func indexOf(ss []string, s string) (int, bool) {
	for i, x := range ss {
		if x == s {
			return i, true
		}
	}
	return -1, false
}

// FromMap builds an XML element tree named rootTag from an ordered map
// using the same "@attr"/"#text" convention ToMap reads. The `xml`
// keyword does not call it; that keyword only parses XML text.
func FromMap(rootTag string, m *value.OrderedMap) *Node {
	root := NewElement(rootTag)
	populateElement(root, m)
	return root
}

func populateElement(n *Node, m *value.OrderedMap) {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		switch {
		case k == "#text":
			n.SetText(value.Stringify(v))
		case len(k) > 0 && k[0] == '@':
			n.SetAttr(k[1:], value.Stringify(v))
		default:
			appendChild(n, k, v)
		}
	}
}

func appendChild(n *Node, tag string, v value.Value) {
	if list, ok := v.IntoList(); ok {
		for _, item := range list {
			appendChild(n, tag, item)
		}
		return
	}
	child := n.CreateChild(tag)
	if om, ok := v.IntoMap(); ok {
		populateElement(child, om)
		return
	}
	if xn, ok := v.IntoXML(); ok {
		if xnode, ok2 := xn.(*Node); ok2 {
			n.Import(xnode)
			n.elem.RemoveChild(child.elem)
			return
		}
	}
	child.SetText(value.Stringify(v))
}
