// Package expand implements embedded-expression substitution: walking a map/list/XML value tree and replacing `#(expr)` /
// `##(expr)` placeholders with evaluated values.
package expand

import (
	"regexp"
	"strings"

	"github.com/blackcoderx/talon/internal/value"
	"github.com/blackcoderx/talon/internal/xmlval"
)

// Evaluator is the minimal capability expand needs: evaluate a script
// expression against the current scope. internal/script.Engine
// satisfies this; expand depends only on this narrow interface (not on
// package script) so that package expr can depend on both expand and
// script without forming a cycle.
type Evaluator interface {
	Eval(source string) (value.Value, error)
}

// placeholder matches a whole-string `#(...)` or `##(...)` expression —
// the case where the entire map value / text node IS the placeholder,
// as opposed to one embedded inside a larger string.
var placeholder = regexp.MustCompile(`^(##?)\(((?s).*)\)$`)

// inline matches `#(...)`/`##(...)` occurrences embedded inside a larger
// string, non-greedy so adjacent placeholders don't over-match.
var inline = regexp.MustCompile(`(##?)\(([^()]*(?:\([^()]*\)[^()]*)*)\)`)

// Walk expands a value tree and returns the expanded root: maps and
// lists are rebuilt as new values (omitting entries whose bare `##(...)`
// placeholder evaluated to null), XML nodes are modified in place, and a
// top-level string goes through inline substitution. Errors evaluating
// an individual placeholder do not abort the walk; the original text is
// preserved.
func Walk(eval Evaluator, v value.Value) value.Value {
	switch v.Kind() {
	case value.KindMap:
		om, _ := v.IntoMap()
		out := value.NewOrderedMap()
		for _, k := range om.Keys() {
			child, _ := om.Get(k)
			expanded, deleted := expandEntry(eval, child)
			if deleted {
				continue
			}
			out.Set(k, expanded)
		}
		return value.NewMap(out)
	case value.KindList:
		list, _ := v.IntoList()
		out := make([]value.Value, 0, len(list))
		for _, child := range list {
			expanded, deleted := expandEntry(eval, child)
			if deleted {
				// An optional placeholder evaluating to null removes
				// the element entirely.
				continue
			}
			out = append(out, expanded)
		}
		return value.NewList(out)
	case value.KindXML:
		node, _ := v.IntoXML()
		if xn, ok := node.(*xmlval.Node); ok {
			walkXML(eval, xn)
		}
		return v
	case value.KindString:
		s, _ := v.IntoString()
		return value.NewString(expandString(eval, s))
	default:
		return v
	}
}

// expandEntry expands one map-entry or list-element value. It returns
// deleted=true when the entry is a bare `##(...)` placeholder whose
// expression evaluated to null, signalling the caller to omit the entry.
func expandEntry(eval Evaluator, v value.Value) (value.Value, bool) {
	if v.Kind() == value.KindString {
		s, _ := v.IntoString()
		if m := placeholder.FindStringSubmatch(s); m != nil {
			optional := m[1] == "##"
			result, err := eval.Eval(m[2])
			if err != nil {
				return v, false // preserve original text on error
			}
			if optional && result.IsNull() {
				return value.Null(), true
			}
			return result, false
		}
	}
	return Walk(eval, v), false
}

// expandString substitutes every `#(...)`/`##(...)` occurrence inside a
// larger string with the stringified evaluated value; an optional
// placeholder that evaluates to null substitutes empty.
func expandString(eval Evaluator, s string) string {
	if !strings.Contains(s, "#(") {
		return s
	}
	return inline.ReplaceAllStringFunc(s, func(match string) string {
		groups := inline.FindStringSubmatch(match)
		optional := groups[1] == "##"
		result, err := eval.Eval(groups[2])
		if err != nil {
			return match
		}
		if optional && result.IsNull() {
			return ""
		}
		return value.Stringify(result)
	})
}

// walkXML descends into element children and attributes, substituting
// placeholders. An element whose only child is balanced text consisting
// of a single `#(...)`/`##(...)` placeholder is replaced in place; if the
// evaluated value is itself an XML node it is imported into the owning
// document.
func walkXML(eval Evaluator, n *xmlval.Node) {
	for _, attrName := range attrNames(n) {
		raw, _ := n.Attr(attrName)
		if m := placeholder.FindStringSubmatch(raw); m != nil {
			optional := m[1] == "##"
			result, err := eval.Eval(m[2])
			if err != nil {
				continue
			}
			if optional && result.IsNull() {
				n.RemoveAttr(attrName)
				continue
			}
			n.SetAttr(attrName, value.Stringify(result))
			continue
		}
		n.SetAttr(attrName, expandString(eval, raw))
	}

	children := n.Children()
	if len(children) == 0 {
		text := n.Text()
		if m := placeholder.FindStringSubmatch(text); m != nil {
			optional := m[1] == "##"
			result, err := eval.Eval(m[2])
			if err != nil {
				return
			}
			if optional && result.IsNull() {
				n.RemoveSelf()
				return
			}
			if xn, ok := result.IntoXML(); ok {
				if resultNode, ok2 := xn.(*xmlval.Node); ok2 {
					n.Import(resultNode)
					n.SetText("")
					return
				}
			}
			n.SetText(value.Stringify(result))
			return
		}
		if text != "" {
			n.SetText(expandString(eval, text))
		}
		return
	}
	for _, c := range children {
		walkXML(eval, c)
	}
}

func attrNames(n *xmlval.Node) []string {
	var names []string
	for _, a := range n.Element().Attr {
		names = append(names, a.Key)
	}
	return names
}
