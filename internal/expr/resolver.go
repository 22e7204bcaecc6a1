// Package expr implements the Expression Resolver:
// classifying a textual expression and dispatching it to script eval,
// JSON-path, XML XPath, the `get[N]` accessor, or a literal parser.
package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blackcoderx/talon/internal/expand"
	"github.com/blackcoderx/talon/internal/jsonval"
	"github.com/blackcoderx/talon/internal/script"
	"github.com/blackcoderx/talon/internal/value"
	"github.com/blackcoderx/talon/internal/xmlval"
)

// Resolver classifies and resolves a textual expression against a
// scenario's scope and script engine.
type Resolver struct {
	Engine *script.Engine
	Scope  script.Scope
}

func New(engine *script.Engine, scope script.Scope) *Resolver {
	return &Resolver{Engine: engine, Scope: scope}
}

var (
	reGetExpr   = regexp.MustCompile(`^get(\[(-?\d+)\])?\s+(\S+)\s*(.*)$`)
	reDollarVar = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)(.*)$`)
	reXPathVar  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(/.*)$`)
	reXPathFunc = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s+([A-Za-z_]+\(.*\))$`)
	reJSONPath  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\[\*\].*|\[\?.*)$`)
	reSpaceDlr  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\s+(\$.*)$`)
)

// Resolve classifies text and dispatches it to the matching resolution
// rule. matchContext gates the "not present" sentinel behavior,
// surfaced only for matchers, not plain assignment.
func (r *Resolver) Resolve(text string, matchContext bool) (value.Value, error) {
	trimmed := strings.TrimSpace(text)

	// 1. Empty/null.
	if trimmed == "" || trimmed == "null" {
		return value.Null(), nil
	}

	// 2. XML literal.
	if strings.HasPrefix(trimmed, "<") {
		node, err := xmlval.Parse(trimmed)
		if err != nil {
			return value.Null(), fmt.Errorf("expr: invalid xml literal: %w", err)
		}
		return expand.Walk(r.Engine, value.NewXML(node)), nil
	}

	// 3. JSON / data literal.
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if jsonval.IsJSONLiteral(trimmed) {
			if v, err := jsonval.Parse(trimmed); err == nil {
				return expand.Walk(r.Engine, v), nil
			}
		}
		// Not strict JSON: evaluate as a script object/array literal and
		// expand that; if the script engine rejects it too, fall through.
		if v, err := r.Engine.Eval(trimmed); err == nil {
			return expand.Walk(r.Engine, v), nil
		}
	}

	// 4. get[N]? varname path?
	if m := reGetExpr.FindStringSubmatch(trimmed); m != nil && (strings.HasPrefix(trimmed, "get[") || strings.HasPrefix(trimmed, "get ")) {
		return r.resolveGet(m)
	}

	// 5. Leading `$`.
	if strings.HasPrefix(trimmed, "$") {
		return r.resolveDollar(trimmed, matchContext)
	}

	// 6. Leading `/`: XPath on `response` when it is XML.
	if strings.HasPrefix(trimmed, "/") {
		return r.xpathOnResponse(trimmed, matchContext)
	}

	// 7. Trailing " /" or bare "/": the XML variable itself (root).
	if trimmed == "/" {
		return r.getVar("response")
	}
	if strings.HasSuffix(trimmed, " /") {
		name := strings.TrimSpace(strings.TrimSuffix(trimmed, "/"))
		return r.getVar(name)
	}

	// 8. `<name> /xpath` or `<name>/xpath`.
	if m := reXPathVar.FindStringSubmatch(trimmed); m != nil {
		if v, ok := r.Scope.Get(m[1]); ok && v.Kind() == value.KindXML {
			return r.xpath(v, m[2], matchContext)
		}
	}

	// 9. `<name> <xpath-function>(...)`.
	if m := reXPathFunc.FindStringSubmatch(trimmed); m != nil {
		if v, ok := r.Scope.Get(m[1]); ok && v.Kind() == value.KindXML {
			return r.xpathFunction(v, m[2])
		}
	}

	// 10. `name[*]...` / `name[?...`.
	if m := reJSONPath.FindStringSubmatch(trimmed); m != nil {
		if v, ok := r.Scope.Get(m[1]); ok {
			return r.jsonPathOn(v, "$"+m[2])
		}
	}

	// 11. `name $...` (space then a json-path expression).
	if m := reSpaceDlr.FindStringSubmatch(trimmed); m != nil {
		if v, ok := r.Scope.Get(m[1]); ok {
			return r.jsonPathOn(v, m[2])
		}
	}

	// 12. Delegate to the script engine.
	result, err := r.Engine.Eval(trimmed)
	if err != nil {
		return value.Null(), err
	}
	if matchContext && result.IsNull() && isDottedPropertyNoCall(trimmed) {
		if !r.Engine.HasProperty(trimmed) {
			return value.NotPresent(), nil
		}
	}
	return result, nil
}

func (r *Resolver) getVar(name string) (value.Value, error) {
	v, ok := r.Scope.Get(name)
	if !ok {
		return value.Null(), nil
	}
	return v, nil
}

// resolveGet implements `get[N]? varname path?`.
func (r *Resolver) resolveGet(m []string) (value.Value, error) {
	idxStr, varName, path := m[2], m[3], strings.TrimSpace(m[4])
	v, ok := r.Scope.Get(varName)
	if !ok {
		return value.Null(), fmt.Errorf("expr: get: variable %q not found", varName)
	}
	var result value.Value
	var err error
	switch {
	case path == "":
		result = v
	case strings.HasPrefix(path, "$"):
		result, err = r.jsonPathList(v, path)
	case strings.HasPrefix(path, "/"):
		result, err = r.xpath(v, path, false)
	default: // bracket selector, e.g. [0].name — treat as a json-path suffix
		result, err = r.jsonPathOn(v, "$"+path)
	}
	if err != nil {
		return value.Null(), err
	}
	if idxStr != "" {
		list, ok := result.IntoList()
		if !ok {
			return result, nil
		}
		idx := parseIndex(idxStr, len(list))
		if idx < 0 || idx >= len(list) {
			return value.Null(), nil
		}
		return list[idx], nil
	}
	return result, nil
}

func parseIndex(s string, n int) int {
	var i int
	fmt.Sscanf(s, "%d", &i)
	if i < 0 {
		i += n
	}
	return i
}

// resolveDollar implements the bare/`$...` shorthand for addressing the
// response, and `$name...` for addressing a named variable.
func (r *Resolver) resolveDollar(trimmed string, matchContext bool) (value.Value, error) {
	if trimmed == "$" {
		return r.getVar("response")
	}
	if strings.HasPrefix(trimmed, "$[") || strings.HasPrefix(trimmed, "$.") {
		resp, _ := r.Scope.Get("response")
		if resp.Kind() == value.KindXML {
			return resp, nil
		}
		return r.jsonPathOn(resp, trimmed)
	}
	if m := reDollarVar.FindStringSubmatch(trimmed); m != nil {
		name, rest := m[1], m[2]
		v, ok := r.Scope.Get(name)
		if !ok {
			return value.Null(), fmt.Errorf("expr: variable %q not found", name)
		}
		rest = strings.TrimSpace(rest)
		switch {
		case rest == "":
			return v, nil
		case strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, " /"):
			if v.Kind() == value.KindXML {
				return r.xpath(v, strings.TrimSpace(rest), matchContext)
			}
			return r.jsonPathOn(v, "$"+rest)
		default: // `.path` or `[...]`
			return r.jsonPathOn(v, "$"+rest)
		}
	}
	return value.Null(), fmt.Errorf("expr: unrecognized $ expression: %q", trimmed)
}

func (r *Resolver) xpathOnResponse(trimmed string, matchContext bool) (value.Value, error) {
	resp, ok := r.Scope.Get("response")
	if !ok || resp.Kind() != value.KindXML {
		return value.Null(), fmt.Errorf("expr: %q requires an XML response", trimmed)
	}
	return r.xpath(resp, trimmed, matchContext)
}

func (r *Resolver) xpath(v value.Value, path string, matchContext bool) (value.Value, error) {
	node, ok := v.IntoXML()
	if !ok {
		return value.Null(), fmt.Errorf("expr: xpath requires an xml value")
	}
	xn, ok := node.(*xmlval.Node)
	if !ok {
		return value.Null(), fmt.Errorf("expr: unsupported xml node implementation")
	}
	path = strings.TrimSpace(path)
	if idx := strings.LastIndex(path, "/@"); idx >= 0 {
		if attr, ok := xn.FindAttr(path); ok {
			return value.NewString(attr), nil
		}
		if matchContext {
			return value.NotPresent(), nil
		}
		return value.Null(), nil
	}
	nodes, err := xn.Find(path)
	if err != nil {
		return value.Null(), err
	}
	if len(nodes) == 0 {
		if matchContext {
			return value.NotPresent(), nil
		}
		return value.Null(), nil
	}
	if len(nodes) == 1 {
		return value.NewXML(nodes[0]), nil
	}
	out := make([]value.Value, len(nodes))
	for i, n := range nodes {
		out[i] = value.NewXML(n)
	}
	return value.NewList(out), nil
}

func (r *Resolver) xpathFunction(v value.Value, expr string) (value.Value, error) {
	node, ok := v.IntoXML()
	if !ok {
		return value.Null(), fmt.Errorf("expr: xpath function requires an xml value")
	}
	xn, ok := node.(*xmlval.Node)
	if !ok {
		return value.Null(), fmt.Errorf("expr: unsupported xml node implementation")
	}
	result, err := xn.EvalFunction(expr)
	if err != nil {
		return value.Null(), err
	}
	switch t := result.(type) {
	case int64:
		return value.NewInt(t), nil
	case float64:
		return value.NewFloat(t), nil
	case string:
		return value.FromNative(xmlval.CoerceNumeric(t)), nil
	default:
		return value.FromNative(result), nil
	}
}

func (r *Resolver) jsonPathOn(v value.Value, path string) (value.Value, error) {
	results, err := jsonval.Query(path, v)
	if err != nil {
		return value.Null(), err
	}
	if len(results) == 0 {
		return value.Null(), nil
	}
	if len(results) == 1 && !strings.Contains(path, "[*]") {
		return results[0], nil
	}
	return value.NewList(results), nil
}

// jsonPathList always returns a list Value (used by `get` which applies
// an optional numeric index to the result).
func (r *Resolver) jsonPathList(v value.Value, path string) (value.Value, error) {
	results, err := jsonval.Query(path, v)
	if err != nil {
		return value.Null(), err
	}
	return value.NewList(results), nil
}

var reDottedNoCall = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

func isDottedPropertyNoCall(s string) bool {
	return reDottedNoCall.MatchString(s) && !strings.Contains(s, "(")
}
