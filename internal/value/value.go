// Package value implements the dynamically-typed variable variant that
// flows through every scenario's scope: null, boolean, number, string,
// byte-sequence, ordered map, ordered list, XML node tree, opaque
// callable, opaque feature reference, and HTTP response.
package value

import (
	"fmt"
)

// Kind tags which case of the variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindMap
	KindList
	KindXML
	KindCallable
	KindFeatureRef
	KindHTTPResponse
	// KindNotPresent is the "#notpresent" sentinel rules 8
	// and 12 surface in matcher contexts when an XPath or property probe
	// finds nothing, as distinct from a present value that is null.
	KindNotPresent
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	case KindXML:
		return "xml"
	case KindCallable:
		return "callable"
	case KindFeatureRef:
		return "feature"
	case KindHTTPResponse:
		return "response"
	case KindNotPresent:
		return "notpresent"
	default:
		return "unknown"
	}
}

// Callable is a script-exported function invoked with a list of argument
// Values. A nil arg slice means the function was called with no arguments.
type Callable func(args []Value) (Value, error)

// FeatureRef is an opaque handle to a parsed feature, produced by
// `read('some.feature')` and consumed by call semantics.
type FeatureRef struct {
	Path string
	Tag  string
	// Load resolves the referenced feature lazily; the concrete Feature
	// type lives in package model, which depends on value, so this is
	// wired as a function pointer to avoid an import cycle.
	Load func() (any, error)
}

// HTTPResponse models the `karate.proceed()` pass-through case: a mock
// scenario can yield a complete HTTP response object that the router
// forwards verbatim instead of synthesizing one.
type HTTPResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// Value is a tagged union. Construct with the New* helpers; read with the
// capability methods (IntoString, IntoXML, ...) rather than a type switch
// on an exported field, replacing reflection/dynamic-dispatch with an
// explicit capability set.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	m    *OrderedMap
	l    []Value
	xml  XMLNode
	call Callable
	feat *FeatureRef
	resp *HTTPResponse
}

// XMLNode is the capability set internal/xmlval.Node satisfies; kept as
// an interface here so package value never imports package xmlval
// (xmlval imports value for embedded-expansion substitution results).
type XMLNode interface {
	Serialize() string
}

func Null() Value                { return Value{kind: KindNull} }
func NotPresent() Value          { return Value{kind: KindNotPresent} }
func NewBool(b bool) Value        { return Value{kind: KindBool, b: b} }
func NewInt(i int64) Value        { return Value{kind: KindInt, i: i} }
func NewFloat(f float64) Value    { return Value{kind: KindFloat, f: f} }
func NewString(s string) Value    { return Value{kind: KindString, s: s} }
func NewBytes(b []byte) Value     { return Value{kind: KindBytes, by: b} }
func NewMap(m *OrderedMap) Value  { return Value{kind: KindMap, m: m} }
func NewList(l []Value) Value     { return Value{kind: KindList, l: l} }
func NewXML(x XMLNode) Value      { return Value{kind: KindXML, xml: x} }
func NewCallable(c Callable) Value { return Value{kind: KindCallable, call: c} }
func NewFeatureRef(f *FeatureRef) Value {
	return Value{kind: KindFeatureRef, feat: f}
}
func NewHTTPResponse(r *HTTPResponse) Value {
	return Value{kind: KindHTTPResponse, resp: r}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool       { return v.kind == KindNull }
func (v Value) IsNotPresent() bool { return v.kind == KindNotPresent }

func (v Value) IntoBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) IntoInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

func (v Value) IntoFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) IntoBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.by, true
}

func (v Value) IntoMap() (*OrderedMap, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

func (v Value) IntoList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.l, true
}

func (v Value) IntoXML() (XMLNode, bool) {
	if v.kind != KindXML {
		return nil, false
	}
	return v.xml, true
}

func (v Value) IntoCallable() (Callable, bool) {
	if v.kind != KindCallable {
		return nil, false
	}
	return v.call, true
}

func (v Value) IntoFeatureRef() (*FeatureRef, bool) {
	if v.kind != KindFeatureRef {
		return nil, false
	}
	return v.feat, true
}

func (v Value) IntoHTTPResponse() (*HTTPResponse, bool) {
	if v.kind != KindHTTPResponse {
		return nil, false
	}
	return v.resp, true
}

// IntoString implements the "raw" string case: returns the literal
// string payload only when the Value actually holds KindString. Use
// Stringify (package value, below) for the general-purpose toString
// conversion.
func (v Value) IntoString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Native converts a Value back into a plain Go value (map[string]any,
// []any, string, float64/int64, bool, nil, []byte) for handing to the
// embedded script engine or an external collaborator (matcher, HTTP
// client). XML nodes, callables, feature refs and HTTP responses pass
// through as their own Go types since those collaborators understand
// the richer shape.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindMap:
		out := make(map[string]any, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			out[k] = val.Native()
		}
		return out
	case KindList:
		out := make([]any, len(v.l))
		for i, e := range v.l {
			out[i] = e.Native()
		}
		return out
	case KindXML:
		return v.xml
	case KindCallable:
		return v.call
	case KindFeatureRef:
		return v.feat
	case KindHTTPResponse:
		return v.resp
	default:
		return nil
	}
}

// FromNative lifts a plain Go value (as produced by encoding/json,
// yaml.v3, or the script engine) into a Value, preserving OrderedMap key
// order when the input is already one.
func FromNative(in any) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return NewBool(t)
	case int:
		return NewInt(int64(t))
	case int64:
		return NewInt(t)
	case float64:
		return NewFloat(t)
	case float32:
		return NewFloat(float64(t))
	case string:
		return NewString(t)
	case []byte:
		return NewBytes(t)
	case *OrderedMap:
		return NewMap(t)
	case map[string]any:
		om := NewOrderedMap()
		for k, val := range t {
			om.Set(k, FromNative(val))
		}
		return NewMap(om)
	case []any:
		l := make([]Value, len(t))
		for i, e := range t {
			l[i] = FromNative(e)
		}
		return NewList(l)
	case []Value:
		return NewList(t)
	case XMLNode:
		return NewXML(t)
	case Callable:
		return NewCallable(t)
	case *FeatureRef:
		return NewFeatureRef(t)
	case *HTTPResponse:
		return NewHTTPResponse(t)
	default:
		return NewString(fmt.Sprintf("%v", t))
	}
}

// DeepCopy produces a structurally-equal Value with no shared mutable
// state, used by the callonce cache and the
// `copy` keyword.
func (v Value) DeepCopy() Value {
	switch v.kind {
	case KindMap:
		return NewMap(v.m.DeepCopy())
	case KindList:
		out := make([]Value, len(v.l))
		for i, e := range v.l {
			out[i] = e.DeepCopy()
		}
		return NewList(out)
	default:
		return v
	}
}
