package jsonval

import (
	"fmt"

	"github.com/blackcoderx/talon/internal/value"
	"github.com/pb33f/jsonpath"
)

// Query resolves a JSONPath expression (`$.foo.bar[0]`, `$[*].id`, ...)
// against doc. Results come back in document order; a path matching
// nothing returns an empty, non-error slice (the Expression Resolver
// turns "nothing matched" into the appropriate null / not-present
// sentinel depending on context).
func Query(expr string, doc value.Value) ([]value.Value, error) {
	p, err := jsonpath.NewPath(expr)
	if err != nil {
		return nil, fmt.Errorf("jsonval: invalid json-path %q: %w", expr, err)
	}
	result := p.Query(doc.Native())
	natives := result.AllValues()
	out := make([]value.Value, len(natives))
	for i, n := range natives {
		out[i] = value.FromNative(n)
	}
	return out, nil
}

// QueryFirst is Query followed by taking only the first match, the
// common case for a bare `$.foo` expression.
func QueryFirst(expr string, doc value.Value) (value.Value, bool, error) {
	vs, err := Query(expr, doc)
	if err != nil {
		return value.Null(), false, err
	}
	if len(vs) == 0 {
		return value.Null(), false, nil
	}
	return vs[0], true, nil
}
