// Package script adapts github.com/expr-lang/expr to the embedded
// script engine contract: put(name, value), get(name), eval(source) ->
// value.
package script

import (
	"fmt"

	"github.com/blackcoderx/talon/internal/value"
	"github.com/expr-lang/expr"
)

// Scope is the minimal surface the Engine needs from a scenario's
// variable table. internal/model.Scope implements this; the interface
// lives here (rather than being imported from model) so that package
// script never depends on package model, avoiding an import cycle since
// model's callables are evaluated back through this engine.
type Scope interface {
	Get(name string) (value.Value, bool)
	Put(name string, v value.Value)
	Names() []string
}

// Engine evaluates expressions against a scenario's scope. One Engine
// belongs to exactly one scenario and is never shared across goroutines.
type Engine struct {
	scope Scope
	funcs map[string]any
}

func New(scope Scope) *Engine {
	return &Engine{scope: scope, funcs: make(map[string]any)}
}

// RegisterFunc exposes a Go function under name to every expression this
// engine evaluates, used for the matcher helper functions (pathMatches,
// methodIs, ...) in mock mode.
func (e *Engine) RegisterFunc(name string, fn any) {
	e.funcs[name] = fn
}

// Put assigns name in the underlying scope.
func (e *Engine) Put(name string, v value.Value) {
	e.scope.Put(name, v)
}

// Get reads name from the underlying scope.
func (e *Engine) Get(name string) (value.Value, bool) {
	return e.scope.Get(name)
}

// Eval compiles and runs source against a fresh snapshot of the current
// scope plus registered functions, returning the resulting Value. A
// fresh environment is built per call (rather than cached) so variables
// defined by steps executed since the last eval are visible, matching
// Karate's incremental variable visibility.
func (e *Engine) Eval(source string) (value.Value, error) {
	env := e.buildEnv()
	out, err := expr.Eval(source, env)
	if err != nil {
		return value.Null(), fmt.Errorf("script: eval %q: %w", source, err)
	}
	return value.FromNative(out), nil
}

// HasProperty probes whether a dotted property access resolves to
// anything at all, distinct from resolving to null — used by the
// Expression Resolver to surface the "not present"
// sentinel instead of null for matcher contexts.
func (e *Engine) HasProperty(source string) bool {
	_, err := expr.Eval(source, e.buildEnv())
	return err == nil
}

func (e *Engine) buildEnv() map[string]any {
	env := make(map[string]any, len(e.funcs)+8)
	for name, fn := range e.funcs {
		env[name] = fn
	}
	for _, name := range e.scope.Names() {
		v, ok := e.scope.Get(name)
		if !ok {
			continue
		}
		env[name] = toExprValue(v)
	}
	return env
}

// toExprValue converts a value.Value into the Go shape expr-lang/expr
// expects in its environment: plain maps/slices/scalars, and Callables
// as variadic functions so `fn()`/`fn(x)` script calls work.
func toExprValue(v value.Value) any {
	if c, ok := v.IntoCallable(); ok {
		return func(args ...any) (any, error) {
			vargs := make([]value.Value, len(args))
			for i, a := range args {
				vargs[i] = value.FromNative(a)
			}
			res, err := c(vargs)
			if err != nil {
				return nil, err
			}
			return res.Native(), nil
		}
	}
	return v.Native()
}
