// Package model holds the core data types: Step, Scenario,
// Feature, Scope, Configuration, CallOnce cache, and the StepResult /
// ScenarioResult / FeatureResult / SuiteResult hierarchy.
package model

import (
	"github.com/blackcoderx/talon/internal/value"
)

// ReservedNames are the variable names owned by the runtime rather
// than freely assignable by `def`: the `karate` object, plus the
// mock-mode request/response variables.
var ReservedNames = map[string]bool{
	"karate": true, "request": true, "requestBytes": true,
	"requestHeaders": true, "requestMethod": true, "requestPath": true,
	"requestUri": true, "requestUrlBase": true, "requestParams": true,
	"requestParts": true, "response": true, "responseStatus": true,
	"responseHeaders": true, "responseDelay": true, "responseTime": true,
	"responseBytes": true, "responseCookies": true, "responseType": true,
	"pathParams": true, "requestTimeStamp": true,
}

// hiddenNames are the raw payload/metadata variables excluded from scope
// snapshots. `method` sets responseBytes and responseType, and the mock
// router sets requestBytes; responseCookies and requestTimeStamp are not
// set anywhere.
var hiddenNames = map[string]bool{
	"responseBytes": true, "responseCookies": true,
	"responseType": true, "requestTimeStamp": true, "requestBytes": true,
}

// Scope is an ordered key->Value variable table, owned by exactly one
// scenario thread. It implements internal/script.Scope.
type Scope struct {
	order []string
	vals  map[string]value.Value
}

func NewScope() *Scope {
	return &Scope{vals: make(map[string]value.Value)}
}

func (s *Scope) Get(name string) (value.Value, bool) {
	v, ok := s.vals[name]
	return v, ok
}

func (s *Scope) Put(name string, v value.Value) {
	if _, exists := s.vals[name]; !exists {
		s.order = append(s.order, name)
	}
	s.vals[name] = v
}

func (s *Scope) Delete(name string) {
	if _, exists := s.vals[name]; !exists {
		return
	}
	delete(s.vals, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Scope) Has(name string) bool {
	_, ok := s.vals[name]
	return ok
}

// Names returns every variable name, including hidden ones, in
// insertion order — what the script engine's environment is built from.
// Hidden variables remain accessible by name even though they are
// excluded from exports.
func (s *Scope) Names() []string {
	return s.order
}

// ExportableNames returns variable names excluding hidden ones and the
// `karate` object, the view used for scope snapshots, isolated-call
// results, shared-call write-back, and callonce cache entries.
func (s *Scope) ExportableNames() []string {
	out := make([]string, 0, len(s.order))
	for _, n := range s.order {
		if hiddenNames[n] || n == "karate" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Snapshot copies the exportable portion of the scope into a fresh
// OrderedMap, e.g. for an isolated call's single-map result.
func (s *Scope) Snapshot() *value.OrderedMap {
	om := value.NewOrderedMap()
	for _, n := range s.ExportableNames() {
		om.Set(n, s.vals[n].DeepCopy())
	}
	return om
}

// CopyFrom seeds this scope from another scope's exportable variables,
// used to build an isolated call's callee scope from the caller plus
// `arg`.
func (s *Scope) CopyFrom(parent *Scope) {
	for _, n := range parent.ExportableNames() {
		v, _ := parent.Get(n)
		s.Put(n, v.DeepCopy())
	}
}

// MergeFrom writes every exportable variable from other into this scope,
// overwriting existing entries — the shared-call write-back semantics:
// every key present in the callee's final scope appears with the same
// value in the caller's scope after return.
func (s *Scope) MergeFrom(other *Scope) {
	for _, n := range other.ExportableNames() {
		v, _ := other.Get(n)
		s.Put(n, v)
	}
}
