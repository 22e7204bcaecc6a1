// Package runtime implements the Scenario Runtime and Feature Runtime:
// running a feature's background + scenario steps against a scope,
// call/callonce dispatch back into the Step Executor, and tag-based
// scenario selection.
package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blackcoderx/talon/internal/gherkin"
	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
	"github.com/blackcoderx/talon/internal/step"
	"github.com/blackcoderx/talon/internal/value"
)

// Listener receives step/scenario/feature completion events, fanned out
// to report writers and suite-level progress tracking.
type Listener interface {
	OnStepResult(model.Scenario, model.StepResult)
	OnScenarioResult(model.ScenarioResult)
	OnFeatureResult(model.FeatureResult)
}

// FeatureRuntime runs every scenario of one feature, owning the
// feature-scoped callonce cache.
type FeatureRuntime struct {
	Feature   *model.Feature
	Config    *model.Configuration
	Client    *httpx.Client
	Log       obslog.Logger
	Loader    *Loader
	Selector  *gherkin.TagSelector
	Listeners []Listener
	DryRun    bool

	callOnce *model.CallOnceCache
}

func NewFeatureRuntime(f *model.Feature, cfg *model.Configuration, client *httpx.Client, log obslog.Logger, loader *Loader, selector *gherkin.TagSelector) *FeatureRuntime {
	return &FeatureRuntime{
		Feature:  f,
		Config:   cfg,
		Client:   client,
		Log:      log,
		Loader:   loader,
		Selector: selector,
		callOnce: model.NewCallOnceCache(),
	}
}

// Run executes every selected, non-ignored scenario in file order
// and aggregates the feature result.
func (fr *FeatureRuntime) Run(ctx context.Context) model.FeatureResult {
	result := model.FeatureResult{Feature: *fr.Feature, StartWall: time.Now()}
	if fr.Feature.Ignored() {
		result.EndWall = time.Now()
		return result
	}

	scenarios := make([]model.Scenario, len(fr.Feature.Scenarios))
	copy(scenarios, fr.Feature.Scenarios)
	sort.SliceStable(scenarios, func(i, j int) bool {
		a, b := scenarios[i].SortKey(), scenarios[j].SortKey()
		return a[0] < b[0] || (a[0] == b[0] && (a[1] < b[1] || (a[1] == b[1] && a[2] < b[2])))
	})

	for _, sc := range scenarios {
		if !fr.Selector.Matches(fr.Feature, sc) {
			continue
		}
		scResult := fr.RunScenario(ctx, sc, nil, false)
		result.Scenarios = append(result.Scenarios, scResult)
		for _, l := range fr.Listeners {
			l.OnScenarioResult(scResult)
		}
	}
	result.EndWall = time.Now()
	for _, l := range fr.Listeners {
		l.OnFeatureResult(result)
	}
	return result
}

// RunScenario runs one scenario's background + steps in a fresh scope.
// When parent is non-nil the scope is seeded from it (isolated or
// shared call semantics); shared additionally merges the result back
// into parent once execution ends.
func (fr *FeatureRuntime) RunScenario(ctx context.Context, sc model.Scenario, parent *model.Scope, shared bool) model.ScenarioResult {
	scope := model.NewScope()
	if parent != nil {
		scope.CopyFrom(parent)
	}

	cfg := fr.Config.Clone()
	exec := step.New(scope, cfg, fr.Client, fr.Log, fr.callOnce)
	exec.DryRun = fr.DryRun
	exec.Caller = &callAdapter{fr: fr}
	exec.Engine.RegisterFunc("read", func(path string) (any, error) {
		v, err := fr.Loader.Read(filepath.Dir(fr.Feature.Path), path)
		if err != nil {
			return nil, err
		}
		return v.Native(), nil
	})

	result := model.ScenarioResult{Scenario: sc, ThreadName: "scenario-" + uuid.NewString(), StartWall: time.Now()}
	for _, s := range fr.Feature.Background {
		sr := exec.Execute(ctx, s)
		result.Steps = append(result.Steps, sr)
		for _, l := range fr.Listeners {
			l.OnStepResult(sc, sr)
		}
		if sr.Status == model.StatusFailed {
			fr.skipRemaining(ctx, exec, sc.Steps, &result, sc)
			result.EndWall = time.Now()
			return result
		}
	}
	for i, s := range sc.Steps {
		sr := exec.Execute(ctx, s)
		result.Steps = append(result.Steps, sr)
		for _, l := range fr.Listeners {
			l.OnStepResult(sc, sr)
		}
		if sr.Status == model.StatusFailed {
			fr.skipRemaining(ctx, exec, sc.Steps[i+1:], &result, sc)
			break
		}
	}
	result.EndWall = time.Now()

	if cfg.AfterScenario.Kind() == value.KindCallable {
		if fn, ok := cfg.AfterScenario.IntoCallable(); ok {
			_, _ = fn(nil)
		}
	}

	if shared && parent != nil {
		parent.MergeFrom(scope)
	}
	return result
}

func (fr *FeatureRuntime) skipRemaining(_ context.Context, _ *step.Executor, rest []model.Step, result *model.ScenarioResult, sc model.Scenario) {
	for _, s := range rest {
		sr := model.StepResult{Step: s, Status: model.StatusSkipped}
		result.Steps = append(result.Steps, sr)
		for _, l := range fr.Listeners {
			l.OnStepResult(sc, sr)
		}
	}
}

// callAdapter implements step.CallHandler, bridging a called feature's
// execution back through FeatureRuntime without the step package
// importing runtime (which would cycle back to step).
type callAdapter struct {
	fr *FeatureRuntime
}

// CallFeature resolves ref and runs it against arg. When arg is a list
// (loop call), the feature runs once per element against an isolated
// scope per iteration and the results are collected into a list, in
// element order; otherwise the feature runs once against a scope seeded
// from arg's map fields, shared across the feature's own scenarios.
func (c *callAdapter) CallFeature(ref *value.FeatureRef, arg value.Value, shared bool) (value.Value, error) {
	loaded, err := ref.Load()
	if err != nil {
		return value.Null(), err
	}
	feature, ok := loaded.(*model.Feature)
	if !ok {
		return value.Null(), fmt.Errorf("runtime: call: %s did not resolve to a feature", ref.Path)
	}

	if elems, ok := arg.IntoList(); ok {
		results := make([]value.Value, len(elems))
		for i, el := range elems {
			snap, err := c.runFeatureOnce(ref, feature, el, shared)
			if err != nil {
				return value.Null(), fmt.Errorf("runtime: call: %s: element %d: %w", feature.Path, i, err)
			}
			results[i] = value.NewMap(snap)
		}
		return value.NewList(results), nil
	}

	snap, err := c.runFeatureOnce(ref, feature, arg, shared)
	if err != nil {
		return value.Null(), err
	}
	return value.NewMap(snap), nil
}

// runFeatureOnce runs every selected scenario of feature once against a
// fresh scope seeded from arg, returning the final scope snapshot
// (without the `__arg` binding).
func (c *callAdapter) runFeatureOnce(ref *value.FeatureRef, feature *model.Feature, arg value.Value, _ bool) (*value.OrderedMap, error) {
	selector, err := gherkin.ParseTagSelector(ref.Tag)
	if err != nil {
		selector = &gherkin.TagSelector{}
	}
	childRuntime := NewFeatureRuntime(feature, c.fr.Config, c.fr.Client, c.fr.Log, c.fr.Loader, selector)
	childRuntime.DryRun = c.fr.DryRun

	scope := model.NewScope()
	if om, ok := arg.IntoMap(); ok {
		for _, k := range om.Keys() {
			v, _ := om.Get(k)
			scope.Put(k, v)
		}
	}
	scope.Put("__arg", arg)

	scenarios := feature.Scenarios
	if ref.Tag != "" {
		var filtered []model.Scenario
		for _, sc := range scenarios {
			if selector.Matches(feature, sc) {
				filtered = append(filtered, sc)
			}
		}
		scenarios = filtered
	}
	for _, sc := range scenarios {
		result := childRuntime.RunScenario(context.Background(), sc, scope, true)
		if !result.Passed() {
			return nil, fmt.Errorf("%s failed", feature.Path)
		}
	}
	scope.Delete("__arg")
	return scope.Snapshot(), nil
}
