package runtime

import (
	"context"
	"testing"

	"github.com/blackcoderx/talon/internal/gherkin"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
)

func TestFeatureRuntimeRunsPassingScenario(t *testing.T) {
	f := &model.Feature{
		Path: "sample.feature",
		Scenarios: []model.Scenario{
			{
				Name: "basic",
				Steps: []model.Step{
					{Keyword: "def", Text: "x = 1"},
					{Keyword: "match", Text: "x == 1"},
				},
			},
		},
	}
	selector, err := gherkin.ParseTagSelector("")
	if err != nil {
		t.Fatal(err)
	}
	fr := NewFeatureRuntime(f, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())

	if !result.Passed() {
		t.Fatalf("expected feature to pass, got: %+v", result)
	}
	if len(result.Scenarios) != 1 {
		t.Fatalf("got %d scenarios, want 1", len(result.Scenarios))
	}
	if result.Scenarios[0].ThreadName == "" {
		t.Fatal("expected a non-empty ThreadName per scenario run")
	}
}

func TestFeatureRuntimeSkipsRemainingStepsAfterFailure(t *testing.T) {
	f := &model.Feature{
		Scenarios: []model.Scenario{
			{
				Name: "fails then skips",
				Steps: []model.Step{
					{Keyword: "assert", Text: "false"},
					{Keyword: "def", Text: "never = 1"},
				},
			},
		},
	}
	selector, _ := gherkin.ParseTagSelector("")
	fr := NewFeatureRuntime(f, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())

	if result.Passed() {
		t.Fatal("expected feature to fail")
	}
	steps := result.Scenarios[0].Steps
	if len(steps) != 2 {
		t.Fatalf("got %d step results, want 2 (failed + skipped)", len(steps))
	}
	if steps[0].Status != model.StatusFailed {
		t.Fatalf("step 0 = %s, want failed", steps[0].Status)
	}
	if steps[1].Status != model.StatusSkipped {
		t.Fatalf("step 1 = %s, want skipped", steps[1].Status)
	}
}

func TestFeatureRuntimeSkipsIgnoredFeature(t *testing.T) {
	f := &model.Feature{
		Tags: []string{"@ignore"},
		Scenarios: []model.Scenario{
			{Name: "s", Steps: []model.Step{{Keyword: "assert", Text: "true"}}},
		},
	}
	selector, _ := gherkin.ParseTagSelector("")
	fr := NewFeatureRuntime(f, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())
	if len(result.Scenarios) != 0 {
		t.Fatalf("expected an ignored feature to run no scenarios, got %d", len(result.Scenarios))
	}
}

func TestFeatureRuntimeTagSelectorExcludesScenario(t *testing.T) {
	f := &model.Feature{
		Scenarios: []model.Scenario{
			{Name: "smoke one", Tags: []string{"@smoke"}, Steps: []model.Step{{Keyword: "assert", Text: "true"}}},
			{Name: "slow one", Tags: []string{"@slow"}, Steps: []model.Step{{Keyword: "assert", Text: "false"}}},
		},
	}
	selector, err := gherkin.ParseTagSelector("@smoke")
	if err != nil {
		t.Fatal(err)
	}
	fr := NewFeatureRuntime(f, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())
	if len(result.Scenarios) != 1 {
		t.Fatalf("got %d scenarios, want 1 (only @smoke selected)", len(result.Scenarios))
	}
	if result.Scenarios[0].Scenario.Name != "smoke one" {
		t.Fatalf("ran scenario %q, want smoke one", result.Scenarios[0].Scenario.Name)
	}
}
