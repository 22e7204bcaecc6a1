package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackcoderx/talon/internal/gherkin"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
)

func writeFeature(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCallIsolatedDoesNotLeakCalleeVariablesToCaller(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "called.feature", "Feature: called\n\n  Scenario: s\n    Given def secret = 42\n")
	callerPath := writeFeature(t, dir, "caller.feature", "Feature: caller\n\n  Scenario: s\n    Given def result = call read('called.feature')\n")

	data, err := os.ReadFile(callerPath)
	if err != nil {
		t.Fatal(err)
	}
	feature, err := gherkin.Parse(callerPath, string(data))
	if err != nil {
		t.Fatal(err)
	}

	selector, _ := gherkin.ParseTagSelector("")
	fr := NewFeatureRuntime(feature, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())

	if !result.Passed() {
		for _, s := range result.Scenarios[0].Steps {
			t.Logf("step %q status=%s error=%q", s.Step.Text, s.Status, s.Error)
		}
		t.Fatal("expected caller feature to pass")
	}
}

func TestCallOnceDeduplicatesAcrossScenariosInOneFeature(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "shared.feature", "Feature: shared\n\n  Scenario: s\n    Given def n = 1\n")
	callerPath := writeFeature(t, dir, "caller.feature", strings.Join([]string{
		"Feature: caller",
		"",
		"  Scenario: first",
		"    Given def a = callonce read('shared.feature')",
		"    Then match a == { n: 1 }",
		"",
		"  Scenario: second",
		"    Given def b = callonce read('shared.feature')",
		"    Then match b == { n: 1 }",
	}, "\n")+"\n")

	data, err := os.ReadFile(callerPath)
	if err != nil {
		t.Fatal(err)
	}
	feature, err := gherkin.Parse(callerPath, string(data))
	if err != nil {
		t.Fatal(err)
	}

	selector, _ := gherkin.ParseTagSelector("")
	fr := NewFeatureRuntime(feature, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())
	if !result.Passed() {
		t.Fatal("expected caller feature to pass")
	}
}

func TestCallWithListArgumentRunsOncePerElement(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "called.feature", "Feature: called\n\n  Scenario: s\n    Given def doubled = __arg * 2\n")
	callerPath := writeFeature(t, dir, "caller.feature", strings.Join([]string{
		"Feature: caller",
		"",
		"  Scenario: s",
		"    Given def results = call read('called.feature') [1, 2, 3]",
		"    Then match results == [{ doubled: 2 }, { doubled: 4 }, { doubled: 6 }]",
	}, "\n")+"\n")

	data, err := os.ReadFile(callerPath)
	if err != nil {
		t.Fatal(err)
	}
	feature, err := gherkin.Parse(callerPath, string(data))
	if err != nil {
		t.Fatal(err)
	}

	selector, _ := gherkin.ParseTagSelector("")
	fr := NewFeatureRuntime(feature, model.NewConfiguration(), nil, obslog.Noop(), NewLoader(), selector)
	result := fr.Run(context.Background())
	if !result.Passed() {
		for _, s := range result.Scenarios[0].Steps {
			t.Logf("step %q status=%s error=%q", s.Step.Text, s.Status, s.Error)
		}
		t.Fatal("expected caller feature to pass")
	}
}
