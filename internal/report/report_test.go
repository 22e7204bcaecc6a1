package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackcoderx/talon/internal/model"
)

func TestConsoleListenerPrintsScenarioAndFeatureSummaries(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleListener(&buf)

	start := time.Now()
	scResult := model.ScenarioResult{
		Scenario:  model.Scenario{Name: "basic match"},
		Steps:     []model.StepResult{{Status: model.StatusPassed}},
		StartWall: start,
		EndWall:   start.Add(10 * time.Millisecond),
	}
	c.OnScenarioResult(scResult)

	featureResult := model.FeatureResult{
		Feature:   model.Feature{Path: "x.feature"},
		Scenarios: []model.ScenarioResult{scResult},
	}
	c.OnFeatureResult(featureResult)

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("PASS")) {
		t.Fatalf("expected PASS in output, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("1/1 scenarios passed")) {
		t.Fatalf("expected scenario summary, got %q", out)
	}
}

func TestConsoleListenerReportsFailure(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleListener(&buf)
	scResult := model.ScenarioResult{
		Scenario: model.Scenario{Name: "broken"},
		Steps:    []model.StepResult{{Status: model.StatusFailed}},
	}
	c.OnScenarioResult(scResult)
	if !bytes.Contains(buf.Bytes(), []byte("FAIL")) {
		t.Fatalf("expected FAIL in output, got %q", buf.String())
	}
}

func TestWriteSuiteSummaryProducesValidJSON(t *testing.T) {
	dir := t.TempDir()
	result := model.SuiteResult{
		Features: []model.FeatureResult{
			{
				Feature:   model.Feature{Path: "a.feature"},
				Scenarios: []model.ScenarioResult{{Steps: []model.StepResult{{Status: model.StatusPassed}}}},
			},
		},
	}
	if err := WriteSuiteSummary(dir, result); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "karate-summary.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["featuresTotal"].(float64) != 1 {
		t.Fatalf("featuresTotal = %v, want 1", decoded["featuresTotal"])
	}
}

func TestSanitizeFilenameCollapsesPathSeparators(t *testing.T) {
	got := SanitizeFilename("features/sub dir/my test.feature")
	if got != "features_sub_dir_my_test" {
		t.Fatalf("SanitizeFilename = %q", got)
	}
}
