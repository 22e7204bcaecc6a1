// Package report writes run summaries: a console summary line per
// feature plus a karate-summary.json aggregate and one JSON file per
// feature, matching this module's own machine-readable result shape.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackcoderx/talon/internal/model"
)

// ConsoleListener prints a one-line pass/fail summary per scenario as
// results arrive, the way a CLI test runner's progress output works.
type ConsoleListener struct {
	Out io.Writer
}

func NewConsoleListener(out io.Writer) *ConsoleListener {
	return &ConsoleListener{Out: out}
}

func (c *ConsoleListener) OnStepResult(model.Scenario, model.StepResult) {}

func (c *ConsoleListener) OnScenarioResult(r model.ScenarioResult) {
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(c.Out, "[%s] %s (%s)\n", status, r.Scenario.Name, r.EndWall.Sub(r.StartWall))
}

func (c *ConsoleListener) OnFeatureResult(r model.FeatureResult) {
	passed, total := 0, len(r.Scenarios)
	for _, s := range r.Scenarios {
		if s.Passed() {
			passed++
		}
	}
	fmt.Fprintf(c.Out, "== %s: %d/%d scenarios passed\n", r.Feature.Path, passed, total)
}

// WriteSuiteSummary writes karate-summary.json under outputDir,
// aggregating pass/fail counts across every feature.
func WriteSuiteSummary(outputDir string, result model.SuiteResult) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	type featureSummary struct {
		Path            string `json:"path"`
		ScenariosTotal  int    `json:"scenariosTotal"`
		ScenariosPassed int    `json:"scenariosPassed"`
		DurationMillis  int64  `json:"durationMillis"`
	}
	summary := struct {
		FeaturesTotal  int              `json:"featuresTotal"`
		FeaturesPassed int              `json:"featuresPassed"`
		DurationMillis int64            `json:"durationMillis"`
		Features       []featureSummary `json:"features"`
	}{}
	summary.FeaturesTotal = len(result.Features)
	summary.DurationMillis = result.EndWall.Sub(result.StartWall).Milliseconds()
	for _, f := range result.Features {
		if f.Passed() {
			summary.FeaturesPassed++
		}
		passed := 0
		for _, s := range f.Scenarios {
			if s.Passed() {
				passed++
			}
		}
		summary.Features = append(summary.Features, featureSummary{
			Path:            f.Feature.Path,
			ScenariosTotal:  len(f.Scenarios),
			ScenariosPassed: passed,
			DurationMillis:  f.EndWall.Sub(f.StartWall).Milliseconds(),
		})
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "karate-summary.json"), data, 0o644)
}

// WriteFeatureReport writes one per-feature JSON report, named after
// the feature file with path separators sanitized.
func WriteFeatureReport(outputDir string, result model.FeatureResult) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, SanitizeFilename(result.Feature.Path)+".json"), data, 0o644)
}

// SanitizeFilename collapses a feature path into a safe single
// filename component.
func SanitizeFilename(path string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := strings.TrimSuffix(filepath.Dir(path), "/")
	return replacer.Replace(dir) + "_" + replacer.Replace(base)
}
