package gherkin

import (
	"testing"

	"github.com/blackcoderx/talon/internal/model"
)

func TestTagSelectorEmptyExpressionSkipsIgnoreTag(t *testing.T) {
	sel, err := ParseTagSelector("")
	if err != nil {
		t.Fatal(err)
	}
	feature := &model.Feature{}
	ignored := model.Scenario{Tags: []string{"@ignore"}}
	plain := model.Scenario{Tags: []string{"@smoke"}}

	if sel.Matches(feature, ignored) {
		t.Fatal("expected @ignore scenario to be excluded by default")
	}
	if !sel.Matches(feature, plain) {
		t.Fatal("expected non-ignored scenario to match the empty selector")
	}
}

func TestTagSelectorEvaluatesExpression(t *testing.T) {
	sel, err := ParseTagSelector("@smoke and not @slow")
	if err != nil {
		t.Fatal(err)
	}
	feature := &model.Feature{Tags: []string{"@smoke"}}
	fast := model.Scenario{}
	slow := model.Scenario{Tags: []string{"@slow"}}

	if !sel.Matches(feature, fast) {
		t.Fatal("expected feature-level @smoke tag with no @slow to match")
	}
	if sel.Matches(feature, slow) {
		t.Fatal("expected scenario-level @slow to exclude the match")
	}
}

func TestTagSelectorCombinesFeatureAndScenarioTags(t *testing.T) {
	sel, err := ParseTagSelector("@a and @b")
	if err != nil {
		t.Fatal(err)
	}
	feature := &model.Feature{Tags: []string{"@a"}}
	sc := model.Scenario{Tags: []string{"@b"}}
	if !sel.Matches(feature, sc) {
		t.Fatal("expected feature @a + scenario @b to satisfy '@a and @b'")
	}
}

func TestParseTagSelectorRejectsInvalidExpression(t *testing.T) {
	if _, err := ParseTagSelector("@a and and @b"); err == nil {
		t.Fatal("expected an error for a malformed tag expression")
	}
}
