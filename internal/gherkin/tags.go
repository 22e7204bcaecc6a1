package gherkin

import (
	tagexpressions "github.com/cucumber/tag-expressions/go/v6"

	"github.com/blackcoderx/talon/internal/model"
)

// TagSelector evaluates a boolean tag-expression against a scenario's
// effective tag set (feature tags + scenario tags + example tags).
type TagSelector struct {
	expr tagexpressions.Evaluatable
}

// ParseTagSelector compiles expr. An empty expr selects every scenario
// except those tagged @ignore at feature or scenario level.
func ParseTagSelector(expr string) (*TagSelector, error) {
	if expr == "" {
		return &TagSelector{}, nil
	}
	e, err := tagexpressions.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &TagSelector{expr: e}, nil
}

// Matches reports whether the scenario (combined with its owning
// feature's tags) satisfies the selector.
func (s *TagSelector) Matches(feature *model.Feature, sc model.Scenario) bool {
	if s == nil || s.expr == nil {
		return !hasIgnoreTag(feature.Tags) && !hasIgnoreTag(sc.Tags)
	}
	all := append(append([]string{}, feature.Tags...), sc.Tags...)
	return s.expr.Evaluate(all)
}

func hasIgnoreTag(tags []string) bool {
	for _, t := range tags {
		if t == "@ignore" {
			return true
		}
	}
	return false
}
