// Package gherkin adapts github.com/cucumber/gherkin (the reference
// Gherkin parser) and github.com/cucumber/messages into this module's
// own internal/model.Feature/Scenario/Step tree, and tag selection via
// github.com/cucumber/tag-expressions.
package gherkin

import (
	"fmt"
	"strings"

	gherkinparser "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/blackcoderx/talon/internal/model"
)

// Parse reads one .feature file's source text and returns the parsed
// Feature, assigning stable section/example indices so
// scenarios retain their file ordering as the SortKey.
func Parse(path string, source string) (*model.Feature, error) {
	idGen := &messages.Incrementing{}
	doc, err := gherkinparser.ParseGherkinDocument(strings.NewReader(source), idGen.NewId)
	if err != nil {
		return nil, fmt.Errorf("gherkin: parse %s: %w", path, err)
	}
	if doc.Feature == nil {
		return &model.Feature{Path: path}, nil
	}

	f := &model.Feature{
		Path: path,
		Tags: tagNames(doc.Feature.Tags),
	}

	sectionIdx := 0
	for _, child := range doc.Feature.Children {
		switch {
		case child.Background != nil:
			f.Background = convertSteps(child.Background.Steps)
		case child.Scenario != nil:
			sectionIdx++
			scenarios := convertScenario(child.Scenario, sectionIdx)
			f.Scenarios = append(f.Scenarios, scenarios...)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Scenario != nil {
					sectionIdx++
					f.Scenarios = append(f.Scenarios, convertScenario(rc.Scenario, sectionIdx)...)
				}
			}
		}
	}
	return f, nil
}

func convertScenario(sc *messages.Scenario, sectionIdx int) []model.Scenario {
	base := model.Scenario{
		Name:         sc.Name,
		Description:  strings.TrimSpace(sc.Description),
		Tags:         tagNames(sc.Tags),
		Steps:        convertSteps(sc.Steps),
		IsOutline:    len(sc.Examples) > 0,
		SectionIndex: sectionIdx,
		Line:         int(sc.Location.Line),
	}
	if len(sc.Examples) == 0 {
		base.ExampleIndex = 0
		return []model.Scenario{base}
	}

	var out []model.Scenario
	exampleIdx := 0
	for _, ex := range sc.Examples {
		if ex.TableHeader == nil {
			continue
		}
		headers := make([]string, len(ex.TableHeader.Cells))
		for i, c := range ex.TableHeader.Cells {
			headers[i] = c.Value
		}
		exTags := tagNames(ex.Tags)
		for _, row := range ex.TableBody {
			exampleIdx++
			row := row
			scn := base
			scn.ExampleIndex = exampleIdx
			scn.Line = int(row.Location.Line)
			scn.Tags = append(append([]string{}, base.Tags...), exTags...)
			scn.Steps = substituteOutlineSteps(base.Steps, headers, row)
			out = append(out, scn)
		}
	}
	return out
}

// substituteOutlineSteps replaces `<placeholder>` tokens in step text,
// doc strings, and table cells with the current Examples row's values.
func substituteOutlineSteps(steps []model.Step, headers []string, row *messages.TableRow) []model.Step {
	out := make([]model.Step, len(steps))
	for i, s := range steps {
		s.Text = substitutePlaceholders(s.Text, headers, row)
		if s.HasDoc {
			s.DocString = substitutePlaceholders(s.DocString, headers, row)
		}
		if s.Table != nil {
			newRows := make([][]string, len(s.Table.Rows))
			for r, cells := range s.Table.Rows {
				newCells := make([]string, len(cells))
				for c, cell := range cells {
					newCells[c] = substitutePlaceholders(cell, headers, row)
				}
				newRows[r] = newCells
			}
			s.Table = &model.Table{Headers: s.Table.Headers, Rows: newRows}
		}
		out[i] = s
	}
	return out
}

func substitutePlaceholders(text string, headers []string, row *messages.TableRow) string {
	for i, h := range headers {
		if i >= len(row.Cells) {
			break
		}
		text = strings.ReplaceAll(text, "<"+h+">", row.Cells[i].Value)
	}
	return text
}

func convertSteps(steps []*messages.Step) []model.Step {
	out := make([]model.Step, 0, len(steps))
	for _, s := range steps {
		kw, rest := splitDSLKeyword(s.Text)
		step := model.Step{
			Keyword: kw,
			Text:    rest,
			Line:    int(s.Location.Line),
		}
		if s.DocString != nil {
			step.DocString = s.DocString.Content
			step.HasDoc = true
		}
		if s.DataTable != nil && len(s.DataTable.Rows) > 0 {
			headers := make([]string, len(s.DataTable.Rows[0].Cells))
			for i, c := range s.DataTable.Rows[0].Cells {
				headers[i] = c.Value
			}
			rows := make([][]string, 0, len(s.DataTable.Rows)-1)
			for _, r := range s.DataTable.Rows[1:] {
				cells := make([]string, len(r.Cells))
				for i, c := range r.Cells {
					cells[i] = c.Value
				}
				rows = append(rows, cells)
			}
			step.Table = &model.Table{Headers: headers, Rows: rows}
		}
		out = append(out, step)
	}
	return out
}

// multiWordKeywords lists the Step Executor keywords that span more
// than one token, longest first so a prefix match picks the most
// specific keyword (e.g. "form fields" before "form field").
var multiWordKeywords = []string{
	"retry until",
	"multipart fields",
	"multipart field",
	"multipart files",
	"multipart file",
	"multipart entity",
	"form fields",
	"form field",
	"driver url",
}

var singleWordKeywords = map[string]bool{
	"def": true, "set": true, "remove": true, "text": true, "json": true,
	"xml": true, "xmlstring": true, "string": true, "csv": true, "yaml": true,
	"copy": true, "table": true, "replace": true, "match": true, "assert": true,
	"print": true, "url": true, "path": true, "param": true, "params": true,
	"header": true, "headers": true, "cookie": true, "cookies": true,
	"request": true, "method": true, "status": true, "call": true,
	"callonce": true, "configure": true, "eval": true,
}

// splitDSLKeyword separates the Karate-level keyword (url, match, form
// field, ...) from the rest of a Gherkin step's text. Steps that open
// with none of the recognized keywords (e.g. a bare continuation of an
// `eval` block, or "given the following") are returned with an empty
// keyword and the text untouched — the Step Executor evaluates those as
// bare script expressions.
func splitDSLKeyword(text string) (keyword, rest string) {
	for _, kw := range multiWordKeywords {
		if hasKeywordPrefix(text, kw) {
			return kw, strings.TrimSpace(text[len(kw):])
		}
	}
	sp := strings.IndexAny(text, " \t")
	if sp < 0 {
		if singleWordKeywords[text] {
			return text, ""
		}
		return "", text
	}
	head := text[:sp]
	if singleWordKeywords[head] {
		return head, strings.TrimSpace(text[sp:])
	}
	return "", text
}

func hasKeywordPrefix(text, kw string) bool {
	if !strings.HasPrefix(text, kw) {
		return false
	}
	if len(text) == len(kw) {
		return true
	}
	next := text[len(kw)]
	return next == ' ' || next == '\t'
}

func tagNames(tags []*messages.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}
