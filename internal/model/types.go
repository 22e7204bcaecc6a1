package model

import (
	"time"

	"github.com/blackcoderx/talon/internal/value"
)

// Table is the tabular payload attached to a step: ordered
// headers and ordered rows of string cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Step is a parsed unit of work.
type Step struct {
	Keyword   string // possibly multi-word, e.g. "form field"; empty if absent
	Text      string
	DocString string
	HasDoc    bool
	Table     *Table
	Line      int
}

// Scenario is an ordered sequence of steps against a dedicated scope.
type Scenario struct {
	Name               string
	Description        string // free text following the name, used as the mock-mode match expression
	Tags               []string
	Steps              []Step
	IsOutline          bool
	SectionIndex       int
	ExampleIndex       int
	Line               int
}

// NameAndDescription is the concatenated text evaluated as a boolean
// predicate in mock mode.
func (s Scenario) NameAndDescription() string {
	if s.Description == "" {
		return s.Name
	}
	if s.Name == "" {
		return s.Description
	}
	return s.Name + " " + s.Description
}

// SortKey is the (section-index, example-index, line) stable ordering
// key scenarios are sorted by so run order matches file order.
func (s Scenario) SortKey() [3]int {
	return [3]int{s.SectionIndex, s.ExampleIndex, s.Line}
}

// Feature is an ordered list of scenarios with optional background and
// tags.
type Feature struct {
	Path       string
	Tags       []string
	Background []Step
	Scenarios  []Scenario
}

// Ignored reports the feature-level @ignore tag.
func (f Feature) Ignored() bool {
	for _, t := range f.Tags {
		if t == "@ignore" {
			return true
		}
	}
	return false
}

// Configuration holds the recognized `configure` options.
type Configuration struct {
	CORS                  bool
	ResponseHeaders       *value.OrderedMap
	AfterScenario         value.Value // callable, or Null
	Headers               value.Value // map or callable, or Null
	Cookies               *value.OrderedMap
	RetryCount            int
	RetryInterval         time.Duration
	MatchEachEmptyAllowed bool
	Extra                 map[string]value.Value // keys forwarded to the HTTP client
}

func NewConfiguration() *Configuration {
	return &Configuration{
		RetryCount:    3,
		RetryInterval: 3 * time.Second,
		Extra:         make(map[string]value.Value),
	}
}

func (c *Configuration) Clone() *Configuration {
	cp := *c
	if c.ResponseHeaders != nil {
		cp.ResponseHeaders = c.ResponseHeaders.DeepCopy()
	}
	if c.Cookies != nil {
		cp.Cookies = c.Cookies.DeepCopy()
	}
	cp.Extra = make(map[string]value.Value, len(c.Extra))
	for k, v := range c.Extra {
		cp.Extra[k] = v
	}
	return &cp
}

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StatusPassed  StepStatus = "passed"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// StepResult is the outcome of executing one Step.
type StepResult struct {
	Step          Step
	Status        StepStatus
	StartWallMs   int64
	DurationNanos int64
	Error         string
	Log           string
	Embeds        []Embed
	CallResults   []FeatureResult
}

// Embed is a report artifact attached to a step (screenshot, rendered
// document) — produced by report writers out of scope here, but the
// slot is part of StepResult so they have somewhere to attach it.
type Embed struct {
	MimeType string
	Bytes    []byte
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Scenario   Scenario
	Steps      []StepResult
	ThreadName string
	StartWall  time.Time
	EndWall    time.Time
}

func (r ScenarioResult) Passed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return false
		}
	}
	return true
}

// FeatureResult is the outcome of one feature.
type FeatureResult struct {
	Feature   Feature
	Scenarios []ScenarioResult
	StartWall time.Time
	EndWall   time.Time
}

func (r FeatureResult) Passed() bool {
	for _, s := range r.Scenarios {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// SuiteResult is the outcome of a full suite run.
type SuiteResult struct {
	Features  []FeatureResult
	StartWall time.Time
	EndWall   time.Time
}
