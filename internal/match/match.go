// Package match implements the deep structural matcher:
// equality and containment comparisons between an expected value (which
// may embed fuzzy markers like #string or #regex) and an actual value,
// producing a pass/fail result with a diff-style mismatch message.
package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/blackcoderx/talon/internal/value"
)

// Op is one of the comparison operators supports.
type Op string

const (
	OpEquals            Op = "=="
	OpNotEquals         Op = "!="
	OpContains          Op = "contains"
	OpContainsDeep      Op = "contains deep"
	OpContainsOnly      Op = "contains only"
	OpContainsOnlyDeep  Op = "contains only deep"
	OpContainsAny       Op = "contains any"
	OpContainsAnyDeep   Op = "contains any deep"
	OpNotContains       Op = "!contains"
)

// Result is the outcome of one match.
type Result struct {
	Pass    bool
	Message string
}

// Match compares actual against expected using op.
func Match(op Op, expected, actual value.Value) Result {
	switch op {
	case OpEquals:
		return equalsResult(expected, actual)
	case OpNotEquals:
		r := equalsResult(expected, actual)
		return Result{Pass: !r.Pass, Message: negateMessage(r, "values were unexpectedly equal")}
	case OpContains:
		return containsResult(expected, actual, false, false)
	case OpContainsDeep:
		return containsResult(expected, actual, true, false)
	case OpContainsOnly:
		return containsOnlyResult(expected, actual, false)
	case OpContainsOnlyDeep:
		return containsOnlyResult(expected, actual, true)
	case OpContainsAny:
		return containsAnyResult(expected, actual, false)
	case OpContainsAnyDeep:
		return containsAnyResult(expected, actual, true)
	case OpNotContains:
		r := containsResult(expected, actual, false, false)
		return Result{Pass: !r.Pass, Message: negateMessage(r, "actual unexpectedly contained expected")}
	default:
		return Result{Pass: false, Message: fmt.Sprintf("match: unknown operator %q", op)}
	}
}

func negateMessage(r Result, fallback string) string {
	if r.Pass {
		return fallback
	}
	return ""
}

func equalsResult(expected, actual value.Value) Result {
	var diffs []string
	ok := equals(expected, actual, "$", &diffs)
	if ok {
		return Result{Pass: true}
	}
	return Result{Pass: false, Message: strings.Join(diffs, "\n")}
}

// equals is the recursive comparator. Every scalar mismatch and marker
// evaluation records a human-readable line into diffs on failure.
func equals(expected, actual value.Value, path string, diffs *[]string) bool {
	if s, ok := expected.IntoString(); ok && strings.HasPrefix(s, "#") {
		return matchMarker(s, actual, path, diffs)
	}

	if expected.Kind() != actual.Kind() {
		if numericKind(expected.Kind()) && numericKind(actual.Kind()) {
			ef, _ := expected.IntoFloat()
			af, _ := actual.IntoFloat()
			if ef == af {
				return true
			}
		}
		*diffs = append(*diffs, fmt.Sprintf("%s: type mismatch, expected %s but actual was %s", path, expected.Kind(), actual.Kind()))
		return false
	}

	switch expected.Kind() {
	case value.KindNull:
		return true
	case value.KindBool:
		eb, _ := expected.IntoBool()
		ab, _ := actual.IntoBool()
		if eb != ab {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected %v but actual was %v", path, eb, ab))
			return false
		}
		return true
	case value.KindInt, value.KindFloat:
		ef, _ := expected.IntoFloat()
		af, _ := actual.IntoFloat()
		if ef != af {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected: %v actual: %v", path, ef, af))
			return false
		}
		return true
	case value.KindString:
		es, _ := expected.IntoString()
		as, _ := actual.IntoString()
		if es != as {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected %q but actual was %q\n%s", path, es, as, udiff.Unified("expected", "actual", es, as)))
			return false
		}
		return true
	case value.KindMap:
		return equalsMap(expected, actual, path, diffs)
	case value.KindList:
		return equalsList(expected, actual, path, diffs)
	case value.KindXML:
		en, _ := expected.IntoXML()
		an, _ := actual.IntoXML()
		if en.Serialize() != an.Serialize() {
			*diffs = append(*diffs, fmt.Sprintf("%s: xml mismatch", path))
			return false
		}
		return true
	default:
		return true
	}
}

func equalsMap(expected, actual value.Value, path string, diffs *[]string) bool {
	em, _ := expected.IntoMap()
	am, _ := actual.IntoMap()
	ok := true
	// Keys expected to be absent (#notpresent / #ignore) that are in fact
	// absent from actual do not count towards the expected key total.
	expectedLen := 0
	for _, k := range em.Keys() {
		ev, _ := em.Get(k)
		if es, isStr := ev.IntoString(); isStr && (es == "#notpresent" || es == "#ignore") && !am.Has(k) {
			continue
		}
		expectedLen++
	}
	if expectedLen != am.Len() {
		*diffs = append(*diffs, fmt.Sprintf("%s: expected %d keys but actual had %d keys", path, expectedLen, am.Len()))
		ok = false
	}
	for _, k := range em.Keys() {
		ev, _ := em.Get(k)
		av, present := am.Get(k)
		childPath := path + "." + k
		if !present {
			if es, isStr := ev.IntoString(); isStr && (es == "#notpresent" || es == "#ignore") {
				continue
			}
			*diffs = append(*diffs, fmt.Sprintf("%s: key %q is missing from actual", path, k))
			ok = false
			continue
		}
		if !equals(ev, av, childPath, diffs) {
			ok = false
		}
	}
	return ok
}

func equalsList(expected, actual value.Value, path string, diffs *[]string) bool {
	el, _ := expected.IntoList()
	al, _ := actual.IntoList()
	ok := true
	if len(el) != len(al) {
		*diffs = append(*diffs, fmt.Sprintf("%s: expected array of length %d but actual had length %d", path, len(el), len(al)))
		ok = false
	}
	n := len(el)
	if len(al) < n {
		n = len(al)
	}
	for i := 0; i < n; i++ {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		if !equals(el[i], al[i], childPath, diffs) {
			ok = false
		}
	}
	return ok
}

func numericKind(k value.Kind) bool {
	return k == value.KindInt || k == value.KindFloat
}

var reRegexMarker = regexp.MustCompile(`^#regex\s+(.*)$`)

// matchMarker evaluates a fixed `#marker` (`#string`, `#number`, ...) or
// a `#regex STR` fuzzy expected value against actual; any other `#...`
// text fails as an unrecognized marker.
func matchMarker(marker string, actual value.Value, path string, diffs *[]string) bool {
	switch {
	case marker == "#ignore":
		return true
	case marker == "#present":
		if actual.IsNotPresent() {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected present but key was absent", path))
			return false
		}
		return true
	case marker == "#notpresent":
		if !actual.IsNotPresent() {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected not present but key exists", path))
			return false
		}
		return true
	case marker == "#null":
		if !actual.IsNull() {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected null but actual was %s", path, actual.Kind()))
			return false
		}
		return true
	case marker == "#string":
		return markerKind(actual, value.KindString, path, diffs)
	case marker == "#number":
		if !numericKind(actual.Kind()) {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected #number but actual was %s", path, actual.Kind()))
			return false
		}
		return true
	case marker == "#boolean":
		return markerKind(actual, value.KindBool, path, diffs)
	case marker == "#array":
		return markerKind(actual, value.KindList, path, diffs)
	case marker == "#object":
		return markerKind(actual, value.KindMap, path, diffs)
	case marker == "#uuid":
		s, ok := actual.IntoString()
		if !ok || !reUUID.MatchString(s) {
			*diffs = append(*diffs, fmt.Sprintf("%s: expected a uuid string but actual was %s", path, value.Stringify(actual)))
			return false
		}
		return true
	default:
		if m := reRegexMarker.FindStringSubmatch(marker); m != nil {
			s, ok := actual.IntoString()
			re, err := regexp.Compile(m[1])
			if !ok || err != nil || !re.MatchString(s) {
				*diffs = append(*diffs, fmt.Sprintf("%s: actual %s did not match regex %s", path, value.Stringify(actual), m[1]))
				return false
			}
			return true
		}
		*diffs = append(*diffs, fmt.Sprintf("%s: unrecognized marker %q", path, marker))
		return false
	}
}

var reUUID = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func markerKind(actual value.Value, want value.Kind, path string, diffs *[]string) bool {
	if actual.Kind() != want {
		*diffs = append(*diffs, fmt.Sprintf("%s: expected %s but actual was %s", path, want, actual.Kind()))
		return false
	}
	return true
}

func containsResult(expected, actual value.Value, deep, _ bool) Result {
	if expected.Kind() == value.KindMap && actual.Kind() == value.KindMap {
		return mapContains(expected, actual, deep)
	}
	if expected.Kind() == value.KindList && actual.Kind() == value.KindList {
		return listContains(expected, actual, deep, false)
	}
	return equalsResult(expected, actual)
}

func containsOnlyResult(expected, actual value.Value, deep bool) Result {
	if expected.Kind() == value.KindMap && actual.Kind() == value.KindMap {
		em, _ := expected.IntoMap()
		am, _ := actual.IntoMap()
		if em.Len() != am.Len() {
			return Result{Pass: false, Message: fmt.Sprintf("$: expected exactly %d keys but actual had %d keys", em.Len(), am.Len())}
		}
		return mapContains(expected, actual, deep)
	}
	if expected.Kind() == value.KindList && actual.Kind() == value.KindList {
		el, _ := expected.IntoList()
		al, _ := actual.IntoList()
		if len(el) != len(al) {
			return Result{Pass: false, Message: fmt.Sprintf("$: expected array of exactly length %d but actual had length %d", len(el), len(al))}
		}
		return listContains(expected, actual, deep, false)
	}
	return equalsResult(expected, actual)
}

func containsAnyResult(expected, actual value.Value, deep bool) Result {
	if expected.Kind() != value.KindList {
		return containsResult(expected, actual, deep, false)
	}
	return listContains(expected, actual, deep, true)
}

func mapContains(expected, actual value.Value, deep bool) Result {
	em, _ := expected.IntoMap()
	am, _ := actual.IntoMap()
	var diffs []string
	ok := true
	for _, k := range em.Keys() {
		ev, _ := em.Get(k)
		av, present := am.Get(k)
		if !present {
			diffs = append(diffs, fmt.Sprintf("$.%s: key missing from actual", k))
			ok = false
			continue
		}
		if deep && ev.Kind() == value.KindMap && av.Kind() == value.KindMap {
			r := mapContains(ev, av, true)
			if !r.Pass {
				diffs = append(diffs, r.Message)
				ok = false
			}
			continue
		}
		if !equals(ev, av, "$."+k, &diffs) {
			ok = false
		}
	}
	return Result{Pass: ok, Message: strings.Join(diffs, "\n")}
}

// listContains checks that every element of expected matches some
// element of actual (any=false requires coverage of all; any=true
// requires at least one match).
func listContains(expected, actual value.Value, deep, any bool) Result {
	el, _ := expected.IntoList()
	al, _ := actual.IntoList()
	matched := 0
	var diffs []string
	for _, ev := range el {
		found := false
		for _, av := range al {
			if elementMatches(ev, av, deep) {
				found = true
				break
			}
		}
		if found {
			matched++
		} else {
			diffs = append(diffs, fmt.Sprintf("$: no element in actual matched expected element %s", value.Stringify(ev)))
		}
	}
	if any {
		return Result{Pass: matched > 0, Message: strings.Join(diffs, "\n")}
	}
	return Result{Pass: matched == len(el), Message: strings.Join(diffs, "\n")}
}

func elementMatches(expected, actual value.Value, deep bool) bool {
	if deep && expected.Kind() == value.KindMap && actual.Kind() == value.KindMap {
		return mapContains(expected, actual, true).Pass
	}
	var diffs []string
	return equals(expected, actual, "$", &diffs)
}

// ParseOp maps the step-level operator text onto an Op.
func ParseOp(text string) Op {
	switch strings.TrimSpace(text) {
	case "!=":
		return OpNotEquals
	case "contains":
		return OpContains
	case "contains deep":
		return OpContainsDeep
	case "contains only":
		return OpContainsOnly
	case "contains only deep":
		return OpContainsOnlyDeep
	case "contains any":
		return OpContainsAny
	case "contains any deep":
		return OpContainsAnyDeep
	case "!contains":
		return OpNotContains
	default:
		return OpEquals
	}
}

// FormatNumber renders a numeric Value the way #number diagnostics and
// coercions want it, trimming a trailing ".0" for whole floats.
func FormatNumber(v value.Value) string {
	if f, ok := v.IntoFloat(); ok {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return value.Stringify(v)
}
