// Package step implements the Step Executor: dispatching
// one parsed Step to the keyword it names, threading the scenario's
// scope, script engine, and pending HTTP request state.
package step

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/blackcoderx/talon/internal/expr"
	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/match"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
	"github.com/blackcoderx/talon/internal/script"
	"github.com/blackcoderx/talon/internal/value"
	"github.com/blackcoderx/talon/internal/xmlval"
	"gopkg.in/yaml.v3"
)

// CallHandler is implemented by the Feature/Scenario runtime so the Step
// Executor can run `call`/`callonce` targets without importing the
// runtime package (which itself imports step), avoiding a cycle.
// The returned value is a map for a single call, or a list of maps when
// arg is itself a list (loop call: the feature runs once per element).
type CallHandler interface {
	CallFeature(ref *value.FeatureRef, arg value.Value, shared bool) (value.Value, error)
}

// Executor runs one scenario's steps in order against a dedicated scope.
type Executor struct {
	Scope    *model.Scope
	Engine   *script.Engine
	Resolver *expr.Resolver
	Config   *model.Configuration
	Client   *httpx.Client
	Log      obslog.Logger
	CallOnce *model.CallOnceCache
	Caller   CallHandler
	DryRun   bool

	pending    *PendingRequest
	retryUntil string
	driverWarned bool
}

func New(scope *model.Scope, cfg *model.Configuration, client *httpx.Client, log obslog.Logger, cache *model.CallOnceCache) *Executor {
	engine := script.New(scope)
	return &Executor{
		Scope:    scope,
		Engine:   engine,
		Resolver: expr.New(engine, scope),
		Config:   cfg,
		Client:   client,
		Log:      log,
		CallOnce: cache,
		pending:  newPendingRequest(),
	}
}

// Execute runs one step, returning its result. DryRun short-circuits
// every step to skipped without touching the script engine or client.
func (e *Executor) Execute(ctx context.Context, s model.Step) model.StepResult {
	start := time.Now()
	res := model.StepResult{Step: s, StartWallMs: start.UnixMilli()}

	if e.DryRun {
		res.Status = model.StatusSkipped
		res.DurationNanos = time.Since(start).Nanoseconds()
		return res
	}

	if e.retryUntil != "" && requiresRetry(s.Keyword) {
		err := e.executeWithRetry(ctx, s)
		res.DurationNanos = time.Since(start).Nanoseconds()
		if err != nil {
			res.Status = model.StatusFailed
			res.Error = err.Error()
		} else {
			res.Status = model.StatusPassed
		}
		return res
	}

	err := e.dispatch(ctx, s)
	res.DurationNanos = time.Since(start).Nanoseconds()
	if err != nil {
		res.Status = model.StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = model.StatusPassed
	return res
}

// requiresRetry gates which keywords a preceding `retry until` applies
// to: the keyword that actually issues the request/assertion being
// retried. `retry until` applies only to the very next such step.
func requiresRetry(keyword string) bool {
	switch keyword {
	case "method", "match", "assert":
		return true
	default:
		return false
	}
}

func (e *Executor) executeWithRetry(ctx context.Context, s model.Step) error {
	condition := e.retryUntil
	e.retryUntil = ""
	count := e.Config.RetryCount
	interval := e.Config.RetryInterval

	operation := func() (struct{}, error) {
		if err := e.dispatch(ctx, s); err != nil {
			return struct{}{}, err
		}
		result, err := e.Engine.Eval(condition)
		if err != nil {
			return struct{}{}, err
		}
		if b, ok := result.IntoBool(); ok && b {
			return struct{}{}, nil
		}
		return struct{}{}, fmt.Errorf("condition not yet true")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(count)),
	)
	if err != nil {
		return fmt.Errorf("retry until %q: %w", condition, err)
	}
	return nil
}

func (e *Executor) dispatch(ctx context.Context, s model.Step) error {
	text := strings.TrimSpace(s.Text)
	switch s.Keyword {
	case "def":
		return e.doDef(text)
	case "set":
		return e.doSet(text)
	case "remove":
		return e.doRemove(text)
	case "text":
		return e.doTyped(text, "text")
	case "json":
		return e.doTyped(text, "json")
	case "xml":
		return e.doTyped(text, "xml")
	case "xmlstring":
		return e.doTyped(text, "xmlstring")
	case "string":
		return e.doTyped(text, "string")
	case "csv":
		return e.doTyped(text, "csv")
	case "yaml":
		return e.doTyped(text, "yaml")
	case "copy":
		return e.doCopy(text)
	case "table":
		return e.doTable(text, s.Table)
	case "replace":
		return e.doReplace(text)
	case "match":
		return e.doMatch(text)
	case "assert":
		return e.doAssert(text)
	case "print":
		return e.doPrint(text)
	case "url":
		return e.doURL(text)
	case "path":
		return e.doPath(text)
	case "param", "params":
		return e.doKeyValueOrMap(text, e.pending.Params)
	case "header", "headers":
		return e.doKeyValueOrMap(text, e.pending.Headers)
	case "cookie", "cookies":
		return e.doCookie(text)
	case "form field", "form fields":
		return e.doKeyValueOrMap(text, e.pending.FormFields)
	case "request":
		return e.doRequest(text, s)
	case "method":
		return e.doMethod(ctx, text)
	case "status":
		return e.doStatus(text)
	case "retry until":
		e.retryUntil = text
		return nil
	case "multipart field":
		return e.doMultipartField(text, false)
	case "multipart file":
		return e.doMultipartField(text, true)
	case "multipart fields", "multipart files", "multipart entity":
		return e.doMultipartMap(text, s.Keyword)
	case "call":
		return e.doCall(text, false)
	case "callonce":
		return e.doCall(text, true)
	case "configure":
		return e.doConfigure(text)
	case "eval":
		_, err := e.Engine.Eval(text)
		return err
	case "driver url":
		if !e.driverWarned {
			e.Log.Warn("driver steps are not supported; ignoring", map[string]any{"step": text})
			e.driverWarned = true
		}
		return nil
	default:
		if text == "" {
			return nil
		}
		_, err := e.Engine.Eval(text)
		return err
	}
}

func splitAssign(text string) (name, expr string, ok bool) {
	idx := strings.Index(text, "=")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:]), true
}

func (e *Executor) doDef(text string) error {
	name, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: def: expected 'name = expression', got %q", text)
	}
	if model.ReservedNames[name] {
		return fmt.Errorf("step: def: %q is a reserved name and cannot be redefined", name)
	}
	if strings.HasPrefix(rhs, "call ") || strings.HasPrefix(rhs, "callonce ") {
		once := strings.HasPrefix(rhs, "callonce ")
		inner := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(rhs, "callonce"), "call"))
		result, err := e.callResult(inner, once)
		if err != nil {
			return fmt.Errorf("step: def %s: %w", name, err)
		}
		e.Scope.Put(name, result)
		return nil
	}
	v, err := e.Resolver.Resolve(rhs, false)
	if err != nil {
		return fmt.Errorf("step: def %s: %w", name, err)
	}
	e.Scope.Put(name, v)
	return nil
}

// doSet implements both `set name = value` and the JSON/XPath-addressed
// form `set name path = value`.
func (e *Executor) doSet(text string) error {
	lhs, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: set: expected 'name[ path] = expression', got %q", text)
	}
	v, err := e.Resolver.Resolve(rhs, false)
	if err != nil {
		return err
	}
	fields := strings.Fields(lhs)
	name := fields[0]
	if len(fields) == 1 {
		e.Scope.Put(name, v)
		return nil
	}
	path := strings.Join(fields[1:], " ")
	return e.setPath(name, path, v)
}

func (e *Executor) setPath(name, path string, v value.Value) error {
	root, ok := e.Scope.Get(name)
	if !ok {
		return fmt.Errorf("step: set: variable %q not found", name)
	}
	if root.Kind() == value.KindXML {
		node, _ := root.IntoXML()
		xn, ok := node.(*xmlval.Node)
		if !ok {
			return fmt.Errorf("step: set: unsupported xml node implementation")
		}
		nodes, err := xn.Find(path)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			n.SetText(value.Stringify(v))
		}
		return nil
	}
	setJSONPath(root, path, v)
	e.Scope.Put(name, root)
	return nil
}

// setJSONPath performs an in-place assignment along a dotted/bracket
// path on a map/list Value tree. A missing or scalar intermediate map
// entry is replaced by a new empty map; an index step assigns only
// within the current length of an existing list, so an index past the
// end (or into a value that is not a list) does not assign.
func setJSONPath(root value.Value, path string, v value.Value) {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")
	parts := splitPathTokens(path)
	cur := root
	for i, part := range parts {
		last := i == len(parts)-1
		if idx, isIdx := asIndex(part); isIdx {
			list, ok := cur.IntoList()
			if !ok {
				continue
			}
			for idx >= len(list) {
				list = append(list, value.Null())
			}
			if last {
				list[idx] = v
			} else {
				cur = list[idx]
			}
			continue
		}
		om, ok := cur.IntoMap()
		if !ok {
			continue
		}
		if last {
			om.Set(part, v)
		} else {
			child, exists := om.Get(part)
			if !exists || (child.Kind() != value.KindMap && child.Kind() != value.KindList) {
				child = value.NewMap(value.NewOrderedMap())
				om.Set(part, child)
			}
			cur = child
		}
	}
}

func splitPathTokens(path string) []string {
	path = strings.ReplaceAll(path, "[", ".[")
	raw := strings.Split(path, ".")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r != "" {
			out = append(out, strings.TrimSuffix(r, "]"))
		}
	}
	return out
}

func asIndex(tok string) (int, bool) {
	tok = strings.TrimPrefix(tok, "[")
	tok = strings.TrimSuffix(tok, "]")
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (e *Executor) doRemove(text string) error {
	fields := strings.Fields(text)
	if len(fields) == 1 {
		e.Scope.Delete(fields[0])
		return nil
	}
	root, ok := e.Scope.Get(fields[0])
	if !ok {
		return nil
	}
	path := strings.Join(fields[1:], " ")
	path = strings.TrimPrefix(strings.TrimPrefix(path, "$."), "$")
	parts := splitPathTokens(path)
	if len(parts) == 0 {
		return nil
	}
	cur := root
	for i, part := range parts[:len(parts)-1] {
		_ = i
		om, ok := cur.IntoMap()
		if !ok {
			return nil
		}
		child, exists := om.Get(part)
		if !exists {
			return nil
		}
		cur = child
	}
	if om, ok := cur.IntoMap(); ok {
		om.Delete(parts[len(parts)-1])
	}
	e.Scope.Put(fields[0], root)
	return nil
}

func (e *Executor) doTyped(text string, kind string) error {
	name, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: %s: expected 'name = expression', got %q", kind, text)
	}
	switch kind {
	case "csv":
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		s, _ := v.IntoString()
		parsed, err := parseCSV(s)
		if err != nil {
			return err
		}
		e.Scope.Put(name, parsed)
		return nil
	case "yaml":
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		s, _ := v.IntoString()
		var out any
		if err := yaml.Unmarshal([]byte(s), &out); err != nil {
			return fmt.Errorf("step: yaml: %w", err)
		}
		e.Scope.Put(name, value.FromNative(out))
		return nil
	case "string":
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		e.Scope.Put(name, value.NewString(value.Stringify(v)))
		return nil
	case "text":
		e.Scope.Put(name, value.NewString(rhs))
		return nil
	case "xmlstring":
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		node, ok := v.IntoXML()
		if !ok {
			return fmt.Errorf("step: xmlstring: expected an xml value")
		}
		e.Scope.Put(name, value.NewString(node.Serialize()))
		return nil
	case "xml":
		node, err := xmlval.Parse(rhs)
		if err != nil {
			return fmt.Errorf("step: xml: %w", err)
		}
		e.Scope.Put(name, value.NewXML(node))
		return nil
	case "json":
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		e.Scope.Put(name, v)
		return nil
	}
	return nil
}

func (e *Executor) doCopy(text string) error {
	name, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: copy: expected 'name = expression', got %q", text)
	}
	v, err := e.Resolver.Resolve(rhs, false)
	if err != nil {
		return err
	}
	e.Scope.Put(name, v.DeepCopy())
	return nil
}

func (e *Executor) doTable(name string, table *model.Table) error {
	name = strings.TrimSpace(name)
	if table == nil {
		return fmt.Errorf("step: table: %q has no attached data table", name)
	}
	rows := make([]value.Value, 0, len(table.Rows))
	for _, row := range table.Rows {
		om := value.NewOrderedMap()
		for i, h := range table.Headers {
			if i >= len(row) {
				continue
			}
			cellVal, err := e.Resolver.Resolve(row[i], false)
			if err != nil {
				cellVal = value.NewString(row[i])
			}
			om.Set(h, cellVal)
		}
		rows = append(rows, value.NewMap(om))
	}
	e.Scope.Put(name, value.NewList(rows))
	return nil
}

func (e *Executor) doReplace(text string) error {
	name, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: replace: expected 'name = tokenMap', got %q", text)
	}
	v, err := e.Resolver.Resolve(name, false)
	if err != nil {
		return err
	}
	s, ok := v.IntoString()
	if !ok {
		return fmt.Errorf("step: replace: %q is not a string", name)
	}
	tokens, err := e.Resolver.Resolve(rhs, false)
	if err != nil {
		return err
	}
	om, ok := tokens.IntoMap()
	if !ok {
		return fmt.Errorf("step: replace: token map expected")
	}
	for _, k := range om.Keys() {
		tv, _ := om.Get(k)
		s = strings.ReplaceAll(s, "{"+k+"}", value.Stringify(tv))
	}
	e.Scope.Put(name, value.NewString(s))
	return nil
}

func (e *Executor) doPrint(text string) error {
	parts := splitTopLevelCommas(text)
	var sb strings.Builder
	for i, p := range parts {
		v, err := e.Resolver.Resolve(strings.TrimSpace(p), false)
		if i > 0 {
			sb.WriteString(" ")
		}
		if err != nil {
			sb.WriteString(strings.TrimSpace(p))
			continue
		}
		sb.WriteString(value.Stringify(v))
	}
	e.Log.Info(sb.String(), nil)
	return nil
}

func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, s[last:])
	return out
}

func (e *Executor) doURL(text string) error {
	v, err := e.Resolver.Resolve(text, false)
	if err != nil {
		return err
	}
	s, _ := v.IntoString()
	e.pending.URLBase = s
	e.Scope.Put("requestUrlBase", v)
	return nil
}

func (e *Executor) doPath(text string) error {
	v, err := e.Resolver.Resolve("["+text+"]", false)
	if err != nil {
		return err
	}
	list, ok := v.IntoList()
	if !ok {
		list = []value.Value{v}
	}
	for _, item := range list {
		e.pending.Path = append(e.pending.Path, value.Stringify(item))
	}
	e.Scope.Put("requestPath", value.NewString(strings.Join(e.pending.Path, "/")))
	return nil
}

func (e *Executor) doKeyValueOrMap(text string, dest map[string][]string) error {
	if name, rhs, ok := splitAssign(text); ok && !strings.Contains(name, " ") {
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		dest[name] = []string{value.Stringify(v)}
		return nil
	}
	v, err := e.Resolver.Resolve(text, false)
	if err != nil {
		return err
	}
	om, ok := v.IntoMap()
	if !ok {
		return fmt.Errorf("step: expected 'name = value' or a map expression, got %q", text)
	}
	for _, k := range om.Keys() {
		val, _ := om.Get(k)
		dest[k] = []string{value.Stringify(val)}
	}
	return nil
}

func (e *Executor) doCookie(text string) error {
	if name, rhs, ok := splitAssign(text); ok && !strings.Contains(name, " ") {
		v, err := e.Resolver.Resolve(rhs, false)
		if err != nil {
			return err
		}
		e.pending.Cookies[name] = value.Stringify(v)
		return nil
	}
	v, err := e.Resolver.Resolve(text, false)
	if err != nil {
		return err
	}
	om, ok := v.IntoMap()
	if !ok {
		return fmt.Errorf("step: cookies: expected a map expression")
	}
	for _, k := range om.Keys() {
		val, _ := om.Get(k)
		e.pending.Cookies[k] = value.Stringify(val)
	}
	return nil
}

func (e *Executor) doRequest(text string, s model.Step) error {
	if s.HasDoc {
		text = s.DocString
	}
	v, err := e.Resolver.Resolve(text, false)
	if err != nil {
		return err
	}
	e.pending.Body = v
	e.pending.HasBody = true
	e.Scope.Put("request", v)
	return nil
}

func (e *Executor) doMultipartField(text string, isFile bool) error {
	name, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: multipart field: expected 'name = value', got %q", text)
	}
	v, err := e.Resolver.Resolve(rhs, false)
	if err != nil {
		return err
	}
	part := MultipartPart{Name: name, Value: v, IsFile: isFile}
	if isFile {
		part.Filename = name
	}
	e.pending.Multipart = append(e.pending.Multipart, part)
	return nil
}

func (e *Executor) doMultipartMap(text string, keyword string) error {
	v, err := e.Resolver.Resolve(text, false)
	if err != nil {
		return err
	}
	om, ok := v.IntoMap()
	if !ok {
		return fmt.Errorf("step: %s: expected a map expression", keyword)
	}
	isFile := keyword == "multipart files"
	for _, k := range om.Keys() {
		val, _ := om.Get(k)
		e.pending.Multipart = append(e.pending.Multipart, MultipartPart{Name: k, Value: val, IsFile: isFile, Filename: k})
	}
	return nil
}

func (e *Executor) doConfigure(text string) error {
	name, rhs, ok := splitAssign(text)
	if !ok {
		return fmt.Errorf("step: configure: expected 'name = expression', got %q", text)
	}
	v, err := e.Resolver.Resolve(rhs, false)
	if err != nil {
		return err
	}
	switch name {
	case "cors":
		b, _ := v.IntoBool()
		e.Config.CORS = b
	case "responseHeaders":
		if om, ok := v.IntoMap(); ok {
			e.Config.ResponseHeaders = om
		} else {
			e.Log.Warn("configure responseHeaders expects a map; ignoring", map[string]any{"value": value.Stringify(v)})
		}
	case "afterScenario":
		e.Config.AfterScenario = v
	case "headers":
		e.Config.Headers = v
	case "cookies":
		if om, ok := v.IntoMap(); ok {
			e.Config.Cookies = om
		}
	case "retry":
		if om, ok := v.IntoMap(); ok {
			if cnt, ok := om.Get("count"); ok {
				if n, ok := cnt.IntoInt(); ok {
					e.Config.RetryCount = int(n)
				}
			}
			if iv, ok := om.Get("interval"); ok {
				if n, ok := iv.IntoInt(); ok {
					e.Config.RetryInterval = time.Duration(n) * time.Millisecond
				}
			}
		}
	default:
		e.Config.Extra[name] = v
	}
	return nil
}

func (e *Executor) doMatch(text string) error {
	op, actualExpr, expectedExpr, each, err := parseMatchExpr(text)
	if err != nil {
		return err
	}
	actual, err := e.Resolver.Resolve(actualExpr, true)
	if err != nil {
		return err
	}
	expected, err := e.Resolver.Resolve(expectedExpr, false)
	if err != nil {
		return err
	}
	if each {
		list, ok := actual.IntoList()
		if !ok {
			return fmt.Errorf("step: match each: %q did not resolve to an array", actualExpr)
		}
		for i, elem := range list {
			r := match.Match(op, expected, elem)
			if !r.Pass {
				return fmt.Errorf("match each failed at index %d:\n%s", i, r.Message)
			}
		}
		return nil
	}
	r := match.Match(op, expected, actual)
	if !r.Pass {
		return fmt.Errorf("match failed:\n%s", r.Message)
	}
	return nil
}

func parseMatchExpr(text string) (op match.Op, actual, expected string, each bool, err error) {
	if strings.HasPrefix(text, "each ") {
		each = true
		text = strings.TrimPrefix(text, "each ")
	}
	for _, candidate := range []string{
		"contains only deep", "contains any deep", "contains deep",
		"contains only", "contains any", "!contains", "contains",
		"==", "!=",
	} {
		if idx := strings.Index(text, " "+candidate+" "); idx >= 0 {
			return match.ParseOp(candidate), strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+len(candidate)+2:]), each, nil
		}
	}
	return "", "", "", false, fmt.Errorf("step: match: could not find an operator in %q", text)
}

func (e *Executor) doAssert(text string) error {
	v, err := e.Resolver.Resolve(text, false)
	if err != nil {
		return fmt.Errorf("step: assert: %w", err)
	}
	b, ok := v.IntoBool()
	if !ok || !b {
		return fmt.Errorf("step: assert failed: %s", text)
	}
	return nil
}

func (e *Executor) doStatus(text string) error {
	want, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("step: status: invalid status code %q", text)
	}
	got, _ := e.Scope.Get("responseStatus")
	gi, _ := got.IntoInt()
	if int(gi) != want {
		return fmt.Errorf("step: status: expected %d but was %d", want, gi)
	}
	return nil
}

func (e *Executor) doMethod(ctx context.Context, method string) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	headers := make(map[string][]string)
	if e.Config.Headers.Kind() == value.KindMap {
		om, _ := e.Config.Headers.IntoMap()
		for _, k := range om.Keys() {
			v, _ := om.Get(k)
			headers[k] = []string{value.Stringify(v)}
		}
	}
	for k, v := range e.pending.Headers {
		headers[k] = v
	}
	cookies := make(map[string]string)
	if e.Config.Cookies != nil {
		for _, k := range e.Config.Cookies.Keys() {
			v, _ := e.Config.Cookies.Get(k)
			cookies[k] = value.Stringify(v)
		}
	}
	for k, v := range e.pending.Cookies {
		cookies[k] = v
	}

	body, contentType, err := e.pending.body()
	if err != nil {
		return err
	}
	if contentType != "" {
		if _, has := headers["Content-Type"]; !has {
			headers["Content-Type"] = []string{contentType}
		}
	}

	req := &httpx.Request{
		Method:  method,
		URL:     e.pending.fullURL(),
		Headers: headers,
		Cookies: cookies,
		Body:    body,
	}
	e.Scope.Put("requestMethod", value.NewString(method))
	e.Scope.Put("requestUri", value.NewString(req.URL))

	resp, elapsed, err := e.Client.Do(ctx, req)
	e.pending = newPendingRequest()
	if err != nil {
		return err
	}
	e.applyResponse(resp, elapsed)
	return nil
}

func (e *Executor) applyResponse(resp *value.HTTPResponse, elapsed time.Duration) {
	e.Scope.Put("responseStatus", value.NewInt(int64(resp.Status)))
	e.Scope.Put("responseTime", value.NewInt(elapsed.Milliseconds()))
	e.Scope.Put("responseBytes", value.NewBytes(resp.Body))

	headerMap := value.NewOrderedMap()
	for k, vs := range resp.Headers {
		if len(vs) == 1 {
			headerMap.Set(k, value.NewString(vs[0]))
		} else {
			l := make([]value.Value, len(vs))
			for i, v := range vs {
				l[i] = value.NewString(v)
			}
			headerMap.Set(k, value.NewList(l))
		}
	}
	e.Scope.Put("responseHeaders", value.NewMap(headerMap))

	body := string(resp.Body)
	var parsed value.Value
	trimmed := strings.TrimSpace(body)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		if v, err := e.Resolver.Resolve(trimmed, false); err == nil {
			parsed = v
			e.Scope.Put("responseType", value.NewString("json"))
		}
	case strings.HasPrefix(trimmed, "<"):
		if node, err := xmlval.Parse(trimmed); err == nil {
			parsed = value.NewXML(node)
			e.Scope.Put("responseType", value.NewString("xml"))
		}
	}
	if parsed.Kind() == value.KindNull && trimmed != "" && trimmed != "null" {
		parsed = value.NewString(body)
		e.Scope.Put("responseType", value.NewString("string"))
	}
	e.Scope.Put("response", parsed)
}

// callResult resolves and runs a `call`/`callonce` target (a feature
// reference, a `read()`-loaded function, or an inline Callable value)
// and returns the exported variables, without touching the caller's
// scope. The result is a map for a single call; when arg resolves to a
// list, the feature reference branch runs once per element (loop call)
// and the result is a list of result maps.
func (e *Executor) callResult(text string, once bool) (value.Value, error) {
	refExpr, argExpr := splitCallArgs(text)
	refVal, err := e.Resolver.Resolve(refExpr, false)
	if err != nil {
		return value.Null(), err
	}
	var arg value.Value
	if argExpr != "" {
		arg, err = e.Resolver.Resolve(argExpr, false)
		if err != nil {
			return value.Null(), err
		}
	} else {
		arg = value.Null()
	}

	if callable, ok := refVal.IntoCallable(); ok {
		var result value.Value
		if arg.IsNull() {
			result, err = callable(nil)
		} else {
			result, err = callable([]value.Value{arg})
		}
		if err != nil {
			return value.Null(), err
		}
		if _, ok := result.IntoMap(); ok {
			return result, nil
		}
		return value.NewMap(value.NewOrderedMap()), nil
	}

	ref, ok := refVal.IntoFeatureRef()
	if !ok {
		return value.Null(), fmt.Errorf("step: call: %q did not resolve to a feature or function", refExpr)
	}
	if e.Caller == nil {
		return value.Null(), fmt.Errorf("step: call: no call handler configured")
	}

	run := func() (value.Value, error) {
		return e.Caller.CallFeature(ref, arg, !once)
	}

	var result value.Value
	if once {
		key := ref.Path + "|" + ref.Tag + "|" + argExpr
		result, err = e.CallOnce.GetOrCompute(key, run)
	} else {
		result, err = run()
	}
	if err != nil {
		return value.Null(), err
	}
	if result.IsNull() {
		result = value.NewMap(value.NewOrderedMap())
	}
	return result, nil
}

// doCall runs a bare `call`/`callonce` step (no assignment). A map
// result's keys are spread into the caller's scope (shared call); a
// list result (loop call) has no named variables to spread and only
// runs for side effects.
func (e *Executor) doCall(text string, once bool) error {
	result, err := e.callResult(text, once)
	if err != nil {
		return err
	}
	om, ok := result.IntoMap()
	if !ok {
		return nil
	}
	for _, k := range om.Keys() {
		v, _ := om.Get(k)
		e.Scope.Put(k, v)
	}
	return nil
}

// splitCallArgs separates the feature/function reference from its
// optional single argument expression, e.g. `read('x.feature') { a: 1 }`.
func splitCallArgs(text string) (ref, arg string) {
	text = strings.TrimSpace(text)
	depth := 0
	for i, r := range text {
		switch r {
		case '(', '[', '{':
			if depth == 0 && r == '{' && i > 0 && text[i-1] == ' ' {
				return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i:])
			}
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return text, ""
	}
	for i := 1; i < len(fields); i++ {
		if strings.HasPrefix(fields[i], "{") || strings.HasPrefix(fields[i], "[") || strings.HasPrefix(fields[i], "'") || strings.HasPrefix(fields[i], "\"") {
			return strings.TrimSpace(strings.Join(fields[:i], " ")), strings.TrimSpace(strings.Join(fields[i:], " "))
		}
	}
	return text, ""
}
