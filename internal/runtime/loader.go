package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blackcoderx/talon/internal/gherkin"
	"github.com/blackcoderx/talon/internal/jsonval"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/value"
	"github.com/blackcoderx/talon/internal/xmlval"
	"gopkg.in/yaml.v3"
)

// Loader resolves `read(...)` targets relative to a feature's directory:
// `.feature` paths become lazy FeatureRef handles, everything else is
// parsed eagerly by extension. One Loader is shared across every
// concurrently-dispatched feature in a suite run, so its cache is
// guarded by a mutex.
type Loader struct {
	mu    sync.Mutex
	cache map[string]*model.Feature
}

func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*model.Feature)}
}

// Read implements the `read('path')` / `read('path@tag')` script
// function, registered per-scenario against the calling feature's
// directory.
func (l *Loader) Read(basePath, raw string) (value.Value, error) {
	path, tag := splitTag(raw)
	full := resolvePath(basePath, path)

	if strings.HasSuffix(path, ".feature") {
		p := full
		t := tag
		return value.NewFeatureRef(&value.FeatureRef{
			Path: p,
			Tag:  t,
			Load: func() (any, error) { return l.LoadFeature(p) },
		}), nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return value.Null(), fmt.Errorf("read: %w", err)
	}
	switch filepath.Ext(path) {
	case ".json":
		return jsonval.Parse(string(data))
	case ".yaml", ".yml":
		var out any
		if err := yaml.Unmarshal(data, &out); err != nil {
			return value.Null(), fmt.Errorf("read: yaml: %w", err)
		}
		return value.FromNative(out), nil
	case ".xml":
		node, err := xmlval.Parse(string(data))
		if err != nil {
			return value.Null(), fmt.Errorf("read: xml: %w", err)
		}
		return value.NewXML(node), nil
	case ".csv":
		return value.NewString(string(data)), nil
	default:
		return value.NewString(string(data)), nil
	}
}

// LoadFeature parses and caches a .feature file by absolute path.
func (l *Loader) LoadFeature(path string) (*model.Feature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.cache[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runtime: load feature %s: %w", path, err)
	}
	f, err := gherkin.Parse(path, string(data))
	if err != nil {
		return nil, err
	}
	l.cache[path] = f
	return f, nil
}

func splitTag(raw string) (path, tag string) {
	raw = strings.Trim(strings.TrimSpace(raw), "'\"")
	if idx := strings.Index(raw, "@"); idx >= 0 {
		return raw[:idx], raw[idx:]
	}
	return raw, ""
}

func resolvePath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	if strings.HasPrefix(rel, "classpath:") {
		rel = strings.TrimPrefix(rel, "classpath:")
	}
	return filepath.Join(base, rel)
}
