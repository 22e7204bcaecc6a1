// Package suite implements the Suite Orchestrator:
// discovering feature files, resolving tag selection, and running
// features with a bounded degree of parallelism.
package suite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/blackcoderx/talon/internal/gherkin"
	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
	"github.com/blackcoderx/talon/internal/runtime"
)

// Options configures one suite run.
type Options struct {
	Paths       []string
	Tags        string
	Threads     int
	DryRun      bool
	Config      *model.Configuration
	Log         obslog.Logger
	Listeners   []runtime.Listener
}

// Orchestrator discovers and runs features under a bounded worker pool
//.
type Orchestrator struct {
	opts   Options
	client *httpx.Client
	loader *runtime.Loader
}

func New(opts Options) *Orchestrator {
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	if opts.Config == nil {
		opts.Config = model.NewConfiguration()
	}
	if opts.Log == nil {
		opts.Log = obslog.Noop()
	}
	return &Orchestrator{opts: opts, client: httpx.NewClient(), loader: runtime.NewLoader()}
}

// Run discovers every .feature file under opts.Paths and executes them,
// bounded to opts.Threads concurrent features.
func (o *Orchestrator) Run(ctx context.Context) (model.SuiteResult, error) {
	files, err := discoverFeatures(o.opts.Paths)
	if err != nil {
		return model.SuiteResult{}, err
	}
	selector, err := gherkin.ParseTagSelector(o.opts.Tags)
	if err != nil {
		return model.SuiteResult{}, fmt.Errorf("suite: invalid tag expression %q: %w", o.opts.Tags, err)
	}

	result := model.SuiteResult{StartWall: time.Now()}
	sem := semaphore.NewWeighted(int64(o.opts.Threads))
	resultsCh := make(chan model.FeatureResult, len(files))
	errCh := make(chan error, len(files))

	for _, path := range files {
		path := path
		if err := sem.Acquire(ctx, 1); err != nil {
			return model.SuiteResult{}, err
		}
		go func() {
			defer sem.Release(1)
			fr, err := o.runOne(ctx, path, selector)
			if err != nil {
				errCh <- err
				resultsCh <- model.FeatureResult{}
				return
			}
			errCh <- nil
			resultsCh <- fr
		}()
	}

	for range files {
		fr := <-resultsCh
		if e := <-errCh; e != nil {
			o.opts.Log.Error("feature run failed", map[string]any{"error": e.Error()})
			continue
		}
		result.Features = append(result.Features, fr)
	}
	result.EndWall = time.Now()
	return result, nil
}

func (o *Orchestrator) runOne(ctx context.Context, path string, selector *gherkin.TagSelector) (model.FeatureResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FeatureResult{}, fmt.Errorf("suite: read %s: %w", path, err)
	}
	feature, err := gherkin.Parse(path, string(data))
	if err != nil {
		return model.FeatureResult{}, err
	}
	fr := runtime.NewFeatureRuntime(feature, o.opts.Config.Clone(), o.client, o.opts.Log, o.loader, selector)
	fr.Listeners = o.opts.Listeners
	fr.DryRun = o.opts.DryRun
	return fr.Run(ctx), nil
}

// discoverFeatures expands each path: a direct .feature file is taken
// as-is, a directory is walked recursively.
func discoverFeatures(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("suite: %w", err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.Walk(p, func(walked string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && strings.HasSuffix(walked, ".feature") {
				out = append(out, walked)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
