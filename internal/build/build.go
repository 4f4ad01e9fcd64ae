package build

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/internal/pipeline"
	"github.com/Faultbox/shaderc/internal/sources"
	"github.com/Faultbox/shaderc/pkg/shader/compiler"
)

// Options configures a batch build.
type Options struct {
	Pipeline   pipeline.Options
	Backend    compiler.Backend
	OutputDir  string
	Workers    int
	IgnoreFile string
	Logger     *zap.Logger
}

// Result is the outcome of one job.
type Result struct {
	Job
	Output   string // written artifact, empty on failure
	Err      error
	Duration time.Duration
}

// Report summarizes a batch build.
type Report struct {
	Results     []Result // in job order
	Built       int
	Failed      int
	CacheHits   int
	CacheMisses int
}

// Run compiles every shader found under root into opts.OutputDir, mirroring
// the source tree. All jobs run even when some fail; the returned error
// combines every failure.
func Run(ctx context.Context, root string, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	jobs, err := Discover(root, opts.IgnoreFile)
	if err != nil {
		return nil, err
	}
	log.Info("shaders discovered", zap.String("root", root), zap.Int("count", len(jobs)))

	// Headers shared between shaders are read and decoded once.
	src := sources.NewManager()
	defer src.Close()
	if opts.Pipeline.Parser.Reader == nil {
		opts.Pipeline.Parser.Reader = src
	}
	if opts.Pipeline.Logger == nil {
		opts.Pipeline.Logger = log
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]Result, len(jobs))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = runJob(ctx, jobs[i], opts)
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case indices <- i:
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = Result{Job: jobs[j], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(indices)
	wg.Wait()

	report := &Report{Results: results}
	var errs error
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.Rel, r.Err))
			log.Error("shader failed", zap.String("shader", r.Rel), zap.Error(r.Err))
			continue
		}
		report.Built++
		log.Debug("shader built",
			zap.String("shader", r.Rel),
			zap.String("artifact", r.Output),
			zap.Duration("duration", r.Duration))
	}
	report.CacheHits, report.CacheMisses = src.Stats()

	log.Info("build finished",
		zap.Int("built", report.Built),
		zap.Int("failed", report.Failed),
		zap.Int("cacheHits", report.CacheHits))

	return report, errs
}

// runJob compiles one shader with its own Serializer.
func runJob(ctx context.Context, job Job, opts Options) Result {
	start := time.Now()
	outDir := filepath.Join(opts.OutputDir, filepath.Dir(job.Artifact))

	s := pipeline.NewSerializer(opts.Pipeline)
	out, err := s.Compile(ctx, job.Name, job.Path, opts.Backend, outDir)
	return Result{
		Job:      job,
		Output:   out,
		Err:      err,
		Duration: time.Since(start),
	}
}
