package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/defectset/pkg/cache"
	"github.com/matzehuels/defectset/pkg/dataset"
	"github.com/matzehuels/defectset/pkg/observability"
	"github.com/matzehuels/defectset/pkg/pool"
	"github.com/matzehuels/defectset/pkg/sample"
)

// Stage names.
const (
	StageLabels  = "labels"
	StageImages  = "images"
	StageSplit   = "split"
	StageMasks   = "masks"
	StageNoise   = "noise"
	StageEnhance = "enhance"
	StageCollect = "collect"
	StageResize  = "resize"
	StageMerge   = "merge"
)

// Runner executes pipeline stages. The cache memoizes enhanced images.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Logger: logger}
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage    string
	Counts   pool.Counts
	Problems []error
	Duration time.Duration

	// CacheHits counts enhanced images served from the cache.
	CacheHits int

	// Sampling is set by the random label stage.
	Sampling *sample.Stats

	// Split is set by the split stage.
	Split *dataset.SplitReport
}

// Summary collects the stage results of a run, in execution order.
type Summary struct {
	Stages   []*StageResult
	Duration time.Duration
}

// Totals returns the counts summed over every stage.
func (s *Summary) Totals() pool.Counts {
	var c pool.Counts
	for _, st := range s.Stages {
		c = c.Add(st.Counts)
	}
	return c
}

// Stage returns the result of the named stage, or nil.
func (s *Summary) Stage(name string) *StageResult {
	for _, st := range s.Stages {
		if st.Stage == name {
			return st
		}
	}
	return nil
}

// Execute runs the labels, images and split stages of opts.Scenario, then
// the mask stage when opts.Masks is set. It stops at the first stage that
// returns an error and returns the results gathered so far.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	start := time.Now()
	summary := &Summary{}
	type step struct {
		name string
		run  func(context.Context, Options) (*StageResult, error)
	}
	stages := []step{
		{StageLabels, r.Labels},
		{StageImages, r.Images},
		{StageSplit, r.Split},
	}
	if opts.Masks {
		stages = append(stages, step{StageMasks, r.Masks})
	}

	for _, st := range stages {
		res, err := st.run(ctx, opts)
		if res != nil {
			summary.Stages = append(summary.Stages, res)
		}
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("%s: %w", st.name, err)
		}
		r.Logger.Info("stage finished",
			"stage", st.name,
			"written", res.Counts.Written,
			"skipped", res.Counts.Skipped,
			"warnings", res.Counts.Warnings,
			"duration", res.Duration.Round(time.Millisecond))
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// Labels runs the label stage of opts.Scenario.
func (r *Runner) Labels(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if opts.Scenario == ScenarioParity {
		return r.ParityLabels(ctx, opts)
	}
	return r.RandomLabels(ctx, opts)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// stage tracks one stage run: its tally, timing and progress events.
type stage struct {
	ctx   context.Context
	name  string
	opts  *Options
	tally *pool.Tally
	start time.Time
	total int

	mu   sync.Mutex
	done int
}

func newStage(ctx context.Context, name string, opts *Options) *stage {
	return &stage{ctx: ctx, name: name, opts: opts, tally: &pool.Tally{}, start: time.Now()}
}

// begin announces the number of units.
func (s *stage) begin(total int) {
	s.total = total
	observability.Pipeline().OnStageStart(s.ctx, s.name, total)
	s.emit(0)
}

// step marks one unit as processed.
func (s *stage) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	s.emit(s.done)
}

func (s *stage) emit(done int) {
	if s.opts.Progress != nil {
		s.opts.Progress(Event{Stage: s.name, Done: done, Total: s.total})
	}
}

// record tallies a unit failure and logs it. Fatal errors are returned.
func (s *stage) record(err error, keyvals ...any) error {
	if err == nil {
		return nil
	}
	s.opts.Logger.Warn(err.Error(), append([]any{"stage", s.name}, keyvals...)...)
	return s.tally.Record(err)
}

// result returns the stage result and reports it to the pipeline hooks.
func (s *stage) result() *StageResult {
	res := &StageResult{
		Stage:    s.name,
		Counts:   s.tally.Counts(),
		Problems: s.tally.Problems(),
		Duration: time.Since(s.start),
	}
	observability.Pipeline().OnStageComplete(s.ctx, s.name, observability.StageOutcome{
		Written:  res.Counts.Written,
		Skipped:  res.Counts.Skipped,
		Warnings: res.Counts.Warnings,
		Duration: res.Duration,
	})
	return res
}
