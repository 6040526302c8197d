package pipeline

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/matzehuels/defectset/pkg/cache"
	"github.com/matzehuels/defectset/pkg/enhance"
	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/geom"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/noise"
	"github.com/matzehuels/defectset/pkg/observability"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/patch"
	"github.com/matzehuels/defectset/pkg/raster"
)

func TestValidateAndSetDefaults(t *testing.T) {
	var o Options
	require.NoError(t, o.ValidateAndSetDefaults())
	require.Equal(t, ScenarioRandom, o.Scenario)
	require.Equal(t, DefaultBrightPatch, o.BrightPatch)
	require.Equal(t, DefaultLabelSize, o.LabelSize)
	require.Equal(t, DefaultCombinations, o.Combinations)
	require.Equal(t, DefaultSeed, o.Seed)
	require.Equal(t, filepath.Join(DefaultOut, "labels"), o.LabelsOut)
	require.Equal(t, partition.Reference(), o.Partitions)
	require.Len(t, o.NoiseLevels, len(noise.Levels))
	require.NotNil(t, o.Logger)

	// Validated options are not checked again.
	o.Scenario = "bogus"
	require.NoError(t, o.ValidateAndSetDefaults())
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]Options{
		"scenario":    {Scenario: "grid"},
		"enhance":     {Enhance: "sharpen"},
		"patch":       {GrayPatch: patch.Size{W: -1, H: 4}},
		"fraction":    {LabelSize: label.Size{W: 2, H: 0.1}},
		"partitions":  {Partitions: partition.Config{Train: []int{1}, Test: []int{1}}},
		"negative":    {GrayCount: -1},
		"crop":        {CropsPerAngle: -2},
		"distance":    {MinDistance: 1.5},
		"combination": {Combinations: -1},
	}
	for name, o := range tests {
		err := o.ValidateAndSetDefaults()
		require.Error(t, err, name)
		require.True(t, errors.Is(err, errors.ErrCodeConfiguration), "%s: %v", name, err)
	}
}

func TestSummary(t *testing.T) {
	s := &Summary{Stages: []*StageResult{
		{Stage: StageLabels},
		{Stage: StageImages},
	}}
	s.Stages[0].Counts.Written = 3
	s.Stages[1].Counts.Written = 2
	s.Stages[1].Counts.Skipped = 1
	require.Equal(t, 5, s.Totals().Written)
	require.Equal(t, 1, s.Totals().Skipped)
	require.Same(t, s.Stages[1], s.Stage(StageImages))
	require.Nil(t, s.Stage(StageSplit))
}

func TestBuildLibrary(t *testing.T) {
	var o Options
	o.SetDefaults()
	_, err := BuildLibrary(o)
	require.True(t, errors.Is(err, errors.ErrCodeConfiguration), "gray templates are required: %v", err)

	o.Templates = t.TempDir()
	writeGrayTemplates(t, o.Templates, 50)
	lib, err := BuildLibrary(o)
	require.NoError(t, err)
	require.Equal(t, 6, lib.Len())
	p, ok := lib.Get(label.Gray, geom.Left)
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 10, 8), p.Bounds())
}

func writeGrayTemplates(t *testing.T, dir string, v uint8) {
	t.Helper()
	loader := patch.DirLoader{Dir: dir}
	for _, d := range geom.Directions {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		for i := range img.Pix {
			img.Pix[i] = v
		}
		require.NoError(t, raster.SavePNG(loader.Path(label.Gray, d), img))
	}
}

// RunnerSuite builds a small source tree per test:
//
//	gray:      1.txt (2 records) 2.txt (1 record) 3.txt
//	bright:    1.txt (2 records) 2.txt (1 record)
//	base:      1.png 2.png (100×100, black)
//	templates: patch_texture_g_{0..3}.png (gray value 50)
type RunnerSuite struct {
	suite.Suite
	ctx    context.Context
	root   string
	runner *Runner
}

func (s *RunnerSuite) SetupTest() {
	s.ctx = context.Background()
	s.root = s.T().TempDir()
	s.runner = NewRunner(nil, nil)

	s.write("gray/1.txt", "0 0.5 0.1\n0 0.1 0.5\n")
	s.write("gray/2.txt", "1 0.5 0.2\n")
	s.write("gray/3.txt", "1 0.5 0.5\n")
	s.write("gray/classes.txt", "bright\ngray\n")
	s.write("bright/1.txt", "0 0.9 0.5 0.01 0.01\n0 0.5 0.9\n")
	s.write("bright/2.txt", "0 0.5 0.8\n")

	for _, id := range []string{"1", "2"} {
		s.Require().NoError(raster.SavePNG(s.path("base", id+".png"), image.NewGray(image.Rect(0, 0, 100, 100))))
	}
	writeGrayTemplates(s.T(), s.path("templates"), 50)
}

func (s *RunnerSuite) path(parts ...string) string {
	return filepath.Join(append([]string{s.root}, parts...)...)
}

func (s *RunnerSuite) write(rel, content string) {
	p := s.path(rel)
	s.Require().NoError(os.MkdirAll(filepath.Dir(p), 0755))
	s.Require().NoError(os.WriteFile(p, []byte(content), 0644))
}

func (s *RunnerSuite) read(parts ...string) string {
	data, err := os.ReadFile(s.path(parts...))
	s.Require().NoError(err)
	return string(data)
}

func (s *RunnerSuite) options() Options {
	return Options{
		GrayLabels:   s.path("gray"),
		BrightLabels: s.path("bright"),
		BaseImages:   s.path("base"),
		Templates:    s.path("templates"),
		Out:          s.path("out"),
		GrayCount:    1,
		BrightCount:  1,
		Combinations: 3,
		Partitions:   partition.Config{Train: []int{1}, Valid: []int{2}, Test: []int{3}},
		Workers:      2,
	}
}

func (s *RunnerSuite) TestRandomLabels() {
	res, err := s.runner.RandomLabels(s.ctx, s.options())
	s.Require().NoError(err)
	s.Equal(6, res.Counts.Written)
	s.Zero(res.Counts.Skipped)
	s.Require().NotNil(res.Sampling)
	s.Equal(6, res.Sampling.Accepted)

	names, err := label.ListDir(s.path("out", "labels"))
	s.Require().NoError(err)
	s.Equal([]string{"1_0.txt", "1_1.txt", "1_2.txt", "2_0.txt", "2_1.txt", "2_2.txt"}, names)

	f, err := label.ReadFile(s.path("out", "labels", "1_0.txt"))
	s.Require().NoError(err)
	s.Require().Len(f.Records, 2)
	s.Equal(label.Gray.Class(), f.Records[0].Class, "gray records come first with class 1")
	s.Equal(label.Bright.Class(), f.Records[1].Class)
	for _, r := range f.Records {
		s.True(r.HasSize)
		w, h := DefaultLabelSize.For(r.Direction())
		s.Equal(w, r.Width)
		s.Equal(h, r.Height)
	}
}

func (s *RunnerSuite) TestRandomLabelsIndependentOfWorkers() {
	a := s.options()
	a.Workers = 1
	a.LabelsOut = s.path("a")
	b := s.options()
	b.Workers = 4
	b.LabelsOut = s.path("b")

	_, err := s.runner.RandomLabels(s.ctx, a)
	s.Require().NoError(err)
	_, err = s.runner.RandomLabels(s.ctx, b)
	s.Require().NoError(err)

	names, err := label.ListDir(a.LabelsOut)
	s.Require().NoError(err)
	for _, n := range names {
		s.Equal(s.read("a", n), s.read("b", n), n)
	}
}

func (s *RunnerSuite) TestRandomLabelsSkipsShortFiles() {
	opts := s.options()
	opts.GrayCount = 2
	plot := s.path("tries.png")
	opts.TriesPlot = plot

	res, err := s.runner.RandomLabels(s.ctx, opts)
	s.Require().NoError(err)
	s.Equal(3, res.Counts.Written)
	s.Equal(1, res.Counts.Skipped, "2.txt has a single gray record")
	s.Equal(1, res.Sampling.Impossible)
	s.FileExists(plot)
}

func (s *RunnerSuite) TestRandomLabelsExhausted() {
	opts := s.options()
	opts.MinDistance = 1
	opts.MaxAttempts = 5

	res, err := s.runner.RandomLabels(s.ctx, opts)
	s.Require().NoError(err)
	s.Zero(res.Counts.Written)
	s.Equal(6, res.Counts.Warnings)
	for _, p := range res.Problems {
		s.True(errors.Is(p, errors.ErrCodeSamplingExhausted), "%v", p)
	}
}

func (s *RunnerSuite) TestParityLabels() {
	opts := s.options()
	opts.Scenario = ScenarioParity

	res, err := s.runner.Labels(s.ctx, opts)
	s.Require().NoError(err)
	s.Equal(10, res.Counts.Written, "five merged files, two halves each")

	even, err := label.ReadFile(s.path("out", "labels", "1_g_0.txt"))
	s.Require().NoError(err)
	odd, err := label.ReadFile(s.path("out", "labels", "1_g_1.txt"))
	s.Require().NoError(err)
	s.Require().Len(even.Records, 1)
	s.Require().Len(odd.Records, 1)
	s.Equal(geom.Point{X: 0.5, Y: 0.1}, even.Records[0].Center)
	s.Equal(geom.Point{X: 0.1, Y: 0.5}, odd.Records[0].Center)
	s.Equal(label.Gray.Class(), even.Records[0].Class)

	bright, err := label.ReadFile(s.path("out", "labels", "1_b_0.txt"))
	s.Require().NoError(err)
	s.Require().Len(bright.Records, 1)
	s.Equal(label.Bright.Class(), bright.Records[0].Class)
	s.Equal(DefaultLabelSize.H, bright.Records[0].Width, "the right-hand label is horizontal")

	empty := s.read("out", "labels", "2_g_1.txt")
	s.Empty(empty, "a single record leaves the odd half empty")
	s.NoFileExists(s.path("out", "labels", "classes_g_0.txt"))
}

func (s *RunnerSuite) TestImages() {
	opts := s.options()
	opts.Enhance = "none"
	s.write("out/labels/1_x.txt", "1 0.500000 0.100000 0.02 0.05\n0 0.800000 0.500000 0.05 0.02\n5 0.5 0.5 0.1 0.1\n")
	s.write("out/labels/7_0.txt", "1 0.5 0.5 0.02 0.05\n")

	res, err := s.runner.Images(s.ctx, opts)
	s.Require().NoError(err)
	s.Equal(1, res.Counts.Written)
	s.Equal(1, res.Counts.Skipped, "7 has no base image")
	s.Equal(1, res.Counts.Warnings, "class 5 is neither gray nor bright")

	img, err := raster.Load(s.path("out", "images", "1_x.png"))
	s.Require().NoError(err)
	s.Equal(image.Rect(0, 0, 100, 100), img.Bounds())
	rgba := raster.ToRGBA(img)
	s.Equal(uint8(50), rgba.RGBAAt(50, 10).R, "gray patch at the gray label")
	s.Greater(rgba.RGBAAt(80, 50).R, uint8(150), "bright texture at the bright label")
	s.Equal(uint8(0), rgba.RGBAAt(20, 80).R, "background untouched")
}

func (s *RunnerSuite) TestImagesCached() {
	fc, err := cache.NewFileCache(s.path("cache"))
	s.Require().NoError(err)
	runner := NewRunner(fc, nil)
	s.write("out/labels/1_0.txt", "1 0.5 0.1 0.02 0.05\n")
	s.write("out/labels/2_0.txt", "1 0.5 0.9 0.02 0.05\n")

	first, err := runner.Images(s.ctx, s.options())
	s.Require().NoError(err)
	s.Zero(first.CacheHits)
	second, err := runner.Images(s.ctx, s.options())
	s.Require().NoError(err)
	s.Equal(2, second.CacheHits)
}

func (s *RunnerSuite) TestExecute() {
	opts := s.options()
	opts.Masks = true

	var mu sync.Mutex
	last := map[string]Event{}
	opts.Progress = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		last[e.Stage] = e
	}

	summary, err := s.runner.Execute(s.ctx, opts)
	s.Require().NoError(err)
	s.Len(summary.Stages, 4)
	s.Equal(6, summary.Stage(StageImages).Counts.Written)

	split := summary.Stage(StageSplit).Split
	s.Require().NotNil(split)
	s.Equal(3, split.Counts[partition.Train].Images)
	s.Equal(3, split.Counts[partition.Valid].Labels)
	s.FileExists(s.path("out", "dataset", "images", "train", "1_2.png"))
	s.FileExists(s.path("out", "dataset", "masks", "valid", "2_0_mask001.png"))

	for stage, e := range last {
		s.Equal(e.Total, e.Done, stage)
	}

	res, err := s.runner.Collect(s.ctx, opts, s.path("lama"))
	s.Require().NoError(err)
	s.FileExists(s.path("lama", "1_0.png"))
	s.FileExists(s.path("lama", "2_2_mask001.png"))
	s.Equal(1, res.Counts.Skipped, "3.png is missing")
}

func (s *RunnerSuite) TestExecuteStopsOnConfigurationError() {
	opts := s.options()
	opts.Templates = s.path("missing")

	summary, err := s.runner.Execute(s.ctx, opts)
	s.Require().Error(err)
	s.True(errors.IsFatal(err))
	s.Len(summary.Stages, 1, "labels ran, images did not")
}

type stageEvents struct {
	started, completed []string
	written            map[string]int
}

func (e *stageEvents) OnStageStart(_ context.Context, stage string, _ int) {
	e.started = append(e.started, stage)
}

func (e *stageEvents) OnStageComplete(_ context.Context, stage string, o observability.StageOutcome) {
	e.completed = append(e.completed, stage)
	e.written[stage] = o.Written
}

func (s *RunnerSuite) TestExecuteReportsToHooks() {
	events := &stageEvents{written: map[string]int{}}
	observability.SetPipelineHooks(events)
	defer observability.Reset()

	_, err := s.runner.Execute(s.ctx, s.options())
	s.Require().NoError(err)

	want := []string{StageLabels, StageImages, StageSplit}
	s.Equal(want, events.started)
	s.Equal(want, events.completed)
	s.Equal(6, events.written[StageImages])
}

func (s *RunnerSuite) TestExecuteCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.runner.Execute(ctx, s.options())
	s.ErrorIs(err, context.Canceled)
}

func (s *RunnerSuite) TestNoise() {
	s.Require().NoError(raster.SavePNG(s.path("clean", "a.png"), image.NewGray(image.Rect(0, 0, 8, 8))))
	s.Require().NoError(raster.SavePNG(s.path("clean", "sub", "b.png"), image.NewGray(image.Rect(0, 0, 8, 8))))

	res, err := s.runner.Noise(s.ctx, s.options(), s.path("clean"), s.path("noisy"))
	s.Require().NoError(err)
	s.Equal(8, res.Counts.Written)
	s.FileExists(s.path("noisy", "severe", "sub", "b.png"))

	log := strings.Split(strings.TrimSpace(s.read("noisy", NoiseLog)), "\n")
	s.Len(log, 9)
	s.Equal(strings.Join(noise.LogHeader, ","), log[0])
	s.Contains(log[1], "a.png,none,None,0,")
}

func (s *RunnerSuite) TestMergeAndResizeLabels() {
	opts := s.options()
	opts.LabelsOut = s.path("merged")

	res, err := s.runner.MergeLabels(s.ctx, opts)
	s.Require().NoError(err)
	s.Equal(2, res.Counts.Written)

	f, err := label.ReadFile(s.path("merged", "1.txt"))
	s.Require().NoError(err)
	s.Require().Len(f.Records, 4)
	s.Equal([]int{0, 0, 1, 1}, []int{f.Records[0].Class, f.Records[1].Class, f.Records[2].Class, f.Records[3].Class})

	res, err = s.runner.ResizeLabels(s.ctx, opts, s.path("merged"), s.path("merged"))
	s.Require().NoError(err)
	s.Equal(2, res.Counts.Written)
	f, err = label.ReadFile(s.path("merged", "1.txt"))
	s.Require().NoError(err)
	s.Equal(DefaultLabelSize.H, f.Records[0].Width, "(0.9, 0.5) faces right")
}

func (s *RunnerSuite) TestEnhanceDir() {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 4)
	}
	s.Require().NoError(raster.Save(s.path("raw", "x.jpg"), src))
	s.Require().NoError(raster.SavePNG(s.path("raw", "y.png"), src))

	res, err := s.runner.EnhanceDir(s.ctx, s.options(), s.path("raw"), s.path("enh"))
	s.Require().NoError(err)
	s.Equal(2, res.Counts.Written)

	img, err := raster.Load(s.path("enh", "y.png"))
	s.Require().NoError(err)
	s.True(raster.IsGray(img))
	s.FileExists(s.path("enh", "x.jpg"))
}

func (s *RunnerSuite) TestEnhanceDefaultsToCLAHE() {
	src := image.NewGray(image.Rect(0, 0, 20, 12))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 255 / len(src.Pix))
	}
	s.Require().NoError(raster.SavePNG(s.path("raw", "g.png"), src))

	opts := s.options()
	s.Require().NoError(opts.ValidateAndSetDefaults())
	s.Equal("clahe", opts.Enhance)

	_, err := s.runner.EnhanceDir(s.ctx, opts, s.path("raw"), s.path("enh"))
	s.Require().NoError(err)

	got, err := raster.Load(s.path("enh", "g.png"))
	s.Require().NoError(err)
	want := enhance.Full()(src).(*image.Gray)
	s.Equal(want.Pix, raster.ToGray(got).Pix, "default enhancement runs the global chain then CLAHE")
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}
