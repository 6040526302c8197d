// Package pipeline runs the dataset generation stages of defectset.
//
// A run turns two sparse label sets (gray and bright defects) and a few
// numbered base images into a partitioned object-detection dataset:
//
//  1. Labels: combine the gray and bright label sets into scene label files,
//     either by constrained random sampling (random scenario) or by merging
//     and odd/even splitting (parity scenario).
//  2. Images: paint a gray patch at every gray label, enhance the image, then
//     paint a bright patch at every bright label.
//  3. Split: copy images and labels into train/valid/test by base image id,
//     optionally adding background crops and inpainting masks.
//
// Every stage can also run on its own; the CLI exposes one command per stage.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, logger)
//	opts := pipeline.Options{
//	    Scenario:     pipeline.ScenarioRandom,
//	    GrayLabels:   "labels/gray",
//	    BrightLabels: "labels/bright",
//	    BaseImages:   "base",
//	    Templates:    "patches",
//	    Out:          "out",
//	}
//	summary, err := runner.Execute(ctx, opts)
//
// Per-file problems never fail a run: they are counted in the stage result
// and logged. Only configuration and internal errors are returned.
package pipeline

import (
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/defectset/pkg/dataset"
	"github.com/matzehuels/defectset/pkg/enhance"
	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/mask"
	"github.com/matzehuels/defectset/pkg/noise"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/patch"
	"github.com/matzehuels/defectset/pkg/sample"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultGrayCount is the number of gray labels drawn per random scene.
	DefaultGrayCount = 8

	// DefaultBrightCount is the number of bright labels drawn per random scene.
	DefaultBrightCount = 8

	// DefaultCombinations is the number of random scenes per label file.
	DefaultCombinations = 40

	// DefaultMinDistance is the minimum Manhattan distance between the
	// centers of one random scene.
	DefaultMinDistance = sample.DefaultMinDistance

	// DefaultMaxAttempts bounds the draws per random scene.
	DefaultMaxAttempts = sample.DefaultMaxAttempts

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = sample.DefaultSeed

	// DefaultEnhance is the enhancement preset applied between the gray and
	// the bright patches.
	DefaultEnhance = "clahe"

	// DefaultOut is the default output root.
	DefaultOut = "out"
)

// Scenarios.
const (
	ScenarioRandom = "random"
	ScenarioParity = "parity"
)

// DefaultBrightPatch is the bright patch size in pixels.
var DefaultBrightPatch = patch.Size{W: 8, H: 10}

// DefaultGrayPatch is the gray patch size in pixels.
var DefaultGrayPatch = patch.Size{W: 8, H: 10}

// DefaultLabelSize is the label box template as a fraction of the image.
var DefaultLabelSize = label.Size{W: 0.02, H: 0.05}

// =============================================================================
// Options
// =============================================================================

// Options contains all configuration for a pipeline run.
type Options struct {
	Scenario string

	// Inputs
	GrayLabels   string
	BrightLabels string
	BaseImages   string
	Templates    string // directory of patch_texture_<s>_<d>.png files
	Backgrounds  string // optional base images for background crops

	// Outputs. LabelsOut, ImagesOut and DatasetOut default to directories
	// under Out.
	Out        string
	LabelsOut  string
	ImagesOut  string
	DatasetOut string

	// Geometry
	BrightPatch patch.Size
	GrayPatch   patch.Size
	LabelSize   label.Size
	MaskSizes   mask.Sizes

	// Random scenario sampling
	GrayCount    int
	BrightCount  int
	MinDistance  float64
	MaxAttempts  int
	Combinations int
	TriesPlot    string // optional histogram of draws per scene
	Seed         uint64

	// Images and dataset
	Enhance       string
	Partitions    partition.Config
	CropSize      int
	CropsPerAngle int
	Masks         bool
	NoiseLevels   []noise.Level

	Workers int

	// Runtime options
	Logger *log.Logger

	// Progress, when set, receives an event as each unit of a stage
	// completes. Calls for one stage are serialized and Done increases.
	Progress func(Event)

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Event reports the progress of a stage.
type Event struct {
	Stage string
	Done  int
	Total int
}

// SetDefaults fills every unset option with its default.
func (o *Options) SetDefaults() {
	if o.Scenario == "" {
		o.Scenario = ScenarioRandom
	}
	if o.Out == "" {
		o.Out = DefaultOut
	}
	if o.LabelsOut == "" {
		o.LabelsOut = filepath.Join(o.Out, "labels")
	}
	if o.ImagesOut == "" {
		o.ImagesOut = filepath.Join(o.Out, "images")
	}
	if o.DatasetOut == "" {
		o.DatasetOut = filepath.Join(o.Out, "dataset")
	}
	if o.BrightPatch == (patch.Size{}) {
		o.BrightPatch = DefaultBrightPatch
	}
	if o.GrayPatch == (patch.Size{}) {
		o.GrayPatch = DefaultGrayPatch
	}
	if o.LabelSize == (label.Size{}) {
		o.LabelSize = DefaultLabelSize
	}
	if o.MaskSizes == (mask.Sizes{}) {
		o.MaskSizes = mask.DefaultSizes()
	}
	if o.GrayCount == 0 {
		o.GrayCount = DefaultGrayCount
	}
	if o.BrightCount == 0 {
		o.BrightCount = DefaultBrightCount
	}
	if o.MinDistance == 0 {
		o.MinDistance = DefaultMinDistance
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Combinations == 0 {
		o.Combinations = DefaultCombinations
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Enhance == "" {
		o.Enhance = DefaultEnhance
	}
	if o.Partitions.Len() == 0 {
		o.Partitions = partition.Reference()
	}
	if o.CropSize == 0 {
		o.CropSize = dataset.DefaultCropSize
	}
	if len(o.NoiseLevels) == 0 {
		o.NoiseLevels = noise.Levels
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateAndSetDefaults applies defaults and checks every option that does
// not depend on the stage being run.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()

	if o.Scenario != ScenarioRandom && o.Scenario != ScenarioParity {
		return errors.New(errors.ErrCodeConfiguration, "invalid scenario: %q (must be one of: random, parity)", o.Scenario)
	}
	if err := errors.ValidatePixelSize("bright patch", o.BrightPatch.W, o.BrightPatch.H); err != nil {
		return err
	}
	if err := errors.ValidatePixelSize("gray patch", o.GrayPatch.W, o.GrayPatch.H); err != nil {
		return err
	}
	if err := errors.ValidatePixelSize("bright mask", o.MaskSizes.Bright.W, o.MaskSizes.Bright.H); err != nil {
		return err
	}
	if err := errors.ValidatePixelSize("gray mask", o.MaskSizes.Gray.W, o.MaskSizes.Gray.H); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"label width":  o.LabelSize.W,
		"label height": o.LabelSize.H,
		"min distance": o.MinDistance,
	} {
		if err := errors.ValidateFraction(name, v); err != nil {
			return err
		}
	}
	if o.GrayCount < 0 || o.BrightCount < 0 {
		return errors.New(errors.ErrCodeConfiguration, "label counts must not be negative")
	}
	if o.MaxAttempts < 0 || o.Combinations < 0 {
		return errors.New(errors.ErrCodeConfiguration, "max attempts and combinations must not be negative")
	}
	if o.CropSize < 0 || o.CropsPerAngle < 0 {
		return errors.New(errors.ErrCodeConfiguration, "crop size and crops per angle must not be negative")
	}
	if _, err := enhance.Preset(o.Enhance); err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "enhance")
	}
	if _, err := partition.New(o.Partitions); err != nil {
		return err
	}

	o.validated = true
	return nil
}

// requireDirs checks that each named directory option is set.
func requireDirs(dirs map[string]string) error {
	for name, dir := range dirs {
		if dir == "" {
			return errors.New(errors.ErrCodeConfiguration, "%s directory is required", name)
		}
		if err := errors.ValidateDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// Layout returns the dataset layout under DatasetOut.
func (o *Options) Layout() dataset.Layout {
	return dataset.NewLayout(o.DatasetOut)
}

// Background returns the background augmentation settings.
func (o *Options) Background() dataset.Background {
	return dataset.Background{
		Dir:           o.Backgrounds,
		CropW:         o.CropSize,
		CropH:         o.CropSize,
		CropsPerAngle: o.CropsPerAngle,
		Seed:          o.Seed,
	}
}
