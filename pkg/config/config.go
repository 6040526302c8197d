// Package config reads the TOML run configuration of defectset.
//
// A configuration file overlays the pipeline defaults: every value that is
// present and non-zero replaces the corresponding pipeline option, anything
// left out keeps its default. Command-line flags are applied after the file.
//
//	scenario = "parity"
//	seed     = 7
//
//	[paths]
//	gray_labels   = "labels/gray"
//	bright_labels = "labels/bright"
//	base_images   = "base"
//
//	[patch.gray]
//	w = 8
//	h = 10
//
//	[partition]
//	train = [1, 2, 3]
//	valid = [4]
//	test  = [5]
//
//	[[noise]]
//	name   = "mild"
//	alpha  = 50
//	sigma2 = 0.001
package config

import (
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/defectset/pkg/enhance"
	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/mask"
	"github.com/matzehuels/defectset/pkg/noise"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/patch"
	"github.com/matzehuels/defectset/pkg/pipeline"
)

// File is the content of a configuration file.
type File struct {
	Scenario string `toml:"scenario"`
	Seed     uint64 `toml:"seed"`
	Workers  int    `toml:"workers"`
	Enhance  string `toml:"enhance"`

	Paths     Paths             `toml:"paths"`
	Patch     Patch             `toml:"patch"`
	Labels    Labels            `toml:"labels"`
	Sampling  Sampling          `toml:"sampling"`
	Partition *partition.Config `toml:"partition"`
	Split     Split             `toml:"split"`
	Masks     *mask.Sizes       `toml:"masks"`
	Noise     []noise.Level     `toml:"noise"`
}

// Paths holds the input and output locations.
type Paths struct {
	GrayLabels   string `toml:"gray_labels"`
	BrightLabels string `toml:"bright_labels"`
	BaseImages   string `toml:"base_images"`
	Templates    string `toml:"templates"`
	Backgrounds  string `toml:"backgrounds"`
	Out          string `toml:"out"`
}

// Patch holds the patch sizes in pixels.
type Patch struct {
	Bright patch.Size `toml:"bright"`
	Gray   patch.Size `toml:"gray"`
}

// Labels holds the label box template.
type Labels struct {
	Size label.Size `toml:"size"`
}

// Sampling holds the random scenario parameters.
type Sampling struct {
	GrayCount    int     `toml:"gray_count"`
	BrightCount  int     `toml:"bright_count"`
	MinDistance  float64 `toml:"min_distance"`
	MaxAttempts  int     `toml:"max_attempts"`
	Combinations int     `toml:"combinations"`
	TriesPlot    string  `toml:"tries_plot"`
}

// Split holds the dataset split parameters.
type Split struct {
	CropSize      int  `toml:"crop_size"`
	CropsPerAngle int  `toml:"crops_per_angle"`
	Masks         bool `toml:"masks"`
}

// Load reads and validates a configuration file. Unknown keys are rejected so
// that a misspelled option does not silently fall back to its default.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read config %s", path)
	}

	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeConfiguration, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "config %s", path)
	}
	return &f, nil
}

// Validate checks the values that can be checked without the rest of the
// pipeline options.
func (f *File) Validate() error {
	if f.Scenario != "" && f.Scenario != pipeline.ScenarioRandom && f.Scenario != pipeline.ScenarioParity {
		return errors.New(errors.ErrCodeConfiguration, "unknown scenario %q", f.Scenario)
	}
	if f.Enhance != "" {
		if _, err := enhance.Preset(f.Enhance); err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "enhance")
		}
	}
	if f.Partition != nil {
		if _, err := partition.New(*f.Partition); err != nil {
			return err
		}
	}
	if f.Sampling.MinDistance < 0 || f.Sampling.MaxAttempts < 0 || f.Sampling.Combinations < 0 {
		return errors.New(errors.ErrCodeConfiguration, "sampling values must not be negative")
	}
	seen := make(map[string]bool, len(f.Noise))
	for _, l := range f.Noise {
		if l.Name == "" {
			return errors.New(errors.ErrCodeConfiguration, "noise level without a name")
		}
		if seen[l.Name] {
			return errors.New(errors.ErrCodeConfiguration, "duplicate noise level %q", l.Name)
		}
		if l.Alpha < 0 || l.Sigma2 < 0 {
			return errors.New(errors.ErrCodeConfiguration, "noise level %q: alpha and sigma2 must not be negative", l.Name)
		}
		seen[l.Name] = true
	}
	return nil
}

// Apply overlays the non-zero values of f onto o.
func (f *File) Apply(o *pipeline.Options) {
	setString(&o.Scenario, f.Scenario)
	setString(&o.Enhance, f.Enhance)
	if f.Seed != 0 {
		o.Seed = f.Seed
	}
	setInt(&o.Workers, f.Workers)

	setString(&o.GrayLabels, f.Paths.GrayLabels)
	setString(&o.BrightLabels, f.Paths.BrightLabels)
	setString(&o.BaseImages, f.Paths.BaseImages)
	setString(&o.Templates, f.Paths.Templates)
	setString(&o.Backgrounds, f.Paths.Backgrounds)
	setString(&o.Out, f.Paths.Out)

	if f.Patch.Bright != (patch.Size{}) {
		o.BrightPatch = f.Patch.Bright
	}
	if f.Patch.Gray != (patch.Size{}) {
		o.GrayPatch = f.Patch.Gray
	}
	if f.Labels.Size != (label.Size{}) {
		o.LabelSize = f.Labels.Size
	}

	setInt(&o.GrayCount, f.Sampling.GrayCount)
	setInt(&o.BrightCount, f.Sampling.BrightCount)
	if f.Sampling.MinDistance != 0 {
		o.MinDistance = f.Sampling.MinDistance
	}
	setInt(&o.MaxAttempts, f.Sampling.MaxAttempts)
	setInt(&o.Combinations, f.Sampling.Combinations)
	setString(&o.TriesPlot, f.Sampling.TriesPlot)

	if f.Partition != nil {
		o.Partitions = *f.Partition
	}
	setInt(&o.CropSize, f.Split.CropSize)
	setInt(&o.CropsPerAngle, f.Split.CropsPerAngle)
	if f.Split.Masks {
		o.Masks = true
	}
	if f.Masks != nil {
		o.MaskSizes = *f.Masks
	}
	if len(f.Noise) > 0 {
		o.NoiseLevels = f.Noise
	}
}

// FromOptions returns the configuration file that reproduces o.
func FromOptions(o pipeline.Options) *File {
	parts := o.Partitions
	sizes := o.MaskSizes
	return &File{
		Scenario: o.Scenario,
		Seed:     o.Seed,
		Workers:  o.Workers,
		Enhance:  o.Enhance,
		Paths: Paths{
			GrayLabels:   o.GrayLabels,
			BrightLabels: o.BrightLabels,
			BaseImages:   o.BaseImages,
			Templates:    o.Templates,
			Backgrounds:  o.Backgrounds,
			Out:          o.Out,
		},
		Patch:  Patch{Bright: o.BrightPatch, Gray: o.GrayPatch},
		Labels: Labels{Size: o.LabelSize},
		Sampling: Sampling{
			GrayCount:    o.GrayCount,
			BrightCount:  o.BrightCount,
			MinDistance:  o.MinDistance,
			MaxAttempts:  o.MaxAttempts,
			Combinations: o.Combinations,
			TriesPlot:    o.TriesPlot,
		},
		Partition: &parts,
		Split: Split{
			CropSize:      o.CropSize,
			CropsPerAngle: o.CropsPerAngle,
			Masks:         o.Masks,
		},
		Masks: &sizes,
		Noise: o.NoiseLevels,
	}
}

// Default returns the configuration holding every pipeline default.
func Default() *File {
	var o pipeline.Options
	o.SetDefaults()
	return FromOptions(o)
}

// Encode writes f as TOML.
func (f *File) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
