package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/noise"
	"github.com/matzehuels/defectset/pkg/patch"
	"github.com/matzehuels/defectset/pkg/pipeline"
)

// optionFlag binds one pipeline option to a command flag.
type optionFlag struct {
	bind func(fs *pflag.FlagSet, name string, o *pipeline.Options)
	copy func(dst, src *pipeline.Options)
}

// optionFlags are the flags shared by the stage commands, keyed by flag name.
// Flags that are not set on the command line leave the configured value
// untouched.
var optionFlags = map[string]optionFlag{
	"gray": stringFlag("gray label directory",
		func(o *pipeline.Options) *string { return &o.GrayLabels }),
	"bright": stringFlag("bright label directory",
		func(o *pipeline.Options) *string { return &o.BrightLabels }),
	"base": stringFlag("base image directory (<id>.png)",
		func(o *pipeline.Options) *string { return &o.BaseImages }),
	"templates": stringFlag("patch template directory (patch_texture_<style>_<direction>.png)",
		func(o *pipeline.Options) *string { return &o.Templates }),
	"backgrounds": stringFlag("base images to crop background samples from",
		func(o *pipeline.Options) *string { return &o.Backgrounds }),
	"out": stringFlag("output root (default \""+pipeline.DefaultOut+"\")",
		func(o *pipeline.Options) *string { return &o.Out }),
	"labels-out": stringFlag("scene label directory (default <out>/labels)",
		func(o *pipeline.Options) *string { return &o.LabelsOut }),
	"images-out": stringFlag("synthetic image directory (default <out>/images)",
		func(o *pipeline.Options) *string { return &o.ImagesOut }),
	"dataset-out": stringFlag("dataset directory (default <out>/dataset)",
		func(o *pipeline.Options) *string { return &o.DatasetOut }),
	"enhance": stringFlag("enhancement preset: clahe, default, none (default \""+pipeline.DefaultEnhance+"\")",
		func(o *pipeline.Options) *string { return &o.Enhance }),
	"tries-plot": stringFlag("write a histogram of draws per scene to this PNG",
		func(o *pipeline.Options) *string { return &o.TriesPlot }),

	"gray-count": intFlag(fmt.Sprintf("gray labels per random scene (default %d)", pipeline.DefaultGrayCount),
		func(o *pipeline.Options) *int { return &o.GrayCount }),
	"bright-count": intFlag(fmt.Sprintf("bright labels per random scene (default %d)", pipeline.DefaultBrightCount),
		func(o *pipeline.Options) *int { return &o.BrightCount }),
	"combinations": intFlag(fmt.Sprintf("random scenes per label file (default %d)", pipeline.DefaultCombinations),
		func(o *pipeline.Options) *int { return &o.Combinations }),
	"max-attempts": intFlag(fmt.Sprintf("draws per random scene (default %d)", pipeline.DefaultMaxAttempts),
		func(o *pipeline.Options) *int { return &o.MaxAttempts }),
	"crop-size": intFlag("background crop size in pixels",
		func(o *pipeline.Options) *int { return &o.CropSize }),
	"crops-per-angle": intFlag("background crops per rotation",
		func(o *pipeline.Options) *int { return &o.CropsPerAngle }),

	"min-distance": floatFlag(fmt.Sprintf("minimum Manhattan distance between scene centers (default %g)", pipeline.DefaultMinDistance),
		func(o *pipeline.Options) *float64 { return &o.MinDistance }),
	"masks": boolFlag("also draw inpainting masks",
		func(o *pipeline.Options) *bool { return &o.Masks }),

	"seed": {
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) {
			fs.Uint64Var(&o.Seed, name, 0, fmt.Sprintf("random seed (default %d)", pipeline.DefaultSeed))
		},
		copy: func(dst, src *pipeline.Options) { dst.Seed = src.Seed },
	},
	"train": idsFlag("base image ids of the train partition",
		func(o *pipeline.Options) *[]int { return &o.Partitions.Train }),
	"valid": idsFlag("base image ids of the valid partition",
		func(o *pipeline.Options) *[]int { return &o.Partitions.Valid }),
	"test": idsFlag("base image ids of the test partition",
		func(o *pipeline.Options) *[]int { return &o.Partitions.Test }),

	"bright-patch": patchSizeFlag("bright patch size WxH in pixels",
		func(o *pipeline.Options) *patch.Size { return &o.BrightPatch }),
	"gray-patch": patchSizeFlag("gray patch size WxH in pixels",
		func(o *pipeline.Options) *patch.Size { return &o.GrayPatch }),
	"bright-mask": patchSizeFlag("bright mask rectangle WxH in pixels",
		func(o *pipeline.Options) *patch.Size { return &o.MaskSizes.Bright }),
	"gray-mask": patchSizeFlag("gray mask rectangle WxH in pixels",
		func(o *pipeline.Options) *patch.Size { return &o.MaskSizes.Gray }),
	"label-size": {
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) {
			fs.Var((*labelSizeValue)(&o.LabelSize), name, "label box WxH as a fraction of the image")
		},
		copy: func(dst, src *pipeline.Options) { dst.LabelSize = src.LabelSize },
	},
	"levels": {
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) {
			fs.Var((*levelsValue)(&o.NoiseLevels), name, "noise levels (default none,mild,moderate,severe)")
		},
		copy: func(dst, src *pipeline.Options) { dst.NoiseLevels = src.NoiseLevels },
	},
}

// bindOptions registers the named option flags on cmd, backed by o.
func bindOptions(cmd *cobra.Command, o *pipeline.Options, names ...string) []string {
	for _, name := range names {
		f, ok := optionFlags[name]
		if !ok {
			panic("unknown option flag " + name)
		}
		f.bind(cmd.Flags(), name, o)
	}
	return names
}

func stringFlag(usage string, field func(*pipeline.Options) *string) optionFlag {
	return optionFlag{
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) { fs.StringVar(field(o), name, "", usage) },
		copy: func(dst, src *pipeline.Options) { *field(dst) = *field(src) },
	}
}

func intFlag(usage string, field func(*pipeline.Options) *int) optionFlag {
	return optionFlag{
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) { fs.IntVar(field(o), name, 0, usage) },
		copy: func(dst, src *pipeline.Options) { *field(dst) = *field(src) },
	}
}

func floatFlag(usage string, field func(*pipeline.Options) *float64) optionFlag {
	return optionFlag{
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) { fs.Float64Var(field(o), name, 0, usage) },
		copy: func(dst, src *pipeline.Options) { *field(dst) = *field(src) },
	}
}

func boolFlag(usage string, field func(*pipeline.Options) *bool) optionFlag {
	return optionFlag{
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) { fs.BoolVar(field(o), name, false, usage) },
		copy: func(dst, src *pipeline.Options) { *field(dst) = *field(src) },
	}
}

func idsFlag(usage string, field func(*pipeline.Options) *[]int) optionFlag {
	return optionFlag{
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) { fs.IntSliceVar(field(o), name, nil, usage) },
		copy: func(dst, src *pipeline.Options) { *field(dst) = *field(src) },
	}
}

func patchSizeFlag(usage string, field func(*pipeline.Options) *patch.Size) optionFlag {
	return optionFlag{
		bind: func(fs *pflag.FlagSet, name string, o *pipeline.Options) {
			fs.Var((*patchSizeValue)(field(o)), name, usage)
		},
		copy: func(dst, src *pipeline.Options) { *field(dst) = *field(src) },
	}
}

// =============================================================================
// Flag Values
// =============================================================================

// patchSizeValue parses "WxH" into a patch.Size.
type patchSizeValue patch.Size

func (v *patchSizeValue) String() string {
	if v == nil || *v == (patchSizeValue{}) {
		return ""
	}
	return fmt.Sprintf("%dx%d", v.W, v.H)
}

func (v *patchSizeValue) Set(s string) error {
	w, h, err := splitSize(s)
	if err != nil {
		return err
	}
	wi, err := strconv.Atoi(w)
	if err != nil {
		return fmt.Errorf("invalid width %q", w)
	}
	hi, err := strconv.Atoi(h)
	if err != nil {
		return fmt.Errorf("invalid height %q", h)
	}
	*v = patchSizeValue{W: wi, H: hi}
	return nil
}

func (*patchSizeValue) Type() string { return "WxH" }

// labelSizeValue parses "WxH" fractions into a label.Size.
type labelSizeValue label.Size

func (v *labelSizeValue) String() string {
	if v == nil || *v == (labelSizeValue{}) {
		return ""
	}
	return fmt.Sprintf("%gx%g", v.W, v.H)
}

func (v *labelSizeValue) Set(s string) error {
	w, h, err := splitSize(s)
	if err != nil {
		return err
	}
	wf, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return fmt.Errorf("invalid width %q", w)
	}
	hf, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return fmt.Errorf("invalid height %q", h)
	}
	*v = labelSizeValue{W: wf, H: hf}
	return nil
}

func (*labelSizeValue) Type() string { return "WxH" }

func splitSize(s string) (w, h string, err error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return "", "", fmt.Errorf("size %q must be WxH", s)
	}
	return strings.TrimSpace(w), strings.TrimSpace(h), nil
}

// levelsValue parses a comma-separated list of built-in noise level names.
type levelsValue []noise.Level

func (v *levelsValue) String() string {
	if v == nil {
		return ""
	}
	names := make([]string, len(*v))
	for i, l := range *v {
		names[i] = l.Name
	}
	return strings.Join(names, ",")
}

func (v *levelsValue) Set(s string) error {
	var levels []noise.Level
	for _, name := range strings.Split(s, ",") {
		l, err := noise.LevelByName(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		levels = append(levels, l)
	}
	*v = levels
	return nil
}

func (*levelsValue) Type() string { return "levels" }
