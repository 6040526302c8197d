package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/defectset/pkg/pipeline"
)

// maxProblems bounds the per-file problems printed after a stage.
const maxProblems = 10

// stageFunc runs one stage with fully built options.
type stageFunc func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error)

// stageCommand builds a command that runs a single stage. args, when set,
// validates the positional arguments; run receives them.
type stageCommand struct {
	use   string
	short string
	long  string
	args  cobra.PositionalArgs
	flags []string
	run   func(args []string) stageFunc
	next  func(opts pipeline.Options, args []string) (string, string)
}

func (c *CLI) newStageCommand(sc stageCommand) *cobra.Command {
	var flags pipeline.Options
	cmd := &cobra.Command{
		Use:   sc.use,
		Short: sc.short,
		Long:  sc.long,
		Args:  sc.args,
	}
	bound := bindOptions(cmd, &flags, sc.flags...)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := c.options(cmd, &flags, bound)
		if err != nil {
			return err
		}
		if err := c.runStage(cmd.Context(), sc.short, opts, sc.run(args)); err != nil {
			return err
		}
		if sc.next != nil {
			opts.SetDefaults()
			desc, next := sc.next(opts, args)
			printNextStep(c.Out, desc, next)
		}
		return nil
	}
	return cmd
}

// runStage executes run with progress tracking and prints its result.
func (c *CLI) runStage(ctx context.Context, title string, opts pipeline.Options, run stageFunc) error {
	runner, err := c.newRunner()
	if err != nil {
		return err
	}
	defer runner.Close()

	el := newElapsed(c.Logger)
	var res *pipeline.StageResult
	err = c.track(ctx, title, func(progress func(pipeline.Event)) error {
		opts.Progress = progress
		var err error
		res, err = run(runner, ctx, opts)
		return err
	})
	if res != nil {
		printResults(c.Out, []*pipeline.StageResult{res}, res.Duration)
		printProblems(c.Out, []*pipeline.StageResult{res}, maxProblems)
	}
	if err != nil {
		printError(c.Out, "%s failed", title)
		return err
	}
	el.done(title)
	return nil
}

// fixed wraps a stage that takes no positional arguments.
func fixed(f stageFunc) func([]string) stageFunc {
	return func([]string) stageFunc { return f }
}

// =============================================================================
// Labels
// =============================================================================

var samplingFlags = []string{
	"gray", "bright", "out", "labels-out", "label-size",
	"gray-count", "bright-count", "combinations", "max-attempts", "min-distance", "seed", "tries-plot",
}

// labelsCommand creates the labels command group.
func (c *CLI) labelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Build scene label files from the gray and bright label sets",
	}

	cmd.AddCommand(c.newStageCommand(stageCommand{
		use:   "random",
		short: "Sample random label scenes",
		long: `Sample random label scenes.

For every label file present in both the gray and the bright directory,
draw --combinations scenes of --gray-count gray and --bright-count bright
labels whose centers are at least --min-distance apart (Manhattan distance,
as a fraction of the image). Scenes are written as <name>_<i>.txt with every
box resized by its direction. Files with too few labels are skipped.`,
		args:  cobra.NoArgs,
		flags: samplingFlags,
		run: fixed(func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
			return r.RandomLabels(ctx, opts)
		}),
		next: nextImages,
	}))

	cmd.AddCommand(c.newStageCommand(stageCommand{
		use:   "parity",
		short: "Merge gray and bright labels and split them by parity",
		long: `Merge gray and bright labels and split them by parity.

The gray and bright label files are merged by name. Every merged file is
split into its even and odd records, written as <name>_0.txt and
<name>_1.txt, with every box resized by its direction.`,
		args:  cobra.NoArgs,
		flags: []string{"gray", "bright", "out", "labels-out", "label-size"},
		run: fixed(func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
			return r.ParityLabels(ctx, opts)
		}),
		next: nextImages,
	}))

	cmd.AddCommand(c.newStageCommand(stageCommand{
		use:   "resize <in> <out>",
		short: "Resize label boxes by direction",
		args:  cobra.ExactArgs(2),
		flags: []string{"label-size"},
		run: func(args []string) stageFunc {
			return func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
				return r.ResizeLabels(ctx, opts, args[0], args[1])
			}
		},
	}))

	cmd.AddCommand(c.newStageCommand(stageCommand{
		use:   "merge",
		short: "Merge bright and gray label files by name",
		long: `Merge bright and gray label files by name.

Every file present in both directories is written to --labels-out with the
bright records (class 0) followed by the gray records (class 1).`,
		args:  cobra.NoArgs,
		flags: []string{"gray", "bright", "out", "labels-out"},
		run: fixed(func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
			return r.MergeLabels(ctx, opts)
		}),
	}))

	return cmd
}

func nextImages(opts pipeline.Options, _ []string) (string, string) {
	return "Paint images", appName + " images --labels-out " + opts.LabelsOut + " --base <dir> --templates <dir>"
}

// =============================================================================
// Images
// =============================================================================

var imageFlags = []string{"base", "templates", "out", "labels-out", "images-out", "enhance", "bright-patch", "gray-patch"}

// imagesCommand creates the images command.
func (c *CLI) imagesCommand() *cobra.Command {
	return c.newStageCommand(stageCommand{
		use:   "images",
		short: "Paint defect patches onto the base images",
		long: `Paint defect patches onto the base images.

For every scene label file <id>_<rest>.txt the base image <id>.png is read,
a gray patch is painted at every gray label, the image is enhanced, and a
bright patch is painted at every bright label. Gray templates are read from
--templates as patch_texture_gray_<direction>.png; bright patches use the
built-in textures unless --templates provides them.

Enhanced images are cached locally for faster subsequent runs.`,
		args:  cobra.NoArgs,
		flags: imageFlags,
		run: fixed(func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
			return r.Images(ctx, opts)
		}),
		next: func(opts pipeline.Options, _ []string) (string, string) {
			return "Split", appName + " split --images-out " + opts.ImagesOut + " --labels-out " + opts.LabelsOut
		},
	})
}

// enhanceCommand creates the enhance command.
func (c *CLI) enhanceCommand() *cobra.Command {
	return c.newStageCommand(stageCommand{
		use:   "enhance <in> <out>",
		short: "Enhance every image of a directory",
		args:  cobra.ExactArgs(2),
		flags: []string{"enhance"},
		run: func(args []string) stageFunc {
			return func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
				return r.EnhanceDir(ctx, opts, args[0], args[1])
			}
		},
	})
}

// =============================================================================
// Dataset
// =============================================================================

var partitionFlags = []string{"train", "valid", "test"}

// splitCommand creates the split command.
func (c *CLI) splitCommand() *cobra.Command {
	return c.newStageCommand(stageCommand{
		use:   "split",
		short: "Split images and labels into train, valid and test",
		long: `Split images and labels into train, valid and test.

Images are grouped by the base image id before the first underscore and
every group is copied with its label files into the partition that lists
the id. With --backgrounds and --crops-per-angle, random rotated crops of
the background images are added as negative samples.`,
		args: cobra.NoArgs,
		flags: append([]string{"out", "images-out", "labels-out", "dataset-out", "backgrounds", "crop-size", "crops-per-angle", "seed"},
			partitionFlags...),
		run: fixed(func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
			return r.Split(ctx, opts)
		}),
		next: func(opts pipeline.Options, _ []string) (string, string) {
			return "Draw masks", appName + " masks --dataset-out " + opts.DatasetOut
		},
	})
}

// masksCommand creates the masks command.
func (c *CLI) masksCommand() *cobra.Command {
	return c.newStageCommand(stageCommand{
		use:   "masks",
		short: "Draw inpainting masks for the split dataset",
		args:  cobra.NoArgs,
		flags: []string{"out", "dataset-out", "bright-mask", "gray-mask"},
		run: fixed(func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
			return r.Masks(ctx, opts)
		}),
		next: func(opts pipeline.Options, _ []string) (string, string) {
			return "Collect", appName + " collect <out> --base <dir> --dataset-out " + opts.DatasetOut
		},
	})
}

// noiseCommand creates the noise command.
func (c *CLI) noiseCommand() *cobra.Command {
	return c.newStageCommand(stageCommand{
		use:   "noise <in> <out>",
		short: "Write noisy copies of every image",
		long: `Write noisy copies of every image.

Every image under <in> is written once per noise level to
<out>/<level>/<path>, with Poisson and Gaussian noise of the level's
strength. <out>/log.csv lists every output.`,
		args:  cobra.ExactArgs(2),
		flags: []string{"levels", "seed"},
		run: func(args []string) stageFunc {
			return func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
				return r.Noise(ctx, opts, args[0], args[1])
			}
		},
	})
}

// collectCommand creates the collect command.
func (c *CLI) collectCommand() *cobra.Command {
	return c.newStageCommand(stageCommand{
		use:   "collect <out>",
		short: "Collect base images and masks into a flat inpainting set",
		args:  cobra.ExactArgs(1),
		flags: append([]string{"base", "out", "dataset-out"}, partitionFlags...),
		run: func(args []string) stageFunc {
			return func(r *pipeline.Runner, ctx context.Context, opts pipeline.Options) (*pipeline.StageResult, error) {
				return r.Collect(ctx, opts, args[0])
			}
		},
	})
}
