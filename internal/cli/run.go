package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/defectset/pkg/pipeline"
)

// runFlags are every option of a full run.
var runFlags = []string{
	"gray", "bright", "base", "templates", "backgrounds",
	"out", "labels-out", "images-out", "dataset-out",
	"label-size", "bright-patch", "gray-patch", "bright-mask", "gray-mask",
	"gray-count", "bright-count", "combinations", "max-attempts", "min-distance", "seed", "tries-plot",
	"enhance", "train", "valid", "test", "crop-size", "crops-per-angle", "masks",
}

// runCommand creates the run command group.
func (c *CLI) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a complete dataset",
		Long: `Generate a complete dataset.

Runs the labels, images and split stages of a scenario in order, then the
masks stage when --masks is set. Per-file problems are counted and reported
but never stop the run; configuration errors do.`,
	}
	cmd.AddCommand(c.scenarioCommand(pipeline.ScenarioRandom, "Generate a dataset from random label scenes"))
	cmd.AddCommand(c.scenarioCommand(pipeline.ScenarioParity, "Generate a dataset from parity-split label scenes"))
	return cmd
}

func (c *CLI) scenarioCommand(scenario, short string) *cobra.Command {
	var flags pipeline.Options
	cmd := &cobra.Command{
		Use:   scenario,
		Short: short,
		Args:  cobra.NoArgs,
	}
	bound := bindOptions(cmd, &flags, runFlags...)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := c.options(cmd, &flags, bound)
		if err != nil {
			return err
		}
		opts.Scenario = scenario
		return c.runAll(cmd.Context(), opts)
	}
	return cmd
}

// runAll executes every stage of opts and prints the run summary.
func (c *CLI) runAll(ctx context.Context, opts pipeline.Options) error {
	runner, err := c.newRunner()
	if err != nil {
		return err
	}
	defer runner.Close()

	el := newElapsed(c.Logger)
	var summary *pipeline.Summary
	err = c.track(ctx, "Generating "+opts.Scenario+" dataset", func(progress func(pipeline.Event)) error {
		opts.Progress = progress
		var err error
		summary, err = runner.Execute(ctx, opts)
		return err
	})
	if summary != nil && len(summary.Stages) > 0 {
		printResults(c.Out, summary.Stages, summary.Duration)
		printProblems(c.Out, summary.Stages, maxProblems)
	}
	if err != nil {
		printError(c.Out, "run failed")
		return err
	}

	opts.SetDefaults()
	printSuccess(c.Out, "Dataset complete")
	printDir(c.Out, opts.DatasetOut)
	el.done("generated dataset")
	c.Logger.Debug("run finished", "duration", summary.Duration.Round(time.Millisecond))
	return nil
}
