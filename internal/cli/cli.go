// Package cli implements the defectset command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/defectset/pkg/buildinfo"
	"github.com/matzehuels/defectset/pkg/cache"
	"github.com/matzehuels/defectset/pkg/config"
	"github.com/matzehuels/defectset/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "defectset"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives the human-readable results of a command, Err the
	// spinner and progress view.
	Out io.Writer
	Err io.Writer

	// Persistent flags
	configPath string
	noCache    bool
	progress   bool
	workers    int
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Err:    w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Defectset generates synthetic defect detection datasets",
		Long: `Defectset turns sparse gray and bright defect labels and a few base images
into a partitioned object-detection dataset: it samples or merges label
scenes, paints defect patches onto the base images, and splits the result
into train, valid and test sets.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.registerHooks()
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the enhancement cache")
	root.PersistentFlags().BoolVar(&c.progress, "progress", false, "show a live progress view")
	root.PersistentFlags().IntVarP(&c.workers, "workers", "w", 0, "parallel workers (default: number of CPUs)")

	root.AddCommand(c.labelsCommand())
	root.AddCommand(c.imagesCommand())
	root.AddCommand(c.enhanceCommand())
	root.AddCommand(c.splitCommand())
	root.AddCommand(c.masksCommand())
	root.AddCommand(c.noiseCommand())
	root.AddCommand(c.collectCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	registerCompletions(root)
	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner() (*pipeline.Runner, error) {
	cache, err := newCache(c.noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cache, c.Logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/defectset/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	return cache.DefaultDir()
}

// =============================================================================
// Options
// =============================================================================

// options builds the pipeline options of a command: the configuration file
// (if any) is applied first, then every flag the user set explicitly.
func (c *CLI) options(cmd *cobra.Command, flags *pipeline.Options, bound []string) (pipeline.Options, error) {
	var opts pipeline.Options
	if c.configPath != "" {
		f, err := config.Load(c.configPath)
		if err != nil {
			return opts, err
		}
		f.Apply(&opts)
		c.Logger.Debug("loaded config", "path", c.configPath)
	}
	for _, name := range bound {
		if cmd.Flags().Changed(name) {
			optionFlags[name].copy(&opts, flags)
		}
	}
	if cmd.Flags().Changed("workers") || opts.Workers == 0 {
		opts.Workers = c.workers
	}
	opts.Logger = c.Logger
	return opts, nil
}
