package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/pool"
	"github.com/matzehuels/defectset/pkg/sample"
)

// RandomLabels writes opts.Combinations random scenes for every label file
// present in both GrayLabels and BrightLabels. A scene holds GrayCount gray
// records (class forced to gray) and BrightCount bright records whose
// centers are pairwise at least MinDistance apart, resized by direction.
// Scene i of file <base>.txt is written to LabelsOut/<base>_<i>.txt.
//
// Files with fewer records than requested are skipped; scenes whose sampling
// exhausts MaxAttempts are left out with a warning. Every file samples from
// its own stream seeded with Seed plus the file's index, so the output does
// not depend on the number of workers.
func (r *Runner) RandomLabels(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"gray labels": opts.GrayLabels, "bright labels": opts.BrightLabels}); err != nil {
		return nil, err
	}

	names, err := label.CommonNames(opts.GrayLabels, opts.BrightLabels)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "list label directories")
	}
	if err := os.MkdirAll(opts.LabelsOut, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create %s", opts.LabelsOut)
	}
	opts.Logger.Debug("sampling scenes", "files", len(names), "combinations", opts.Combinations)

	st := newStage(ctx, StageLabels, &opts)
	st.begin(len(names))
	samplers := make([]*sample.Sampler, len(names))

	err = pool.Run(ctx, len(names), opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		name := names[i]
		gray, err := label.ReadFile(filepath.Join(opts.GrayLabels, name))
		if err != nil {
			return st.record(err, "file", name)
		}
		bright, err := label.ReadFile(filepath.Join(opts.BrightLabels, name))
		if err != nil {
			return st.record(err, "file", name)
		}
		grayRecords := label.WithClass(gray.Records, label.Gray.Class())

		s := sample.New(sample.Options{
			MinDistance: opts.MinDistance,
			MaxAttempts: opts.MaxAttempts,
			Seed:        opts.Seed + uint64(i),
			Logger:      opts.Logger,
		})
		samplers[i] = s

		written := 0
		for c := 0; c < opts.Combinations; c++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := s.Sample(grayRecords, bright.Records, opts.GrayCount, opts.BrightCount)
			if errors.Is(err, errors.ErrCodeSamplingImpossible) {
				return st.record(errors.Wrap(errors.ErrCodeSamplingImpossible, err, "%s: not enough labels", name))
			}
			if err != nil {
				if ferr := st.record(errors.Wrap(errors.ErrCodeSamplingExhausted, err, "%s scene %d", gray.Name, c)); ferr != nil {
					return ferr
				}
				continue
			}

			f := label.File{Name: fmt.Sprintf("%s_%d", gray.Name, c)}
			ok, err := st.writeResized(f, records, opts)
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
		st.tally.Written(written)
		return nil
	})

	res := st.result()
	stats := sample.Combine(compact(samplers)...)
	res.Sampling = &stats
	opts.Logger.Info("sampled scenes",
		"accepted", stats.Accepted,
		"exhausted", stats.Exhausted,
		"rate", fmt.Sprintf("%.4f", stats.Rate),
		"mean_draws", fmt.Sprintf("%.1f", stats.MeanTries),
		"max_draws", stats.MaxTries)

	if err == nil && opts.TriesPlot != "" && stats.Accepted > 0 {
		var tries []float64
		for _, s := range compact(samplers) {
			tries = append(tries, s.Tries()...)
		}
		if perr := sample.PlotTries(tries, opts.TriesPlot); perr != nil {
			opts.Logger.Warn("could not plot draws", "path", opts.TriesPlot, "error", perr)
		} else {
			opts.Logger.Info("wrote draws histogram", "path", opts.TriesPlot)
		}
	}
	return res, err
}

// ParityLabels merges GrayLabels and BrightLabels with style suffixes
// (<base>_g, <base>_b), resizes each file and splits it by record parity
// into LabelsOut/<name>_0.txt and <name>_1.txt.
//
// Bright records are sized with the diagonal classifier; gray records keep
// their size, or take the template size when they have none. Both halves are
// then resized by direction.
func (r *Runner) ParityLabels(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"gray labels": opts.GrayLabels, "bright labels": opts.BrightLabels}); err != nil {
		return nil, err
	}

	files, failed, err := label.MergeDirs(opts.GrayLabels, opts.BrightLabels,
		label.TagFor(label.Gray), label.TagFor(label.Bright))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read label directories")
	}
	if err := os.MkdirAll(opts.LabelsOut, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create %s", opts.LabelsOut)
	}

	st := newStage(ctx, StageLabels, &opts)
	for _, ferr := range failed {
		if err := st.record(ferr); err != nil {
			return st.result(), err
		}
	}
	st.begin(len(files))

	brightSuffix := "_" + label.Bright.Suffix()
	err = pool.Run(ctx, len(files), opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		f := files[i]

		var records []label.Record
		if strings.HasSuffix(f.Name, brightSuffix) {
			var dropped []label.Record
			records, dropped = label.ResizeByDiagonal(f.Records, opts.LabelSize)
			st.warnDropped(f.Name, dropped)
		} else {
			records = withDefaultSize(f.Records, opts.LabelSize)
		}

		even, odd := label.ParitySplit(records)
		for half, part := range [][]label.Record{even, odd} {
			out := label.File{Name: fmt.Sprintf("%s_%d", f.Name, half)}
			ok, err := st.writeResized(out, part, opts)
			if err != nil {
				return err
			}
			if ok {
				st.tally.Written(1)
			}
		}
		return nil
	})
	return st.result(), err
}

// ResizeLabels resizes every label file of in by direction and writes it
// under the same name to out. in and out may be the same directory.
func (r *Runner) ResizeLabels(ctx context.Context, opts Options, in, out string) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"input": in, "output": out}); err != nil {
		return nil, err
	}
	names, err := label.ListDir(in)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "list %s", in)
	}

	st := newStage(ctx, StageResize, &opts)
	st.begin(len(names))
	err = pool.Run(ctx, len(names), opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		f, err := label.ReadFile(filepath.Join(in, names[i]))
		if err != nil {
			return st.record(err, "file", names[i])
		}
		o := opts
		o.LabelsOut = out
		ok, err := st.writeResized(f, f.Records, o)
		if ok {
			st.tally.Written(1)
		}
		return err
	})
	return st.result(), err
}

// MergeLabels joins the label files present in both BrightLabels and
// GrayLabels into LabelsOut. Each merged file lists the bright records
// (class 0) followed by the gray records (class 1).
func (r *Runner) MergeLabels(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"gray labels": opts.GrayLabels, "bright labels": opts.BrightLabels}); err != nil {
		return nil, err
	}

	st := newStage(ctx, StageMerge, &opts)
	bright, failedB, err := label.ReadDir(opts.BrightLabels)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read %s", opts.BrightLabels)
	}
	gray, failedG, err := label.ReadDir(opts.GrayLabels)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read %s", opts.GrayLabels)
	}
	for _, ferr := range append(failedB, failedG...) {
		if err := st.record(ferr); err != nil {
			return st.result(), err
		}
	}

	merged := label.MergeByName(bright, gray, label.Bright.Class(), label.Gray.Class())
	st.begin(len(merged))
	for _, f := range merged {
		if err := ctx.Err(); err != nil {
			return st.result(), err
		}
		if _, err := f.Write(opts.LabelsOut); err != nil {
			if ferr := st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write %s", f.Name)); ferr != nil {
				return st.result(), ferr
			}
		} else {
			st.tally.Written(1)
		}
		st.step()
	}
	return st.result(), nil
}

// writeResized resizes records by direction and writes them as f to
// opts.LabelsOut. Records outside the image are dropped with a warning.
// Write failures are recorded and reported as !ok; only fatal errors are
// returned.
func (s *stage) writeResized(f label.File, records []label.Record, opts Options) (ok bool, err error) {
	kept, dropped := label.ResizeByDirection(records, opts.LabelSize)
	s.warnDropped(f.Name, dropped)
	f.Records = kept
	if _, err := f.Write(opts.LabelsOut); err != nil {
		if !errors.Is(err, errors.ErrCodeInvalidInput) {
			err = errors.Wrap(errors.ErrCodeSkippableInput, err, "write %s", f.Name)
		}
		return false, s.record(err)
	}
	return true, nil
}

func (s *stage) warnDropped(name string, dropped []label.Record) {
	if len(dropped) == 0 {
		return
	}
	s.opts.Logger.Warn("dropped records outside the image", "stage", s.name, "file", name, "count", len(dropped))
	s.tally.Warn(errors.New(errors.ErrCodeGeometry, "%s: dropped %d records outside the image", name, len(dropped)))
}

// withDefaultSize returns records with the template size set on every record
// that has none.
func withDefaultSize(records []label.Record, size label.Size) []label.Record {
	out := make([]label.Record, len(records))
	for i, r := range records {
		if !r.HasSize {
			r.Width, r.Height, r.HasSize = size.W, size.H, true
		}
		out[i] = r
	}
	return out
}

func compact[T any](items []*T) []*T {
	out := make([]*T, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}
