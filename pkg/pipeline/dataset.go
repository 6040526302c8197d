package pipeline

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matzehuels/defectset/pkg/dataset"
	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/mask"
	"github.com/matzehuels/defectset/pkg/noise"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/pool"
	"github.com/matzehuels/defectset/pkg/raster"
)

// NoiseLog is the name of the noise log written at the root of the noise
// output.
const NoiseLog = "log.csv"

// Split copies ImagesOut and LabelsOut into the partitioned dataset under
// DatasetOut, adding background crops when Backgrounds and CropsPerAngle are
// set.
func (r *Runner) Split(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"images": opts.ImagesOut, "labels": opts.LabelsOut}); err != nil {
		return nil, err
	}
	assigner, err := partition.New(opts.Partitions)
	if err != nil {
		return nil, err
	}

	st := newStage(ctx, StageSplit, &opts)
	st.begin(1)
	rep, err := dataset.Split(ctx, dataset.SplitOptions{
		ImageDir:   opts.ImagesOut,
		LabelDir:   opts.LabelsOut,
		Out:        opts.Layout(),
		Assigner:   assigner,
		Background: opts.Background(),
		Workers:    opts.Workers,
		Logger:     opts.Logger,
	})
	st.step()
	if rep == nil {
		return st.result(), err
	}

	st.tally = rep.Tally
	res := st.result()
	res.Split = rep
	for _, p := range partition.All {
		c := rep.Counts[p]
		opts.Logger.Info("partition",
			"name", p,
			"groups", c.Groups,
			"images", c.Images,
			"labels", c.Labels,
			"backgrounds", c.Backgrounds)
	}
	if len(rep.Unknown) > 0 {
		opts.Logger.Warn("groups without a partition", "groups", rep.Unknown)
	}
	return res, err
}

// Masks draws an inpainting mask for every image of the dataset under
// DatasetOut: masks/<p>/<base>_mask001.png holds a filled rectangle per
// record of labels/<p>/<base>.txt. Images without a label file get an empty
// mask.
func (r *Runner) Masks(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	layout := opts.Layout()
	if err := layout.Create(true); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create dataset layout")
	}

	type unit struct {
		p    partition.Partition
		name string
	}
	var units []unit
	for _, p := range partition.All {
		names, err := listImages(layout.ImageDir(p))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "list %s images", p)
		}
		for _, n := range names {
			units = append(units, unit{p, n})
		}
	}

	st := newStage(ctx, StageMasks, &opts)
	st.begin(len(units))
	err := pool.Run(ctx, len(units), opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		u := units[i]
		img, err := raster.Load(filepath.Join(layout.ImageDir(u.p), u.name))
		if err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "%s", u.name))
		}
		base := label.BaseName(u.name)

		var records []label.Record
		f, err := label.ReadFile(filepath.Join(layout.LabelDir(u.p), base+label.Ext))
		switch {
		case err == nil:
			records = sized(f.Records)
		case errors.Is(err, errors.ErrCodeFileNotFound):
			opts.Logger.Debug("no label, writing empty mask", "image", u.name)
		default:
			return st.record(err)
		}

		b := img.Bounds()
		m := mask.Draw(b.Dx(), b.Dy(), records, opts.MaskSizes)
		if err := raster.SavePNG(filepath.Join(layout.MaskDir(u.p), mask.Name(base)), m); err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write mask %s", base))
		}
		st.tally.Written(1)
		return nil
	})
	return st.result(), err
}

// sized returns the records that carry a box size.
func sized(records []label.Record) []label.Record {
	out := records[:0:0]
	for _, r := range records {
		if r.HasSize {
			out = append(out, r)
		}
	}
	return out
}

// Noise writes every image under in (recursively) once per level of
// NoiseLevels to out/<level>/<relative path>, and a CSV log of every output
// to out/log.csv. Image i at level l draws from its own seeded stream.
func (r *Runner) Noise(ctx context.Context, opts Options, in, out string) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"input": in, "output": out}); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create %s", out)
	}

	var files []string
	err := filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && raster.IsImage(d.Name()) {
			rel, err := filepath.Rel(in, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "walk %s", in)
	}

	levels := opts.NoiseLevels
	n := len(files) * len(levels)
	entries := make([]*noise.Entry, n)

	st := newStage(ctx, StageNoise, &opts)
	st.begin(n)
	err = pool.Run(ctx, n, opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		level, rel := levels[i/len(files)], files[i%len(files)]
		img, err := raster.Load(filepath.Join(in, rel))
		if err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "%s", rel))
		}
		noisy := level.Apply(img, noise.Source(opts.Seed, i))
		dst := filepath.Join(out, level.Name, rel)
		if err := raster.Save(dst, noisy); err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write %s", dst))
		}
		entries[i] = &noise.Entry{Filename: rel, Level: level, Output: dst}
		st.tally.Written(1)
		return nil
	})
	res := st.result()
	if err != nil {
		return res, err
	}

	var buf bytes.Buffer
	if err := noise.WriteLog(&buf, derefAll(entries)); err != nil {
		return res, errors.Wrap(errors.ErrCodeInternal, err, "format noise log")
	}
	if err := os.WriteFile(filepath.Join(out, NoiseLog), buf.Bytes(), 0644); err != nil {
		return res, errors.Wrap(errors.ErrCodeConfiguration, err, "write noise log")
	}
	return res, nil
}

// Collect builds the flat inpainting set in out from the base images of
// every partitioned id and the masks under DatasetOut.
func (r *Runner) Collect(ctx context.Context, opts Options, out string) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"base images": opts.BaseImages, "output": out}); err != nil {
		return nil, err
	}
	assigner, err := partition.New(opts.Partitions)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, p := range partition.All {
		ids = append(ids, assigner.IDs(p)...)
	}

	st := newStage(ctx, StageCollect, &opts)
	st.begin(1)
	tally, err := dataset.CollectInpainting(ctx, dataset.CollectOptions{
		BaseDir: opts.BaseImages,
		Root:    opts.Layout(),
		Out:     out,
		IDs:     ids,
		Workers: opts.Workers,
	})
	st.step()
	for _, p := range tally.Problems() {
		opts.Logger.Warn(p.Error(), "stage", StageCollect)
	}
	st.tally = tally
	return st.result(), err
}

func derefAll[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, it := range compact(items) {
		out = append(out, *it)
	}
	return out
}
