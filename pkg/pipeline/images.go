package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/matzehuels/defectset/pkg/composite"
	"github.com/matzehuels/defectset/pkg/enhance"
	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/geom"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/patch"
	"github.com/matzehuels/defectset/pkg/pool"
	"github.com/matzehuels/defectset/pkg/raster"
)

// BuildLibrary loads the patch templates for a run. Bright patches come from
// the built-in textures (Up and Right only, chosen by ClassifyHalf); gray
// patches come from opts.Templates for all four directions. Files in
// opts.Templates also override the built-in bright textures.
func BuildLibrary(opts Options) (*patch.Library, error) {
	var loader patch.Chain
	if opts.Templates != "" {
		loader = append(loader, patch.DirLoader{Dir: opts.Templates})
	}
	loader = append(loader, patch.TextureLoader{})

	return patch.Build([]patch.Spec{
		{Style: label.Bright, Directions: []geom.Direction{geom.Up, geom.Right}, Size: opts.BrightPatch},
		{Style: label.Gray, Directions: geom.Directions, Size: opts.GrayPatch},
	}, loader)
}

// Images paints a synthetic image for every label file in LabelsOut.
//
// For label file <id>_<rest>.txt the base image <id>.{png,jpg,jpeg} is read
// from BaseImages. Gray records get the gray patch of their direction, the
// result is enhanced with the Enhance preset, then bright records get the
// bright patch chosen by the horizontal half of their center. The image is
// written to ImagesOut/<base>.png.
func (r *Runner) Images(ctx context.Context, opts Options) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"base images": opts.BaseImages, "labels": opts.LabelsOut}); err != nil {
		return nil, err
	}

	lib, err := BuildLibrary(opts)
	if err != nil {
		return nil, err
	}
	transform, err := enhance.Preset(opts.Enhance)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "enhance")
	}
	enh := enhance.Cached{Name: opts.Enhance, Transform: transform, Cache: r.Cache, Logger: opts.Logger}

	names, err := label.ListDir(opts.LabelsOut)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "list %s", opts.LabelsOut)
	}
	if err := os.MkdirAll(opts.ImagesOut, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create %s", opts.ImagesOut)
	}
	opts.Logger.Debug("compositing images", "labels", len(names), "patches", lib.Len())

	st := newStage(ctx, StageImages, &opts)
	st.begin(len(names))
	var hits atomic.Int64

	err = pool.Run(ctx, len(names), opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		f, err := label.ReadFile(filepath.Join(opts.LabelsOut, names[i]))
		if err != nil {
			return st.record(err, "file", names[i])
		}
		id, _, _ := strings.Cut(f.Name, "_")
		src, ok := raster.Find(opts.BaseImages, id)
		if !ok {
			return st.record(errors.New(errors.ErrCodeFileNotFound, "%s: no base image %s", f.Name, id))
		}
		base, err := raster.Load(src)
		if err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "%s", f.Name))
		}

		gray, bright, err := st.patchItems(f, lib)
		if err != nil {
			return err
		}

		img, warnings := composite.PlaceAll(base, gray)
		enhanced, hit := enh.Apply(ctx, img)
		if hit {
			hits.Add(1)
		}
		img, more := composite.PlaceAll(enhanced, bright)
		for _, w := range append(warnings, more...) {
			st.tally.Warn(w)
			opts.Logger.Debug("patch not placed", "file", f.Name, "error", w)
		}

		if err := raster.SavePNG(filepath.Join(opts.ImagesOut, f.Name+".png"), img); err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write %s", f.Name))
		}
		st.tally.Written(1)
		return nil
	})

	res := st.result()
	res.CacheHits = int(hits.Load())
	return res, err
}

// patchItems splits the records of f into gray and bright placements.
// Records of an unknown class are warned about and left out.
func (s *stage) patchItems(f label.File, lib *patch.Library) (gray, bright []composite.Item, err error) {
	for _, rec := range f.Records {
		style, ok := label.StyleOf(rec.Class)
		if !ok {
			s.tally.Warn(errors.New(errors.ErrCodeInvalidInput, "%s: unknown class %d", f.Name, rec.Class))
			continue
		}
		d := rec.Direction()
		if style == label.Bright {
			d = geom.ClassifyHalf(rec.Center.X)
		}
		p, err := lib.Must(style, d)
		if err != nil {
			return nil, nil, s.record(err)
		}
		item := composite.Item{Patch: p, Center: rec.Center}
		if style == label.Gray {
			gray = append(gray, item)
		} else {
			bright = append(bright, item)
		}
	}
	return gray, bright, nil
}

// EnhanceDir applies the Enhance preset to every image of in and writes the
// result to out under the same name. The output format follows the file
// extension.
func (r *Runner) EnhanceDir(ctx context.Context, opts Options, in, out string) (*StageResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := requireDirs(map[string]string{"input": in, "output": out}); err != nil {
		return nil, err
	}
	transform, err := enhance.Preset(opts.Enhance)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "enhance")
	}
	enh := enhance.Cached{Name: opts.Enhance, Transform: transform, Cache: r.Cache, Logger: opts.Logger}

	names, err := listImages(in)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "list %s", in)
	}

	st := newStage(ctx, StageEnhance, &opts)
	st.begin(len(names))
	var hits atomic.Int64
	err = pool.Run(ctx, len(names), opts.Workers, func(ctx context.Context, i int) error {
		defer st.step()
		img, err := raster.Load(filepath.Join(in, names[i]))
		if err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "%s", names[i]))
		}
		res, hit := enh.Apply(ctx, img)
		if hit {
			hits.Add(1)
		}
		if err := raster.Save(filepath.Join(out, names[i]), res); err != nil {
			return st.record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write %s", names[i]))
		}
		st.tally.Written(1)
		return nil
	})
	res := st.result()
	res.CacheHits = int(hits.Load())
	return res, err
}

// listImages returns the sorted image file names directly under dir.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && raster.IsImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
