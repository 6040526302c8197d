package dataset

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/pool"
	"github.com/matzehuels/defectset/pkg/raster"
)

const (
	// DefaultCropSize is the side of a background crop in pixels.
	DefaultCropSize = 256

	// DefaultCropsPerAngle is the number of background crops per rotation.
	DefaultCropsPerAngle = 0
)

// Angles are the clockwise rotations applied to background images.
var Angles = []int{0, 90, 180, 270}

// Background configures background augmentation: every base image in Dir is
// rotated by each of Angles and CropsPerAngle random crops of CropW×CropH
// are written with an empty label file.
type Background struct {
	Dir           string
	CropW         int
	CropH         int
	CropsPerAngle int
	Seed          uint64
}

// SplitOptions configures Split.
type SplitOptions struct {
	ImageDir   string
	LabelDir   string
	Out        Layout
	Assigner   *partition.Assigner
	Background Background
	Workers    int
	Logger     *log.Logger
}

func (o *SplitOptions) setDefaults() {
	if o.Background.CropW == 0 {
		o.Background.CropW = DefaultCropSize
	}
	if o.Background.CropH == 0 {
		o.Background.CropH = DefaultCropSize
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Count is the per-partition result of a split.
type Count struct {
	Groups      int // distinct base ids
	Images      int
	Labels      int
	Backgrounds int
}

// SplitReport summarizes a split.
type SplitReport struct {
	Counts  map[partition.Partition]*Count
	Unknown []string // group keys assigned to no partition
	Tally   *pool.Tally
}

// GroupKey returns the group of an image file: the text before the first
// underscore, or the stem when there is none.
func GroupKey(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	key, _, _ := strings.Cut(stem, "_")
	return key
}

// Split copies every image of ImageDir, and its label from LabelDir when
// present, into the partition its group id is assigned to. Groups with no
// partition are skipped with a warning. When Background.Dir is set the
// background crops are added afterwards.
func Split(ctx context.Context, opts SplitOptions) (*SplitReport, error) {
	opts.setDefaults()
	if opts.Assigner == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "split needs a partition assigner")
	}
	if err := opts.Out.Create(false); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "create output layout")
	}

	names, err := listImages(opts.ImageDir, raster.ImageExts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "list images")
	}

	rep := &SplitReport{
		Counts: make(map[partition.Partition]*Count),
		Tally:  &pool.Tally{},
	}
	for _, p := range partition.All {
		rep.Counts[p] = &Count{}
	}

	groups := make(map[string]partition.Partition)
	type unit struct {
		name string
		p    partition.Partition
	}
	var units []unit
	for _, name := range names {
		key := GroupKey(name)
		p, seen := groups[key]
		if !seen {
			var err error
			p, err = opts.Assigner.AssignName(key)
			if err != nil {
				opts.Logger.Warn("no numeric id, skipping", "group", key)
			} else if p == partition.Unassigned {
				opts.Logger.Warn("unknown id, skipping", "group", key)
			}
			groups[key] = p
			if p == partition.Unassigned {
				rep.Unknown = append(rep.Unknown, key)
			} else {
				rep.Counts[p].Groups++
			}
		}
		if p == partition.Unassigned {
			if err := rep.Tally.Record(errors.New(errors.ErrCodeGeometry, "%s: no partition for group %s", name, key)); err != nil {
				return rep, err
			}
			continue
		}
		units = append(units, unit{name, p})
	}

	var mu sync.Mutex
	err = pool.Run(ctx, len(units), opts.Workers, func(ctx context.Context, i int) error {
		u := units[i]
		src := filepath.Join(opts.ImageDir, u.name)
		if err := CopyFile(src, filepath.Join(opts.Out.ImageDir(u.p), u.name)); err != nil {
			return rep.Tally.Record(errors.Wrap(errors.ErrCodeSkippableInput, err, "copy %s", u.name))
		}
		rep.Tally.Written(1)

		base := label.BaseName(u.name)
		lsrc := filepath.Join(opts.LabelDir, base+label.Ext)
		copied := false
		if _, err := os.Stat(lsrc); err == nil {
			if err := CopyFile(lsrc, filepath.Join(opts.Out.LabelDir(u.p), base+label.Ext)); err != nil {
				rep.Tally.Warn(errors.Wrap(errors.ErrCodeSkippableInput, err, "copy label %s", base))
			} else {
				copied = true
			}
		}

		mu.Lock()
		rep.Counts[u.p].Images++
		if copied {
			rep.Counts[u.p].Labels++
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return rep, err
	}

	if opts.Background.Dir != "" && opts.Background.CropsPerAngle > 0 {
		if err := addBackgrounds(ctx, opts, rep, &mu); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func addBackgrounds(ctx context.Context, opts SplitOptions, rep *SplitReport, mu *sync.Mutex) error {
	bg := opts.Background
	names, err := listImages(bg.Dir, []string{".png"})
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "list backgrounds")
	}

	return pool.Run(ctx, len(names), opts.Workers, func(ctx context.Context, i int) error {
		name := names[i]
		id := label.BaseName(name)
		p, err := opts.Assigner.AssignName(id)
		if err == nil && p == partition.Unassigned {
			err = errors.New(errors.ErrCodeGeometry, "background %s: unknown id", name)
		}
		if err != nil {
			opts.Logger.Warn("skipping background", "file", name, "error", errors.UserMessage(err))
			return rep.Tally.Record(err)
		}

		img, err := raster.Load(filepath.Join(bg.Dir, name))
		if err != nil {
			return rep.Tally.Record(err)
		}

		// One stream per background file keeps crops independent of scheduling.
		rng := rand.New(rand.NewPCG(bg.Seed, uint64(i)))
		written := 0
		for _, angle := range Angles {
			rot := raster.Rotate(img, angle)
			w, h := rot.Bounds().Dx(), rot.Bounds().Dy()
			if w < bg.CropW || h < bg.CropH {
				rep.Tally.Warn(errors.New(errors.ErrCodeGeometry,
					"background %s rotated %d° is %dx%d, smaller than the %dx%d crop", name, angle, w, h, bg.CropW, bg.CropH))
				continue
			}
			for idx := 0; idx < bg.CropsPerAngle; idx++ {
				x := rng.IntN(w - bg.CropW + 1)
				y := rng.IntN(h - bg.CropH + 1)
				crop := raster.Crop(rot, image.Rect(x, y, x+bg.CropW, y+bg.CropH))

				base := BackgroundName(id, angle, idx)
				if err := raster.SavePNG(filepath.Join(opts.Out.ImageDir(p), base+".png"), crop); err != nil {
					return rep.Tally.Record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write %s", base))
				}
				if err := label.WriteFile(filepath.Join(opts.Out.LabelDir(p), base+label.Ext), nil); err != nil {
					return rep.Tally.Record(errors.Wrap(errors.ErrCodeSkippableInput, err, "write label %s", base))
				}
				written++
			}
		}
		rep.Tally.Written(written)
		mu.Lock()
		rep.Counts[p].Backgrounds += written
		mu.Unlock()
		opts.Logger.Debug("background augmented", "file", name, "crops", written)
		return nil
	})
}

// BackgroundName returns the base name of a background crop.
func BackgroundName(id string, angle, idx int) string {
	return fmt.Sprintf("%s_bk_r%d_c%d", id, angle, idx)
}

// listImages returns the sorted names of regular files in dir whose
// lower-cased extension is one of exts.
func listImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
