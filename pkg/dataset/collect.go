package dataset

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/partition"
	"github.com/matzehuels/defectset/pkg/pool"
)

// CollectOptions configures CollectInpainting.
type CollectOptions struct {
	// BaseDir holds the clean base images <id>.png.
	BaseDir string
	// Root is the partitioned dataset whose images name the variants and
	// whose masks are collected.
	Root Layout
	// Out receives the flat inpainting set.
	Out string
	// IDs are the base image ids to expand.
	IDs     []int
	Workers int
}

// Suffixes returns the sorted distinct name suffixes ("_bk_r90_c0", "_3")
// of the PNG images under root, taken from names of the form <id>_<rest>.
func Suffixes(root Layout) ([]string, error) {
	seen := make(map[string]bool)
	for _, p := range partition.All {
		names, err := listImages(root.ImageDir(p), []string{".png"})
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			stem := strings.TrimSuffix(n, filepath.Ext(n))
			id, rest, ok := strings.Cut(stem, "_")
			if !ok {
				continue
			}
			if _, err := strconv.Atoi(id); err != nil {
				continue
			}
			seen["_"+rest] = true
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// CollectInpainting builds the flat image/mask set used to train an
// inpainting model: every clean base image is copied once per variant suffix
// found in the dataset (so 5.png becomes 5_bk_r90_c0.png, 5_3.png, ...),
// and every mask of every partition is copied next to them.
func CollectInpainting(ctx context.Context, opts CollectOptions) (*pool.Tally, error) {
	tally := &pool.Tally{}
	if err := os.MkdirAll(opts.Out, 0755); err != nil {
		return tally, errors.Wrap(errors.ErrCodeConfiguration, err, "create %s", opts.Out)
	}
	suffixes, err := Suffixes(opts.Root)
	if err != nil {
		return tally, errors.Wrap(errors.ErrCodeConfiguration, err, "scan dataset images")
	}

	err = pool.Run(ctx, len(opts.IDs), opts.Workers, func(ctx context.Context, i int) error {
		src := filepath.Join(opts.BaseDir, fmt.Sprintf("%d.png", opts.IDs[i]))
		if _, err := os.Stat(src); err != nil {
			return tally.Record(errors.Wrap(errors.ErrCodeFileNotFound, err, "base image %s", src))
		}
		for _, s := range suffixes {
			dst := filepath.Join(opts.Out, fmt.Sprintf("%d%s.png", opts.IDs[i], s))
			if err := CopyFile(src, dst); err != nil {
				return tally.Record(errors.Wrap(errors.ErrCodeSkippableInput, err, "copy %s", dst))
			}
			tally.Written(1)
		}
		return nil
	})
	if err != nil {
		return tally, err
	}

	for _, p := range partition.All {
		dir := opts.Root.MaskDir(p)
		names, err := listImages(dir, []string{".png"})
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return tally, errors.Wrap(errors.ErrCodeConfiguration, err, "list masks")
		}
		for _, n := range names {
			if err := CopyFile(filepath.Join(dir, n), filepath.Join(opts.Out, n)); err != nil {
				tally.Skip(errors.Wrap(errors.ErrCodeSkippableInput, err, "copy mask %s", n))
				continue
			}
			tally.Written(1)
		}
	}
	return tally, nil
}
