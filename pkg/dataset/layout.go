// Package dataset lays out and fills the partitioned dataset directories.
//
// A dataset root holds images/, labels/ and optionally masks/, each with one
// subdirectory per partition. Image and label files mirror each other by base
// name; a mask for image <base>.png is <base>_mask001.png.
package dataset

import (
	"io"
	"os"
	"path/filepath"

	"github.com/matzehuels/defectset/pkg/partition"
)

// Layout names the directories of a dataset.
type Layout struct {
	Images string
	Labels string
	Masks  string
}

// NewLayout returns the standard layout under root.
func NewLayout(root string) Layout {
	return Layout{
		Images: filepath.Join(root, "images"),
		Labels: filepath.Join(root, "labels"),
		Masks:  filepath.Join(root, "masks"),
	}
}

// ImageDir returns the image directory of p.
func (l Layout) ImageDir(p partition.Partition) string { return filepath.Join(l.Images, p.String()) }

// LabelDir returns the label directory of p.
func (l Layout) LabelDir(p partition.Partition) string { return filepath.Join(l.Labels, p.String()) }

// MaskDir returns the mask directory of p.
func (l Layout) MaskDir(p partition.Partition) string { return filepath.Join(l.Masks, p.String()) }

// Create makes the image and label directories of every partition, and the
// mask directories when withMasks is set.
func (l Layout) Create(withMasks bool) error {
	for _, p := range partition.All {
		dirs := []string{l.ImageDir(p), l.LabelDir(p)}
		if withMasks {
			dirs = append(dirs, l.MaskDir(p))
		}
		for _, d := range dirs {
			if err := os.MkdirAll(d, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyFile copies src to dst, creating dst's directory.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
