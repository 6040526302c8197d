// Package mask draws inpainting masks from label files.
//
// A mask is a single-channel image the size of its source image: zero
// everywhere except a filled rectangle (255) around each labeled defect.
// Rectangles follow the patch geometry: their size depends on the defect
// style and is transposed for Left and Right defects.
package mask

import (
	"image"

	"github.com/matzehuels/defectset/pkg/geom"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/patch"
)

// Suffix is appended to the image base name to form the mask file name.
const Suffix = "_mask001.png"

// Name returns the mask file name for an image base name.
func Name(base string) string { return base + Suffix }

// Sizes holds the vertical-orientation rectangle size of each style.
type Sizes struct {
	Bright patch.Size `toml:"bright"`
	Gray   patch.Size `toml:"gray"`
}

// DefaultSizes are the rectangle sizes used for the reference dataset.
func DefaultSizes() Sizes {
	return Sizes{
		Bright: patch.Size{W: 15, H: 15},
		Gray:   patch.Size{W: 25, H: 40},
	}
}

func (s Sizes) of(st label.Style) patch.Size {
	if st == label.Gray {
		return s.Gray
	}
	return s.Bright
}

// Rect returns the inclusive pixel rectangle covered by r on a w×h image,
// clipped to the image, as a half-open image.Rectangle. It reports false for
// records whose class is neither bright nor gray.
func Rect(w, h int, r label.Record, sizes Sizes) (image.Rectangle, bool) {
	st, ok := label.StyleOf(r.Class)
	if !ok {
		return image.Rectangle{}, false
	}
	bw, bh := sizes.of(st).For(geom.ClassifyPoint(r.Center))

	cx := r.Center.X * float64(w)
	cy := r.Center.Y * float64(h)
	x1 := max(0, int(cx-float64(bw)/2))
	y1 := max(0, int(cy-float64(bh)/2))
	x2 := min(w-1, int(cx+float64(bw)/2))
	y2 := min(h-1, int(cy+float64(bh)/2))

	if x2 < x1 || y2 < y1 {
		return image.Rectangle{}, true
	}
	return image.Rect(x1, y1, x2+1, y2+1), true
}

// Draw returns a w×h mask with a rectangle for every record.
func Draw(w, h int, records []label.Record, sizes Sizes) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range records {
		rect, ok := Rect(w, h, r, sizes)
		if !ok || rect.Empty() {
			continue
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			row := m.Pix[y*m.Stride:]
			for x := rect.Min.X; x < rect.Max.X; x++ {
				row[x] = 255
			}
		}
	}
	return m
}

// Coverage returns the fraction of mask pixels that are set.
func Coverage(m *image.Gray) float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return float64(n) / float64(len(m.Pix))
}
