// Package composite paints patches onto images at normalized label centers.
//
// Every function returns a new buffer; the destination image passed in is
// never written to, so one source image can feed many composites.
package composite

import (
	"image"
	"image/draw"
	"math"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/geom"
	"github.com/matzehuels/defectset/pkg/raster"
)

// Placement describes where a patch landed.
type Placement struct {
	// Center is the pixel the patch is centered on.
	Center image.Point
	// Dst is the clipped destination rectangle. Empty when the patch missed
	// the image entirely.
	Dst image.Rectangle
	// Src is the top-left of the patch region copied into Dst.
	Src image.Point
}

// Clipped reports whether only part of the patch was copied.
func (p Placement) Clipped(patch image.Rectangle) bool {
	return p.Dst.Dx() != patch.Dx() || p.Dst.Dy() != patch.Dy()
}

// Locate computes the placement of a pw×ph patch centered at c on a w×h
// image without touching any pixels.
func Locate(w, h, pw, ph int, c geom.Point) Placement {
	cx := int(math.Round(c.X * float64(w)))
	cy := int(math.Round(c.Y * float64(h)))

	full := image.Rect(cx-pw/2, cy-ph/2, cx-pw/2+pw, cy-ph/2+ph)
	dst := full.Intersect(image.Rect(0, 0, w, h))
	return Placement{
		Center: image.Pt(cx, cy),
		Dst:    dst,
		Src:    dst.Min.Sub(full.Min),
	}
}

// Place returns a copy of dst with patch painted opaquely at center c.
//
// The patch is clipped to the image; a placement clipped on the top or left
// keeps the bottom or right part of the patch. When nothing of the patch
// falls inside the image the copy is returned unchanged together with a
// GEOMETRY error, which callers treat as a warning.
func Place(dst, patch image.Image, c geom.Point) (*image.RGBA, Placement, error) {
	out := raster.ToRGBA(dst)
	pl, err := paint(out, patch, c)
	return out, pl, err
}

// Item is one patch to place.
type Item struct {
	Patch  image.Image
	Center geom.Point
}

// PlaceAll paints items in order onto a single copy of dst. Later items
// overwrite earlier ones where they overlap. The returned warnings hold one
// GEOMETRY error per item that could not be placed.
func PlaceAll(dst image.Image, items []Item) (*image.RGBA, []error) {
	out := raster.ToRGBA(dst)
	var warnings []error
	for _, it := range items {
		if _, err := paint(out, it.Patch, it.Center); err != nil {
			warnings = append(warnings, err)
		}
	}
	return out, warnings
}

func paint(out *image.RGBA, patch image.Image, c geom.Point) (Placement, error) {
	b := out.Bounds()
	if !c.Valid() {
		return Placement{}, errors.New(errors.ErrCodeGeometry, "center %s out of range", c)
	}

	src, ok := patch.(*image.RGBA)
	if !ok {
		// Gray and paletted patches are expanded to four channels first.
		src = raster.ToRGBA(patch)
	}
	sb := src.Bounds()

	pl := Locate(b.Dx(), b.Dy(), sb.Dx(), sb.Dy(), c)
	if pl.Dst.Empty() {
		return pl, errors.New(errors.ErrCodeGeometry,
			"patch %dx%d at %s falls outside %dx%d image", sb.Dx(), sb.Dy(), c, b.Dx(), b.Dy())
	}
	draw.Draw(out, pl.Dst, src, sb.Min.Add(pl.Src), draw.Src)
	return pl, nil
}
