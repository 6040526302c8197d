// Package patch builds the library of defect patches painted onto images.
//
// A patch is a small opaque bar tagged by style and direction. Vertical
// (Up/Down) patches are W pixels wide and H tall; horizontal (Left/Right)
// patches are the transpose. Templates are resized once when the library is
// built and the library is read-only afterwards, so it can be shared by any
// number of workers.
package patch

import (
	"fmt"
	"image"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/defectset/pkg/errors"
	"github.com/matzehuels/defectset/pkg/geom"
	"github.com/matzehuels/defectset/pkg/label"
	"github.com/matzehuels/defectset/pkg/raster"
)

// Size is a patch size in pixels for the vertical orientation.
type Size struct {
	W int `toml:"w"`
	H int `toml:"h"`
}

// For returns the pixel size of a patch facing d.
func (s Size) For(d geom.Direction) (w, h int) {
	if d.Vertical() {
		return s.W, s.H
	}
	return s.H, s.W
}

// Spec requests patches of one style for a set of directions.
type Spec struct {
	Style      label.Style
	Directions []geom.Direction
	Size       Size
}

// Key identifies a patch.
type Key struct {
	Style     label.Style
	Direction geom.Direction
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Style, k.Direction)
}

// Library holds resized patches.
type Library struct {
	patches map[Key]*image.RGBA
}

// Build loads and resizes a template for every (style, direction) in specs.
// A template the loader cannot provide is a CONFIGURATION error: every later
// composite depends on the library covering what the labels reference.
func Build(specs []Spec, loader TemplateLoader) (*Library, error) {
	lib := &Library{patches: make(map[Key]*image.RGBA)}
	for _, spec := range specs {
		if err := errors.ValidatePixelSize(spec.Style.String()+" patch", spec.Size.W, spec.Size.H); err != nil {
			return nil, err
		}
		for _, d := range spec.Directions {
			tmpl, err := loader.Load(spec.Style, d)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "patch template %s/%s", spec.Style, d)
			}
			w, h := spec.Size.For(d)
			lib.patches[Key{spec.Style, d}] = Resize(tmpl, w, h)
		}
	}
	return lib, nil
}

// Get returns the patch for (style, d).
func (l *Library) Get(style label.Style, d geom.Direction) (*image.RGBA, bool) {
	p, ok := l.patches[Key{style, d}]
	return p, ok
}

// Must returns the patch for (style, d) or a CONFIGURATION error.
func (l *Library) Must(style label.Style, d geom.Direction) (*image.RGBA, error) {
	p, ok := l.Get(style, d)
	if !ok {
		return nil, errors.New(errors.ErrCodeConfiguration, "no patch for %s", Key{style, d})
	}
	return p, nil
}

// Len returns the number of patches.
func (l *Library) Len() int { return len(l.patches) }

// Resize scales src to w×h with bilinear interpolation.
func Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Loaders

// TemplateLoader provides the unscaled template for a style and direction.
type TemplateLoader interface {
	Load(style label.Style, d geom.Direction) (image.Image, error)
}

// DirLoader reads templates named patch_texture_<suffix>_<dir>.png from Dir,
// e.g. patch_texture_g_2.png for the gray Down patch.
type DirLoader struct {
	Dir string
}

// Path returns the template path for (style, d).
func (l DirLoader) Path(style label.Style, d geom.Direction) string {
	return filepath.Join(l.Dir, fmt.Sprintf("patch_texture_%s_%d.png", style.Suffix(), int(d)))
}

// Load implements TemplateLoader.
func (l DirLoader) Load(style label.Style, d geom.Direction) (image.Image, error) {
	return raster.Load(l.Path(style, d))
}

// Chain tries each loader in order and returns the first template found.
// When every loader fails the error of the first one is returned.
type Chain []TemplateLoader

// Load implements TemplateLoader.
func (c Chain) Load(style label.Style, d geom.Direction) (image.Image, error) {
	var first error
	for _, l := range c {
		img, err := l.Load(style, d)
		if err == nil {
			return img, nil
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = fmt.Errorf("no loaders")
	}
	return nil, first
}
