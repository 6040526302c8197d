package patch

import (
	"fmt"
	"image"
	"image/color"

	"github.com/matzehuels/defectset/pkg/geom"
	"github.com/matzehuels/defectset/pkg/label"
)

// Built-in bright textures, sampled from real bright defects. Each matrix is
// tiled 2×2 into a 10×10 gray template.
var (
	brightLeft = [5][5]uint8{
		{208, 200, 199, 208, 199},
		{208, 183, 208, 183, 199},
		{200, 208, 216, 208, 208},
		{216, 200, 208, 200, 183},
		{208, 200, 216, 200, 208},
	}
	brightRight = [5][5]uint8{
		{227, 215, 207, 198, 207},
		{199, 207, 199, 199, 215},
		{215, 199, 207, 215, 199},
		{215, 199, 208, 215, 227},
		{208, 199, 216, 215, 215},
	}
)

// TextureLoader serves the built-in bright textures. Bright patches only
// come in two flavors: the "left" texture is the Up template and the "right"
// texture is the Right template. Everything else is reported missing.
type TextureLoader struct{}

// Load implements TemplateLoader.
func (TextureLoader) Load(style label.Style, d geom.Direction) (image.Image, error) {
	if style != label.Bright {
		return nil, fmt.Errorf("no built-in %s texture", style)
	}
	switch d {
	case geom.Up:
		return tile(brightLeft), nil
	case geom.Right:
		return tile(brightRight), nil
	default:
		return nil, fmt.Errorf("no built-in bright texture for %s", d)
	}
}

// tile repeats m twice in each axis. The result is an RGBA image with three
// equal channels.
func tile(m [5][5]uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			v := m[y%5][x%5]
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}
