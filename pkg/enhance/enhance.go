// Package enhance implements the contrast enhancement applied to base images
// before bright defects are painted.
//
// Enhancement is opaque to the rest of the system: a [Transform] maps one
// image to another. Every built-in transform other than [Identity] works on
// luminance and returns an *image.Gray.
package enhance

import (
	"fmt"
	"image"
	"image/color"
	"maps"
	"math"
	"slices"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/defectset/pkg/raster"
)

// Transform maps an image to an enhanced image. Implementations must not
// modify their input.
type Transform func(image.Image) image.Image

// Chain applies ts in order.
func Chain(ts ...Transform) Transform {
	return func(img image.Image) image.Image {
		for _, t := range ts {
			img = t(img)
		}
		return img
	}
}

// Identity returns its input.
func Identity(img image.Image) image.Image { return img }

// Grayscale converts to luminance.
func Grayscale(img image.Image) image.Image { return raster.ToGray(img) }

// LUT maps every luminance value through table.
func LUT(table *[256]uint8) Transform {
	return func(img image.Image) image.Image {
		return raster.ToGray(imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{R: table[c.R], G: table[c.G], B: table[c.B], A: c.A}
		}))
	}
}

// Sigmoid compresses luminance into [128, 255] along the logistic curve
// 128 + 128/(1+exp(-(v-128)/128)).
func Sigmoid(img image.Image) image.Image {
	return LUT(&sigmoidTable)(img)
}

var sigmoidTable = func() (t [256]uint8) {
	for i := range t {
		x := (float64(i) - 128) / 128
		t[i] = clampByte(1/(1+math.Exp(-x))*128 + 128)
	}
	return t
}()

// Gamma applies the power curve v' = 255*(v/255)^(1/gamma).
func Gamma(gamma float64) Transform {
	return func(img image.Image) image.Image {
		return raster.ToGray(imaging.AdjustGamma(img, gamma))
	}
}

// Equalize spreads the luminance histogram over the full range. The darkest
// occupied level maps to 0 and the cumulative count is scaled to 255.
func Equalize(img image.Image) image.Image {
	g := raster.ToGray(img)
	if len(g.Pix) == 0 {
		return g
	}

	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	first := 0
	for hist[first] == 0 {
		first++
	}
	total := len(g.Pix)
	if hist[first] == total {
		// A flat image has nothing to spread.
		return g
	}

	var table [256]uint8
	scale := 255 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		table[i] = clampByte(math.Round(float64(sum) * scale))
	}
	for i, v := range g.Pix {
		g.Pix[i] = table[v]
	}
	return g
}

// Default is the global enhancement chain: grayscale, sigmoid, gamma 1.5
// and histogram equalization. The image stage follows it with CLAHE (see
// [Full]).
func Default() Transform {
	return Chain(Grayscale, Sigmoid, Gamma(1.5), Equalize)
}

// Full is [Default] followed by CLAHE with clip limit 2 on an 8×8 grid.
func Full() Transform {
	return Chain(Default(), CLAHE(2.0, 8))
}

var presets = map[string]func() Transform{
	"none":    func() Transform { return Identity },
	"default": Default,
	"clahe":   Full,
}

// Preset returns the named transform: "none", "default" or "clahe" (the
// [Full] chain).
func Preset(name string) (Transform, error) {
	f, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown enhancement %q (want one of %v)", name, PresetNames())
	}
	return f(), nil
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
