// Package noise adds Poisson–Gaussian sensor noise to images.
//
// The model works on normalized intensity v in [0,1]. The Poisson part
// replaces v by Poisson(alpha*v)/alpha, so a larger alpha (more photons)
// means less shot noise; the Gaussian part adds N(0, sigma²) read noise. The
// result is clipped to [0,1] and scaled back to 8 bits. Color images take the
// first channel as intensity and write the same noisy value to every color
// channel.
package noise

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/matzehuels/defectset/pkg/raster"
)

// Level is a named noise strength. An Alpha of zero disables the Poisson
// part; a Sigma2 of zero disables the Gaussian part.
type Level struct {
	Name   string  `toml:"name"`
	Alpha  float64 `toml:"alpha"`
	Sigma2 float64 `toml:"sigma2"`
}

// Levels are the built-in strengths, from clean to severe.
var Levels = []Level{
	{Name: "none"},
	{Name: "mild", Alpha: 50, Sigma2: 0.001},
	{Name: "moderate", Alpha: 20, Sigma2: 0.005},
	{Name: "severe", Alpha: 5, Sigma2: 0.02},
}

// LevelByName returns the built-in level called name.
func LevelByName(name string) (Level, error) {
	for _, l := range Levels {
		if l.Name == name {
			return l, nil
		}
	}
	return Level{}, fmt.Errorf("unknown noise level %q", name)
}

// Clean reports whether the level leaves images unchanged.
func (l Level) Clean() bool {
	return l.Alpha <= 0 && l.Sigma2 <= 0
}

// AlphaString formats Alpha for logs; "None" when the Poisson part is off.
func (l Level) AlphaString() string {
	if l.Alpha <= 0 {
		return "None"
	}
	return strconv.FormatFloat(l.Alpha, 'f', -1, 64)
}

// Apply returns img with the level's noise drawn from src. A clean level
// returns img itself.
func (l Level) Apply(img image.Image, src rand.Source) image.Image {
	if l.Clean() {
		return img
	}

	var gauss distuv.Normal
	if l.Sigma2 > 0 {
		gauss = distuv.Normal{Mu: 0, Sigma: math.Sqrt(l.Sigma2), Src: src}
	}
	noisy := func(v uint8) uint8 {
		y := float64(v) / 255
		if l.Alpha > 0 {
			p := distuv.Poisson{Lambda: y * l.Alpha, Src: src}
			if p.Lambda > 0 {
				y = p.Rand() / l.Alpha
			} else {
				y = 0
			}
		}
		if l.Sigma2 > 0 {
			y += gauss.Rand()
		}
		return uint8(math.Max(0, math.Min(1, y)) * 255)
	}

	if raster.IsGray(img) {
		g := raster.ToGray(img)
		for i, v := range g.Pix {
			g.Pix[i] = noisy(v)
		}
		return g
	}

	out := raster.ToRGBA(img)
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.RGBAAt(x, y)
			v := noisy(c.R)
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: c.A})
		}
	}
	return out
}
