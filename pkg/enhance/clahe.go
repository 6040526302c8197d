package enhance

import (
	"image"
	"math"

	"github.com/matzehuels/defectset/pkg/raster"
)

// CLAHE returns contrast-limited adaptive histogram equalization over a
// grid×grid tiling. Each tile's histogram is clipped at clip times the mean
// bin height, the excess is spread over all bins, and pixels interpolate
// bilinearly between the mappings of the four nearest tile centers.
func CLAHE(clip float64, grid int) Transform {
	return func(img image.Image) image.Image {
		return clahe(raster.ToGray(img), clip, grid)
	}
}

func clahe(g *image.Gray, clip float64, grid int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 || grid < 1 {
		return g
	}
	nx, ny := min(grid, w), min(grid, h)
	xb, yb := tileBounds(w, nx), tileBounds(h, ny)

	luts := make([][256]uint8, nx*ny)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			r := image.Rect(xb[tx], yb[ty], xb[tx+1], yb[ty+1])
			luts[ty*nx+tx] = tileLUT(g, r, clip)
		}
	}

	cols := blends(w, xb)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y, row := range blends(h, yb) {
		for x, col := range cols {
			v := g.Pix[y*g.Stride+x]
			top := (1-col.weight)*float64(luts[row.i0*nx+col.i0][v]) + col.weight*float64(luts[row.i0*nx+col.i1][v])
			bot := (1-col.weight)*float64(luts[row.i1*nx+col.i0][v]) + col.weight*float64(luts[row.i1*nx+col.i1][v])
			out.Pix[y*out.Stride+x] = clampByte(math.Round((1-row.weight)*top + row.weight*bot))
		}
	}
	return out
}

// tileBounds splits [0, size) into n tiles whose widths differ by at most
// one. Tile t spans [b[t], b[t+1]); n <= size keeps every tile non-empty.
func tileBounds(size, n int) []int {
	b := make([]int, n+1)
	for t := range b {
		b[t] = t * size / n
	}
	return b
}

// blend is the pair of tiles whose centers bracket a pixel and the weight of
// the second.
type blend struct {
	i0, i1 int
	weight float64
}

// blends returns the blend of every pixel along one axis. Pixels before the
// first or past the last tile center take that tile alone.
func blends(size int, bounds []int) []blend {
	n := len(bounds) - 1
	center := func(t int) float64 { return float64(bounds[t]+bounds[t+1]) / 2 }

	out := make([]blend, size)
	t := 0
	for p := range out {
		c := float64(p) + 0.5
		for t < n-1 && center(t+1) <= c {
			t++
		}
		switch {
		case c <= center(0):
			out[p] = blend{0, 0, 0}
		case t == n-1:
			out[p] = blend{n - 1, n - 1, 0}
		default:
			out[p] = blend{t, t + 1, (c - center(t)) / (center(t+1) - center(t))}
		}
	}
	return out
}

func tileLUT(g *image.Gray, r image.Rectangle, clip float64) (lut [256]uint8) {
	var hist [256]int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Pix[y*g.Stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			hist[row[x]]++
		}
	}
	area := r.Dx() * r.Dy()

	if clip > 0 {
		limit := max(1, int(clip*float64(area)/256))
		excess := 0
		for i, c := range hist {
			if c > limit {
				excess += c - limit
				hist[i] = limit
			}
		}
		each, rest := excess/256, excess%256
		for i := range hist {
			hist[i] += each
			if i < rest {
				hist[i]++
			}
		}
	}

	scale := 255 / float64(area)
	sum := 0
	for i, c := range hist {
		sum += c
		lut[i] = clampByte(math.Round(float64(sum) * scale))
	}
	return lut
}
