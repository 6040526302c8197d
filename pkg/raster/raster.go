// Package raster loads, saves and reshapes images.
//
// Decoding and encoding support PNG, JPEG, TIFF and BMP. Generated images are
// written as PNG; Save keeps the format named by the file extension. Helpers
// return fresh buffers and never modify their inputs.
package raster

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/matzehuels/defectset/pkg/errors"
)

// ImageExts are the extensions probed when looking up a source image, in
// lookup order.
var ImageExts = []string{".png", ".jpg", ".jpeg"}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// Load decodes the image at path. Failures are SKIPPABLE_INPUT errors.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "image %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeSkippableInput, err, "open image %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSkippableInput, err, "decode image %s", path)
	}
	return img, nil
}

// JPEGQuality is used when Save writes a .jpg or .jpeg file.
const JPEGQuality = 95

// SavePNG encodes img as PNG at path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	return save(path, img, png.Encode)
}

// Save encodes img at path in the format named by its extension. Unknown
// extensions are written as PNG.
func Save(path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return save(path, img, func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: JPEGQuality})
		})
	case ".bmp":
		return save(path, img, bmp.Encode)
	case ".tif", ".tiff":
		return save(path, img, func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		})
	default:
		return save(path, img, png.Encode)
	}
}

func save(path string, img image.Image, encode func(io.Writer, image.Image) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Find returns the first existing <dir>/<base><ext> for ext in ImageExts.
func Find(dir, base string) (string, bool) {
	for _, ext := range ImageExts {
		p := filepath.Join(dir, base+ext)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// ToRGBA returns a copy of img as RGBA with bounds starting at (0, 0).
// Single-channel sources are expanded to three equal channels.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToGray returns a luminance copy of img with bounds starting at (0, 0).
// Color sources are weighted 0.299/0.587/0.114.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return dst
	}
	n := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		row := n.Pix[y*n.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = row[x*4]
		}
	}
	return dst
}

// IsGray reports whether img stores a single channel.
func IsGray(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}

// Rotate returns img rotated clockwise by angle degrees. Only multiples of
// 90 are supported; any other angle returns an unrotated copy.
func Rotate(img image.Image, angle int) *image.RGBA {
	switch ((angle % 360) + 360) % 360 {
	case 90:
		return ToRGBA(imaging.Rotate270(img))
	case 180:
		return ToRGBA(imaging.Rotate180(img))
	case 270:
		return ToRGBA(imaging.Rotate90(img))
	default:
		return ToRGBA(img)
	}
}

// Crop returns a copy of the region r of img, translated to (0, 0).
// r is relative to the image origin and intersected with the image bounds.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	return ToRGBA(imaging.Crop(img, r.Add(img.Bounds().Min)))
}
