package enhance

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/png"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/defectset/pkg/cache"
	"github.com/matzehuels/defectset/pkg/observability"
	"github.com/matzehuels/defectset/pkg/raster"
)

// cacheKeyType labels enhancement entries in cache hooks.
const cacheKeyType = "enhance"

// Cached memoizes a named transform in a cache, keyed by the transform name
// and a hash of the input pixels. Results are stored as PNG.
type Cached struct {
	Name      string
	Transform Transform
	Cache     cache.Cache
	Logger    *log.Logger
}

// Apply returns the enhanced image and whether it came from the cache.
// Cache failures are logged and fall through to computing the result.
func (c Cached) Apply(ctx context.Context, img image.Image) (image.Image, bool) {
	if c.Cache == nil {
		return c.Transform(img), false
	}
	key := c.key(img)

	if data, ok, err := c.Cache.Get(ctx, key); err != nil {
		c.warn("cache read failed", err)
	} else if ok {
		if out, err := png.Decode(bytes.NewReader(data)); err == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return out, true
		}
	}
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)

	out := c.Transform(img)
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		c.warn("cache encode failed", err)
		return out, false
	}
	if err := c.Cache.Set(ctx, key, buf.Bytes(), 0); err != nil {
		c.warn("cache write failed", err)
	} else {
		observability.Cache().OnCacheSet(ctx, cacheKeyType, buf.Len())
	}
	return out, false
}

func (c Cached) key(img image.Image) string {
	rgba := raster.ToRGBA(img)
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[:4], uint32(rgba.Bounds().Dx()))
	binary.LittleEndian.PutUint32(dims[4:], uint32(rgba.Bounds().Dy()))
	return cache.Key(cacheKeyType, c.Name, cache.Hash(append(dims[:], rgba.Pix...)))
}

func (c Cached) warn(msg string, err error) {
	if c.Logger != nil {
		c.Logger.Warn(msg, "transform", c.Name, "error", err)
	}
}
