package slide

import (
	"fmt"
	"math"

	"github.com/mrjoshuak/go-slide/pixel"
	"github.com/mrjoshuak/go-slide/surface"
)

// maxBlockDim is the largest edge of a single compositing block.
// Oversized region requests are partitioned into blocks of this size
// so every surface stays within the compositing layer's addressing
// limits.
const maxBlockDim = 4096

// ReadRegion reads a rectangular region of the slide into dest as
// premultiplied ARGB32 pixels, one uint32 per pixel, w*h pixels in
// row-major order.
//
// x and y are in level 0 pixel coordinates; w and h are in the
// requested level's coordinates. dest may be nil to validate the
// request without materializing pixels. Regions extending past the
// slide bounds, and requests for out-of-range levels, yield fully
// transparent pixels there rather than an error.
//
// dest is zero-filled before any painting. If a tile paint fails the
// buffer is re-zeroed, the error becomes the handle's sticky error
// and the call reports it; callers never see a partial result.
// Negative w or h, and multi-channel slides, are rejected without
// poisoning the handle.
func (s *Slide) ReadRegion(dest []uint32, x, y int64, level int32, w, h int64) error {
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: %dx%d", ErrNegativeBounds, w, h)
	}

	// Multi-channel slides are likely gray; only single-channel
	// slides can produce packed color.
	if s.channelCount > 1 {
		return ErrMultiChannel
	}

	if dest != nil {
		if int64(len(dest)) < w*h {
			return fmt.Errorf("%w: have %d pixels, need %d", ErrShortBuffer, len(dest), w*h)
		}
		clear(dest[:w*h])
	}

	// now that it's cleared, return if an error occurred
	if err := s.Err(); err != nil {
		return err
	}

	const d = maxBlockDim
	ds := s.LevelDownsample(level)
	for row := int64(0); row < (h+d-1)/d; row++ {
		for col := int64(0); col < (w+d-1)/d; col++ {
			sx := x + int64(float64(col*d)*ds) // level 0 plane
			sy := y + int64(float64(row*d)*ds) // level 0 plane
			sw := min(w-col*d, d)              // level plane
			sh := min(h-row*d, d)              // level plane

			var block []uint32
			if dest != nil {
				block = dest[w*row*d+col*d:]
			}
			if err := s.readRegionArea(block, w, sx, sy, level, sw, sh); err != nil {
				if dest != nil {
					// ensure we don't return a partial result
					clear(dest[:w*h])
				}
				s.propagateError(err)
				return err
			}
		}
	}
	return nil
}

// readRegionArea paints one block through a surface scoped to the
// right offset of the caller's buffer. stride is in pixels. A nil
// dest paints onto a nil surface.
func (s *Slide) readRegionArea(dest []uint32, stride, x, y int64, level int32, w, h int64) error {
	var surf *surface.Surface
	if dest != nil {
		var err error
		surf, err = surface.NewARGBForData(dest, w, h, stride)
		if err != nil {
			return err
		}
	} else {
		surf = surface.NewNil(surface.ARGB32)
	}

	c := surface.NewCanvas(surf)

	// saturate those seams away!
	c.SetOperator(surface.OpSaturate)

	if s.levelInRange(level) {
		l := s.levels[level]

		x, y, w, h = clipNegativeOrigin(c, l.Downsample, x, y, w, h)
		if w > 0 && h > 0 {
			if err := s.ops.PaintRegion(s, c, x, y, l, w, h); err != nil {
				return err
			}
		}
	}

	return c.Err()
}

// clipNegativeOrigin handles requests partly left of or above the
// slide origin: the canvas origin moves inward by the negative
// portion in level pixels and the paint rectangle shrinks to match,
// so the backend never sees negative level coordinates.
func clipNegativeOrigin(c *surface.Canvas, ds float64, x, y, w, h int64) (int64, int64, int64, int64) {
	var tx, ty int64
	if x < 0 {
		tx = int64(math.Ceil(float64(-x) / ds))
		x = 0
		w -= tx
	}
	if y < 0 {
		ty = int64(math.Ceil(float64(-y) / ds))
		y = 0
		h -= ty
	}
	c.Translate(tx, ty)
	return x, y, w, h
}

// ReadRegionGray8 reads a region as 8-bit grayscale, one byte per
// pixel. Semantics follow ReadRegion except that an out-of-range
// level is an explicit error rather than a transparent result. The
// full level list is addressable, including any gray-only levels
// beyond LevelCount.
func (s *Slide) ReadRegionGray8(dest []byte, x, y int64, level int32, w, h int64) error {
	return s.readRegionGray(dest, surface.Gray8, x, y, level, w, h)
}

// ReadRegionGray16 reads a region as 16-bit little-endian grayscale,
// two bytes per pixel. See ReadRegionGray8.
func (s *Slide) ReadRegionGray16(dest []byte, x, y int64, level int32, w, h int64) error {
	return s.readRegionGray(dest, surface.Gray16, x, y, level, w, h)
}

func (s *Slide) readRegionGray(dest []byte, format surface.Format, x, y int64, level int32, w, h int64) error {
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: %dx%d", ErrNegativeBounds, w, h)
	}

	pb := int64(format.PixelBytes())
	if dest != nil && int64(len(dest)) < w*h*pb {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(dest), w*h*pb)
	}

	// Composite into the caller's buffer directly when its natural
	// rows already satisfy the alignment rule; otherwise go through a
	// padded buffer and strip the padding at the end.
	stride := int64(surface.StrideForWidth(int(w), int(pb)))
	var buf, padded []byte
	if stride == w*pb {
		buf = dest
	} else if dest != nil {
		padded = make([]byte, h*stride)
		buf = padded
	}
	if buf != nil {
		clear(buf)
	}

	// now that it's cleared, return if an error occurred
	if err := s.Err(); err != nil {
		return err
	}

	if level < 0 || int(level) >= len(s.levels) {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	const d = maxBlockDim
	ds := s.levelDownsampleAll(level)
	for row := int64(0); row < (h+d-1)/d; row++ {
		for col := int64(0); col < (w+d-1)/d; col++ {
			sx := x + int64(float64(col*d)*ds) // level 0 plane
			sy := y + int64(float64(row*d)*ds) // level 0 plane
			sw := min(w-col*d, d)              // level plane
			sh := min(h-row*d, d)              // level plane

			var block []byte
			if buf != nil {
				block = buf[row*d*stride+col*d*pb:]
			}
			if err := s.readRegionAreaGray(block, format, stride, sx, sy, level, sw, sh); err != nil {
				// ensure we don't return a partial result
				if buf != nil {
					clear(buf)
				}
				if padded != nil {
					clear(dest[:w*h*pb])
				}
				s.propagateError(err)
				return err
			}
		}
	}

	// remove stride padding
	if padded != nil {
		pixel.DelRowPadding(padded, dest[:w*h*pb], int(pb), int(w), int(h))
	}
	return nil
}

func (s *Slide) readRegionAreaGray(dest []byte, format surface.Format, stride, x, y int64, level int32, w, h int64) error {
	var surf *surface.Surface
	if dest != nil {
		var err error
		surf, err = surface.NewGrayForData(dest, format, w, h, stride)
		if err != nil {
			return err
		}
	} else {
		surf = surface.NewNil(format)
	}

	// Gray surfaces are opaque, so the default over operator applies;
	// saturate would treat the zeroed destination as full coverage
	// and paint nothing.
	c := surface.NewCanvas(surf)

	l := s.levels[level]
	x, y, w, h = clipNegativeOrigin(c, l.Downsample, x, y, w, h)
	if w > 0 && h > 0 {
		if err := s.ops.PaintRegion(s, c, x, y, l, w, h); err != nil {
			return err
		}
	}

	return c.Err()
}
