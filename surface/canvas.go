package surface

import "errors"

// Canvas errors
var (
	ErrFormatMismatch = errors.New("surface: tile format does not match surface format")
	ErrShortTile      = errors.New("surface: tile buffer shorter than its dimensions")
)

// Operator selects the compositing rule applied when a tile is drawn.
type Operator int

const (
	// OpOver replaces destination pixels with source pixels. Tile
	// sources are opaque, so the full over formula reduces to a copy.
	OpOver Operator = iota
	// OpSaturate adds source into the remaining coverage of the
	// destination. Overlapping tile seams blend instead of showing a
	// visible border.
	OpSaturate
)

// Canvas draws tile images onto a Surface. The origin may be
// translated so that a caller can shift painting inward after clipping
// negative region coordinates. Draw errors are sticky on the canvas
// and reported by Err after painting completes.
type Canvas struct {
	s      *Surface
	op     Operator
	tx, ty int64
	err    error
}

// NewCanvas creates a canvas targeting s with the OpOver operator.
func NewCanvas(s *Surface) *Canvas {
	return &Canvas{s: s}
}

// SetOperator sets the compositing operator for subsequent draws.
func (c *Canvas) SetOperator(op Operator) { c.op = op }

// Translate moves the canvas origin by (dx, dy) pixels.
func (c *Canvas) Translate(dx, dy int64) {
	c.tx += dx
	c.ty += dy
}

// Format returns the pixel format of the destination surface, so a
// tile producer can decide which sample conversion to apply.
func (c *Canvas) Format() Format { return c.s.format }

// Err returns the first drawing error, if any.
func (c *Canvas) Err() error { return c.err }

func (c *Canvas) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

// DrawARGB composites an ARGB32 tile of srcW x srcH pixels at (x, y)
// in canvas coordinates. The tile is clipped to the surface bounds.
func (c *Canvas) DrawARGB(src []uint32, srcW, srcH, x, y int64) {
	if c.s.format != ARGB32 {
		c.setErr(ErrFormatMismatch)
		return
	}
	if int64(len(src)) < srcW*srcH {
		c.setErr(ErrShortTile)
		return
	}
	x += c.tx
	y += c.ty

	x0, y0, sx0, sy0, cw, ch := clip(x, y, srcW, srcH, c.s.w, c.s.h)
	if cw <= 0 || ch <= 0 || c.s.argb == nil {
		return
	}

	for row := int64(0); row < ch; row++ {
		d := c.s.argb[(y0+row)*c.s.argbStride+x0:]
		sp := src[(sy0+row)*srcW+sx0:]
		if c.op == OpSaturate {
			saturateRow(d[:cw], sp[:cw])
		} else {
			copy(d[:cw], sp[:cw])
		}
	}
}

// DrawGray composites a gray tile of srcW x srcH pixels at (x, y) in
// canvas coordinates. The tile samples must already be in the surface
// format (Gray8 or Gray16, tightly packed). Gray sources are treated
// as opaque, so both operators reduce to a copy.
func (c *Canvas) DrawGray(src []byte, srcW, srcH, x, y int64) {
	if c.s.format != Gray8 && c.s.format != Gray16 {
		c.setErr(ErrFormatMismatch)
		return
	}
	pb := int64(c.s.format.PixelBytes())
	if int64(len(src)) < srcW*srcH*pb {
		c.setErr(ErrShortTile)
		return
	}
	x += c.tx
	y += c.ty

	x0, y0, sx0, sy0, cw, ch := clip(x, y, srcW, srcH, c.s.w, c.s.h)
	if cw <= 0 || ch <= 0 || c.s.gray == nil {
		return
	}

	for row := int64(0); row < ch; row++ {
		d := c.s.gray[(y0+row)*c.s.grayStride+x0*pb:]
		sp := src[((sy0+row)*srcW+sx0)*pb:]
		copy(d[:cw*pb], sp[:cw*pb])
	}
}

// clip intersects a srcW x srcH tile placed at (x, y) with a dstW x
// dstH destination. It returns the destination origin, the source
// origin, and the size of the intersection.
func clip(x, y, srcW, srcH, dstW, dstH int64) (dx, dy, sx, sy, w, h int64) {
	dx, dy = x, y
	w, h = srcW, srcH
	if dx < 0 {
		sx = -dx
		w -= sx
		dx = 0
	}
	if dy < 0 {
		sy = -dy
		h -= sy
		dy = 0
	}
	if dx+w > dstW {
		w = dstW - dx
	}
	if dy+h > dstH {
		h = dstH - dy
	}
	return
}

// saturateRow adds each source pixel into the uncovered fraction of
// the destination pixel. Pixels are premultiplied ARGB, so the sum
// never exceeds full coverage.
func saturateRow(dst, src []uint32) {
	for i, s := range src {
		d := dst[i]
		da := d >> 24
		if da == 0xff {
			continue
		}
		if da == 0 {
			dst[i] = s
			continue
		}
		f := 0xff - da
		a := da + mul8(s>>24, f)
		r := ((d >> 16) & 0xff) + mul8((s>>16)&0xff, f)
		g := ((d >> 8) & 0xff) + mul8((s>>8)&0xff, f)
		b := (d & 0xff) + mul8(s&0xff, f)
		dst[i] = a<<24 | r<<16 | g<<8 | b
	}
}

// mul8 multiplies two 8-bit values treated as fractions of 255,
// rounding to nearest.
func mul8(a, b uint32) uint32 {
	t := a*b + 0x80
	return (t + (t >> 8)) >> 8
}
