// Package surface provides the software compositing layer used to
// assemble slide tiles into caller-supplied pixel buffers.
//
// A Surface wraps a region of caller memory (or nothing, for
// validate-only calls) and a Canvas draws tile images onto it with a
// Porter-Duff compositing operator. Rows of gray surfaces are padded so
// each row starts on a 4-byte boundary, matching the stride rule of
// common image surface libraries.
package surface

import "errors"

// Surface errors
var (
	ErrBufferTooSmall = errors.New("surface: buffer too small for dimensions")
	ErrBadStride      = errors.New("surface: stride smaller than row width")
)

// Format identifies the pixel layout of a surface.
type Format int

const (
	// ARGB32 is 32-bit premultiplied ARGB, one uint32 per pixel.
	ARGB32 Format = iota
	// Gray8 is 8-bit grayscale, one byte per pixel.
	Gray8
	// Gray16 is 16-bit little-endian grayscale, two bytes per pixel.
	Gray16
)

// PixelBytes returns the number of bytes per pixel for the format.
func (f Format) PixelBytes() int {
	switch f {
	case ARGB32:
		return 4
	case Gray16:
		return 2
	default:
		return 1
	}
}

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case ARGB32:
		return "argb32"
	case Gray8:
		return "gray8"
	case Gray16:
		return "gray16"
	default:
		return "unknown"
	}
}

// StrideForWidth returns the row stride in bytes for a surface of the
// given width and bytes per pixel. Rows are rounded up so each starts
// on a 4-byte boundary.
func StrideForWidth(width, pixelBytes int) int {
	return (width*pixelBytes + 3) &^ 3
}

// Surface is a destination image that tiles are composited onto.
// An ARGB32 surface addresses pixels through a []uint32 with a stride
// counted in pixels; gray surfaces address bytes with a stride counted
// in bytes. A nil-backed surface accepts draws and discards them.
type Surface struct {
	format Format
	w, h   int64

	argb       []uint32 // ARGB32 only
	argbStride int64    // pixels per row

	gray       []byte // Gray8/Gray16 only
	grayStride int64  // bytes per row
}

// NewARGBForData creates an ARGB32 surface over pix. The stride is in
// pixels and must be at least w. The buffer must hold h full rows.
func NewARGBForData(pix []uint32, w, h, stride int64) (*Surface, error) {
	if stride < w {
		return nil, ErrBadStride
	}
	if h > 0 && int64(len(pix)) < (h-1)*stride+w {
		return nil, ErrBufferTooSmall
	}
	return &Surface{format: ARGB32, w: w, h: h, argb: pix, argbStride: stride}, nil
}

// NewGrayForData creates a Gray8 or Gray16 surface over buf. The
// stride is in bytes and must be at least w*PixelBytes. The buffer
// must hold h full rows.
func NewGrayForData(buf []byte, format Format, w, h, stride int64) (*Surface, error) {
	pb := int64(format.PixelBytes())
	if stride < w*pb {
		return nil, ErrBadStride
	}
	if h > 0 && int64(len(buf)) < (h-1)*stride+w*pb {
		return nil, ErrBufferTooSmall
	}
	return &Surface{format: format, w: w, h: h, gray: buf, grayStride: stride}, nil
}

// NewNil creates a zero-size surface of the given format. Draws
// against it are clipped away entirely. It is used for "validate
// without materializing pixels" region reads.
func NewNil(format Format) *Surface {
	return &Surface{format: format}
}

// Format returns the pixel format of the surface.
func (s *Surface) Format() Format { return s.format }

// Width returns the surface width in pixels.
func (s *Surface) Width() int64 { return s.w }

// Height returns the surface height in pixels.
func (s *Surface) Height() int64 { return s.h }
