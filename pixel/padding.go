package pixel

import (
	"fmt"

	"github.com/mrjoshuak/go-slide/surface"
)

// AddRowPadding copies natural rows of w*pixelBytes bytes from src
// into dst, padding each row so the next starts on a 4-byte boundary.
// len(src) must equal h*w*pixelBytes and len(dst) must equal
// h*stride; a mismatch is a programming error and panics.
func AddRowPadding(src, dst []byte, pixelBytes, w, h int) {
	stride := surface.StrideForWidth(w, pixelBytes)
	rowBytes := w * pixelBytes

	if len(src) != h*rowBytes {
		panic(fmt.Sprintf("pixel: AddRowPadding src length %d, need %d", len(src), h*rowBytes))
	}
	if len(dst) != h*stride {
		panic(fmt.Sprintf("pixel: AddRowPadding dst length %d, need %d", len(dst), h*stride))
	}

	for row := 0; row < h; row++ {
		copy(dst[row*stride:row*stride+rowBytes], src[row*rowBytes:])
	}
}

// DelRowPadding is the inverse of AddRowPadding: it copies rows out
// of a 4-byte-aligned buffer into tightly packed rows. len(src) must
// equal h*stride and len(dst) must equal h*w*pixelBytes; a mismatch
// panics.
func DelRowPadding(src, dst []byte, pixelBytes, w, h int) {
	stride := surface.StrideForWidth(w, pixelBytes)
	rowBytes := w * pixelBytes

	if len(src) != h*stride {
		panic(fmt.Sprintf("pixel: DelRowPadding src length %d, need %d", len(src), h*stride))
	}
	if len(dst) != h*rowBytes {
		panic(fmt.Sprintf("pixel: DelRowPadding dst length %d, need %d", len(dst), h*rowBytes))
	}

	for row := 0; row < h; row++ {
		copy(dst[row*rowBytes:row*rowBytes+rowBytes], src[row*stride:])
	}
}
