// Package pixel converts between the raw sample layouts produced by
// slide file decoders and the layouts callers read.
//
// Each conversion has a portable reference implementation and, on
// amd64 and arm64, wider implementations selected at runtime from the
// CPU's capabilities. The first call to a conversion resolves the
// implementation once; every later call reuses it. Resolution is pure
// and idempotent, so concurrent first calls are benign.
package pixel

// BGR24ToARGB32 converts packed 24-bit BGR samples to premultiplied
// ARGB32 with full alpha. src holds 3 bytes per pixel in [B, G, R]
// order; dst receives one uint32 per pixel. dst must hold
// len(src)/3 pixels.
func BGR24ToARGB32(src []byte, dst []uint32) {
	bgr24Impl()(src, dst)
}

// BGR48ToARGB32 converts packed 48-bit BGR samples (16 bits per
// channel, little-endian) to ARGB32 with full alpha, keeping only the
// most significant byte of each channel. dst must hold len(src)/6
// pixels.
func BGR48ToARGB32(src []byte, dst []uint32) {
	bgr48Impl()(src, dst)
}

// Gray16ToGray8 converts 16-bit little-endian gray samples to 8-bit
// by shifting out the low realBits-8 bits. Samples that still exceed
// 255 after the shift (sources that use more bits than declared) are
// clamped to 255 instead of wrapping. dst must hold len(src)/2
// samples.
func Gray16ToGray8(src []byte, realBits int, dst []byte) {
	gray16Impl()(src, realBits, dst)
}

// RestoreSplitBytes rebuilds interleaved little-endian 16-bit samples
// from a buffer that stores all low bytes contiguously followed by
// all high bytes. Some compressed slide encodings split samples this
// way to improve compression. len(dst) must equal len(src), and
// len(src) must be even.
func RestoreSplitBytes(src, dst []byte) {
	restoreImpl()(src, dst)
}

// Reference implementations. These are the conversions the dispatch
// fast paths must match byte for byte.

func bgr24ToARGB32Generic(src []byte, dst []uint32) {
	for i := 0; i+3 <= len(src); i += 3 {
		dst[i/3] = 0xff000000 |
			uint32(src[i]) |
			uint32(src[i+1])<<8 |
			uint32(src[i+2])<<16
	}
}

func bgr48ToARGB32Generic(src []byte, dst []uint32) {
	// high byte of each little-endian channel
	for i := 0; i+6 <= len(src); i += 6 {
		dst[i/6] = 0xff000000 |
			uint32(src[i+1]) |
			uint32(src[i+3])<<8 |
			uint32(src[i+5])<<16
	}
}

func gray16ToGray8Generic(src []byte, realBits int, dst []byte) {
	shift := uint(realBits - 8)
	for i := 0; i+2 <= len(src); i += 2 {
		v := (uint16(src[i]) | uint16(src[i+1])<<8) >> shift
		if v > 255 {
			v = 255
		}
		dst[i/2] = uint8(v)
	}
}

func restoreSplitBytesGeneric(src, dst []byte) {
	half := len(src) / 2
	lo := src[:half]
	hi := src[half:]
	for i := 0; i < half; i++ {
		dst[i*2] = lo[i]
		dst[i*2+1] = hi[i]
	}
}
