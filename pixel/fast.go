package pixel

import "encoding/binary"

// Widened implementations used by the runtime dispatch. Each processes
// a fixed number of bytes per iteration through 64-bit loads and
// stores, then finishes the tail with the reference loop. Output must
// be byte-identical to the reference implementations; the dispatch
// tests enforce this.

// bgr24ToARGB32Fast16 converts four pixels (12 source bytes) per
// iteration. Selected for SSSE3-class and NEON-class CPUs.
func bgr24ToARGB32Fast16(src []byte, dst []uint32) {
	n := len(src) / 3 * 3
	const step = 12
	i, p := 0, 0
	for ; i+step <= n; i, p = i+step, p+4 {
		lo := binary.LittleEndian.Uint64(src[i:])
		hi := binary.LittleEndian.Uint32(src[i+8:])
		dst[p] = 0xff000000 | uint32(lo&0xffffff)
		dst[p+1] = 0xff000000 | uint32((lo>>24)&0xffffff)
		dst[p+2] = 0xff000000 | uint32(lo>>48) | hi<<16&0xff0000
		dst[p+3] = 0xff000000 | hi>>8
	}
	for ; i+3 <= n; i, p = i+3, p+1 {
		dst[p] = 0xff000000 |
			uint32(src[i]) |
			uint32(src[i+1])<<8 |
			uint32(src[i+2])<<16
	}
}

// bgr24ToARGB32Fast32 converts eight pixels (24 source bytes) per
// iteration. Selected for AVX2-class CPUs.
func bgr24ToARGB32Fast32(src []byte, dst []uint32) {
	n := len(src) / 3 * 3
	const step = 24
	i, p := 0, 0
	for ; i+step <= n; i, p = i+step, p+8 {
		a := binary.LittleEndian.Uint64(src[i:])
		b := binary.LittleEndian.Uint64(src[i+8:])
		c := binary.LittleEndian.Uint64(src[i+16:])
		dst[p] = 0xff000000 | uint32(a&0xffffff)
		dst[p+1] = 0xff000000 | uint32((a>>24)&0xffffff)
		dst[p+2] = 0xff000000 | uint32(a>>48) | uint32(b)<<16&0xff0000
		dst[p+3] = 0xff000000 | uint32((b>>8)&0xffffff)
		dst[p+4] = 0xff000000 | uint32((b>>32)&0xffffff)
		dst[p+5] = 0xff000000 | uint32(b>>56) | uint32(c)<<8&0xffff00
		dst[p+6] = 0xff000000 | uint32((c>>16)&0xffffff)
		dst[p+7] = 0xff000000 | uint32(c>>40)
	}
	for ; i+3 <= n; i, p = i+3, p+1 {
		dst[p] = 0xff000000 |
			uint32(src[i]) |
			uint32(src[i+1])<<8 |
			uint32(src[i+2])<<16
	}
}

// gray16ToGray8Fast16 converts eight samples (16 source bytes) per
// iteration.
func gray16ToGray8Fast16(src []byte, realBits int, dst []byte) {
	shift := uint(realBits - 8)
	n := len(src) &^ 1
	const step = 16
	i := 0
	for ; i+step <= n; i += step {
		lo := binary.LittleEndian.Uint64(src[i:])
		hi := binary.LittleEndian.Uint64(src[i+8:])
		o := i / 2
		dst[o] = clamp8(uint16(lo) >> shift)
		dst[o+1] = clamp8(uint16(lo>>16) >> shift)
		dst[o+2] = clamp8(uint16(lo>>32) >> shift)
		dst[o+3] = clamp8(uint16(lo>>48) >> shift)
		dst[o+4] = clamp8(uint16(hi) >> shift)
		dst[o+5] = clamp8(uint16(hi>>16) >> shift)
		dst[o+6] = clamp8(uint16(hi>>32) >> shift)
		dst[o+7] = clamp8(uint16(hi>>48) >> shift)
	}
	for ; i+2 <= n; i += 2 {
		v := (uint16(src[i]) | uint16(src[i+1])<<8) >> shift
		if v > 255 {
			v = 255
		}
		dst[i/2] = uint8(v)
	}
}

// gray16ToGray8Fast32 converts sixteen samples (32 source bytes) per
// iteration.
func gray16ToGray8Fast32(src []byte, realBits int, dst []byte) {
	shift := uint(realBits - 8)
	n := len(src) &^ 1
	const step = 32
	i := 0
	for ; i+step <= n; i += step {
		o := i / 2
		for k := 0; k < 4; k++ {
			v := binary.LittleEndian.Uint64(src[i+k*8:])
			dst[o+k*4] = clamp8(uint16(v) >> shift)
			dst[o+k*4+1] = clamp8(uint16(v>>16) >> shift)
			dst[o+k*4+2] = clamp8(uint16(v>>32) >> shift)
			dst[o+k*4+3] = clamp8(uint16(v>>48) >> shift)
		}
	}
	for ; i+2 <= n; i += 2 {
		v := (uint16(src[i]) | uint16(src[i+1])<<8) >> shift
		if v > 255 {
			v = 255
		}
		dst[i/2] = uint8(v)
	}
}

func clamp8(v uint16) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// restoreSplitBytesFast16 zips eight low bytes with eight high bytes
// per iteration.
func restoreSplitBytesFast16(src, dst []byte) {
	half := len(src) / 2
	lo := src[:half]
	hi := src[half:]
	const step = 8
	i := 0
	for ; i+step <= half; i += step {
		l := binary.LittleEndian.Uint64(lo[i:])
		h := binary.LittleEndian.Uint64(hi[i:])
		binary.LittleEndian.PutUint64(dst[i*2:], zipBytes4(uint32(l), uint32(h)))
		binary.LittleEndian.PutUint64(dst[i*2+8:], zipBytes4(uint32(l>>32), uint32(h>>32)))
	}
	for ; i < half; i++ {
		dst[i*2] = lo[i]
		dst[i*2+1] = hi[i]
	}
}

// restoreSplitBytesFast32 zips sixteen low bytes with sixteen high
// bytes per iteration.
func restoreSplitBytesFast32(src, dst []byte) {
	half := len(src) / 2
	lo := src[:half]
	hi := src[half:]
	const step = 16
	i := 0
	for ; i+step <= half; i += step {
		l0 := binary.LittleEndian.Uint64(lo[i:])
		l1 := binary.LittleEndian.Uint64(lo[i+8:])
		h0 := binary.LittleEndian.Uint64(hi[i:])
		h1 := binary.LittleEndian.Uint64(hi[i+8:])
		binary.LittleEndian.PutUint64(dst[i*2:], zipBytes4(uint32(l0), uint32(h0)))
		binary.LittleEndian.PutUint64(dst[i*2+8:], zipBytes4(uint32(l0>>32), uint32(h0>>32)))
		binary.LittleEndian.PutUint64(dst[i*2+16:], zipBytes4(uint32(l1), uint32(h1)))
		binary.LittleEndian.PutUint64(dst[i*2+24:], zipBytes4(uint32(l1>>32), uint32(h1>>32)))
	}
	for ; i < half; i++ {
		dst[i*2] = lo[i]
		dst[i*2+1] = hi[i]
	}
}

// zipBytes4 interleaves four bytes from each of two 32-bit values.
// Input a = [a0,a1,a2,a3], b = [b0,b1,b2,b3] (little endian); output
// [a0,b0,a1,b1,a2,b2,a3,b3] as a little-endian uint64.
func zipBytes4(a, b uint32) uint64 {
	x := uint64(a)
	x = (x | x<<16) & 0x0000ffff0000ffff
	x = (x | x<<8) & 0x00ff00ff00ff00ff
	y := uint64(b)
	y = (y | y<<16) & 0x0000ffff0000ffff
	y = (y | y<<8) & 0x00ff00ff00ff00ff
	return x | y<<8
}
