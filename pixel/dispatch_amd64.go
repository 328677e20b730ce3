//go:build amd64

package pixel

import "golang.org/x/sys/cpu"

// Preference order: AVX2-width, then SSSE3-width, then reference.

func pickBGR24() bgrConvertFunc {
	switch {
	case cpu.X86.HasAVX2:
		return bgr24ToARGB32Fast32
	case cpu.X86.HasSSSE3:
		return bgr24ToARGB32Fast16
	}
	return bgr24ToARGB32Generic
}

func pickGray16() grayConvertFunc {
	switch {
	case cpu.X86.HasAVX2:
		return gray16ToGray8Fast32
	case cpu.X86.HasSSSE3:
		return gray16ToGray8Fast16
	}
	return gray16ToGray8Generic
}

func pickRestore() restoreFunc {
	switch {
	case cpu.X86.HasAVX2:
		return restoreSplitBytesFast32
	case cpu.X86.HasSSSE3:
		return restoreSplitBytesFast16
	}
	return restoreSplitBytesGeneric
}
