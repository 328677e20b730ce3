//go:build arm64

package pixel

import "golang.org/x/sys/cpu"

// NEON-width implementations when advanced SIMD is available.

func pickBGR24() bgrConvertFunc {
	if cpu.ARM64.HasASIMD {
		return bgr24ToARGB32Fast16
	}
	return bgr24ToARGB32Generic
}

func pickGray16() grayConvertFunc {
	if cpu.ARM64.HasASIMD {
		return gray16ToGray8Fast16
	}
	return gray16ToGray8Generic
}

func pickRestore() restoreFunc {
	if cpu.ARM64.HasASIMD {
		return restoreSplitBytesFast16
	}
	return restoreSplitBytesGeneric
}
