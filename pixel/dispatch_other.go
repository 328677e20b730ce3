//go:build !amd64 && !arm64

package pixel

// Portable reference implementations on all other platforms.

func pickBGR24() bgrConvertFunc {
	return bgr24ToARGB32Generic
}

func pickGray16() grayConvertFunc {
	return gray16ToGray8Generic
}

func pickRestore() restoreFunc {
	return restoreSplitBytesGeneric
}
