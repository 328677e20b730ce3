package pixel

import "sync"

// Conversion function slots. Each slot resolves on first use to the
// best implementation the running CPU supports and keeps serving it.

type bgrConvertFunc func(src []byte, dst []uint32)

type grayConvertFunc func(src []byte, realBits int, dst []byte)

type restoreFunc func(src, dst []byte)

var (
	bgr24Impl   = sync.OnceValue(pickBGR24)
	bgr48Impl   = sync.OnceValue(pickBGR48)
	gray16Impl  = sync.OnceValue(pickGray16)
	restoreImpl = sync.OnceValue(pickRestore)
)

// pickBGR48 always resolves to the reference implementation; 48-bit
// BGR sources are too rare to justify a widened path.
func pickBGR48() bgrConvertFunc {
	return bgr48ToARGB32Generic
}
