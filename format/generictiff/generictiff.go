// Package generictiff implements a slide format for tiled TIFF
// pyramids with no vendor-specific structure.
//
// Every tiled directory becomes one pyramid level, largest first.
// Trailing non-tiled directories become associated images. Tiles may
// be stored uncompressed or compressed with LZW, Deflate, JPEG
// (including abbreviated streams with shared tables) or the Aperio
// JPEG 2000 variants. This format is probed last, after every
// vendor-specific format has rejected the file.
package generictiff

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zlib"
	"github.com/mrjoshuak/go-jpeg2000"
	tifflzw "golang.org/x/image/tiff/lzw"

	"github.com/mrjoshuak/go-slide/pixel"
	"github.com/mrjoshuak/go-slide/slide"
	"github.com/mrjoshuak/go-slide/surface"
	"github.com/mrjoshuak/go-slide/tifflike"
)

// Generic TIFF errors
var (
	ErrNotTIFF        = errors.New("generictiff: not a TIFF-like file")
	ErrNoTiledLevels  = errors.New("generictiff: no tiled directories")
	ErrUnsupported    = errors.New("generictiff: unsupported image organization")
	ErrTileCorrupt    = errors.New("generictiff: corrupt tile data")
	ErrGrayFromColor  = errors.New("generictiff: gray read of a color slide")
	ErrColorFromMulti = errors.New("generictiff: packed color read of a multi-sample gray slide")
)

// Format detects and opens generic tiled TIFF slides.
type Format struct{}

// Name returns the format name.
func (Format) Name() string { return "generic-tiff" }

// Vendor returns the vendor property value.
func (Format) Vendor() string { return "generic-tiff" }

// Detect accepts TIFF-like files whose first directory is tiled with
// a sample layout the tile decoder understands.
func (Format) Detect(path string, tl *tifflike.File) error {
	if tl == nil {
		return ErrNotTIFF
	}
	for _, d := range tl.Directories() {
		if !d.Has(tifflike.TagTileOffsets) {
			continue
		}
		if _, err := dirLayout(d); err != nil {
			return err
		}
		return nil
	}
	return ErrNoTiledLevels
}

// dirInfo is the decoded layout of one directory.
type dirInfo struct {
	w, h         int64
	tileW, tileH int64
	compression  uint64
	photometric  uint64
	spp          uint64
	bps          uint64
	offsets      []uint64
	counts       []uint64
	jpegTables   []byte
	bigEndian    bool
}

// dirLayout reads and validates the tags the decoder needs.
func dirLayout(d *tifflike.Directory) (*dirInfo, error) {
	info := &dirInfo{
		compression: d.UintDefault(tifflike.TagCompression, tifflike.CompressionNone),
		photometric: d.UintDefault(tifflike.TagPhotometric, tifflike.PhotometricMinIsBlack),
		spp:         d.UintDefault(tifflike.TagSamplesPerPixel, 1),
		bps:         d.UintDefault(tifflike.TagBitsPerSample, 1),
	}

	w, ok := d.Uint(tifflike.TagImageWidth)
	if !ok {
		return nil, fmt.Errorf("%w: missing image width", ErrUnsupported)
	}
	h, ok := d.Uint(tifflike.TagImageLength)
	if !ok {
		return nil, fmt.Errorf("%w: missing image length", ErrUnsupported)
	}
	info.w, info.h = int64(w), int64(h)

	switch info.compression {
	case tifflike.CompressionNone, tifflike.CompressionLZW,
		tifflike.CompressionJPEG,
		tifflike.CompressionDeflate, tifflike.CompressionDeflateOld,
		tifflike.CompressionAperioJ2KYC, tifflike.CompressionAperioJ2K:
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, info.compression)
	}

	decoded := info.compression == tifflike.CompressionJPEG ||
		info.compression == tifflike.CompressionAperioJ2KYC ||
		info.compression == tifflike.CompressionAperioJ2K
	switch {
	case decoded:
		// sample layout comes from the codec
	case info.photometric == tifflike.PhotometricRGB && info.spp == 3 && info.bps == 8:
	case info.photometric == tifflike.PhotometricMinIsBlack && info.spp == 1 &&
		(info.bps == 8 || info.bps == 16):
	default:
		return nil, fmt.Errorf("%w: photometric %d spp %d bps %d",
			ErrUnsupported, info.photometric, info.spp, info.bps)
	}

	if tables, ok := d.Bytes(tifflike.TagJPEGTables); ok {
		info.jpegTables = tables
	}
	info.bigEndian = d.Order().Uint16([]byte{0, 1}) == 1

	if d.Has(tifflike.TagTileOffsets) {
		tw, _ := d.Uint(tifflike.TagTileWidth)
		th, _ := d.Uint(tifflike.TagTileLength)
		if tw == 0 || th == 0 {
			return nil, fmt.Errorf("%w: tiled directory without tile size", ErrUnsupported)
		}
		info.tileW, info.tileH = int64(tw), int64(th)
		info.offsets, _ = d.Uints(tifflike.TagTileOffsets)
		info.counts, _ = d.Uints(tifflike.TagTileByteCounts)
	} else {
		info.offsets, _ = d.Uints(tifflike.TagStripOffsets)
		info.counts, _ = d.Uints(tifflike.TagStripByteCounts)
		info.tileH = int64(d.UintDefault(tifflike.TagRowsPerStrip, uint64(info.h)))
	}
	if len(info.offsets) == 0 || len(info.offsets) != len(info.counts) {
		return nil, fmt.Errorf("%w: inconsistent offsets and byte counts", ErrUnsupported)
	}
	return info, nil
}

// tiffData is the backend state attached to an open slide.
type tiffData struct {
	f      *os.File
	levels []*dirInfo // parallel to the slide's level list
	icc    []byte
}

// plane distinguishes cached tile pixel formats per level.
type plane struct {
	dir    *dirInfo
	format surface.Format
}

// Open populates the handle from the TIFF directory structure.
func (Format) Open(s *slide.Slide, path string, tl *tifflike.File, qh *slide.Quickhash) error {
	if tl == nil {
		return ErrNotTIFF
	}

	var levelDirs []*dirInfo
	var assocDirs []*dirInfo
	for _, d := range tl.Directories() {
		info, err := dirLayout(d)
		if err != nil {
			return err
		}
		if info.tileW > 0 {
			levelDirs = append(levelDirs, info)
		} else {
			assocDirs = append(assocDirs, info)
		}
	}
	if len(levelDirs) == 0 {
		return ErrNoTiledLevels
	}
	sort.SliceStable(levelDirs, func(i, j int) bool {
		return levelDirs[i].w > levelDirs[j].w
	})

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	data := &tiffData{f: f, levels: levelDirs}

	levels := make([]*slide.Level, len(levelDirs))
	for i, info := range levelDirs {
		levels[i] = &slide.Level{
			W: info.w, H: info.h,
			TileW: info.tileW, TileH: info.tileH,
		}
	}
	s.SetLevels(levels)

	for i, info := range assocDirs {
		name := "thumbnail"
		if i > 0 {
			name = fmt.Sprintf("image-%d", i)
		}
		s.AddAssociatedImage(name, &slide.AssociatedImage{
			W: info.w, H: info.h,
			Ops:  assocOps{},
			Data: info,
		})
	}

	if icc, ok := tl.Directories()[0].Bytes(tifflike.TagICCProfile); ok {
		data.icc = icc
		s.SetICCProfileSize(int64(len(icc)))
	}

	// hash the smallest level, which is cheap and stable
	smallest := levelDirs[len(levelDirs)-1]
	for i, off := range smallest.offsets {
		if err := qh.WriteFilePart(path, int64(off), int64(smallest.counts[i])); err != nil {
			f.Close()
			return err
		}
	}

	s.SetBackendData(data)
	s.SetOps(ops{})
	return nil
}

// ops implements slide.Ops.
type ops struct{}

// PaintRegion paints decoded tiles covering the level-space
// rectangle, consulting the tile cache for each.
func (ops) PaintRegion(s *slide.Slide, c *surface.Canvas, x, y int64, level *slide.Level, w, h int64) error {
	data := s.BackendData().(*tiffData)

	var info *dirInfo
	for i, l := range s.Levels() {
		if l == level {
			info = data.levels[i]
			break
		}
	}
	if info == nil {
		return fmt.Errorf("%w: unknown level", ErrUnsupported)
	}

	lx := int64(float64(x) / level.Downsample)
	ly := int64(float64(y) / level.Downsample)
	tw, th := info.tileW, info.tileH

	for ty := ly / th; ty*th < ly+h; ty++ {
		for tx := lx / tw; tx*tw < lx+w; tx++ {
			if tx*tw >= info.w || ty*th >= info.h {
				continue
			}
			tile, err := data.tile(s, c.Format(), info, tx, ty)
			if err != nil {
				return err
			}
			ew := min(tw, info.w-tx*tw)
			eh := min(th, info.h-ty*th)
			switch c.Format() {
			case surface.ARGB32:
				c.DrawARGB(tile.([]uint32), ew, eh, tx*tw-lx, ty*th-ly)
			default:
				c.DrawGray(tile.([]byte), ew, eh, tx*tw-lx, ty*th-ly)
			}
		}
	}
	return nil
}

// ReadICCProfile copies the profile read at open time.
func (ops) ReadICCProfile(s *slide.Slide, dest []byte) error {
	data := s.BackendData().(*tiffData)
	copy(dest, data.icc)
	return nil
}

// Destroy closes the file.
func (ops) Destroy(s *slide.Slide) {
	data := s.BackendData().(*tiffData)
	data.f.Close()
	s.SetBackendData(nil)
}

// tile returns the tile at (tx, ty) in the destination format,
// trimmed to the level bounds at the right and bottom edges.
func (t *tiffData) tile(s *slide.Slide, format surface.Format, info *dirInfo, tx, ty int64) (any, error) {
	key := slide.CacheKey{Owner: t, Plane: plane{info, format}, X: tx, Y: ty}
	cache := s.TileCache()
	if v, ok := cache.Get(key); ok {
		return v, nil
	}

	tilesAcross := (info.w + info.tileW - 1) / info.tileW
	idx := ty*tilesAcross + tx
	if idx < 0 || idx >= int64(len(info.offsets)) {
		return nil, fmt.Errorf("%w: tile (%d, %d) out of directory", ErrTileCorrupt, tx, ty)
	}

	blob := make([]byte, info.counts[idx])
	if _, err := t.f.ReadAt(blob, int64(info.offsets[idx])); err != nil {
		return nil, fmt.Errorf("%w: tile (%d, %d): %v", ErrTileCorrupt, tx, ty, err)
	}

	ew := min(info.tileW, info.w-tx*info.tileW)
	eh := min(info.tileH, info.h-ty*info.tileH)
	v, size, err := decodeTile(info, blob, format, ew, eh)
	if err != nil {
		return nil, err
	}
	cache.Put(key, v, size)
	return v, nil
}

// decodeTile decompresses one tile and reshapes its samples into the
// destination format, keeping only the ew x eh pixels inside the
// level bounds.
func decodeTile(info *dirInfo, blob []byte, format surface.Format, ew, eh int64) (any, int64, error) {
	switch info.compression {
	case tifflike.CompressionJPEG,
		tifflike.CompressionAperioJ2KYC, tifflike.CompressionAperioJ2K:
		img, err := decodeCodecTile(info, blob)
		if err != nil {
			return nil, 0, err
		}
		return imageToFormat(img, format, ew, eh)
	}

	raw, err := decompressTile(info, blob)
	if err != nil {
		return nil, 0, err
	}
	return rawToFormat(info, raw, format, ew, eh)
}

func decodeCodecTile(info *dirInfo, blob []byte) (image.Image, error) {
	switch info.compression {
	case tifflike.CompressionJPEG:
		stream := blob
		if len(info.jpegTables) > 4 {
			// abbreviated stream: splice the shared tables between
			// the tile's SOI and its first marker
			stream = make([]byte, 0, len(info.jpegTables)+len(blob))
			stream = append(stream, info.jpegTables[:len(info.jpegTables)-2]...) // drop EOI
			stream = append(stream, blob[2:]...)                                 // drop SOI
		}
		img, err := jpeg.Decode(bytes.NewReader(stream))
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", ErrTileCorrupt, err)
		}
		return img, nil
	default:
		img, err := jpeg2000.Decode(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg2000: %v", ErrTileCorrupt, err)
		}
		return img, nil
	}
}

func decompressTile(info *dirInfo, blob []byte) ([]byte, error) {
	switch info.compression {
	case tifflike.CompressionNone:
		return blob, nil
	case tifflike.CompressionLZW:
		r := tifflzw.NewReader(bytes.NewReader(blob), tifflzw.MSB, 8)
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: lzw: %v", ErrTileCorrupt, err)
		}
		return raw, nil
	case tifflike.CompressionDeflate, tifflike.CompressionDeflateOld:
		r, err := zlib.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %v", ErrTileCorrupt, err)
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %v", ErrTileCorrupt, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, info.compression)
}

// rawToFormat reshapes uncompressed samples. The tile in the file is
// a full tileW x tileH grid; edge tiles keep only the pixels inside
// the level.
func rawToFormat(info *dirInfo, raw []byte, format surface.Format, ew, eh int64) (any, int64, error) {
	tw := info.tileW
	if tw == 0 {
		tw = info.w // strip-organized associated image
	}

	switch {
	case info.photometric == tifflike.PhotometricRGB:
		if format != surface.ARGB32 {
			return nil, 0, ErrGrayFromColor
		}
		if int64(len(raw)) < tw*eh*3 {
			return nil, 0, ErrTileCorrupt
		}
		dst := make([]uint32, ew*eh)
		for y := int64(0); y < eh; y++ {
			row := raw[y*tw*3:]
			for x := int64(0); x < ew; x++ {
				dst[y*ew+x] = 0xff000000 |
					uint32(row[x*3])<<16 |
					uint32(row[x*3+1])<<8 |
					uint32(row[x*3+2])
			}
		}
		return dst, ew * eh * 4, nil

	case info.bps == 8:
		if int64(len(raw)) < tw*eh {
			return nil, 0, ErrTileCorrupt
		}
		return gray8ToFormat(raw, tw, format, ew, eh)

	default: // 16-bit gray
		if int64(len(raw)) < tw*eh*2 {
			return nil, 0, ErrTileCorrupt
		}
		if info.bigEndian {
			raw = bytes.Clone(raw)
			for i := 0; i+2 <= len(raw); i += 2 {
				raw[i], raw[i+1] = raw[i+1], raw[i]
			}
		}
		return gray16ToFormat(raw, tw, int(info.bps), format, ew, eh)
	}
}

func gray8ToFormat(raw []byte, tw int64, format surface.Format, ew, eh int64) (any, int64, error) {
	switch format {
	case surface.Gray8:
		dst := make([]byte, ew*eh)
		for y := int64(0); y < eh; y++ {
			copy(dst[y*ew:(y+1)*ew], raw[y*tw:])
		}
		return dst, ew * eh, nil
	case surface.Gray16:
		dst := make([]byte, ew*eh*2)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				v := raw[y*tw+x]
				dst[(y*ew+x)*2] = v
				dst[(y*ew+x)*2+1] = v
			}
		}
		return dst, ew * eh * 2, nil
	case surface.ARGB32:
		dst := make([]uint32, ew*eh)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				v := uint32(raw[y*tw+x])
				dst[y*ew+x] = 0xff000000 | v<<16 | v<<8 | v
			}
		}
		return dst, ew * eh * 4, nil
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

func gray16ToFormat(raw []byte, tw int64, bps int, format surface.Format, ew, eh int64) (any, int64, error) {
	switch format {
	case surface.Gray16:
		dst := make([]byte, ew*eh*2)
		for y := int64(0); y < eh; y++ {
			copy(dst[y*ew*2:(y+1)*ew*2], raw[y*tw*2:])
		}
		return dst, ew * eh * 2, nil
	case surface.Gray8, surface.ARGB32:
		gray := make([]byte, ew*eh)
		row8 := make([]byte, ew)
		for y := int64(0); y < eh; y++ {
			pixel.Gray16ToGray8(raw[y*tw*2:y*tw*2+ew*2], bps, row8)
			copy(gray[y*ew:], row8)
		}
		if format == surface.Gray8 {
			return gray, ew * eh, nil
		}
		dst := make([]uint32, ew*eh)
		for i, g := range gray {
			v := uint32(g)
			dst[i] = 0xff000000 | v<<16 | v<<8 | v
		}
		return dst, ew * eh * 4, nil
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

// imageToFormat converts a codec-decoded tile.
func imageToFormat(img image.Image, format surface.Format, ew, eh int64) (any, int64, error) {
	b := img.Bounds()
	if int64(b.Dx()) < ew || int64(b.Dy()) < eh {
		return nil, 0, ErrTileCorrupt
	}
	switch format {
	case surface.ARGB32:
		dst := make([]uint32, ew*eh)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				r, g, bl, _ := img.At(b.Min.X+int(x), b.Min.Y+int(y)).RGBA()
				dst[y*ew+x] = 0xff000000 |
					(r>>8)<<16 | (g>>8)<<8 | bl>>8
			}
		}
		return dst, ew * eh * 4, nil
	case surface.Gray8:
		dst := make([]byte, ew*eh)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				r, g, bl, _ := img.At(b.Min.X+int(x), b.Min.Y+int(y)).RGBA()
				dst[y*ew+x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 24)
			}
		}
		return dst, ew * eh, nil
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

// assocOps implements slide.AssociatedImageOps for strip-organized
// directories.
type assocOps struct{}

func (assocOps) ARGBData(s *slide.Slide, img *slide.AssociatedImage, dest []uint32) error {
	data := s.BackendData().(*tiffData)
	info := img.Data.(*dirInfo)

	rowsDone := int64(0)
	for i, off := range info.offsets {
		blob := make([]byte, info.counts[i])
		if _, err := data.f.ReadAt(blob, int64(off)); err != nil {
			return fmt.Errorf("%w: strip %d: %v", ErrTileCorrupt, i, err)
		}
		raw, err := decompressTile(info, blob)
		if err != nil {
			return err
		}
		rows := min(info.tileH, info.h-rowsDone)
		v, _, err := rawToFormat(info, raw, surface.ARGB32, info.w, rows)
		if err != nil {
			return err
		}
		copy(dest[rowsDone*info.w:], v.([]uint32))
		rowsDone += rows
	}
	return nil
}

func (assocOps) ReadICCProfile(_ *slide.Slide, _ *slide.AssociatedImage, _ []byte) error {
	return errors.New("generictiff: associated image has no ICC profile")
}

func (assocOps) Destroy(img *slide.AssociatedImage) {
	img.Data = nil
}
