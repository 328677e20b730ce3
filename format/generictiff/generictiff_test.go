package generictiff_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"

	goslide "github.com/mrjoshuak/go-slide"
	"github.com/mrjoshuak/go-slide/slide"
	"github.com/mrjoshuak/go-slide/tifflike"
)

// tiffBuilder assembles a little-endian classic TIFF whose pixel
// blobs sit between the header and the directories.
type tiffBuilder struct {
	buf  bytes.Buffer
	dirs [][]testEntry
}

type testEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

func newTIFFBuilder() *tiffBuilder {
	b := &tiffBuilder{}
	b.buf.WriteString("II")
	hdr := make([]byte, 6)
	binary.LittleEndian.PutUint16(hdr, 42)
	// first IFD offset patched in finish
	b.buf.Write(hdr)
	return b
}

// addBlob appends a pixel payload and returns its offset.
func (b *tiffBuilder) addBlob(data []byte) uint32 {
	off := uint32(b.buf.Len())
	b.buf.Write(data)
	return off
}

func (b *tiffBuilder) addDir(entries []testEntry) {
	b.dirs = append(b.dirs, entries)
}

func (b *tiffBuilder) finish() []byte {
	out := b.buf.Bytes()
	pos := uint32(len(out))
	binary.LittleEndian.PutUint32(out[4:], pos)

	offsets := make([]uint32, len(b.dirs))
	for i, dir := range b.dirs {
		offsets[i] = pos
		pos += 2 + 12*uint32(len(dir)) + 4
	}
	extra := pos

	var tail bytes.Buffer
	for i, dir := range b.dirs {
		cnt := make([]byte, 2)
		binary.LittleEndian.PutUint16(cnt, uint16(len(dir)))
		tail.Write(cnt)
		for _, e := range dir {
			ent := make([]byte, 12)
			binary.LittleEndian.PutUint16(ent, e.tag)
			binary.LittleEndian.PutUint16(ent[2:], e.typ)
			binary.LittleEndian.PutUint32(ent[4:], e.count)
			if len(e.value) <= 4 {
				copy(ent[8:], e.value)
			} else {
				binary.LittleEndian.PutUint32(ent[8:], extra)
				extra += uint32(len(e.value))
			}
			tail.Write(ent)
		}
		next := make([]byte, 4)
		if i+1 < len(b.dirs) {
			binary.LittleEndian.PutUint32(next, offsets[i+1])
		}
		tail.Write(next)
	}
	for _, dir := range b.dirs {
		for _, e := range dir {
			if len(e.value) > 4 {
				tail.Write(e.value)
			}
		}
	}
	return append(out, tail.Bytes()...)
}

func short(tag uint16, v uint16) testEntry {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return testEntry{tag: tag, typ: 3, count: 1, value: b}
}

func shorts(tag uint16, vs ...uint16) testEntry {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return testEntry{tag: tag, typ: 3, count: uint32(len(vs)), value: b}
}

func longs(tag uint16, vs ...uint32) testEntry {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return testEntry{tag: tag, typ: 4, count: uint32(len(vs)), value: b}
}

const tileDim = 16

// rgbPixel is the deterministic test pattern.
func rgbPixel(level int32, x, y int64) (r, g, b uint8) {
	return uint8(x*2 + int64(level)), uint8(y * 2), uint8(x ^ y)
}

func wantARGB(level int32, x, y int64) uint32 {
	r, g, b := rgbPixel(level, x, y)
	return 0xff000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// rgbTile renders one full tile. Pixels outside the level bounds are
// filler a correct reader must trim away.
func rgbTile(level int32, w, h int64, tx, ty int64) []byte {
	out := make([]byte, tileDim*tileDim*3)
	for j := int64(0); j < tileDim; j++ {
		for i := int64(0); i < tileDim; i++ {
			x, y := tx*tileDim+i, ty*tileDim+j
			o := (j*tileDim + i) * 3
			if x < w && y < h {
				out[o], out[o+1], out[o+2] = rgbPixel(level, x, y)
			} else {
				out[o], out[o+1], out[o+2] = 0xcc, 0xcc, 0xcc
			}
		}
	}
	return out
}

// addRGBLevel writes one tiled RGB directory and returns the tile
// payloads in offset order.
func addRGBLevel(b *tiffBuilder, level int32, w, h int64, compress func([]byte) []byte, compression uint16) [][]byte {
	across := (w + tileDim - 1) / tileDim
	down := (h + tileDim - 1) / tileDim
	var offs, counts []uint32
	var blobs [][]byte
	for ty := int64(0); ty < down; ty++ {
		for tx := int64(0); tx < across; tx++ {
			blob := rgbTile(level, w, h, tx, ty)
			if compress != nil {
				blob = compress(blob)
			}
			offs = append(offs, b.addBlob(blob))
			counts = append(counts, uint32(len(blob)))
			blobs = append(blobs, blob)
		}
	}
	entries := []testEntry{
		short(tifflike.TagImageWidth, uint16(w)),
		short(tifflike.TagImageLength, uint16(h)),
		shorts(tifflike.TagBitsPerSample, 8, 8, 8),
		short(tifflike.TagCompression, compression),
		short(tifflike.TagPhotometric, tifflike.PhotometricRGB),
		short(tifflike.TagSamplesPerPixel, 3),
		short(tifflike.TagTileWidth, tileDim),
		short(tifflike.TagTileLength, tileDim),
		longs(tifflike.TagTileOffsets, offs...),
		longs(tifflike.TagTileByteCounts, counts...),
	}
	b.addDir(entries)
	return blobs
}

func writeSlideFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pyramid.tif")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTIFF(t *testing.T, data []byte) *slide.Slide {
	t.Helper()
	s := goslide.Open(writeSlideFile(t, data))
	if s == nil {
		t.Fatal("Open did not recognize the pyramid")
	}
	t.Cleanup(s.Close)
	if err := s.Err(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return s
}

func TestOpenUncompressedPyramid(t *testing.T) {
	b := newTIFFBuilder()
	addRGBLevel(b, 0, 40, 24, nil, tifflike.CompressionNone)
	smallest := addRGBLevel(b, 1, 20, 12, nil, tifflike.CompressionNone)

	// strip-organized thumbnail
	thumbTop := make([]byte, 10*4*3)
	thumbBottom := make([]byte, 10*2*3)
	for i := range thumbTop {
		thumbTop[i] = 0x11
	}
	for i := range thumbBottom {
		thumbBottom[i] = 0x22
	}
	topOff := b.addBlob(thumbTop)
	bottomOff := b.addBlob(thumbBottom)
	b.addDir([]testEntry{
		short(tifflike.TagImageWidth, 10),
		short(tifflike.TagImageLength, 6),
		shorts(tifflike.TagBitsPerSample, 8, 8, 8),
		short(tifflike.TagCompression, tifflike.CompressionNone),
		short(tifflike.TagPhotometric, tifflike.PhotometricRGB),
		longs(tifflike.TagStripOffsets, topOff, bottomOff),
		short(tifflike.TagSamplesPerPixel, 3),
		longs(tifflike.TagRowsPerStrip, 4),
		longs(tifflike.TagStripByteCounts, uint32(len(thumbTop)), uint32(len(thumbBottom))),
	})
	data := b.finish()

	path := writeSlideFile(t, data)
	if vendor := goslide.DetectVendor(path); vendor != "generic-tiff" {
		t.Fatalf("DetectVendor = %q, want generic-tiff", vendor)
	}
	s := goslide.Open(path)
	if s == nil {
		t.Fatal("Open did not recognize the pyramid")
	}
	defer s.Close()
	if err := s.Err(); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if got := s.LevelCount(); got != 2 {
		t.Fatalf("LevelCount = %d, want 2", got)
	}
	if w, h := s.Level0Dimensions(); w != 40 || h != 24 {
		t.Fatalf("Level0Dimensions = %dx%d, want 40x24", w, h)
	}
	if ds := s.LevelDownsample(1); ds != 2 {
		t.Errorf("LevelDownsample(1) = %g, want 2", ds)
	}
	if got := s.PropertyValue("slide.level[0].tile-width"); got != "16" {
		t.Errorf("tile-width property = %q, want 16", got)
	}

	// quickhash covers the smallest level's tile payloads
	h := sha256.New()
	for _, blob := range smallest {
		h.Write(blob)
	}
	if got := s.PropertyValue("slide.quickhash-1"); got != hex.EncodeToString(h.Sum(nil)) {
		t.Errorf("quickhash = %q, want smallest-level digest", got)
	}

	// full level 0, edge tiles included
	const w0, h0 = 40, 24
	dest := make([]uint32, w0*h0)
	if err := s.ReadRegion(dest, 0, 0, 0, w0, h0); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for y := int64(0); y < h0; y++ {
		for x := int64(0); x < w0; x++ {
			if got, want := dest[y*w0+x], wantARGB(0, x, y); got != want {
				t.Fatalf("level 0 pixel (%d,%d) = %#x, want %#x", x, y, got, want)
			}
		}
	}

	// level 1 read with level 0 coordinates
	lvl := make([]uint32, 5*5)
	if err := s.ReadRegion(lvl, 12, 8, 1, 5, 5); err != nil {
		t.Fatalf("ReadRegion level 1: %v", err)
	}
	for y := int64(0); y < 5; y++ {
		for x := int64(0); x < 5; x++ {
			if got, want := lvl[y*5+x], wantARGB(1, 6+x, 4+y); got != want {
				t.Fatalf("level 1 pixel (%d,%d) = %#x, want %#x", x, y, got, want)
			}
		}
	}

	// strip thumbnail
	names := s.AssociatedImageNames()
	if len(names) != 1 || names[0] != "thumbnail" {
		t.Fatalf("AssociatedImageNames = %v, want [thumbnail]", names)
	}
	if tw, th := s.AssociatedImageDimensions("thumbnail"); tw != 10 || th != 6 {
		t.Fatalf("thumbnail dimensions = %dx%d, want 10x6", tw, th)
	}
	thumb := make([]uint32, 10*6)
	if err := s.ReadAssociatedImage("thumbnail", thumb); err != nil {
		t.Fatalf("ReadAssociatedImage: %v", err)
	}
	if thumb[0] != 0xff111111 {
		t.Errorf("thumbnail top pixel = %#x, want 0xff111111", thumb[0])
	}
	if thumb[5*10] != 0xff222222 {
		t.Errorf("thumbnail bottom pixel = %#x, want 0xff222222", thumb[5*10])
	}
}

func TestDeflateTiles(t *testing.T) {
	deflate := func(raw []byte) []byte {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write(raw)
		zw.Close()
		return buf.Bytes()
	}
	b := newTIFFBuilder()
	addRGBLevel(b, 0, 40, 24, deflate, tifflike.CompressionDeflate)
	s := openTIFF(t, b.finish())

	const w, h = 40, 24
	dest := make([]uint32, w*h)
	if err := s.ReadRegion(dest, 0, 0, 0, w, h); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for y := int64(0); y < h; y++ {
		for x := int64(0); x < w; x++ {
			if got, want := dest[y*w+x], wantARGB(0, x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %#x, want %#x", x, y, got, want)
			}
		}
	}
}

func grayValue(x, y int64) uint16 {
	return uint16(x*313 + y*177)
}

func TestGray16Tiles(t *testing.T) {
	const w, h = 24, 20
	b := newTIFFBuilder()
	across := int64((w + tileDim - 1) / tileDim)
	down := int64((h + tileDim - 1) / tileDim)
	var offs, counts []uint32
	for ty := int64(0); ty < down; ty++ {
		for tx := int64(0); tx < across; tx++ {
			tile := make([]byte, tileDim*tileDim*2)
			for j := int64(0); j < tileDim; j++ {
				for i := int64(0); i < tileDim; i++ {
					v := grayValue(tx*tileDim+i, ty*tileDim+j)
					binary.LittleEndian.PutUint16(tile[(j*tileDim+i)*2:], v)
				}
			}
			offs = append(offs, b.addBlob(tile))
			counts = append(counts, uint32(len(tile)))
		}
	}
	b.addDir([]testEntry{
		short(tifflike.TagImageWidth, w),
		short(tifflike.TagImageLength, h),
		short(tifflike.TagBitsPerSample, 16),
		short(tifflike.TagCompression, tifflike.CompressionNone),
		short(tifflike.TagPhotometric, tifflike.PhotometricMinIsBlack),
		short(tifflike.TagSamplesPerPixel, 1),
		short(tifflike.TagTileWidth, tileDim),
		short(tifflike.TagTileLength, tileDim),
		longs(tifflike.TagTileOffsets, offs...),
		longs(tifflike.TagTileByteCounts, counts...),
	})
	s := openTIFF(t, b.finish())

	dest := make([]byte, w*h*2)
	if err := s.ReadRegionGray16(dest, 0, 0, 0, w, h); err != nil {
		t.Fatalf("ReadRegionGray16: %v", err)
	}
	for y := int64(0); y < h; y++ {
		for x := int64(0); x < w; x++ {
			got := binary.LittleEndian.Uint16(dest[(y*w+x)*2:])
			if want := grayValue(x, y); got != want {
				t.Fatalf("sample (%d,%d) = %#x, want %#x", x, y, got, want)
			}
		}
	}

	gray8 := make([]byte, w*h)
	if err := s.ReadRegionGray8(gray8, 0, 0, 0, w, h); err != nil {
		t.Fatalf("ReadRegionGray8: %v", err)
	}
	for y := int64(0); y < h; y++ {
		for x := int64(0); x < w; x++ {
			if got, want := gray8[y*w+x], byte(grayValue(x, y)>>8); got != want {
				t.Fatalf("gray8 pixel (%d,%d) = %#x, want %#x", x, y, got, want)
			}
		}
	}

	// packed color replicates the 8-bit luminance
	argb := make([]uint32, 4)
	if err := s.ReadRegion(argb, 2, 3, 0, 2, 2); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	v := uint32(grayValue(2, 3) >> 8)
	if want := 0xff000000 | v<<16 | v<<8 | v; argb[0] != want {
		t.Errorf("argb pixel = %#x, want %#x", argb[0], want)
	}
}

func TestJPEGTiles(t *testing.T) {
	// uniform color survives JPEG within a small tolerance
	img := image.NewRGBA(image.Rect(0, 0, tileDim, tileDim))
	for y := 0; y < tileDim; y++ {
		for x := 0; x < tileDim; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 130, B: 140, A: 255})
		}
	}
	var jp bytes.Buffer
	if err := jpeg.Encode(&jp, img, nil); err != nil {
		t.Fatal(err)
	}

	b := newTIFFBuilder()
	off := b.addBlob(jp.Bytes())
	b.addDir([]testEntry{
		short(tifflike.TagImageWidth, tileDim),
		short(tifflike.TagImageLength, tileDim),
		shorts(tifflike.TagBitsPerSample, 8, 8, 8),
		short(tifflike.TagCompression, tifflike.CompressionJPEG),
		short(tifflike.TagPhotometric, tifflike.PhotometricYCbCr),
		short(tifflike.TagSamplesPerPixel, 3),
		short(tifflike.TagTileWidth, tileDim),
		short(tifflike.TagTileLength, tileDim),
		longs(tifflike.TagTileOffsets, off),
		longs(tifflike.TagTileByteCounts, uint32(jp.Len())),
	})
	s := openTIFF(t, b.finish())

	dest := make([]uint32, tileDim*tileDim)
	if err := s.ReadRegion(dest, 0, 0, 0, tileDim, tileDim); err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	for i, p := range dest {
		if p>>24 != 0xff {
			t.Fatalf("pixel %d alpha = %#x, want opaque", i, p>>24)
		}
		for shift, want := range map[int]int{16: 120, 8: 130, 0: 140} {
			got := int((p >> shift) & 0xff)
			if got < want-6 || got > want+6 {
				t.Fatalf("pixel %d channel %d = %d, want about %d", i, shift, got, want)
			}
		}
	}
}

func TestRejectsStripOnlyTIFF(t *testing.T) {
	b := newTIFFBuilder()
	payload := make([]byte, 8*8*3)
	off := b.addBlob(payload)
	b.addDir([]testEntry{
		short(tifflike.TagImageWidth, 8),
		short(tifflike.TagImageLength, 8),
		shorts(tifflike.TagBitsPerSample, 8, 8, 8),
		short(tifflike.TagCompression, tifflike.CompressionNone),
		short(tifflike.TagPhotometric, tifflike.PhotometricRGB),
		longs(tifflike.TagStripOffsets, off),
		short(tifflike.TagSamplesPerPixel, 3),
		longs(tifflike.TagStripByteCounts, uint32(len(payload))),
	})
	path := writeSlideFile(t, b.finish())
	if s := goslide.Open(path); s != nil {
		s.Close()
		t.Error("Open accepted a TIFF with no tiled directories")
	}
}

func TestRejectsUnsupportedCompression(t *testing.T) {
	b := newTIFFBuilder()
	off := b.addBlob(make([]byte, 16))
	b.addDir([]testEntry{
		short(tifflike.TagImageWidth, 16),
		short(tifflike.TagImageLength, 16),
		short(tifflike.TagCompression, 34712), // vendor JP2K this reader does not handle
		short(tifflike.TagPhotometric, tifflike.PhotometricRGB),
		short(tifflike.TagSamplesPerPixel, 3),
		shorts(tifflike.TagBitsPerSample, 8, 8, 8),
		short(tifflike.TagTileWidth, tileDim),
		short(tifflike.TagTileLength, tileDim),
		longs(tifflike.TagTileOffsets, off),
		longs(tifflike.TagTileByteCounts, 16),
	})
	path := writeSlideFile(t, b.finish())
	if s := goslide.Open(path); s != nil {
		s.Close()
		t.Error("Open accepted an unsupported compression scheme")
	}
}
