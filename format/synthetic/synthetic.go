// Package synthetic implements a slide format whose pixels are
// generated from a small descriptor file instead of decoded from a
// vendor container.
//
// The descriptor is HuJSON (JSON with comments and trailing commas)
// and declares the pyramid geometry, the source sample encoding, a
// fill pattern, associated images and optional failure injection. The
// format exists so every engine code path, including the uncommon
// sample encodings, can be exercised without multi-gigabyte vendor
// files.
package synthetic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/tailscale/hujson"

	"github.com/mrjoshuak/go-slide/pixel"
	"github.com/mrjoshuak/go-slide/slide"
	"github.com/mrjoshuak/go-slide/surface"
	"github.com/mrjoshuak/go-slide/tifflike"
)

// Magic is the required value of the descriptor's "magic" field.
const Magic = "go-slide-synthetic"

// Synthetic format errors
var (
	ErrNotSynthetic   = errors.New("synthetic: not a synthetic slide descriptor")
	ErrBadDescriptor  = errors.New("synthetic: invalid descriptor")
	ErrPaintInjected  = errors.New("synthetic: injected paint failure")
	ErrGrayOnARGB     = errors.New("synthetic: multi-channel gray slide cannot paint packed color")
	ErrUnsupportedFmt = errors.New("synthetic: unsupported destination format")
)

// Source sample encodings.
const (
	encBGR24          = "bgr24"
	encBGR48          = "bgr48"
	encGray16         = "gray16"
	encGray16SplitZst = "gray16-split-zstd"
)

// descriptor is the parsed form of a synthetic slide file.
type descriptor struct {
	Magic      string                    `json:"magic"`
	Encoding   string                    `json:"encoding"`
	BitDepth   int                       `json:"bit-depth"`
	Channels   int32                     `json:"channels"`
	TileWidth  int64                     `json:"tile-width"`
	TileHeight int64                     `json:"tile-height"`
	Levels     []descLevel               `json:"levels"`
	Pattern    string                    `json:"pattern"`
	Color      [3]uint8                  `json:"color"`
	ICCProfile string                    `json:"icc-profile"`
	Properties map[string]string         `json:"properties"`
	Associated map[string]descAssociated `json:"associated"`
	FailTile   *descFailTile             `json:"fail-tile"`
}

type descLevel struct {
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
	Downsample float64 `json:"downsample"`
}

type descAssociated struct {
	Width      int64  `json:"width"`
	Height     int64  `json:"height"`
	Pattern    string `json:"pattern"`
	ICCProfile string `json:"icc-profile"`
}

type descFailTile struct {
	Level int32 `json:"level"`
	X     int64 `json:"x"`
	Y     int64 `json:"y"`
}

// Format detects and opens synthetic slides.
type Format struct{}

// Name returns the format name.
func (Format) Name() string { return "synthetic" }

// Vendor returns the vendor property value.
func (Format) Vendor() string { return "synthetic" }

// Detect accepts files that parse as HuJSON and carry the synthetic
// magic value.
func (Format) Detect(path string, _ *tifflike.File) error {
	_, err := parseDescriptor(path)
	return err
}

// Open populates the handle from the descriptor.
func (Format) Open(s *slide.Slide, path string, _ *tifflike.File, qh *slide.Quickhash) error {
	desc, err := parseDescriptor(path)
	if err != nil {
		return err
	}

	levels := make([]*slide.Level, len(desc.Levels))
	for i, dl := range desc.Levels {
		levels[i] = &slide.Level{
			W:          dl.Width,
			H:          dl.Height,
			Downsample: dl.Downsample,
			TileW:      desc.TileWidth,
			TileH:      desc.TileHeight,
		}
	}
	s.SetLevels(levels)
	if desc.Channels > 0 {
		s.SetChannelCount(desc.Channels)
	}

	s.AddProperty("synthetic.encoding", desc.Encoding)
	if isGray(desc.Encoding) {
		s.AddProperty("synthetic.bit-depth", fmt.Sprint(desc.BitDepth))
	}
	for name, value := range desc.Properties {
		s.AddProperty(name, value)
	}

	for name, da := range desc.Associated {
		s.AddAssociatedImage(name, &slide.AssociatedImage{
			W:              da.Width,
			H:              da.Height,
			ICCProfileSize: int64(len(da.ICCProfile)),
			Ops:            assocOps{},
			Data:           da,
		})
	}

	if desc.ICCProfile != "" {
		s.SetICCProfileSize(int64(len(desc.ICCProfile)))
	}

	// The descriptor fully determines the pixels, so it is the
	// stable content to hash.
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	qh.Write(raw)

	s.SetBackendData(&synthData{desc: desc})
	s.SetOps(ops{})
	return nil
}

// synthData is the backend state attached to an open slide.
type synthData struct {
	desc *descriptor

	// stored form of split-zstd tiles, encoded on first use
	mu    sync.Mutex
	blobs map[tileAddr][]byte
}

type tileAddr struct {
	level int32
	x, y  int64
}

// plane distinguishes cached tile pixel formats per level.
type plane struct {
	level  *slide.Level
	format surface.Format
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

func parseDescriptor(path string) (*descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Descriptors are small HuJSON objects, but rejected candidates
	// can be multi-gigabyte vendor containers. Sniff the first bytes
	// before reading the whole file.
	prefix := make([]byte, 64)
	n, err := f.Read(prefix)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if !looksLikeDescriptor(prefix[:n]) {
		return nil, ErrNotSynthetic
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSynthetic, err)
	}
	var desc descriptor
	if err := json.Unmarshal(std, &desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSynthetic, err)
	}
	if desc.Magic != Magic {
		return nil, ErrNotSynthetic
	}
	return &desc, validateDescriptor(&desc)
}

// looksLikeDescriptor reports whether the file could open a HuJSON
// object: optional whitespace, then a brace or a comment.
func looksLikeDescriptor(prefix []byte) bool {
	for _, b := range prefix {
		switch b {
		case ' ', '\t', '\r', '\n':
		case '{', '/':
			return true
		default:
			return false
		}
	}
	return false
}

func validateDescriptor(desc *descriptor) error {
	switch desc.Encoding {
	case encBGR24, encBGR48:
	case encGray16, encGray16SplitZst:
		if desc.BitDepth == 0 {
			desc.BitDepth = 16
		}
		if desc.BitDepth < 9 || desc.BitDepth > 16 {
			return fmt.Errorf("%w: bit depth %d out of range", ErrBadDescriptor, desc.BitDepth)
		}
	default:
		return fmt.Errorf("%w: unknown encoding %q", ErrBadDescriptor, desc.Encoding)
	}
	if desc.TileWidth <= 0 || desc.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrBadDescriptor, desc.TileWidth, desc.TileHeight)
	}
	if len(desc.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrBadDescriptor)
	}
	for i, l := range desc.Levels {
		if l.Width <= 0 || l.Height <= 0 {
			return fmt.Errorf("%w: level %d size %dx%d", ErrBadDescriptor, i, l.Width, l.Height)
		}
	}
	return nil
}

// ops implements slide.Ops.
type ops struct{}

// PaintRegion paints generated tiles covering the level-space
// rectangle. Decoded tiles are cached in the slide's tile cache.
func (ops) PaintRegion(s *slide.Slide, c *surface.Canvas, x, y int64, level *slide.Level, w, h int64) error {
	data := s.BackendData().(*synthData)
	desc := data.desc

	levelIdx := int32(-1)
	for i, l := range s.Levels() {
		if l == level {
			levelIdx = int32(i)
			break
		}
	}

	if c.Format() == surface.ARGB32 && desc.Channels > 1 {
		return ErrGrayOnARGB
	}

	lx := int64(float64(x) / level.Downsample)
	ly := int64(float64(y) / level.Downsample)
	tw, th := desc.TileWidth, desc.TileHeight

	for ty := ly / th; ty*th < ly+h; ty++ {
		for tx := lx / tw; tx*tw < lx+w; tx++ {
			if tx*tw >= level.W || ty*th >= level.H {
				continue
			}
			if ft := desc.FailTile; ft != nil &&
				ft.Level == levelIdx && ft.X == tx && ft.Y == ty {
				return fmt.Errorf("%w: level %d tile (%d, %d)", ErrPaintInjected, levelIdx, tx, ty)
			}

			ew := min(tw, level.W-tx*tw)
			eh := min(th, level.H-ty*th)
			tile, err := data.tile(s, c.Format(), level, levelIdx, tx, ty, ew, eh)
			if err != nil {
				return err
			}
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

// ReadICCProfile copies the descriptor's profile bytes.
func (ops) ReadICCProfile(s *slide.Slide, dest []byte) error {
	data := s.BackendData().(*synthData)
	copy(dest, data.desc.ICCProfile)
	return nil
}

// Destroy drops the backend state.
func (ops) Destroy(s *slide.Slide) {
	s.SetBackendData(nil)
}

// tile returns the tile at (tx, ty) converted to the destination
// format, consulting the tile cache first.
func (d *synthData) tile(s *slide.Slide, format surface.Format, level *slide.Level, levelIdx int32, tx, ty, ew, eh int64) (any, error) {
	key := slide.CacheKey{Owner: d, Plane: plane{level, format}, X: tx, Y: ty}
	cache := s.TileCache()
	if v, ok := cache.Get(key); ok {
		return v, nil
	}

	raw, err := d.rawTile(level, levelIdx, tx, ty, ew, eh)
	if err != nil {
		return nil, err
	}

	v, size, err := convertTile(raw, d.desc, format)
	if err != nil {
		return nil, err
	}
	cache.Put(key, v, size)
	return v, nil
}

// rawTile produces the tile in its source encoding, after any
// stored-form decode.
func (d *synthData) rawTile(level *slide.Level, levelIdx int32, tx, ty, ew, eh int64) ([]byte, error) {
	if d.desc.Encoding != encGray16SplitZst {
		return genTile(d.desc, level, levelIdx, tx, ty, ew, eh), nil
	}

	blob := d.storedBlob(level, levelIdx, tx, ty, ew, eh)
	split, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("synthetic: tile (%d, %d) decode: %w", tx, ty, err)
	}
	restored := make([]byte, len(split))
	pixel.RestoreSplitBytes(split, restored)
	return restored, nil
}

// storedBlob returns the compressed split-byte form of a tile,
// encoding it on first use. This is the synthetic analog of the
// bytes a vendor container would hold on disk.
func (d *synthData) storedBlob(level *slide.Level, levelIdx int32, tx, ty, ew, eh int64) []byte {
	addr := tileAddr{levelIdx, tx, ty}
	d.mu.Lock()
	defer d.mu.Unlock()
	if blob, ok := d.blobs[addr]; ok {
		return blob
	}

	raw := genTile(d.desc, level, levelIdx, tx, ty, ew, eh)
	split := make([]byte, len(raw))
	half := len(raw) / 2
	for i := 0; i < half; i++ {
		split[i] = raw[i*2]
		split[half+i] = raw[i*2+1]
	}
	blob := zstdEncoder.EncodeAll(split, nil)

	if d.blobs == nil {
		d.blobs = make(map[tileAddr][]byte)
	}
	d.blobs[addr] = blob
	return blob
}

// convertTile reshapes source samples into the destination format.
func convertTile(raw []byte, desc *descriptor, format surface.Format) (any, int64, error) {
	switch desc.Encoding {
	case encBGR24:
		if format != surface.ARGB32 {
			return nil, 0, fmt.Errorf("%w: %s from bgr24", ErrUnsupportedFmt, format)
		}
		dst := make([]uint32, len(raw)/3)
		pixel.BGR24ToARGB32(raw, dst)
		return dst, int64(len(dst) * 4), nil
	case encBGR48:
		if format != surface.ARGB32 {
			return nil, 0, fmt.Errorf("%w: %s from bgr48", ErrUnsupportedFmt, format)
		}
		dst := make([]uint32, len(raw)/6)
		pixel.BGR48ToARGB32(raw, dst)
		return dst, int64(len(dst) * 4), nil
	default: // gray16 sources
		switch format {
		case surface.Gray16:
			return raw, int64(len(raw)), nil
		case surface.Gray8:
			dst := make([]byte, len(raw)/2)
			pixel.Gray16ToGray8(raw, desc.BitDepth, dst)
			return dst, int64(len(dst)), nil
		case surface.ARGB32:
			gray := make([]byte, len(raw)/2)
			pixel.Gray16ToGray8(raw, desc.BitDepth, gray)
			dst := make([]uint32, len(gray))
			for i, g := range gray {
				v := uint32(g)
				dst[i] = 0xff000000 | v<<16 | v<<8 | v
			}
			return dst, int64(len(dst) * 4), nil
		}
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFmt, format)
	}
}

// genTile generates source samples for one tile. The value of every
// sample is a pure function of its level 0 position, the level index
// and the descriptor, so overlapping reads always agree.
func genTile(desc *descriptor, level *slide.Level, levelIdx int32, tx, ty, ew, eh int64) []byte {
	x0 := tx * desc.TileWidth
	y0 := ty * desc.TileHeight

	switch desc.Encoding {
	case encBGR24:
		out := make([]byte, ew*eh*3)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				b, g, r := sampleBGR(desc, levelIdx, x0+x, y0+y)
				i := (y*ew + x) * 3
				out[i], out[i+1], out[i+2] = b, g, r
			}
		}
		return out
	case encBGR48:
		out := make([]byte, ew*eh*6)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				b, g, r := sampleBGR(desc, levelIdx, x0+x, y0+y)
				i := (y*ew + x) * 6
				// high byte carries the value; low byte is noise a
				// correct converter must discard
				out[i] = byte((x0 + x) * 3)
				out[i+1] = b
				out[i+2] = byte((y0 + y) * 5)
				out[i+3] = g
				out[i+4] = byte((x0 + x + y0 + y) * 7)
				out[i+5] = r
			}
		}
		return out
	default: // gray16 sources
		out := make([]byte, ew*eh*2)
		for y := int64(0); y < eh; y++ {
			for x := int64(0); x < ew; x++ {
				v := sampleGray16(desc, levelIdx, x0+x, y0+y)
				i := (y*ew + x) * 2
				out[i] = byte(v)
				out[i+1] = byte(v >> 8)
			}
		}
		return out
	}
}

func sampleBGR(desc *descriptor, level int32, x, y int64) (b, g, r uint8) {
	switch desc.Pattern {
	case "solid":
		return desc.Color[2], desc.Color[1], desc.Color[0]
	case "checker":
		if (x/8+y/8)%2 == 0 {
			return desc.Color[2], desc.Color[1], desc.Color[0]
		}
		return 0xff, 0xff, 0xff
	default: // gradient
		return uint8(x + int64(level)), uint8(y + int64(level)), uint8(x ^ y)
	}
}

func sampleGray16(desc *descriptor, level int32, x, y int64) uint16 {
	limit := uint64(1) << uint(desc.BitDepth)
	switch desc.Pattern {
	case "solid":
		return uint16(uint64(desc.Color[0]) * (limit - 1) / 255)
	default: // gradient
		return uint16((uint64(x)*31 + uint64(y)*17 + uint64(level)*4099) % limit)
	}
}

func isGray(encoding string) bool {
	return encoding == encGray16 || encoding == encGray16SplitZst
}

// assocOps implements slide.AssociatedImageOps for descriptor-backed
// associated images.
type assocOps struct{}

func (assocOps) ARGBData(_ *slide.Slide, img *slide.AssociatedImage, dest []uint32) error {
	da := img.Data.(descAssociated)
	for y := int64(0); y < img.H; y++ {
		for x := int64(0); x < img.W; x++ {
			var px uint32
			if da.Pattern == "solid" {
				px = 0xff000000 | 0x7f7f7f
			} else {
				px = 0xff000000 | uint32(uint8(x))<<16 | uint32(uint8(y))<<8 | uint32(uint8(x^y))
			}
			dest[y*img.W+x] = px
		}
	}
	return nil
}

func (assocOps) ReadICCProfile(_ *slide.Slide, img *slide.AssociatedImage, dest []byte) error {
	da := img.Data.(descAssociated)
	copy(dest, da.ICCProfile)
	return nil
}

func (assocOps) Destroy(img *slide.AssociatedImage) {
	img.Data = nil
}
