// Package tifflike reads the directory structure of TIFF-like files.
//
// Many slide formats are TIFF containers or embed TIFF-style tagged
// directories. The format registry parses a candidate file once and
// hands the result to every format detector, so each detector can
// inspect tags without re-reading the file. Tag values are decoded
// into memory up front; pixel data is not touched.
package tifflike

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/google/tiff"
)

// Directory reader errors
var (
	ErrNoDirectories = errors.New("tifflike: file contains no directories")
	ErrTagType       = errors.New("tifflike: tag has non-integer type")
)

// Well-known TIFF tag IDs used by format detectors and backends.
const (
	TagImageWidth       = 256
	TagImageLength      = 257
	TagBitsPerSample    = 258
	TagCompression      = 259
	TagPhotometric      = 262
	TagImageDescription = 270
	TagStripOffsets     = 273
	TagSamplesPerPixel  = 277
	TagRowsPerStrip     = 278
	TagStripByteCounts  = 279
	TagSoftware         = 305
	TagTileWidth        = 322
	TagTileLength       = 323
	TagTileOffsets      = 324
	TagTileByteCounts   = 325
	TagSampleFormat     = 339
	TagJPEGTables       = 347
	TagICCProfile       = 34675
)

// TIFF compression scheme values seen in slide files.
const (
	CompressionNone        = 1
	CompressionLZW         = 5
	CompressionJPEG        = 7
	CompressionDeflate     = 8
	CompressionDeflateOld  = 32946
	CompressionAperioJ2KYC = 33003
	CompressionAperioJ2K   = 33005
)

// Photometric interpretation values.
const (
	PhotometricMinIsBlack = 1
	PhotometricRGB        = 2
	PhotometricYCbCr      = 6
)

// File is a parsed TIFF-like directory structure. It holds decoded
// tag values only; backends read image payloads themselves using the
// offsets recorded in the tags.
type File struct {
	path string
	dirs []*Directory
}

// Directory is one image file directory.
type Directory struct {
	tags  map[uint16]*Tag
	order binary.ByteOrder
}

// Order returns the byte order of the file the directory came from.
func (d *Directory) Order() binary.ByteOrder { return d.order }

// Tag is a single decoded directory entry.
type Tag struct {
	ID    uint16
	Type  uint16
	data  []byte
	order binary.ByteOrder
}

// Open parses the directory structure of the file at path. It returns
// an error if the file is not TIFF-like; detection treats that as
// "not this format", not as a fatal condition.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := tiff.Parse(tiff.NewReadAtReadSeeker(f), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("tifflike: %w", err)
	}

	tf := &File{path: path}
	for _, ifd := range t.IFDs() {
		d := &Directory{tags: make(map[uint16]*Tag), order: binary.LittleEndian}
		for _, field := range ifd.Fields() {
			v := field.Value()
			d.tags[field.Tag().ID()] = &Tag{
				ID:    field.Tag().ID(),
				Type:  field.Type().ID(),
				data:  v.Bytes(),
				order: v.Order(),
			}
			d.order = v.Order()
		}
		tf.dirs = append(tf.dirs, d)
	}
	if len(tf.dirs) == 0 {
		return nil, ErrNoDirectories
	}
	return tf, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Directories returns the image file directories in file order.
func (f *File) Directories() []*Directory { return f.dirs }

// Has reports whether the directory contains the tag.
func (d *Directory) Has(id uint16) bool {
	_, ok := d.tags[id]
	return ok
}

// Bytes returns the raw value bytes of the tag.
func (d *Directory) Bytes(id uint16) ([]byte, bool) {
	t, ok := d.tags[id]
	if !ok {
		return nil, false
	}
	return t.data, true
}

// String returns the tag value as a string with any trailing NUL
// removed. ASCII tags only.
func (d *Directory) String(id uint16) (string, bool) {
	t, ok := d.tags[id]
	if !ok || t.Type != 2 {
		return "", false
	}
	b := t.data
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b), true
}

// Uints decodes the tag as a slice of unsigned integers. BYTE, SHORT,
// LONG, LONG8 and IFD-pointer types are accepted; anything else
// returns false.
func (d *Directory) Uints(id uint16) ([]uint64, bool) {
	t, ok := d.tags[id]
	if !ok {
		return nil, false
	}
	var size int
	switch t.Type {
	case 1, 6, 7: // BYTE, SBYTE, UNDEFINED
		size = 1
	case 3: // SHORT
		size = 2
	case 4, 13: // LONG, IFD
		size = 4
	case 16, 18: // LONG8, IFD8
		size = 8
	default:
		return nil, false
	}
	n := len(t.data) / size
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		b := t.data[i*size:]
		switch size {
		case 1:
			out[i] = uint64(b[0])
		case 2:
			out[i] = uint64(t.order.Uint16(b))
		case 4:
			out[i] = uint64(t.order.Uint32(b))
		case 8:
			out[i] = t.order.Uint64(b)
		}
	}
	return out, true
}

// Uint decodes the first value of the tag as an unsigned integer.
func (d *Directory) Uint(id uint16) (uint64, bool) {
	v, ok := d.Uints(id)
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// UintDefault decodes the first value of the tag, or returns def if
// the tag is absent.
func (d *Directory) UintDefault(id uint16, def uint64) uint64 {
	if v, ok := d.Uint(id); ok {
		return v
	}
	return def
}
