package tifflike

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// testEntry is one directory entry for buildTIFF. Values longer than
// four bytes are placed after the directories and referenced by
// offset, per the TIFF layout rules.
type testEntry struct {
	tag   uint16
	typ   uint16 // TIFF field type
	count uint32
	value []byte // payload in file byte order
}

func shortEntry(order binary.ByteOrder, tag uint16, v uint16) testEntry {
	b := make([]byte, 2)
	order.PutUint16(b, v)
	return testEntry{tag: tag, typ: 3, count: 1, value: b}
}

func longEntry(order binary.ByteOrder, tag uint16, vs ...uint32) testEntry {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		order.PutUint32(b[i*4:], v)
	}
	return testEntry{tag: tag, typ: 4, count: uint32(len(vs)), value: b}
}

func asciiEntry(tag uint16, s string) testEntry {
	return testEntry{tag: tag, typ: 2, count: uint32(len(s) + 1), value: append([]byte(s), 0)}
}

// buildTIFF assembles a classic TIFF with the given directories.
func buildTIFF(order binary.ByteOrder, dirs ...[]testEntry) []byte {
	var out bytes.Buffer
	if order == binary.BigEndian {
		out.WriteString("MM")
	} else {
		out.WriteString("II")
	}
	hdr := make([]byte, 6)
	order.PutUint16(hdr, 42)
	order.PutUint32(hdr[2:], 8) // first IFD follows the header
	out.Write(hdr)

	// directory offsets, then the overflow data area
	offsets := make([]uint32, len(dirs))
	pos := uint32(8)
	for i, dir := range dirs {
		offsets[i] = pos
		pos += 2 + 12*uint32(len(dir)) + 4
	}
	extra := pos

	for i, dir := range dirs {
		cnt := make([]byte, 2)
		order.PutUint16(cnt, uint16(len(dir)))
		out.Write(cnt)
		for _, e := range dir {
			ent := make([]byte, 12)
			order.PutUint16(ent, e.tag)
			order.PutUint16(ent[2:], e.typ)
			order.PutUint32(ent[4:], e.count)
			if len(e.value) <= 4 {
				copy(ent[8:], e.value)
			} else {
				order.PutUint32(ent[8:], extra)
				extra += uint32(len(e.value))
			}
			out.Write(ent)
		}
		next := make([]byte, 4)
		if i+1 < len(dirs) {
			order.PutUint32(next, offsets[i+1])
		}
		out.Write(next)
	}
	for _, dir := range dirs {
		for _, e := range dir {
			if len(e.value) > 4 {
				out.Write(e.value)
			}
		}
	}
	return out.Bytes()
}

func writeTIFF(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tif")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenParsesDirectories(t *testing.T) {
	le := binary.LittleEndian
	path := writeTIFF(t, buildTIFF(le,
		[]testEntry{
			shortEntry(le, TagImageWidth, 640),
			shortEntry(le, TagImageLength, 480),
			shortEntry(le, TagCompression, CompressionNone),
			asciiEntry(TagSoftware, "tifflike test"),
			longEntry(le, TagTileOffsets, 1000, 2000, 3000),
			{tag: TagICCProfile, typ: 7, count: 5, value: []byte("fake!")},
		},
		[]testEntry{
			shortEntry(le, TagImageWidth, 64),
			shortEntry(le, TagImageLength, 48),
		},
	))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Path() != path {
		t.Errorf("Path = %q, want %q", f.Path(), path)
	}
	dirs := f.Directories()
	if len(dirs) != 2 {
		t.Fatalf("Directories = %d, want 2", len(dirs))
	}
	d := dirs[0]

	if !d.Has(TagImageWidth) || d.Has(TagPhotometric) {
		t.Error("Has reported wrong tag presence")
	}
	if w, ok := d.Uint(TagImageWidth); !ok || w != 640 {
		t.Errorf("Uint(ImageWidth) = %d, %v, want 640", w, ok)
	}
	if got := d.UintDefault(TagSamplesPerPixel, 1); got != 1 {
		t.Errorf("UintDefault for absent tag = %d, want default", got)
	}
	if offs, ok := d.Uints(TagTileOffsets); !ok || len(offs) != 3 || offs[2] != 3000 {
		t.Errorf("Uints(TileOffsets) = %v, %v", offs, ok)
	}
	if s, ok := d.String(TagSoftware); !ok || s != "tifflike test" {
		t.Errorf("String(Software) = %q, %v", s, ok)
	}
	if _, ok := d.String(TagImageWidth); ok {
		t.Error("String accepted a non-ASCII tag")
	}
	if b, ok := d.Bytes(TagICCProfile); !ok || string(b) != "fake!" {
		t.Errorf("Bytes(ICCProfile) = %q, %v", b, ok)
	}
	if d.Order() != binary.LittleEndian {
		t.Errorf("Order = %v, want little endian", d.Order())
	}

	if w, _ := dirs[1].Uint(TagImageWidth); w != 64 {
		t.Errorf("second directory width = %d, want 64", w)
	}
}

func TestOpenBigEndian(t *testing.T) {
	be := binary.BigEndian
	path := writeTIFF(t, buildTIFF(be,
		[]testEntry{
			shortEntry(be, TagImageWidth, 640),
			longEntry(be, TagStripOffsets, 4096, 8192),
		},
	))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d := f.Directories()[0]
	if w, _ := d.Uint(TagImageWidth); w != 640 {
		t.Errorf("Uint(ImageWidth) = %d, want 640", w)
	}
	if offs, _ := d.Uints(TagStripOffsets); len(offs) != 2 || offs[0] != 4096 {
		t.Errorf("Uints(StripOffsets) = %v", offs)
	}
	if d.Order() != binary.BigEndian {
		t.Errorf("Order = %v, want big endian", d.Order())
	}
}

func TestOpenRejectsNonTIFF(t *testing.T) {
	path := writeTIFF(t, []byte("certainly not a TIFF file"))
	if _, err := Open(path); err == nil {
		t.Error("Open accepted a non-TIFF file")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.tif")); err == nil {
		t.Error("Open of a missing file succeeded")
	}
}
