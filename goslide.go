// Package goslide reads whole-slide microscopy images.
//
// A slide is a pyramid of pre-scaled levels of the same scene, from
// full resolution down to a thumbnail. The package exposes the
// pyramid geometry, a premultiplied-ARGB region reader that can span
// tile and level boundaries, key-value properties, associated images
// such as labels and thumbnails, and ICC color profiles.
//
// Format support is a closed list probed in a fixed order; use
// DetectVendor to identify a file without opening it. The heavy
// lifting lives in the slide package; this package only binds the
// format list.
package goslide

import (
	"github.com/mrjoshuak/go-slide/format/generictiff"
	"github.com/mrjoshuak/go-slide/format/synthetic"
	"github.com/mrjoshuak/go-slide/slide"
)

// formats is the probe order. Vendor-specific formats come first;
// generic TIFF is the catch-all and must stay last.
var formats = []slide.Format{
	synthetic.Format{},
	generictiff.Format{},
}

// Open opens a slide file. It returns nil only when the file cannot
// be recognized at all; any later failure is reported through the
// handle's Err method, and every read on such a handle fails cleanly.
// The caller must Close the handle.
func Open(path string) *slide.Slide {
	return slide.Open(path, formats)
}

// DetectVendor returns the vendor string of the format that claims
// the file, without opening it, or "" if no format does.
func DetectVendor(path string) string {
	return slide.DetectVendor(path, formats)
}

// NewCache creates a tile cache with the given capacity in bytes,
// suitable for sharing across handles via Slide.SetCache. The caller
// must Release it.
func NewCache(capacity int64) *slide.Cache {
	return slide.NewCache(capacity)
}

// Version reports the library version.
func Version() string {
	return slide.Version()
}
