package slide

import (
	"github.com/mrjoshuak/go-slide/surface"
	"github.com/mrjoshuak/go-slide/tifflike"
)

// Format describes one family of slide file formats: how to detect a
// member of the family and how to open it. The engine tries formats
// in a fixed priority order; the first acceptor wins. The list of
// formats is closed and explicit, not discovered at runtime.
type Format interface {
	// Name identifies the format in diagnostics.
	Name() string
	// Vendor is the value recorded in the vendor property.
	Vendor() string
	// Detect returns nil if the file belongs to this format. A
	// non-nil error carries the rejection reason; it is surfaced only
	// for diagnostics and probing continues with the next format. tl
	// is the pre-parsed directory structure, or nil if the file is
	// not TIFF-like.
	Detect(path string, tl *tifflike.File) error
	// Open fully populates the handle: levels, properties, associated
	// images, counts, operations, and optionally the ICC profile size
	// and a cache binding. On failure it returns a descriptive error
	// and the handle is discarded as unusable.
	Open(s *Slide, path string, tl *tifflike.File, qh *Quickhash) error
}

// Ops is the capability set a backend binds to an open slide.
type Ops interface {
	// PaintRegion paints exactly the requested level-space rectangle
	// onto the canvas. The origin has already been translated for
	// negative-coordinate clipping, so x and y are never negative.
	// x and y are level 0 coordinates; w and h are level coordinates.
	PaintRegion(s *Slide, c *surface.Canvas, x, y int64, level *Level, w, h int64) error
	// ReadICCProfile writes the slide's ICC profile into dest. Only
	// called when a non-zero profile size was declared.
	ReadICCProfile(s *Slide, dest []byte) error
	// Destroy releases all backend-owned resources.
	Destroy(s *Slide)
}

// detectFormat probes each format in order and returns the first
// acceptor, or nil when the file is not a recognized slide.
func detectFormat(path string, tl *tifflike.File, formats []Format) Format {
	for _, f := range formats {
		err := f.Detect(path, tl)
		if err == nil {
			return f
		}
		// reset for next format
		debugf(DebugDetection, "%s: %v", f.Name(), err)
	}
	return nil
}

// The methods below are the backend side of the handle: they are
// called from a Format's Open to populate the slide, and from Ops
// implementations to reach backend state.

// SetLevels installs the level list, ordered from highest resolution
// to lowest.
func (s *Slide) SetLevels(levels []*Level) {
	s.levels = levels
}

// Levels returns the installed level list, including any gray-only
// levels beyond the public count.
func (s *Slide) Levels() []*Level {
	return s.levels
}

// SetLevelCount limits the public pyramid to the first n levels.
// Levels beyond it remain addressable by the gray read calls. By
// default all levels are public.
func (s *Slide) SetLevelCount(n int32) {
	s.levelCount = n
}

// SetChannelCount records the number of image channels. Slides with
// more than one channel reject packed-color region reads.
func (s *Slide) SetChannelCount(n int32) {
	s.channelCount = n
}

// SetTimepointCount records the number of timepoints.
func (s *Slide) SetTimepointCount(n int32) {
	s.timepointCount = n
}

// SetZStackCount records the number of focal planes.
func (s *Slide) SetZStackCount(n int32) {
	s.zstackCount = n
}

// AddProperty records a property. Reserved engine properties are
// added after the backend's opener returns and take precedence.
func (s *Slide) AddProperty(name, value string) {
	s.properties[name] = value
}

// AddAssociatedImage records a named associated image. The handle
// takes ownership and destroys the image on Close.
func (s *Slide) AddAssociatedImage(name string, img *AssociatedImage) {
	s.associated[name] = img
}

// SetICCProfileSize declares the size of the slide's ICC profile.
func (s *Slide) SetICCProfileSize(n int64) {
	s.iccProfileSize = n
}

// SetOps binds the backend's paint and teardown operations. Exactly
// one backend is bound for the handle's lifetime.
func (s *Slide) SetOps(ops Ops) {
	s.ops = ops
}

// SetBackendData attaches backend private state to the handle.
func (s *Slide) SetBackendData(v any) {
	s.data = v
}

// BackendData returns the state attached with SetBackendData.
func (s *Slide) BackendData() any {
	return s.data
}
