// Package slide implements the format-agnostic engine for reading
// whole-slide microscopy images.
//
// A Slide is populated by exactly one vendor format backend during
// Open and afterwards serves the resolution pyramid through a uniform
// API: enumerate levels, read arbitrary regions at arbitrary levels,
// and read named associated images. The engine owns region tiling,
// coordinate clipping, pixel-format conversion and the sticky
// first-error state; backends only decode and paint individual tiles.
package slide

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/mrjoshuak/go-slide/surface"
	"github.com/mrjoshuak/go-slide/tifflike"
)

// Open-time errors
var (
	ErrBlendBroken    = errors.New("slide: compositing self-test failed; blended output is corrupt")
	ErrBackendFailed  = errors.New("slide: unknown backend error")
	ErrNoLevels       = errors.New("slide: backend did not populate any levels")
	ErrLevelOrder     = errors.New("slide: downsampled levels not correctly ordered")
	ErrInvalidLevel   = errors.New("slide: invalid level")
	ErrNoICCProfile   = errors.New("slide: no ICC profile")
	ErrShortBuffer    = errors.New("slide: destination buffer too small")
	ErrUnknownAssoc   = errors.New("slide: unknown associated image")
	ErrBackendNilOps  = errors.New("slide: backend did not bind paint operations")
	ErrMultiChannel   = errors.New("slide: ReadRegion can only read single-channel slides")
	ErrNegativeBounds = errors.New("slide: negative width or height not allowed")
)

// Slide is a handle to one open whole-slide image. All methods are
// safe for concurrent use. Once any operation records an error the
// handle is poisoned: every later operation short-circuits with that
// first error (or its documented failure sentinel) without touching
// the backend again.
type Slide struct {
	levels     []*Level
	levelCount int32 // public pyramid count; levels beyond it are gray-only

	channelCount   int32
	timepointCount int32
	zstackCount    int32

	properties    map[string]string
	propertyNames []string

	associated      map[string]*AssociatedImage
	associatedNames []string

	iccProfileSize int64

	ops  Ops
	data any

	cacheMu sync.Mutex
	cache   *CacheBinding

	err errorSlot
}

// blendCheck runs the compositing self-test at most once per process.
// All concurrent first opens block until the probe completes and see
// the same result.
var blendCheck = sync.OnceValue(surface.VerifyBlending)

// Open probes the file at path against each format in order and binds
// the first one that accepts. It returns nil if no format recognizes
// the file; that is not an error. If a format accepts but fails to
// open, the returned handle carries a sticky error and is unusable
// for reads but must still be closed.
func Open(path string, formats []Format) *Slide {
	tl, err := tifflike.Open(path)
	if err != nil {
		debugf(DebugDetection, "tifflike: %v", err)
	}

	format := detectFormat(path, tl, formats)
	if format == nil {
		// not a slide file
		return nil
	}

	s := &Slide{
		channelCount:   1,
		timepointCount: 1,
		zstackCount:    1,
		properties:     make(map[string]string),
		associated:     make(map[string]*AssociatedImage),
	}

	if !blendCheck() {
		s.propagateError(ErrBlendBroken)
		return s
	}

	qh := NewQuickhash()
	if err := openBackend(s, format, path, tl, qh); err != nil {
		s.propagateError(err)
		return s
	}

	if err := s.completeDownsamples(); err != nil {
		s.propagateError(err)
		return s
	}

	s.finalizeProperties(format, qh)

	// start cache if the backend hasn't already done it
	s.cacheMu.Lock()
	if s.cache == nil {
		s.cache = newCacheBinding(DefaultCacheSize)
	}
	s.cacheMu.Unlock()

	return s
}

// DetectVendor returns the vendor name of the first format accepting
// the file, or the empty string if no format recognizes it. The file
// is not opened.
func DetectVendor(path string, formats []Format) string {
	tl, err := tifflike.Open(path)
	if err != nil {
		debugf(DebugDetection, "tifflike: %v", err)
	}
	format := detectFormat(path, tl, formats)
	if format == nil {
		return ""
	}
	return format.Vendor()
}

// Close releases the backend, the associated images, the cache
// binding and all owned tables. The handle must not be used after
// Close.
func (s *Slide) Close() {
	if s.ops != nil {
		s.ops.Destroy(s)
		s.ops = nil
	}
	for _, img := range s.associated {
		if img.Ops != nil {
			img.Ops.Destroy(img)
		}
	}
	s.associated = nil
	s.properties = nil
	s.levels = nil

	s.cacheMu.Lock()
	if s.cache != nil {
		s.cache.setCache(nil)
		s.cache = nil
	}
	s.cacheMu.Unlock()
}

// LevelCount returns the number of levels in the pyramid, or -1 if
// the handle carries an error.
func (s *Slide) LevelCount() int32 {
	if s.Err() != nil {
		return -1
	}
	return s.levelCount
}

// ChannelCount returns the number of image channels, or -1 on error.
func (s *Slide) ChannelCount() int32 {
	if s.Err() != nil {
		return -1
	}
	return s.channelCount
}

// TimepointCount returns the number of timepoints, or -1 on error.
func (s *Slide) TimepointCount() int32 {
	if s.Err() != nil {
		return -1
	}
	return s.timepointCount
}

// ZStackCount returns the number of focal planes, or -1 on error.
func (s *Slide) ZStackCount() int32 {
	if s.Err() != nil {
		return -1
	}
	return s.zstackCount
}

// openBackend calls the format's opener and enforces its contract: it
// must either succeed having populated the handle, or fail having
// reported why. Doing neither or both is a backend bug; it is logged
// and treated as failure.
func openBackend(s *Slide, format Format, path string, tl *tifflike.File, qh *Quickhash) error {
	err := format.Open(s, path, tl, qh)
	if err != nil {
		return err
	}
	if serr := s.Err(); serr != nil {
		log.Printf("slide: %s opener succeeded but set error", format.Name())
		return serr
	}
	if len(s.levels) == 0 {
		log.Printf("slide: %s opener succeeded without populating levels", format.Name())
		return ErrNoLevels
	}
	if s.ops == nil {
		log.Printf("slide: %s opener succeeded without binding operations", format.Name())
		return ErrBackendNilOps
	}
	return nil
}

// finalizeProperties records the reserved properties for the bound
// format, the levels and the associated images, then freezes the
// sorted name lists.
func (s *Slide) finalizeProperties(format Format, qh *Quickhash) {
	if digest, ok := qh.Sum(); ok {
		s.properties[PropQuickhash1] = digest
	}
	s.properties[PropVendor] = format.Vendor()
	if s.iccProfileSize > 0 {
		s.properties[PropICCSize] = strconv.FormatInt(s.iccProfileSize, 10)
	}
	s.properties[PropLevelCount] = strconv.FormatInt(int64(s.levelCount), 10)

	var shouldHaveGeometry bool
	for i, l := range s.levels {
		s.properties[fmt.Sprintf(propLevelWidth, i)] = strconv.FormatInt(l.W, 10)
		s.properties[fmt.Sprintf(propLevelHeight, i)] = strconv.FormatInt(l.H, 10)
		s.properties[fmt.Sprintf(propLevelDownsample, i)] = formatDouble(l.Downsample)

		haveGeometry := l.TileW > 0 && l.TileH > 0
		if i == 0 {
			shouldHaveGeometry = haveGeometry
		}
		if haveGeometry != shouldHaveGeometry {
			log.Printf("slide: inconsistent tile geometry hints between levels")
		}
		if haveGeometry {
			s.properties[fmt.Sprintf(propLevelTileWidth, i)] = strconv.FormatInt(l.TileW, 10)
			s.properties[fmt.Sprintf(propLevelTileHeight, i)] = strconv.FormatInt(l.TileH, 10)
		}
	}

	s.associatedNames = sortedKeys(s.associated)
	for _, name := range s.associatedNames {
		img := s.associated[name]
		s.properties[fmt.Sprintf(propAssociatedWidth, name)] = strconv.FormatInt(img.W, 10)
		s.properties[fmt.Sprintf(propAssociatedHeight, name)] = strconv.FormatInt(img.H, 10)
		if img.ICCProfileSize > 0 {
			s.properties[fmt.Sprintf(propAssociatedICCSize, name)] = strconv.FormatInt(img.ICCProfileSize, 10)
		}
	}

	// ensure empty values don't leak into properties
	for name, value := range s.properties {
		if value == "" {
			log.Printf("slide: property %q has empty value", name)
			delete(s.properties, name)
		}
	}

	s.propertyNames = sortedKeys(s.properties)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
