package slide

import "strconv"

// Reserved property names set by the engine at open time.
const (
	// PropVendor is the vendor name of the format that opened the
	// slide.
	PropVendor = "slide.vendor"
	// PropQuickhash1 is a hex digest identifying the slide contents.
	PropQuickhash1 = "slide.quickhash-1"
	// PropICCSize is the size in bytes of the slide's ICC profile.
	PropICCSize = "slide.icc-size"
	// PropLevelCount is the number of pyramid levels.
	PropLevelCount = "slide.level-count"
)

// Templates for per-level and per-associated-image properties,
// instantiated with the level index or image name.
const (
	propLevelWidth      = "slide.level[%d].width"
	propLevelHeight     = "slide.level[%d].height"
	propLevelDownsample = "slide.level[%d].downsample"
	propLevelTileWidth  = "slide.level[%d].tile-width"
	propLevelTileHeight = "slide.level[%d].tile-height"

	propAssociatedWidth   = "slide.associated.%s.width"
	propAssociatedHeight  = "slide.associated.%s.height"
	propAssociatedICCSize = "slide.associated.%s.icc-size"
)

// formatDouble renders a downsample factor the same way on every
// platform and locale.
func formatDouble(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// PropertyNames returns the sorted names of all properties. The
// slice is empty if the handle carries an error.
func (s *Slide) PropertyNames() []string {
	if s.Err() != nil {
		return nil
	}
	return s.propertyNames
}

// PropertyValue returns the value of the named property, or the
// empty string if the property does not exist or the handle carries
// an error.
func (s *Slide) PropertyValue(name string) string {
	if s.Err() != nil {
		return ""
	}
	return s.properties[name]
}
