package slide

import "fmt"

// Level is one entry of the resolution pyramid. Index 0 is the
// highest resolution. Backends populate W and H; Downsample may be
// left zero, in which case the engine derives it from the level 0
// dimensions. TileW and TileH are advisory tile geometry hints; zero
// means no hint.
type Level struct {
	W, H       int64
	Downsample float64
	TileW      int64
	TileH      int64
}

// levelInRange reports whether level addresses a public pyramid
// level.
func (s *Slide) levelInRange(level int32) bool {
	return level >= 0 && level < s.levelCount
}

// completeDownsamples fills in downsample factors the backend left
// unset and verifies the sequence is non-decreasing. Ordering
// violations are fatal to the open.
func (s *Slide) completeDownsamples() error {
	if s.levelCount == 0 || s.levelCount > int32(len(s.levels)) {
		s.levelCount = int32(len(s.levels))
	}

	if len(s.levels) > 0 && s.levels[0].Downsample == 0 {
		s.levels[0].Downsample = 1.0
	}
	l0 := s.levels[0]
	for _, l := range s.levels[1:] {
		if l.Downsample == 0 {
			l.Downsample = (float64(l0.H)/float64(l.H) + float64(l0.W)/float64(l.W)) / 2.0
		}
	}

	for i := 1; i < len(s.levels); i++ {
		if s.levels[i].Downsample < s.levels[i-1].Downsample {
			return fmt.Errorf("%w: %g < %g", ErrLevelOrder,
				s.levels[i].Downsample, s.levels[i-1].Downsample)
		}
	}
	return nil
}

// LevelDimensions returns the pixel dimensions of a level, or (-1,
// -1) if the handle carries an error or the level is out of range.
func (s *Slide) LevelDimensions(level int32) (w, h int64) {
	if s.Err() != nil || !s.levelInRange(level) {
		return -1, -1
	}
	l := s.levels[level]
	return l.W, l.H
}

// Level0Dimensions returns the dimensions of the highest-resolution
// level.
func (s *Slide) Level0Dimensions() (w, h int64) {
	return s.LevelDimensions(0)
}

// LevelDownsample returns the downsample factor of a level, or -1 if
// the handle carries an error or the level is out of range.
func (s *Slide) LevelDownsample(level int32) float64 {
	if s.Err() != nil || !s.levelInRange(level) {
		return -1.0
	}
	return s.levels[level].Downsample
}

// levelDownsampleAll is LevelDownsample over the full level list,
// including trailing gray-only levels beyond the public count.
func (s *Slide) levelDownsampleAll(level int32) float64 {
	if s.Err() != nil || level < 0 || int(level) >= len(s.levels) {
		return -1.0
	}
	return s.levels[level].Downsample
}

// BestLevelForDownsample returns the best level to use for the given
// downsample factor: the last level whose downsample does not exceed
// it. Factors below level 0's downsample return 0; factors above all
// levels return the last level. Returns -1 if the handle carries an
// error.
func (s *Slide) BestLevelForDownsample(downsample float64) int32 {
	if s.Err() != nil {
		return -1
	}

	// too small, return first
	if downsample < s.levels[0].Downsample {
		return 0
	}

	for i := int32(1); i < s.levelCount; i++ {
		if downsample < s.levels[i].Downsample {
			return i - 1
		}
	}

	// too big, return last
	return s.levelCount - 1
}
