package slide

// AssociatedImageOps is the capability set a backend binds to each
// associated image: produce its pixels, optionally read its ICC
// profile, and release its resources.
type AssociatedImageOps interface {
	// ARGBData writes the full image into dest as premultiplied
	// ARGB32, W*H pixels row-major.
	ARGBData(s *Slide, img *AssociatedImage, dest []uint32) error
	// ReadICCProfile writes the image's ICC profile into dest. Only
	// called when ICCProfileSize is non-zero.
	ReadICCProfile(s *Slide, img *AssociatedImage, dest []byte) error
	// Destroy releases backend resources owned by the image.
	Destroy(img *AssociatedImage)
}

// AssociatedImage is a named auxiliary image distinct from the
// resolution pyramid, such as a label or a thumbnail. It is owned by
// the slide handle and destroyed with it.
type AssociatedImage struct {
	W, H           int64
	ICCProfileSize int64
	Ops            AssociatedImageOps
	Data           any // backend private state
}

// AssociatedImageNames returns the sorted names of the slide's
// associated images, or an empty slice if the handle carries an
// error.
func (s *Slide) AssociatedImageNames() []string {
	if s.Err() != nil {
		return nil
	}
	return s.associatedNames
}

// AssociatedImageDimensions returns the pixel dimensions of the
// named associated image, or (-1, -1) if it does not exist or the
// handle carries an error.
func (s *Slide) AssociatedImageDimensions(name string) (w, h int64) {
	if s.Err() != nil {
		return -1, -1
	}
	img, ok := s.associated[name]
	if !ok {
		return -1, -1
	}
	return img.W, img.H
}

// ReadAssociatedImage reads the named associated image into dest as
// premultiplied ARGB32, W*H pixels row-major. On failure dest is
// zero-filled and the error becomes the handle's sticky error.
func (s *Slide) ReadAssociatedImage(name string, dest []uint32) error {
	img, ok := s.associated[name]
	if !ok {
		return ErrUnknownAssoc
	}
	pixels := img.W * img.H
	if int64(len(dest)) < pixels {
		return ErrShortBuffer
	}

	if err := s.Err(); err != nil {
		clear(dest[:pixels])
		return err
	}

	if err := img.Ops.ARGBData(s, img, dest[:pixels]); err != nil {
		s.propagateError(err)
		// ensure we don't return a partial result
		clear(dest[:pixels])
		return err
	}
	return nil
}

// AssociatedImageICCProfileSize returns the ICC profile size of the
// named associated image, or -1 if it does not exist or the handle
// carries an error.
func (s *Slide) AssociatedImageICCProfileSize(name string) int64 {
	if s.Err() != nil {
		return -1
	}
	img, ok := s.associated[name]
	if !ok {
		return -1
	}
	return img.ICCProfileSize
}

// ReadAssociatedImageICCProfile reads the ICC profile of the named
// associated image into dest. On failure dest is zero-filled and the
// error becomes the handle's sticky error.
func (s *Slide) ReadAssociatedImageICCProfile(name string, dest []byte) error {
	img, ok := s.associated[name]
	if !ok {
		return ErrUnknownAssoc
	}

	if err := s.Err(); err != nil {
		clear(dest)
		return err
	}
	if img.ICCProfileSize == 0 {
		return ErrNoICCProfile
	}
	if int64(len(dest)) < img.ICCProfileSize {
		return ErrShortBuffer
	}

	if err := img.Ops.ReadICCProfile(s, img, dest); err != nil {
		s.propagateError(err)
		clear(dest)
		return err
	}
	return nil
}
