package slide

// ICCProfileSize returns the size in bytes of the slide's ICC
// profile, zero if it has none, or -1 if the handle carries an
// error.
func (s *Slide) ICCProfileSize() int64 {
	if s.Err() != nil {
		return -1
	}
	return s.iccProfileSize
}

// ReadICCProfile reads the slide's ICC profile into dest. On failure
// dest is zero-filled and the error becomes the handle's sticky
// error.
func (s *Slide) ReadICCProfile(dest []byte) error {
	if err := s.Err(); err != nil {
		clear(dest)
		return err
	}
	if s.iccProfileSize == 0 {
		return ErrNoICCProfile
	}
	if int64(len(dest)) < s.iccProfileSize {
		return ErrShortBuffer
	}

	if err := s.ops.ReadICCProfile(s, dest); err != nil {
		s.propagateError(err)
		clear(dest)
		return err
	}
	return nil
}
