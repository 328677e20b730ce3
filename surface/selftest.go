package surface

// VerifyBlending paints an opaque white tile onto a zeroed 16x16
// ARGB32 surface with the saturate operator and checks that the
// center pixel came out opaque. A broken compositing path would leave
// the destination transparent. The slide engine runs this once per
// process before the first open.
func VerifyBlending() bool {
	const dim = 16
	dest := make([]uint32, dim*dim)
	src := make([]uint32, dim*dim)
	for i := range src {
		src[i] = 0xffffffff
	}

	s, err := NewARGBForData(dest, dim, dim, dim)
	if err != nil {
		return false
	}
	c := NewCanvas(s)
	c.SetOperator(OpSaturate)
	c.DrawARGB(src, dim, dim, 0, 0)
	if c.Err() != nil {
		return false
	}

	// opaque white if working, transparent if broken
	return dest[8*dim+8] != 0
}
