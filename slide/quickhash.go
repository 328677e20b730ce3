package slide

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Quickhash accumulates a digest identifying the slide contents.
// Backends feed it stable portions of the file (typically the
// smallest pyramid level) during open; the engine records the result
// as the quickhash property. A backend whose format has no stable
// data to hash calls Disable, and no property is recorded.
type Quickhash struct {
	h       hash.Hash
	enabled bool
}

// NewQuickhash creates an enabled accumulator.
func NewQuickhash() *Quickhash {
	return &Quickhash{h: sha256.New(), enabled: true}
}

// Write feeds bytes into the digest. Ignored after Disable.
func (q *Quickhash) Write(p []byte) {
	if q.enabled {
		q.h.Write(p)
	}
}

// WriteString feeds a string into the digest.
func (q *Quickhash) WriteString(s string) {
	if q.enabled {
		io.WriteString(q.h, s)
	}
}

// WriteFilePart feeds length bytes of the file at path starting at
// offset into the digest.
func (q *Quickhash) WriteFilePart(path string, offset, length int64) error {
	if !q.enabled {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.CopyN(q.h, f, length); err != nil {
		return fmt.Errorf("slide: quickhash read of %s failed: %w", path, err)
	}
	return nil
}

// Disable marks the slide as having no stable quickhash.
func (q *Quickhash) Disable() {
	q.enabled = false
}

// Sum returns the hex digest, or false if the hash was disabled.
func (q *Quickhash) Sum() (string, bool) {
	if !q.enabled {
		return "", false
	}
	return hex.EncodeToString(q.h.Sum(nil)), true
}
