package slide

import "sync/atomic"

// errorSlot holds the handle's sticky error. The first failure wins;
// later writes are dropped. Readers use an atomic load so they never
// observe a half-written value.
type errorSlot struct {
	p atomic.Pointer[storedError]
}

type storedError struct {
	err error
}

func (e *errorSlot) get() error {
	if s := e.p.Load(); s != nil {
		return s.err
	}
	return nil
}

func (e *errorSlot) set(err error) {
	if err == nil {
		return
	}
	e.p.CompareAndSwap(nil, &storedError{err: err})
}

// Err returns the sticky error recorded on the handle, or nil. Once
// non-nil it never changes: every subsequent operation fails with the
// same error.
func (s *Slide) Err() error {
	return s.err.get()
}

// propagateError records err as the handle's sticky error. The first
// error to arrive wins; concurrent calls are safe and later errors
// are discarded.
func (s *Slide) propagateError(err error) {
	s.err.set(err)
}
