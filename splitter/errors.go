package splitter

import "errors"

// Fatal error kinds the core distinguishes, per §7 of the design. Reference
// gaps and unresolved forward references are not modelled as errors: they
// are logged and the affected element is skipped or partially written.
var (
	// ErrCapacityExhausted is returned when an open-addressed map backend's
	// load exceeds its growth ceiling.
	ErrCapacityExhausted = errors.New("splitter: map capacity exhausted")
	// ErrOverflowStoreSaturated is returned when the overflow store's 24-bit
	// index range has been fully allocated.
	ErrOverflowStoreSaturated = errors.New("splitter: overflow store index range exhausted")
	// ErrIDOutOfRange is returned by the array-backed map when a key exceeds
	// its declared maximum id.
	ErrIDOutOfRange = errors.New("splitter: id exceeds configured maximum")
)
