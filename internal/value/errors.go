package value

import "errors"

// Sentinel errors for the value-level failure modes. Each is wrapped with
// context via fmt.Errorf("...: %w", ...)
// at the point of failure and can be matched later with errors.Is.
var (
	// ErrValueRead means value text did not parse to the declared type.
	ErrValueRead = errors.New("value: text does not match declared type")
	// ErrValueRange means a value parsed but violated its attribute's range.
	ErrValueRange = errors.New("value: out of declared range")
	// ErrIncompatibleComparison means two values were compared across
	// non-comparable kinds.
	ErrIncompatibleComparison = errors.New("value: incompatible comparison")
)
