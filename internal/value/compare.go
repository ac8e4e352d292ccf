package value

import (
	"fmt"
	"strings"
)

// Compare implements the total order within the same Kind: integers
// arithmetically, floats IEEE, strings lexicographic,
// temporal by instant, enum by range index, lists lexicographically, object
// by identity. Cross-kind comparisons are defined only between integer
// widths (promoted); for any other pair TryCompare returns
// ErrIncompatibleComparison and Compare returns 0 rather than panicking.
// Compare itself assumes same-kind
// operands and is the hot path used by index lookups and range checks; use
// TryCompare when operand kinds might differ, e.g. inside the query engine.
func Compare(a, b Value) int {
	n, err := TryCompare(a, b)
	if err != nil {
		// Comparisons the caller has already kind-checked never reach here
		// with an error. If one does, treat the operands as unordered-equal
		// rather than panicking.
		return 0
	}
	return n
}

// TryCompare is Compare's fallible form, returning ErrIncompatibleComparison
// for cross-kind comparisons outside of promoted integer widths.
func TryCompare(a, b Value) (int, error) {
	if a.Kind != b.Kind {
		if a.Kind.IsInteger() && b.Kind.IsInteger() && a.Kind.IsUnsigned() == b.Kind.IsUnsigned() {
			return compareSameSignedness(a, b), nil
		}
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrIncompatibleComparison, a.Kind, b.Kind)
	}

	switch a.Kind {
	case KindBool:
		return boolCompare(a.B, b.B), nil
	case KindFloat:
		return floatCompare(a.F, b.F), nil
	case KindDouble:
		return floatCompare(a.D, b.D), nil
	case KindDate, KindTime:
		return a.Temporal.Compare(b.Temporal), nil
	case KindString, KindClass:
		return strings.Compare(a.Str, b.Str), nil
	case KindEnum:
		return intCompare(int64(a.EnumIndex), int64(b.EnumIndex)), nil
	case KindUID:
		if a.UID.ClassName != b.UID.ClassName {
			return strings.Compare(a.UID.ClassName, b.UID.ClassName), nil
		}
		return strings.Compare(a.UID.ID, b.UID.ID), nil
	case KindObject:
		if a.Object.ClassName() != b.Object.ClassName() {
			return strings.Compare(a.Object.ClassName(), b.Object.ClassName()), nil
		}
		return strings.Compare(a.Object.ObjectID(), b.Object.ObjectID()), nil
	case KindList:
		return compareLists(a.List, b.List)
	default:
		if a.Kind.IsInteger() {
			return compareSameSignedness(a, b), nil
		}
		return 0, fmt.Errorf("%w: kind %s is not comparable", ErrIncompatibleComparison, a.Kind)
	}
}

func compareSameSignedness(a, b Value) int {
	if a.Kind.IsUnsigned() {
		switch {
		case a.U < b.U:
			return -1
		case a.U > b.U:
			return 1
		default:
			return 0
		}
	}
	return intCompare(a.I, b.I)
}

func intCompare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatCompare(a, b float64) int {
	// Exact equality, no epsilon.
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func compareLists(a, b []Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		n, err := TryCompare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if n != 0 {
			return n, nil
		}
	}
	return intCompare(int64(len(a)), int64(len(b))), nil
}

// Match reports whether v (a string or string-like value) matches the
// compiled pattern in rng. It is the query engine's "~" (regex) operator,
// separate from Range.Check's range-validation use of the same pattern.
func Match(v Value, rng *Range) (bool, error) {
	if rng == nil || rng.Kind != KindString {
		return false, fmt.Errorf("%w: regex match requires a string range", ErrIncompatibleComparison)
	}
	re, err := rng.CompiledRegex()
	if err != nil {
		return false, err
	}
	if re == nil {
		return true, nil
	}
	return re.MatchString(v.Str), nil
}
