package value

import "fmt"

// TargetType describes the declared type a Convert call is aiming for: the
// destination Kind plus whether the destination is multi-valued. Convert is
// deliberately decoupled from the schema package's Attribute type (which
// would cycle); kernel/objstore pass the two fields it needs.
type TargetType struct {
	Kind  Kind
	Multi bool
	Range *Range // only consulted for KindEnum destinations
}

// Convert implements the conversion matrix: widening between
// integer widths and between int and float/double is lossy-but-defined
// (truncation for float->int, value-preserving for int widening); bool<->
// integer maps false<->0, true<->1; single<->multi conversion either wraps
// or picks the first element; any conversion that would lose required range
// is reported via ErrValueRange.
func Convert(v Value, target TargetType) (Value, error) {
	if target.Multi && v.Kind != KindList {
		converted, err := Convert(v, TargetType{Kind: target.Kind, Range: target.Range})
		if err != nil {
			return Value{}, err
		}
		return List([]Value{converted}), nil
	}
	if !target.Multi && v.Kind == KindList {
		if len(v.List) == 0 {
			return Value{}, fmt.Errorf("%w: cannot convert empty list to a single value", ErrValueRange)
		}
		return Convert(v.List[0], target)
	}
	if v.Kind == KindList && target.Multi {
		out := NewList()
		for _, elem := range v.List {
			c, err := Convert(elem, TargetType{Kind: target.Kind, Range: target.Range})
			if err != nil {
				return Value{}, err
			}
			if err := out.Append(c); err != nil {
				return Value{}, err
			}
		}
		return out, nil
	}

	if v.Kind == target.Kind {
		return v, nil
	}

	switch target.Kind {
	case KindBool:
		return convertToBool(v)
	case KindFloat, KindDouble:
		return convertToFloating(v, target.Kind)
	case KindEnum:
		return convertToEnum(v, target.Range)
	default:
		if target.Kind.IsInteger() {
			return convertToInteger(v, target.Kind)
		}
		return Value{}, fmt.Errorf("%w: no conversion from %s to %s", ErrValueRange, v.Kind, target.Kind)
	}
}

func convertToBool(v Value) (Value, error) {
	switch {
	case v.Kind == KindBool:
		return v, nil
	case v.Kind.IsInteger():
		return Bool(asInt64(v) != 0), nil
	case v.Kind == KindFloat:
		return Bool(v.F != 0), nil
	case v.Kind == KindDouble:
		return Bool(v.D != 0), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot convert %s to bool", ErrValueRange, v.Kind)
	}
}

func convertToFloating(v Value, target Kind) (Value, error) {
	var f float64
	switch {
	case v.Kind == KindBool:
		if v.B {
			f = 1
		}
	case v.Kind.IsInteger():
		f = float64(asInt64(v))
	case v.Kind == KindFloat:
		f = v.F
	case v.Kind == KindDouble:
		f = v.D
	default:
		return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrValueRange, v.Kind, target)
	}
	if target == KindFloat {
		return Float(f), nil
	}
	return Double(f), nil
}

func convertToInteger(v Value, target Kind) (Value, error) {
	if v.Kind.IsUnsigned() {
		if target.IsUnsigned() {
			return fitsUnsigned(v.U, target)
		}
		if v.U > 9223372036854775807 {
			return Value{}, fmt.Errorf("%w: %d does not fit in %s", ErrValueRange, v.U, target)
		}
		return fitsSigned(int64(v.U), target)
	}

	var i64 int64
	switch {
	case v.Kind == KindBool:
		if v.B {
			i64 = 1
		}
	case v.Kind.IsInteger():
		i64 = v.I
	case v.Kind == KindFloat:
		i64 = int64(v.F) // truncation
	case v.Kind == KindDouble:
		i64 = int64(v.D)
	default:
		return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrValueRange, v.Kind, target)
	}

	if target.IsUnsigned() {
		if i64 < 0 {
			return Value{}, fmt.Errorf("%w: negative value %d does not fit unsigned %s", ErrValueRange, i64, target)
		}
		return fitsUnsigned(uint64(i64), target)
	}
	return fitsSigned(i64, target)
}

func asInt64(v Value) int64 {
	if v.Kind.IsUnsigned() {
		return int64(v.U)
	}
	return v.I
}

func fitsSigned(i int64, target Kind) (Value, error) {
	bits := integerBits(target)
	lo, hi := signedRange(bits)
	if i < lo || i > hi {
		return Value{}, fmt.Errorf("%w: %d does not fit in %s", ErrValueRange, i, target)
	}
	return Int(target, i), nil
}

func fitsUnsigned(u uint64, target Kind) (Value, error) {
	bits := integerBits(target)
	hi := unsignedMax(bits)
	if u > hi {
		return Value{}, fmt.Errorf("%w: %d does not fit in %s", ErrValueRange, u, target)
	}
	return Uint(target, u), nil
}

func signedRange(bits int) (int64, int64) {
	switch bits {
	case 8:
		return -128, 127
	case 16:
		return -32768, 32767
	case 32:
		return -2147483648, 2147483647
	default:
		return -9223372036854775808, 9223372036854775807
	}
}

func unsignedMax(bits int) uint64 {
	switch bits {
	case 8:
		return 255
	case 16:
		return 65535
	case 32:
		return 4294967295
	default:
		return 18446744073709551615
	}
}

func convertToEnum(v Value, rng *Range) (Value, error) {
	if rng == nil || rng.Kind != KindEnum {
		return Value{}, fmt.Errorf("%w: enum conversion requires an enum range", ErrValueRange)
	}
	label := v.Str
	if v.Kind == KindEnum {
		label = v.EnumLabel
	}
	for i, l := range rng.Labels {
		if l == label {
			return Enum(label, i), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %q is not one of the declared enum labels", ErrValueRange, label)
}
