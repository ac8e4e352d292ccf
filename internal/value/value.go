package value

import "fmt"

// ObjectHandle is the minimal identity surface a resolved relationship value
// needs from an object living in the kernel's object store. The value
// package never imports the object store (that would cycle back through
// schema); it only borrows this two-method view, the way the kernel design
// note describes cross-references as "borrow-like handles" rather than
// owned pointers.
type ObjectHandle interface {
	ClassName() string
	ObjectID() string
}

// UID is a deferred relationship reference: a (class name, object id) pair
// that has not yet been resolved to a concrete ObjectHandle. It becomes
// either a fully-unresolved-uid (class name itself unknown to the schema) or
// an unresolved-uid (class known, object id not yet found) depending on
// what the bind pass discovers; the wire representation is identical for
// both.
type UID struct {
	ClassName string
	ID        string
}

func (u UID) String() string { return fmt.Sprintf("%s#%s", u.ClassName, u.ID) }

// Value is the tagged union at the heart of the data model. Exactly one field is
// meaningful at a time, selected by Kind; List holds a homogeneous slice of
// single-valued Values for multi-valued attributes/relationships.
type Value struct {
	Kind Kind

	B bool
	I int64  // s8..s64 stored sign-extended
	U uint64 // u8..u64 stored zero-extended
	F float64
	D float64 // double, kept distinct from F so Convert's widening is explicit

	// Date and time values keep an absolute instant plus the declared
	// granularity; see temporal.go.
	Temporal Temporal

	Str string // string, class-name value

	EnumIndex int    // index into the declaring attribute's Range.Labels
	EnumLabel string // the label itself, kept for display without a schema lookup

	UID    UID          // set when Kind == KindUID
	Object ObjectHandle // set when Kind == KindObject

	List []Value // set when Kind == KindList
}

// IsMulti reports whether v represents a multi-valued list.
func (v Value) IsMulti() bool { return v.Kind == KindList }

// IsNull reports whether v is the unset zero Value, used where the model
// needs to represent "no value assigned" for a low-cardinality-zero
// relationship or an attribute with no default.
func (v Value) IsNull() bool {
	return v.Kind == KindInvalid
}

// Bool constructs a bool Value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// Int constructs a signed integer Value of the given width kind (KindS8..KindS64).
func Int(k Kind, i int64) Value { return Value{Kind: k, I: i} }

// Uint constructs an unsigned integer Value of the given width kind (KindU8..KindU64).
func Uint(k Kind, u uint64) Value { return Value{Kind: k, U: u} }

// Float constructs a single-precision Value.
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }

// Double constructs a double-precision Value.
func Double(d float64) Value { return Value{Kind: KindDouble, D: d} }

// String constructs a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Class constructs a bare class-name Value (attribute type "class").
func Class(name string) Value { return Value{Kind: KindClass, Str: name} }

// Enum constructs an enum Value. The index must be valid within the
// declaring attribute's Range; callers normally go through
// Parse(KindEnum, label, rng) instead of calling this directly.
func Enum(label string, index int) Value {
	return Value{Kind: KindEnum, EnumLabel: label, EnumIndex: index}
}

// ObjectRef constructs a resolved relationship Value.
func ObjectRef(h ObjectHandle) Value { return Value{Kind: KindObject, Object: h} }

// Deferred constructs an unresolved relationship Value awaiting a bind pass.
func Deferred(className, id string) Value {
	return Value{Kind: KindUID, UID: UID{ClassName: className, ID: id}}
}

// List constructs a multi-valued Value from a homogeneous element slice. It
// does not itself enforce homogeneity; callers that
// build lists incrementally should use NewList and Append.
func List(elems []Value) Value { return Value{Kind: KindList, List: elems} }

// NewList returns an empty multi-valued Value. It records no element kind:
// an empty Go slice carries no type tag of its own, so callers track the
// element kind out of band (the owning Attribute/Relationship) until the
// first Append fixes it.
func NewList() Value { return Value{Kind: KindList, List: nil} }

// Append adds elem to a multi-valued Value, returning an error if elem's
// Kind does not match the existing elements' Kind; multi-valued lists are
// homogeneous.
func (v *Value) Append(elem Value) error {
	if v.Kind != KindList {
		return fmt.Errorf("%w: Append called on non-list value", ErrValueRead)
	}
	if len(v.List) > 0 && v.List[0].Kind != elem.Kind {
		return fmt.Errorf("%w: list element kind %s does not match existing kind %s",
			ErrValueRead, elem.Kind, v.List[0].Kind)
	}
	v.List = append(v.List, elem)
	return nil
}
