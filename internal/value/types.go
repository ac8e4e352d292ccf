// Package value implements the OKS typed value model: a tagged union over
// the primitive, enumerated, temporal, string and reference value kinds an
// attribute or relationship can hold, plus their parsing, formatting,
// comparison and range-checking rules.
//
// The set of kinds is closed and is never extended by a switch default:
// every operation (Parse, Format, Compare, Range.Check, Convert) is a single
// exhaustive match over Kind. The tag replaces any dispatch over a type
// hierarchy.
package value

import "fmt"

// Kind identifies which alternative of the tagged union a Value currently
// holds.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindS8
	KindU8
	KindS16
	KindU16
	KindS32
	KindU32
	KindS64
	KindU64
	KindFloat
	KindDouble
	KindDate
	KindTime
	KindString
	KindEnum
	KindClass  // a bare class-name value (the "class" attribute type)
	KindUID    // a deferred relationship reference, resolved or not
	KindObject // a resolved relationship reference
	KindList   // a homogeneous list of any of the above kinds
)

// String renders the Kind the way the OKS XML dialect spells it in
// <attribute type=...> / <relationship> wire attributes.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindS8:
		return "s8"
	case KindU8:
		return "u8"
	case KindS16:
		return "s16"
	case KindU16:
		return "u16"
	case KindS32:
		return "s32"
	case KindU32:
		return "u32"
	case KindS64:
		return "s64"
	case KindU64:
		return "u64"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindClass:
		return "class"
	case KindUID, KindObject:
		return "uid"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// attrTypeKeywords is the closed set of attribute-type keywords the OKS XML
// dialect recognizes. It is the single place new attribute
// kinds would need to be registered, mirroring how a dialect's raw-type
// keyword set is the sole registration point for new SQL column types.
var attrTypeKeywords = map[string]Kind{
	"bool":   KindBool,
	"s8":     KindS8,
	"u8":     KindU8,
	"s16":    KindS16,
	"u16":    KindU16,
	"s32":    KindS32,
	"u32":    KindU32,
	"s64":    KindS64,
	"u64":    KindU64,
	"float":  KindFloat,
	"double": KindDouble,
	"date":   KindDate,
	"time":   KindTime,
	"string": KindString,
	"uid":    KindUID,
	"enum":   KindEnum,
	"class":  KindClass,
}

// ParseAttrTypeKeyword maps an XML "type" attribute string to its Kind. It
// fails with a descriptive error for anything outside the closed set, the
// same shape as a dialect's raw-type validator rejecting an unknown keyword.
func ParseAttrTypeKeyword(s string) (Kind, error) {
	if k, ok := attrTypeKeywords[s]; ok {
		return k, nil
	}
	return KindInvalid, fmt.Errorf("%w: unrecognized attribute type keyword %q", ErrValueRead, s)
}

// IsInteger reports whether k is one of the eight fixed-width integer kinds.
func (k Kind) IsInteger() bool {
	switch k {
	case KindS8, KindU8, KindS16, KindU16, KindS32, KindU32, KindS64, KindU64:
		return true
	}
	return false
}

// IsUnsigned reports whether k is one of the four unsigned integer kinds.
func (k Kind) IsUnsigned() bool {
	switch k {
	case KindU8, KindU16, KindU32, KindU64:
		return true
	}
	return false
}

// IsNumeric reports whether k supports arithmetic widening/narrowing
// conversions (integers and the two floating kinds).
func (k Kind) IsNumeric() bool {
	return k.IsInteger() || k == KindFloat || k == KindDouble
}

// IntDisplayFormat controls how an integer value is rendered as text.
type IntDisplayFormat int

const (
	DisplayDecimal IntDisplayFormat = iota
	DisplayHex
	DisplayOctal
)
