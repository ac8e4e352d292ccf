package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// RangeTerm is one comma-separated member of a UML-style range expression
// : a literal, a bounded/half-bounded interval, or "*" (any).
type RangeTerm struct {
	Any     bool // "*": accepts any value of the declared kind
	IsRange bool // "low..high" / "*..high" / "low..*"
	Literal string
	Low     string // empty means unbounded ("*..high")
	High    string // empty means unbounded ("low..*")
}

// Range is a parsed range expression, or for string kinds a compiled regular
// expression, or for enum kinds the ordered label list. Exactly one of
// (Terms, regex-related fields, Labels) is populated depending on Kind.
type Range struct {
	Kind Kind

	Terms []RangeTerm // numeric / date / time ranges

	Source string // original text; for string kinds this is the regex pattern

	Labels []string // enum ranges, in declared order; index = EnumIndex

	mu       sync.Mutex
	compiled *regexp.Regexp // lazily compiled cache of Source, for string kinds
}

// EmptyRange accepts any value of the declared type, the meaning of an
// empty range string in a schema file.
func EmptyRange(k Kind) *Range { return &Range{Kind: k} }

// NewEnumRange builds the range for an enum attribute: the comma-separated
// list of allowed labels, held in declaration order. At most
// 2^16 labels are supported.
func NewEnumRange(labels []string) (*Range, error) {
	if len(labels) > 1<<16 {
		return nil, fmt.Errorf("%w: enum range has %d labels, exceeds 65536 limit", ErrValueRange, len(labels))
	}
	return &Range{Kind: KindEnum, Labels: append([]string(nil), labels...)}, nil
}

// ParseRange parses a range expression for a non-enum, non-string kind: a
// comma-separated list of literals, "low..high", "*..high", "low..*", or "*".
func ParseRange(kind Kind, text string) (*Range, error) {
	if kind == KindEnum {
		return nil, fmt.Errorf("%w: enum ranges must be built with NewEnumRange", ErrValueRead)
	}
	if kind == KindString {
		return &Range{Kind: kind, Source: text}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return EmptyRange(kind), nil
	}

	var terms []RangeTerm
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			terms = append(terms, RangeTerm{Any: true})
			continue
		}
		if idx := strings.Index(part, ".."); idx >= 0 {
			low := strings.TrimSpace(part[:idx])
			high := strings.TrimSpace(part[idx+2:])
			if low == "*" {
				low = ""
			}
			if high == "*" {
				high = ""
			}
			terms = append(terms, RangeTerm{IsRange: true, Low: low, High: high})
			continue
		}
		terms = append(terms, RangeTerm{Literal: part})
	}
	return &Range{Kind: kind, Source: text, Terms: terms}, nil
}

// CompiledRegex returns the compiled pattern for a string range, compiling
// and caching it on first use. The cache is invalidated whenever the range's
// Source is reassigned (see Recompile), so a pattern is compiled at most
// once per literal.
func (r *Range) CompiledRegex() (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compiled != nil && r.compiled.String() == r.Source {
		return r.compiled, nil
	}
	r.compiled = nil
	if r.Source == "" {
		return nil, nil
	}
	re, err := regexp.Compile(r.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regex range %q: %v", ErrValueRange, r.Source, err)
	}
	r.compiled = re
	return re, nil
}

// Recompile drops the cached regex, forcing the next CompiledRegex call to
// recompile from Source. Call this after mutating Source.
func (r *Range) Recompile() {
	r.mu.Lock()
	r.compiled = nil
	r.mu.Unlock()
}

// Check evaluates v against r, returning ErrValueRange on violation.
// skipStringRange disables all string-range regex checks globally
// (the KERNEL_SKIP_STRING_RANGE toggle).
func (r *Range) Check(v Value, skipStringRange bool) error {
	if r == nil {
		return nil
	}
	if v.Kind == KindList {
		for _, elem := range v.List {
			if err := r.Check(elem, skipStringRange); err != nil {
				return err
			}
		}
		return nil
	}

	switch r.Kind {
	case KindString:
		if skipStringRange || r.Source == "" {
			return nil
		}
		re, err := r.CompiledRegex()
		if err != nil {
			return err
		}
		if re != nil && !re.MatchString(v.Str) {
			return fmt.Errorf("%w: %q does not match range %q", ErrValueRange, v.Str, r.Source)
		}
		return nil
	case KindEnum:
		if v.EnumIndex < 0 || v.EnumIndex >= len(r.Labels) || r.Labels[v.EnumIndex] != v.EnumLabel {
			return fmt.Errorf("%w: enum value %q is not one of %v", ErrValueRange, v.EnumLabel, r.Labels)
		}
		return nil
	default:
		if len(r.Terms) == 0 {
			return nil
		}
		for _, t := range r.Terms {
			if termMatches(t, v) {
				return nil
			}
		}
		return fmt.Errorf("%w: value does not satisfy range %q", ErrValueRange, r.Source)
	}
}

func termMatches(t RangeTerm, v Value) bool {
	if t.Any {
		return true
	}
	if !t.IsRange {
		lit, err := parseScalarForKind(v.Kind, t.Literal)
		if err != nil {
			return false
		}
		return Compare(v, lit) == 0
	}
	if t.Low != "" {
		low, err := parseScalarForKind(v.Kind, t.Low)
		if err != nil || Compare(v, low) < 0 {
			return false
		}
	}
	if t.High != "" {
		high, err := parseScalarForKind(v.Kind, t.High)
		if err != nil || Compare(v, high) > 0 {
			return false
		}
	}
	return true
}

// parseScalarForKind parses a single range-term literal the same way an
// attribute value of kind k would be parsed from text, without a Range
// (range bounds are not themselves range-checked).
func parseScalarForKind(k Kind, text string) (Value, error) {
	switch {
	case k.IsInteger():
		return parseInteger(k, text)
	case k == KindFloat:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrValueRead, err)
		}
		return Float(f), nil
	case k == KindDouble:
		d, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrValueRead, err)
		}
		return Double(d), nil
	case k == KindDate:
		t, err := ParseDate(text)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindDate, Temporal: t}, nil
	case k == KindTime:
		t, err := ParseTime(text)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindTime, Temporal: t}, nil
	default:
		return Value{}, fmt.Errorf("%w: range bound unsupported for kind %s", ErrValueRead, k)
	}
}
