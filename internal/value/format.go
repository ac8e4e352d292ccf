package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders v as OKS XML wire text. disp only affects integer kinds.
func Format(v Value, disp IntDisplayFormat) (string, error) {
	switch v.Kind {
	case KindInvalid:
		return "", nil
	case KindBool:
		if v.B {
			return "yes", nil
		}
		return "no", nil
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 32), nil
	case KindDouble:
		return strconv.FormatFloat(v.D, 'g', -1, 64), nil
	case KindDate, KindTime:
		return v.Temporal.String(), nil
	case KindString:
		return escapeEntities(v.Str), nil
	case KindClass:
		return v.Str, nil
	case KindEnum:
		return v.EnumLabel, nil
	case KindUID:
		return v.UID.String(), nil
	case KindObject:
		return fmt.Sprintf("%s#%s", v.Object.ClassName(), v.Object.ObjectID()), nil
	case KindList:
		parts := make([]string, 0, len(v.List))
		for _, elem := range v.List {
			s, err := Format(elem, disp)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), nil
	default:
		if v.Kind.IsInteger() {
			return formatInteger(v, disp), nil
		}
		return "", fmt.Errorf("%w: cannot format kind %s", ErrValueRead, v.Kind)
	}
}

func formatInteger(v Value, disp IntDisplayFormat) string {
	base := 10
	switch disp {
	case DisplayHex:
		base = 16
	case DisplayOctal:
		base = 8
	}
	var s string
	if v.Kind.IsUnsigned() {
		s = strconv.FormatUint(v.U, base)
	} else {
		s = strconv.FormatInt(v.I, base)
	}
	switch disp {
	case DisplayHex:
		return "0x" + s
	case DisplayOctal:
		return "0" + s
	default:
		return s
	}
}

// escapeEntities encodes exactly the restricted OKS entity subset the codec
// accepts on read, so Parse(Format(v)) round-trips.
func escapeEntities(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '\'':
			b.WriteString("&apos;")
		case '"':
			b.WriteString("&quot;")
		case '\r':
			b.WriteString("&#xD;")
		case '\n':
			b.WriteString("&#xA;")
		case '\t':
			b.WriteString("&#x9;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
