package output

import "strings"

type textFormatter struct{}

// FormatQuery renders one "class#id" per line, or a "no matches" line.
func (textFormatter) FormatQuery(r QueryResult) (string, error) {
	if len(r.Matches) == 0 {
		return "no matches\n", nil
	}
	var b strings.Builder
	for _, m := range r.Matches {
		b.WriteString(m.String())
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// FormatPath renders the path as an arrow-joined chain, or a "no path
// found" line.
func (textFormatter) FormatPath(r PathResult) (string, error) {
	if !r.Found || len(r.Path) == 0 {
		return "no path found\n", nil
	}
	steps := make([]string, len(r.Path))
	for i, o := range r.Path {
		steps[i] = o.String()
	}
	return strings.Join(steps, " -> ") + "\n", nil
}
