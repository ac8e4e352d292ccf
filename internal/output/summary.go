package output

import "fmt"

type summaryFormatter struct{}

// FormatQuery renders a single line: how many objects matched.
func (summaryFormatter) FormatQuery(r QueryResult) (string, error) {
	return fmt.Sprintf("%d object(s) matched in %s\n", len(r.Matches), r.ClassName), nil
}

// FormatPath renders a single line: whether a path was found and its length.
func (summaryFormatter) FormatPath(r PathResult) (string, error) {
	if !r.Found {
		return fmt.Sprintf("no path found from %s to %s\n", r.Start, r.Goal), nil
	}
	return fmt.Sprintf("path found from %s to %s, length %d\n", r.Start, r.Goal, len(r.Path)), nil
}
