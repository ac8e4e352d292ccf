// Package output formats query-engine results for
// cmd/oksquery. It is extendable and for now provides three formats: plain
// text, JSON, and a one-line summary.
package output

import (
	"fmt"
	"strings"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// ObjectRef is the (class, id) identity pair a query/path result reports —
// deliberately not a live *objstore.Object, so this package never imports
// the kernel and can format results captured after the kernel's lock was
// released.
type ObjectRef struct {
	ClassName string `json:"class"`
	ID        string `json:"id"`
}

// String renders an ObjectRef the way the wire format names an object
// reference: "class#id".
func (r ObjectRef) String() string { return r.ClassName + "#" + r.ID }

// QueryResult is the outcome of one predicate query.
type QueryResult struct {
	ClassName       string
	IncludeSubclass bool
	Matches         []ObjectRef
}

// PathResult is the outcome of one path query.
type PathResult struct {
	Start ObjectRef
	Goal  ObjectRef
	Path  []ObjectRef
	Found bool
}

// Formatter is an interface for formatting query and path results.
type Formatter interface {
	FormatQuery(QueryResult) (string, error)
	FormatPath(PathResult) (string, error)
}

// NewFormatter creates a new Formatter instance based on the given name.
// If no format is specified, defaults to plain text.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatText:
		return textFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatSummary:
		return summaryFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'text', 'json', or 'summary'", name)
	}
}
