package xmlio

import (
	"errors"
	"fmt"
)

// ErrBadFileData means malformed XML or a named entity encoding/xml does
// not predefine;
// it always carries a file path and (line, column).
var ErrBadFileData = errors.New("xmlio: malformed file data")

// Position is a line/column diagnostic location within a file; every codec
// diagnostic carries one.
type Position struct {
	Path   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Path, p.Line, p.Column)
}

// posError wraps err with file position context and ErrBadFileData.
func posError(pos Position, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %s: %w", pos, msg, ErrBadFileData)
}
