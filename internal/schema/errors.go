package schema

import "errors"

// ErrSchemaViolation covers the schema graph's structural failures: duplicate names, forbidden inheritance cycles, and other
// structural constraint breaches. Mutations that fail roll back in-memory
// (the caller discards the partial change) before this error surfaces.
var ErrSchemaViolation = errors.New("schema: violation")
