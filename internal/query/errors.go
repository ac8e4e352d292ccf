package query

import (
	"errors"
	"fmt"
)

// Sentinel errors for the query-engine failure modes.
var (
	// ErrUnresolvedDuringQuery means a relationship-traversal predicate
	// recursed into a still-deferred (unresolved-uid) reference.
	ErrUnresolvedDuringQuery = errors.New("query: unresolved reference during query")
	// ErrNoSuchClass means a query named a class the schema graph does not
	// declare.
	ErrNoSuchClass = errors.New("query: no such class")
	// ErrNoSuchRelationship means a path query step named a relationship no
	// class along the path declares.
	ErrNoSuchRelationship = errors.New("query: no such relationship")
	// ErrPathNotFound means FindPath exhausted every reachable object
	// without encountering the goal.
	ErrPathNotFound = errors.New("query: no path to goal")
)

func errNoSuchClass(name string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchClass, name)
}
