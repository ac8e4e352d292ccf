package objstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for the object-store failure modes.
var (
	// ErrDuplicateObject means an object id is already taken: in the class's
	// own table when creating, or anywhere in the class's inheritance cone
	// when renaming.
	ErrDuplicateObject = errors.New("objstore: duplicate object id")
	// ErrObjectNotFound means a lookup by (class, id) found nothing.
	ErrObjectNotFound = errors.New("objstore: object not found")
	// ErrNoSuchMember means a read/write targeted an attribute or
	// relationship name the class does not declare.
	ErrNoSuchMember = errors.New("objstore: no such attribute or relationship")
	// ErrNullForbidden means a low-cardinality-one relationship was assigned
	// null without the explicit override flag.
	ErrNullForbidden = errors.New("objstore: null assignment forbidden for cardinality one")
	// ErrWrongKind means a relationship write target could not be cast to
	// the declared target class.
	ErrWrongKind = errors.New("objstore: value not castable to target class")
)

func errNoSuchMember(className, name string) error {
	return fmt.Errorf("%w: %s.%s", ErrNoSuchMember, className, name)
}

func errDuplicateObject(className, id string) error {
	return fmt.Errorf("%w: %s#%s", ErrDuplicateObject, className, id)
}

func errObjectNotFound(className, id string) error {
	return fmt.Errorf("%w: %s#%s", ErrObjectNotFound, className, id)
}
