package kernel

import "errors"

// Sentinel errors for the file-engine failure modes, wrapped with file/position context via fmt.Errorf at the
// point of failure and matched later with errors.Is.
var (
	// ErrFileLocked means a writer tried to acquire an advisory lock already
	// held by a live process; carries the sidecar contents.
	ErrFileLocked = errors.New("kernel: file locked by another process")
	// ErrFileNotFound means a file could not be found or opened: include
	// resolution exhausted every search path, a path could not be opened, or
	// an operation named a file the kernel does not track.
	ErrFileNotFound = errors.New("kernel: file not found")
	// ErrFileReadOnly means a save was attempted against a file marked
	// read-only through File.SetReadOnly.
	ErrFileReadOnly = errors.New("kernel: file is read-only")
	// ErrIncludeCycle means include resolution detected a cycle and policy
	// raised it rather than downgrading to a warning.
	ErrIncludeCycle = errors.New("kernel: circular include")
	// ErrUnresolvedDuringQuery means a predicate/path query recursed into an
	// unresolved relationship reference.
	ErrUnresolvedDuringQuery = errors.New("kernel: unresolved reference during query")
	// ErrReferenceError is the general relationship-integrity failure
	// distinct from the narrower unresolved-during-query case.
	ErrReferenceError = errors.New("kernel: reference error")
	// ErrDuplicatedObject means the duplicated-objects load policy is
	// "reject" and a duplicate id was encountered.
	ErrDuplicatedObject = errors.New("kernel: duplicated object")
	// ErrDuplicatedClass mirrors ErrDuplicatedObject for schema class names.
	ErrDuplicatedClass = errors.New("kernel: duplicated class")
)
