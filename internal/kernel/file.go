package kernel

import (
	"os"
	"time"
)

// FileKind distinguishes the two OKS wire dialects.
type FileKind int

const (
	KindSchema FileKind = iota
	KindData
)

// FileState is one of the file lifecycle states.
type FileState int

const (
	StateLoadedClean FileState = iota
	StateLoadedDirty
	StateCreatedUnsaved
	StateExternallyModified
	StateRemoved
)

func (s FileState) String() string {
	switch s {
	case StateLoadedClean:
		return "loaded-clean"
	case StateLoadedDirty:
		return "loaded-dirty"
	case StateCreatedUnsaved:
		return "created-unsaved"
	case StateExternallyModified:
		return "externally-modified"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// File is one OKS schema or data file tracked by the kernel. It implements objstore.FileHandle so objects/classes it declares
// can mark it dirty without objstore importing the kernel package.
type File struct {
	path  string
	kind  FileKind
	state FileState

	// LogicalName and TypeTag carry the header's name/type attributes
	// through to Save, so a round-trip preserves them.
	LogicalName string
	TypeTag     string

	// ParentInclude is the path of the first file whose <include> pulled
	// this one in; empty for files the caller loaded directly. Close uses
	// it to tell orphaned includes from explicit roots.
	ParentInclude string

	// Includes are the <include><file path=…/> entries in declaration
	// order, exactly as the header spelled them; Save writes them back
	// verbatim. resolvedIncludes holds their absolute forms for the
	// include-cycle check.
	Includes         []string
	resolvedIncludes []string

	readOnly bool

	// isRepository is true if Path begins with the user or global
	// repository root; its mtime is tracked separately to detect upstream
	// changes.
	isRepository bool
	lastModTime  time.Time

	// DeclaredClasses and DeclaredObjects record what this file's last parse
	// put into the schema graph / object store, so a later diffing reload
	// knows what disappeared.
	DeclaredClasses []string
	DeclaredObjects []ObjectKey

	// Comments carries the <comments> header entries through to Save.
	Comments []string
}

// ObjectKey identifies one object by its declaring class and id.
type ObjectKey struct {
	ClassName string
	ID        string
}

// NewFile constructs a File in StateCreatedUnsaved — the state a brand new,
// never-loaded-from-disk file starts in.
func NewFile(path string, kind FileKind) *File {
	return &File{path: path, kind: kind, state: StateCreatedUnsaved}
}

// Path implements objstore.FileHandle.
func (f *File) Path() string { return f.path }

// Kind reports whether this is a schema or data file.
func (f *File) Kind() FileKind { return f.kind }

// State reports the file's current lifecycle state.
func (f *File) State() FileState { return f.state }

// MarkDirty implements objstore.FileHandle: any mutation to a class or
// object this file declared transitions a clean file to dirty. Created-unsaved and already-dirty files are unaffected.
func (f *File) MarkDirty() {
	if f.state == StateLoadedClean {
		f.state = StateLoadedDirty
	}
}

// MarkSaved transitions a file to loaded-clean after a successful save and
// records the new on-disk modification time.
func (f *File) MarkSaved(modTime time.Time) {
	f.state = StateLoadedClean
	f.lastModTime = modTime
}

// MarkRemoved transitions a file to removed; its objects/classes must
// already have been unloaded by the caller.
func (f *File) MarkRemoved() { f.state = StateRemoved }

// UpdateStatus stats the file on disk and transition to ExternallyModified if its mtime
// has advanced past what the kernel last recorded, for repository files
// only (non-repository files are assumed private to this process).
func (f *File) UpdateStatus() error {
	if !f.isRepository || f.state == StateRemoved || f.state == StateCreatedUnsaved {
		return nil
	}
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.state = StateRemoved
			return nil
		}
		return err
	}
	if info.ModTime().After(f.lastModTime) {
		f.state = StateExternallyModified
	}
	return nil
}

// DeclareObject records an object as belonging to this file's saved
// content. The loader does this automatically; programmatic writers call it
// after creating an object against a CreateFile'd file.
func (f *File) DeclareObject(className, id string) {
	f.DeclaredObjects = append(f.DeclaredObjects, ObjectKey{ClassName: className, ID: id})
}

// ReadOnly reports whether this file may be modified and saved.
func (f *File) ReadOnly() bool { return f.readOnly }

// SetReadOnly marks f read-only; Save refuses with ErrFileReadOnly.
func (f *File) SetReadOnly(ro bool) { f.readOnly = ro }

// SetRepository marks f as belonging to a tracked repository root, enabling
// UpdateStatus's mtime comparison.
func (f *File) SetRepository(isRepo bool, modTime time.Time) {
	f.isRepository = isRepo
	f.lastModTime = modTime
}
