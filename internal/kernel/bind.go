package kernel

import (
	"fmt"

	"oks/internal/objstore"
	"oks/internal/value"
)

// UnresolvedRef identifies one relationship value that a bind pass could not
// resolve, for inclusion in a BindStatus report.
type UnresolvedRef struct {
	ClassName string
	ObjectID  string
	RelName   string
}

// BindStatus is the outcome of bind_objects: resolution is
// never fatal on its own — objects with unresolved references simply keep
// their deferred values until a later bind pass (typically after more files
// load) resolves them.
type BindStatus struct {
	Resolved   int
	Unresolved []UnresolvedRef
}

// String renders a one-line human summary, the shape callers print after a
// load.
func (b BindStatus) String() string {
	if len(b.Unresolved) == 0 {
		return fmt.Sprintf("bind: %d reference(s) resolved", b.Resolved)
	}
	return fmt.Sprintf("bind: %d resolved, %d unresolved", b.Resolved, len(b.Unresolved))
}

// BindObjects walks every object currently in the store and resolves
// whatever unresolved-uid relationship values it can against objects now
// known to the store. Callers loading many files
// should call this once after the last file rather than per file.
func (k *Kernel) BindObjects() BindStatus {
	var status BindStatus
	for _, c := range k.schema.Classes() {
		for _, o := range k.store.Objects(c.Name) {
			resolved, unresolved := k.store.BindObject(o)
			status.Resolved += resolved
			if unresolved > 0 {
				status.Unresolved = append(status.Unresolved, unresolvedRefsFor(o)...)
			}
		}
	}
	k.lastBindObjects = status
	return status
}

// unresolvedRefsFor lists every relationship on o still holding a deferred
// (unresolved-uid) value after a bind attempt.
func unresolvedRefsFor(o *objstore.Object) []UnresolvedRef {
	var out []UnresolvedRef
	for _, r := range o.Class().RelationshipTable() {
		v, err := o.Get(r.Name)
		if err != nil {
			continue
		}
		if hasUnresolved(v) {
			out = append(out, UnresolvedRef{ClassName: o.ClassName(), ObjectID: o.ObjectID(), RelName: r.Name})
		}
	}
	return out
}

func hasUnresolved(v value.Value) bool {
	switch v.Kind {
	case value.KindUID:
		return true
	case value.KindList:
		for _, e := range v.List {
			if e.Kind == value.KindUID {
				return true
			}
		}
	}
	return false
}
