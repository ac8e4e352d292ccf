// Package objstore is the OKS object store: object identity,
// attribute/relationship value storage keyed by a class's flattened layout,
// reverse composite references, optional per-attribute indices, and change
// subscriptions. Like package schema, it does not lock internally — the
// kernel's process-wide reader-writer lock is the
// synchronization boundary.
package objstore

import (
	"oks/internal/schema"
	"oks/internal/value"
)

// FileHandle is the minimal view an Object needs of the file that declared
// it: enough to mark it dirty on mutation without objstore
// importing the kernel package and creating an import cycle.
type FileHandle interface {
	MarkDirty()
	Path() string
}

// Object is one OKS data object: a class-scoped identity plus a value slot
// per entry in its class's flattened layout (schema.Class.Layout).
type Object struct {
	id    string
	class *schema.Class
	file  FileHandle

	slots []value.Value

	// rcr holds reverse composite references: for each composite-exclusive-
	// dependent relationship that targets this object, the (owner, rel name)
	// pair that points here.
	rcr []ReverseRef
}

// ReverseRef is one reverse composite reference entry.
type ReverseRef struct {
	Owner   *Object
	RelName string
}

// ClassName implements value.ObjectHandle.
func (o *Object) ClassName() string { return o.class.Name }

// ObjectID implements value.ObjectHandle.
func (o *Object) ObjectID() string { return o.id }

// Class returns the object's declaring class.
func (o *Object) Class() *schema.Class { return o.class }

// File returns the file this object's declaration lives in, if known.
func (o *Object) File() FileHandle { return o.file }

// IsCompositeParented reports whether at least one reverse composite
// reference points at this object.
func (o *Object) IsCompositeParented() bool { return len(o.rcr) > 0 }

// ReverseRefs returns the current reverse composite references.
func (o *Object) ReverseRefs() []ReverseRef { return append([]ReverseRef(nil), o.rcr...) }

func (o *Object) addReverseRef(owner *Object, relName string) {
	o.rcr = append(o.rcr, ReverseRef{Owner: owner, RelName: relName})
}

func (o *Object) removeReverseRef(owner *Object, relName string) {
	for i, r := range o.rcr {
		if r.Owner == owner && r.RelName == relName {
			o.rcr = append(o.rcr[:i], o.rcr[i+1:]...)
			return
		}
	}
}

// dataInfo resolves a class-scoped member name to its layout offset and
// declaring attribute/relationship: one lookup by name, constant-time
// access thereafter.
type dataInfo struct {
	offset int
	attr   *schema.Attribute
	rel    *schema.Relationship
}

func (o *Object) lookup(name string) (dataInfo, bool) {
	if a, ok := o.class.FindAttribute(name); ok {
		return dataInfo{offset: o.class.Layout(name), attr: a}, true
	}
	if r, ok := o.class.FindRelationship(name); ok {
		return dataInfo{offset: o.class.Layout(name), rel: r}, true
	}
	return dataInfo{}, false
}

// Get reads a value by class-scoped name.
func (o *Object) Get(name string) (value.Value, error) {
	info, ok := o.lookup(name)
	if !ok {
		return value.Value{}, errNoSuchMember(o.class.Name, name)
	}
	return o.slots[info.offset], nil
}

// GetAttribute is the typed form of Get restricted to attributes.
func (o *Object) GetAttribute(name string) (value.Value, *schema.Attribute, error) {
	info, ok := o.lookup(name)
	if !ok || info.attr == nil {
		return value.Value{}, nil, errNoSuchMember(o.class.Name, name)
	}
	return o.slots[info.offset], info.attr, nil
}

// GetRelationship is the typed form of Get restricted to relationships.
func (o *Object) GetRelationship(name string) (value.Value, *schema.Relationship, error) {
	info, ok := o.lookup(name)
	if !ok || info.rel == nil {
		return value.Value{}, nil, errNoSuchMember(o.class.Name, name)
	}
	return o.slots[info.offset], info.rel, nil
}
