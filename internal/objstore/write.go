package objstore

import (
	"fmt"

	"oks/internal/schema"
	"oks/internal/value"
)

// SetAttribute implements the attribute write path: type-check
// against the declared kind, attempt a lossy conversion on mismatch (§4.1)
// and surface the conversion as a non-fatal warning, apply the range check,
// mark the owning file dirty and emit a change notification. A non-nil
// warning is returned together with a nil error when the value converted
// cleanly but was not already of the declared kind/multiplicity.
func (s *Store) SetAttribute(o *Object, name string, v value.Value) (warning error, err error) {
	attr, ok := o.class.FindAttribute(name)
	if !ok {
		return nil, errNoSuchMember(o.class.Name, name)
	}

	converted := v
	if converted.Kind != attr.Kind || converted.IsMulti() != attr.Multi {
		c, cerr := value.Convert(converted, value.TargetType{Kind: attr.Kind, Multi: attr.Multi, Range: attr.Range})
		if cerr != nil {
			return nil, fmt.Errorf("attribute %s.%s: %w", o.class.Name, name, cerr)
		}
		warning = fmt.Errorf("attribute %s.%s: value converted from %s to %s", o.class.Name, name, converted.Kind, attr.Kind)
		converted = c
	}
	if attr.Range != nil {
		if err := attr.Range.Check(converted, s.SkipStringRange); err != nil {
			return warning, fmt.Errorf("attribute %s.%s: %w", o.class.Name, name, err)
		}
	}
	if attr.NonNull && converted.IsNull() {
		return warning, fmt.Errorf("attribute %s.%s: %w", o.class.Name, name, ErrNullForbidden)
	}

	off := o.class.Layout(name)
	old := o.slots[off]
	o.slots[off] = converted
	s.reindexSlot(o, name, converted)
	if sameText(old, converted) {
		// No observable change; suppress the dirty flag and notification
		// so a reload of an unmodified file stays a no-op.
		return warning, nil
	}
	if o.file != nil {
		o.file.MarkDirty()
	}
	s.emit(Change{Kind: ObjectModified, ClassName: o.class.Name, ID: o.id})
	return warning, nil
}

// sameText reports whether two same-kind values render to identical wire
// text, the cheap equality the store uses to suppress no-op notifications.
func sameText(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == value.KindInvalid {
		return true
	}
	as, aerr := value.Format(a, value.DisplayDecimal)
	bs, berr := value.Format(b, value.DisplayDecimal)
	return aerr == nil && berr == nil && as == bs
}

// ClearRelationship resets a relationship slot to its unset state, removing
// any reverse composite entries its current targets hold. Loaders use it to
// replace a relationship wholesale during a reload re-read.
func (s *Store) ClearRelationship(o *Object, name string) error {
	rel, ok := o.class.FindRelationship(name)
	if !ok {
		return errNoSuchMember(o.class.Name, name)
	}
	off := o.class.Layout(name)
	if rel.IsCompositeExclusiveDependent() {
		v := o.slots[off]
		elems := []value.Value{v}
		if v.Kind == value.KindList {
			elems = v.List
		}
		for _, e := range elems {
			if e.Kind != value.KindObject {
				continue
			}
			if target, ok := e.Object.(*Object); ok {
				target.removeReverseRef(o, name)
			}
		}
	}
	o.slots[off] = value.Value{}
	return nil
}

// SetRelationship implements the single-value relationship write path
// : check the target is castable to the declared target
// class, and for composite-exclusive-dependent relationships remove the old
// reverse reference and add the new one. Passing a null target on a
// low-cardinality-one relationship fails unless allowNull is set (used by
// loaders and bulk editors).
func (s *Store) SetRelationship(o *Object, name string, target *Object, allowNull bool) error {
	rel, ok := o.class.FindRelationship(name)
	if !ok {
		return errNoSuchMember(o.class.Name, name)
	}
	if rel.Multi() {
		return fmt.Errorf("relationship %s.%s: %w: use AddRelationshipValue for multi-valued relationships", o.class.Name, name, ErrWrongKind)
	}
	if target == nil {
		if rel.Low == schema.LowOne && !allowNull {
			return fmt.Errorf("relationship %s.%s: %w", o.class.Name, name, ErrNullForbidden)
		}
	} else if tc, ok := rel.TargetClass(); ok && !target.class.IsSubclassOf(tc.Name) {
		return fmt.Errorf("relationship %s.%s: %w", o.class.Name, name, ErrWrongKind)
	}

	off := o.class.Layout(name)
	old := o.slots[off]
	if rel.IsCompositeExclusiveDependent() {
		if old.Kind == value.KindObject {
			if prevTarget, ok := old.Object.(*Object); ok {
				prevTarget.removeReverseRef(o, name)
			}
		}
		if target != nil {
			target.addReverseRef(o, name)
		}
	}

	if target == nil {
		o.slots[off] = value.Value{}
	} else {
		o.slots[off] = value.ObjectRef(target)
	}
	if o.file != nil {
		o.file.MarkDirty()
	}
	s.emit(Change{Kind: ObjectModified, ClassName: o.class.Name, ID: o.id})
	return nil
}

// AddRelationshipValue appends (or, for an unordered multi-valued
// relationship, set-inserts) target into a multi-valued relationship,
// maintaining reverse entries for composite-exclusive-dependent
// relationships.
func (s *Store) AddRelationshipValue(o *Object, name string, target *Object) error {
	rel, ok := o.class.FindRelationship(name)
	if !ok {
		return errNoSuchMember(o.class.Name, name)
	}
	if !rel.Multi() {
		return fmt.Errorf("relationship %s.%s: %w: single-valued, use SetRelationship", o.class.Name, name, ErrWrongKind)
	}
	if tc, ok := rel.TargetClass(); ok && !target.class.IsSubclassOf(tc.Name) {
		return fmt.Errorf("relationship %s.%s: %w", o.class.Name, name, ErrWrongKind)
	}

	off := o.class.Layout(name)
	cur := o.slots[off]
	if cur.Kind != value.KindList {
		cur = value.NewList()
	}
	if !rel.OrderedMulti {
		for _, existing := range cur.List {
			if existing.Kind == value.KindObject && existing.Object == value.ObjectHandle(target) {
				return nil // set semantics: already present
			}
		}
	}
	if err := cur.Append(value.ObjectRef(target)); err != nil {
		return fmt.Errorf("relationship %s.%s: %w", o.class.Name, name, err)
	}
	o.slots[off] = cur

	if rel.IsCompositeExclusiveDependent() {
		target.addReverseRef(o, name)
	}
	if o.file != nil {
		o.file.MarkDirty()
	}
	s.emit(Change{Kind: ObjectModified, ClassName: o.class.Name, ID: o.id})
	return nil
}

// RemoveRelationshipValue removes one occurrence of target from a
// multi-valued relationship.
func (s *Store) RemoveRelationshipValue(o *Object, name string, target *Object) error {
	rel, ok := o.class.FindRelationship(name)
	if !ok {
		return errNoSuchMember(o.class.Name, name)
	}
	off := o.class.Layout(name)
	cur := o.slots[off]
	if cur.Kind != value.KindList {
		return nil
	}
	out := cur.List[:0]
	removed := false
	for _, v := range cur.List {
		if !removed && v.Kind == value.KindObject && v.Object == value.ObjectHandle(target) {
			removed = true
			continue
		}
		out = append(out, v)
	}
	cur.List = out
	o.slots[off] = cur

	if removed && rel.IsCompositeExclusiveDependent() {
		target.removeReverseRef(o, name)
	}
	if removed && o.file != nil {
		o.file.MarkDirty()
	}
	if removed {
		s.emit(Change{Kind: ObjectModified, ClassName: o.class.Name, ID: o.id})
	}
	return nil
}

// unbindValue rewrites any occurrence of target inside v (single or list)
// into an unresolved-uid value carrying target's former identity, for
// unbind_all_rels.
func unbindValue(v value.Value, target *Object) value.Value {
	switch v.Kind {
	case value.KindObject:
		if o, ok := v.Object.(*Object); ok && o == target {
			return value.Deferred(target.ClassName(), target.ObjectID())
		}
		return v
	case value.KindList:
		out := make([]value.Value, len(v.List))
		for i, e := range v.List {
			out[i] = unbindValue(e, target)
		}
		v.List = out
		return v
	default:
		return v
	}
}
