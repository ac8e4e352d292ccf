package objstore

import "oks/internal/value"

// SetDeferred stores an unresolved-uid value directly into a relationship
// slot, bypassing SetRelationship's type and cardinality checks — the
// loader's "object-reference values first land as unresolved-uid" step
// before a bind pass resolves them against the store.
func (s *Store) SetDeferred(o *Object, name string, uid value.UID) error {
	rel, ok := o.class.FindRelationship(name)
	if !ok {
		return errNoSuchMember(o.class.Name, name)
	}
	off := o.class.Layout(name)
	if !rel.Multi() {
		o.slots[off] = value.Deferred(uid.ClassName, uid.ID)
		return nil
	}
	cur := o.slots[off]
	if cur.Kind != value.KindList {
		cur = value.NewList()
	}
	cur.List = append(cur.List, value.Deferred(uid.ClassName, uid.ID))
	o.slots[off] = cur
	return nil
}

// BindObject resolves every unresolved-uid relationship value held directly
// by o against s, rewriting resolved ones to a value.KindObject reference and
// maintaining reverse composite references. Returns the number of references
// newly resolved and the number still unresolved; an unresolved reference
// is not an error, the object simply keeps its deferred value for a later
// pass.
func (s *Store) BindObject(o *Object) (resolved, unresolved int) {
	for _, r := range o.class.RelationshipTable() {
		off := o.class.Layout(r.Name)
		v := o.slots[off]
		switch v.Kind {
		case value.KindUID:
			if target, ok := s.Resolve(v.UID.ClassName, v.UID.ID); ok {
				o.slots[off] = value.ObjectRef(target)
				if r.IsCompositeExclusiveDependent() {
					target.addReverseRef(o, r.Name)
				}
				resolved++
			} else {
				unresolved++
			}
		case value.KindList:
			out := make([]value.Value, len(v.List))
			changed := false
			for i, e := range v.List {
				if e.Kind != value.KindUID {
					out[i] = e
					continue
				}
				if target, ok := s.Resolve(e.UID.ClassName, e.UID.ID); ok {
					out[i] = value.ObjectRef(target)
					if r.IsCompositeExclusiveDependent() {
						target.addReverseRef(o, r.Name)
					}
					resolved++
					changed = true
				} else {
					out[i] = e
					unresolved++
				}
			}
			if changed {
				v.List = out
				o.slots[off] = v
			}
		}
	}
	return resolved, unresolved
}
