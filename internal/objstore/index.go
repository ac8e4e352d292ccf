package objstore

import (
	"sort"

	"oks/internal/value"
)

// indexKey names one optional attribute index: a sorted multimap from
// value to objects, for one attribute of one class.
type indexKey struct {
	className string
	attrName  string
}

// index is a sorted-by-value multimap backing one indexed attribute.
// entries is kept sorted by Value via value.Compare, ties (equal values)
// grouped; Lookup walks every entry and compares it with the operand rather
// than binary-searching.
type index struct {
	entries []indexEntry
}

type indexEntry struct {
	val value.Value
	obj *Object
}

// CreateIndex declares an index on className.attrName, populating it from
// every object currently in that class's table and every subclass's table
// — an index is declared on the class owning the attribute but covers its
// whole subtree, since a subclass object is still a valid match for a query
// against the declaring class.
func (s *Store) CreateIndex(className, attrName string) error {
	c, ok := s.graph.FindClass(className)
	if !ok {
		return errNoSuchMember(className, "(class)")
	}
	if _, ok := c.FindAttribute(attrName); !ok {
		return errNoSuchMember(className, attrName)
	}
	key := indexKey{className: className, attrName: attrName}
	s.indices[key] = &index{}
	s.rebuildIndex(key)
	c.IndexedAttributes[attrName] = true
	return nil
}

// DropIndex removes a previously-created index.
func (s *Store) DropIndex(className, attrName string) {
	delete(s.indices, indexKey{className: className, attrName: attrName})
	if c, ok := s.graph.FindClass(className); ok {
		delete(c.IndexedAttributes, attrName)
	}
}

func (s *Store) rebuildIndex(key indexKey) {
	idx := s.indices[key]
	idx.entries = idx.entries[:0]
	c, ok := s.graph.FindClass(key.className)
	if !ok {
		return
	}
	names := []string{c.Name}
	for _, sub := range c.Subclasses() {
		names = append(names, sub.Name)
	}
	for _, name := range names {
		for _, o := range s.Objects(name) {
			if v, err := o.Get(key.attrName); err == nil {
				idx.entries = append(idx.entries, indexEntry{val: v, obj: o})
			}
		}
	}
	sortIndex(idx)
}

func sortIndex(idx *index) {
	sort.SliceStable(idx.entries, func(i, j int) bool {
		return value.Compare(idx.entries[i].val, idx.entries[j].val) < 0
	})
}

// reindexSlot updates every index covering attrName after a single-attribute
// write (called from SetAttribute).
func (s *Store) reindexSlot(o *Object, attrName string, v value.Value) {
	for key, idx := range s.indices {
		if key.attrName != attrName || !o.class.IsSubclassOf(key.className) {
			continue
		}
		removeFromIndex(idx, o)
		idx.entries = append(idx.entries, indexEntry{val: v, obj: o})
		sortIndex(idx)
	}
}

// reindexObject refreshes every index entry touching o; used after a
// rename, where the indexed attribute values themselves are unchanged but
// this keeps index maintenance centralized in one place rather than special
// casing rename in reindexSlot.
func (s *Store) reindexObject(o *Object) {
	for key, idx := range s.indices {
		if !o.class.IsSubclassOf(key.className) {
			continue
		}
		removeFromIndex(idx, o)
		if v, err := o.Get(key.attrName); err == nil {
			idx.entries = append(idx.entries, indexEntry{val: v, obj: o})
		}
		sortIndex(idx)
	}
}

func (s *Store) removeFromAllIndices(o *Object) {
	for _, idx := range s.indices {
		removeFromIndex(idx, o)
	}
}

func removeFromIndex(idx *index, o *Object) {
	out := idx.entries[:0]
	for _, e := range idx.entries {
		if e.obj != o {
			out = append(out, e)
		}
	}
	idx.entries = out
}

// Lookup returns every object whose indexed attribute value relates to rhs
// by op ("=", "!=", "<", "<=", ">", ">="), consulting the sorted index
// instead of a full scan. The second return value is
// false if no such index exists, signaling the caller to fall back to a
// full scan.
func (s *Store) Lookup(className, attrName, op string, rhs value.Value) ([]*Object, bool) {
	idx, ok := s.indices[indexKey{className: className, attrName: attrName}]
	if !ok {
		return nil, false
	}
	var out []*Object
	for _, e := range idx.entries {
		cmp, err := value.TryCompare(e.val, rhs)
		if err != nil {
			continue
		}
		if matches(op, cmp) {
			out = append(out, e.obj)
		}
	}
	return out, true
}

func matches(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}
