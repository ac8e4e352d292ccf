package objstore

import (
	"fmt"
	"sort"
	"strings"

	"oks/internal/schema"
	"oks/internal/value"
)

// ChangeKind classifies an object-store notification.
type ChangeKind int

const (
	ObjectCreated ChangeKind = iota
	ObjectRenamed
	ObjectModified
	ObjectDestroyed
)

// Change is one emitted object notification.
type Change struct {
	Kind      ChangeKind
	ClassName string
	ID        string // new id for Renamed/Created/Modified, the removed id for Destroyed
	OldID     string // only meaningful for ObjectRenamed
}

// classTable is one class's identity table: a hash map by id plus a
// lazily-sorted ordered view. layout snapshots the class's name->offset map
// as of the last time this table's objects' slot vectors were (re)built, so
// a schema edit can remap resident objects from the layout they were laid
// out under.
type classTable struct {
	byID    map[string]*Object
	ordered []*Object // invalidated (set nil) on structural change, rebuilt on demand
	layout  map[string]int
}

func newClassTable() *classTable {
	return &classTable{byID: make(map[string]*Object)}
}

func (t *classTable) orderedView() []*Object {
	if t.ordered == nil {
		t.ordered = make([]*Object, 0, len(t.byID))
		for _, o := range t.byID {
			t.ordered = append(t.ordered, o)
		}
		sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].id < t.ordered[j].id })
	}
	return t.ordered
}

// Store is the kernel-wide object store: one identity table per class plus
// per-(class,attribute) optional indices.
type Store struct {
	graph   *schema.Graph
	classes map[string]*classTable // by class name, direct members only
	indices map[indexKey]*index

	subscribers []func(Change)

	// SkipStringRange disables string-attribute regex range checks store-wide
	// (the KERNEL_SKIP_STRING_RANGE toggle).
	SkipStringRange bool

	// TestDuplicatesViaInheritance makes CreateObject reject an id already
	// used anywhere in the class's inheritance cone, not just its own table
	// (the KERNEL_TEST_DUPLICATED_OBJECTS_VIA_INHERITANCE toggle).
	TestDuplicatesViaInheritance bool
}

// NewStore returns an object store bound to a schema graph. Objstore never
// mutates the graph; it only reads class layout and inheritance — and
// subscribes to the graph's change notifications so that a schema edit
// rebuilds every resident object's value vector against the new layout
// before the next read or write can touch a stale offset.
func NewStore(g *schema.Graph) *Store {
	s := &Store{
		graph:   g,
		classes: make(map[string]*classTable),
		indices: make(map[indexKey]*index),
	}
	g.Subscribe(s.onSchemaChange)
	return s
}

// Subscribe registers fn to receive every future Change.
func (s *Store) Subscribe(fn func(Change)) {
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) emit(ch Change) {
	for _, fn := range s.subscribers {
		fn(ch)
	}
}

func (s *Store) table(className string) *classTable {
	t, ok := s.classes[className]
	if !ok {
		t = newClassTable()
		s.classes[className] = t
	}
	return t
}

// FindObject looks up an object by its exact declaring class and id.
func (s *Store) FindObject(className, id string) (*Object, bool) {
	t, ok := s.classes[className]
	if !ok {
		return nil, false
	}
	o, ok := t.byID[id]
	return o, ok
}

// Resolve looks up an object by class and id, also trying every subclass of
// className — the lookup shape a relationship bind pass needs when the
// declared target class is abstract or a supertype of the actual object.
func (s *Store) Resolve(className, id string) (*Object, bool) {
	if o, ok := s.FindObject(className, id); ok {
		return o, true
	}
	c, ok := s.graph.FindClass(className)
	if !ok {
		return nil, false
	}
	for _, sub := range c.Subclasses() {
		if o, ok := s.FindObject(sub.Name, id); ok {
			return o, true
		}
	}
	return nil, false
}

// Objects returns the ordered identity view for one class (direct members
// only; callers wanting subclasses too should walk schema.Class.Subclasses).
func (s *Store) Objects(className string) []*Object {
	t, ok := s.classes[className]
	if !ok {
		return nil
	}
	return append([]*Object(nil), t.orderedView()...)
}

// CreateObject allocates a new object of class className with the given id,
// zero-valued slots sized to the class's flattened layout.
// Fails with ErrDuplicateObject if id is already taken within className's
// own identity table; cross-class duplicate-id collisions are not
// themselves forbidden (ids are scoped per class) unless
// TestDuplicatesViaInheritance is set, in which case an id already used
// anywhere in the class's inheritance cone fails with
// schema.ErrSchemaViolation.
func (s *Store) CreateObject(className, id string, file FileHandle) (*Object, error) {
	c, ok := s.graph.FindClass(className)
	if !ok {
		return nil, errNoSuchMember(className, "(class)")
	}
	if c.Abstract {
		return nil, fmt.Errorf("%w: abstract class %q cannot own objects", schema.ErrSchemaViolation, className)
	}
	t := s.table(className)
	if t.layout == nil {
		t.layout = layoutSnapshot(c)
	}
	if _, exists := t.byID[id]; exists {
		return nil, errDuplicateObject(className, id)
	}
	if s.TestDuplicatesViaInheritance {
		if holder, root, dup := s.findInCone(c, id); dup {
			return nil, fmt.Errorf("%w: id %q already used by %s under inheritance root %s",
				schema.ErrSchemaViolation, id, holder, root)
		}
	}
	o := &Object{
		id:    id,
		class: c,
		file:  file,
		slots: make([]value.Value, c.LayoutSize()),
	}
	t.byID[id] = o
	t.ordered = nil
	if file != nil {
		file.MarkDirty()
	}
	s.emit(Change{Kind: ObjectCreated, ClassName: className, ID: id})
	return o, nil
}

// RenameObject changes an object's id, validating uniqueness across the
// whole inheritance cone of its class.
func (s *Store) RenameObject(o *Object, newID string) error {
	if newID == o.id {
		return nil
	}
	cone := append([]*schema.Class{o.class}, o.class.Superclasses()...)
	cone = append(cone, o.class.Subclasses()...)
	for _, c := range cone {
		if _, exists := s.table(c.Name).byID[newID]; exists {
			return errDuplicateObject(o.class.Name, newID)
		}
	}
	t := s.table(o.class.Name)
	oldID := o.id
	delete(t.byID, oldID)
	o.id = newID
	t.byID[newID] = o
	t.ordered = nil
	s.reindexObject(o)
	if o.file != nil {
		o.file.MarkDirty()
	}
	s.emit(Change{Kind: ObjectRenamed, ClassName: o.class.Name, ID: newID, OldID: oldID})
	return nil
}

// DestroyObject removes an object from its class table. If fast is false,
// every reference to o elsewhere in the store is converted to an
// unresolved-uid value (the unbind-all-rels scan); callers
// that can guarantee no references exist (e.g. bulk purge of an isolated
// subgraph) pass fast=true to skip the scan. Either way, the reverse
// composite entries o's own forward edges put on its targets are removed,
// so a destroyed parent leaves no stale composite parenting behind.
func (s *Store) DestroyObject(o *Object, fast bool) error {
	if !fast {
		s.unbindAllRels(o)
	}
	s.dropReverseRefs(o)
	t := s.table(o.class.Name)
	delete(t.byID, o.id)
	t.ordered = nil
	s.removeFromAllIndices(o)
	s.emit(Change{Kind: ObjectDestroyed, ClassName: o.class.Name, ID: o.id})
	return nil
}

// onSchemaChange keeps resident objects' value vectors aligned with their
// class's layout: any mutation that can reshape a flattened table walks the
// affected class and every subclass, rebuilding each object's slots by
// name. A member present before and after keeps its value (a renamed one
// keeps it under the new name), new members start unset, and removed
// members' values are dropped.
func (s *Store) onSchemaChange(ch schema.Change) {
	renames := map[string]string{}
	switch ch.Kind {
	case schema.ChangeAttributeRenamed, schema.ChangeRelationshipRenamed:
		if oldName, newName, ok := strings.Cut(ch.Detail, " -> "); ok {
			renames[newName] = oldName
		}
	case schema.ChangeAttributeAdded, schema.ChangeAttributeRemoved,
		schema.ChangeRelationshipAdded, schema.ChangeRelationshipRemoved,
		schema.ChangeSuperclass:
	case schema.ChangeClassDeleted:
		delete(s.classes, ch.ClassName) // a class only deletes once objectless
		return
	default:
		return // no layout impact
	}
	c, ok := s.graph.FindClass(ch.ClassName)
	if !ok {
		return
	}
	s.remapClass(c, renames)
	for _, sub := range c.Subclasses() {
		s.remapClass(sub, renames)
	}
}

// remapClass rebuilds every resident object of exactly class c against c's
// current layout, then refreshes the table's layout snapshot.
func (s *Store) remapClass(c *schema.Class, renames map[string]string) {
	t, ok := s.classes[c.Name]
	if !ok {
		return
	}
	snap := layoutSnapshot(c)
	old := t.layout
	t.layout = snap
	if old == nil || len(t.byID) == 0 {
		return
	}
	for _, o := range t.byID {
		slots := make([]value.Value, len(snap))
		for name, off := range snap {
			src := name
			if prev, renamed := renames[name]; renamed {
				src = prev
			}
			if oldOff, had := old[src]; had && oldOff < len(o.slots) {
				slots[off] = o.slots[oldOff]
			}
		}
		o.slots = slots
	}
}

// layoutSnapshot copies c's current flattened name->offset map.
func layoutSnapshot(c *schema.Class) map[string]int {
	snap := make(map[string]int, c.LayoutSize())
	for _, a := range c.AttributeTable() {
		snap[a.Name] = c.Layout(a.Name)
	}
	for _, r := range c.RelationshipTable() {
		snap[r.Name] = c.Layout(r.Name)
	}
	return snap
}

// findInCone reports whether id is already taken by another class in c's
// inheritance cone: c's own subtree, or any ancestor and its subtree.
func (s *Store) findInCone(c *schema.Class, id string) (holder, root string, dup bool) {
	roots := append(c.Superclasses(), c)
	for i := len(roots) - 1; i >= 0; i-- { // own subtree first, then ancestors topmost-first
		r := roots[i]
		members := append([]*schema.Class{r}, r.Subclasses()...)
		for _, m := range members {
			if m.Name == c.Name {
				continue
			}
			t, ok := s.classes[m.Name]
			if !ok {
				continue
			}
			if _, taken := t.byID[id]; taken {
				return m.Name, r.Name, true
			}
		}
	}
	return "", "", false
}

// dropReverseRefs removes the reverse composite entries o's forward edges
// contributed to their targets.
func (s *Store) dropReverseRefs(o *Object) {
	for _, r := range o.class.RelationshipTable() {
		if !r.IsCompositeExclusiveDependent() {
			continue
		}
		v := o.slots[o.class.Layout(r.Name)]
		elems := []value.Value{v}
		if v.Kind == value.KindList {
			elems = v.List
		}
		for _, e := range elems {
			if e.Kind != value.KindObject {
				continue
			}
			if target, ok := e.Object.(*Object); ok {
				target.removeReverseRef(o, r.Name)
			}
		}
	}
}

// unbindAllRels scans every object in the store for relationship values
// that point at target and rewrites them to an unresolved-uid holding
// target's former (class, id).
func (s *Store) unbindAllRels(target *Object) {
	for _, t := range s.classes {
		for _, o := range t.byID {
			if o == target {
				continue
			}
			for _, r := range o.class.RelationshipTable() {
				off := o.class.Layout(r.Name)
				o.slots[off] = unbindValue(o.slots[off], target)
			}
		}
	}
}
