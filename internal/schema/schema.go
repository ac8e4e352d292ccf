// Package schema is the OKS schema graph: classes and
// their direct attributes, relationships and methods, plus the derived
// caches — transitive superclasses/subclasses, flattened attribute and
// relationship tables, and per-class value-layout offsets — that the object
// store and query engine rely on.
//
// Package schema does not lock: the kernel's process-wide reader-writer
// lock guards every call into a Graph, so the graph itself stays free of
// synchronization.
package schema

import (
	"fmt"

	"oks/internal/value"
)

// Method is a schema-declared method: a name plus zero or more
// <method-implementation> bodies in different target languages.
type Method struct {
	Name            string
	Description     string
	Implementations []MethodImplementation
}

// MethodImplementation is one <method-implementation>: a language tag, a
// prototype string and a body/name the generated DAL façade binds to.
type MethodImplementation struct {
	Language  string
	Prototype string
	Body      string
}

// LowCC is a relationship's low cardinality bound.
type LowCC int

const (
	LowZero LowCC = iota
	LowOne
)

func (l LowCC) String() string {
	if l == LowOne {
		return "one"
	}
	return "zero"
}

// HighCC is a relationship's high cardinality bound.
type HighCC int

const (
	HighOne HighCC = iota
	HighMany
)

func (h HighCC) String() string {
	if h == HighMany {
		return "many"
	}
	return "one"
}

// Attribute is a class-owned attribute: a typed, possibly multi-valued,
// possibly ranged scalar slot.
type Attribute struct {
	Name         string
	Kind         value.Kind
	Range        *value.Range
	IntFormat    value.IntDisplayFormat
	Multi        bool
	NonNull      bool
	OrderedMulti bool
	DefaultText  string
	Description  string

	Class *Class // owning class, set by AddAttribute
}

// Relationship is a class-owned edge to another class.
type Relationship struct {
	Name            string
	TargetClassName string
	Low             LowCC
	High            HighCC
	Composite       bool
	Exclusive       bool
	Dependent       bool
	OrderedMulti    bool
	Description     string

	Class *Class // owning class, set by AddRelationship

	targetClass *Class // resolved cache, re-linked by Graph.BindClasses
}

// Multi reports whether this relationship can hold more than one value.
func (r *Relationship) Multi() bool { return r.High == HighMany }

// TargetClass returns the resolved target class, if binding has happened.
func (r *Relationship) TargetClass() (*Class, bool) {
	if r.targetClass == nil {
		return nil, false
	}
	return r.targetClass, true
}

// IsCompositeExclusiveDependent reports whether this relationship
// contributes reverse composite references and destruction propagation.
func (r *Relationship) IsCompositeExclusiveDependent() bool {
	return r.Composite && r.Exclusive && r.Dependent
}

// FileMarker is the minimal view a class keeps of the file that declared
// it: enough to flip the file's dirty flag when the class changes shape.
type FileMarker interface {
	MarkDirty()
	Path() string
}

// Class is a schema node: a named, possibly-abstract type with direct
// attributes/relationships/methods plus derived inheritance and layout
// caches.
type Class struct {
	Name        string
	Description string
	Abstract    bool

	SuperclassNames []string // direct, by name

	DirectAttributes    []*Attribute
	DirectRelationships []*Relationship
	DirectMethods       []*Method

	// Owner is set by the kernel to the file that declared this class; every
	// structural mutation through Graph flips its dirty flag. Schema itself
	// never imports the kernel package, only this narrow view of a file.
	Owner FileMarker

	// Derived caches, rebuilt by Graph.recomputeAll whenever this class or an
	// ancestor/descendant changes shape.
	superclasses []*Class // transitive, topologically ordered, nearest first
	subclasses   []*Class // transitive
	attrTable    []*Attribute
	relTable     []*Relationship
	layout       map[string]int // flattened name -> value-vector offset

	// IndexedAttributes names attributes with an optional object-store
	// index; the index itself is owned by objstore.
	IndexedAttributes map[string]bool
}

// Superclasses returns the transitive superclass set, nearest-ancestor
// first, as of the last recompute.
func (c *Class) Superclasses() []*Class { return append([]*Class(nil), c.superclasses...) }

// Subclasses returns the transitive subclass set as of the last recompute.
func (c *Class) Subclasses() []*Class { return append([]*Class(nil), c.subclasses...) }

// AttributeTable returns the flattened attribute table in layout order.
func (c *Class) AttributeTable() []*Attribute { return append([]*Attribute(nil), c.attrTable...) }

// RelationshipTable returns the flattened relationship table in layout order.
func (c *Class) RelationshipTable() []*Relationship {
	return append([]*Relationship(nil), c.relTable...)
}

// Layout returns the stable value-vector offset of a flattened
// attribute/relationship name, or -1 if not found.
func (c *Class) Layout(name string) int {
	if off, ok := c.layout[name]; ok {
		return off
	}
	return -1
}

// LayoutSize is the number of slots an object of this class needs.
func (c *Class) LayoutSize() int { return len(c.layout) }

// FindAttribute searches the flattened attribute table.
func (c *Class) FindAttribute(name string) (*Attribute, bool) {
	for _, a := range c.attrTable {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// FindRelationship searches the flattened relationship table.
func (c *Class) FindRelationship(name string) (*Relationship, bool) {
	for _, r := range c.relTable {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// IsSubclassOf reports whether c is targetName itself or inherits from it.
func (c *Class) IsSubclassOf(targetName string) bool {
	if c.Name == targetName {
		return true
	}
	for _, s := range c.superclasses {
		if s.Name == targetName {
			return true
		}
	}
	return false
}

// Graph is the kernel-wide schema: the class-name -> *Class map plus change
// subscriptions.
type Graph struct {
	classes     map[string]*Class
	subscribers []func(Change)
}

// NewGraph returns an empty schema graph.
func NewGraph() *Graph {
	return &Graph{classes: make(map[string]*Class)}
}

// FindClass looks up a class by name; class names are unique kernel-wide.
func (g *Graph) FindClass(name string) (*Class, bool) {
	c, ok := g.classes[name]
	return c, ok
}

// Classes returns every class currently in the graph, in no particular
// order; callers that need determinism should sort by Name.
func (g *Graph) Classes() []*Class {
	out := make([]*Class, 0, len(g.classes))
	for _, c := range g.classes {
		out = append(out, c)
	}
	return out
}

// CreateClass adds a new class to the graph and recomputes its (trivial, at
// this point) derived caches. Fails with ErrSchemaViolation if the name is
// already taken.
func (g *Graph) CreateClass(name string, abstract bool, description string) (*Class, error) {
	if _, exists := g.classes[name]; exists {
		return nil, fmt.Errorf("%w: class %q already exists", ErrSchemaViolation, name)
	}
	c := &Class{
		Name:              name,
		Description:       description,
		Abstract:          abstract,
		layout:            map[string]int{},
		IndexedAttributes: map[string]bool{},
	}
	g.classes[name] = c
	if err := g.recomputeAll(); err != nil {
		delete(g.classes, name)
		_ = g.recomputeAll()
		return nil, err
	}
	g.emit(Change{Kind: ChangeClassCreated, ClassName: name})
	return c, nil
}

// DeleteClass removes a class. Callers must ensure no objects of this class
// (or its subclasses) remain; schema itself has no object visibility.
func (g *Graph) DeleteClass(name string) error {
	c, ok := g.classes[name]
	if !ok {
		return fmt.Errorf("%w: class %q not found", ErrSchemaViolation, name)
	}
	if len(c.subclasses) > 0 {
		return fmt.Errorf("%w: class %q still has subclasses", ErrSchemaViolation, name)
	}
	delete(g.classes, name)
	if err := g.recomputeAll(); err != nil {
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeClassDeleted, ClassName: name})
	return nil
}

// AddSuperclass declares super as a direct superclass of c.
func (g *Graph) AddSuperclass(c *Class, super string) error {
	for _, s := range c.SuperclassNames {
		if s == super {
			return nil
		}
	}
	c.SuperclassNames = append(c.SuperclassNames, super)
	if err := g.recomputeAll(); err != nil {
		c.SuperclassNames = c.SuperclassNames[:len(c.SuperclassNames)-1]
		_ = g.recomputeAll()
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeSuperclass, ClassName: c.Name, Detail: super})
	return nil
}

// RemoveSuperclass removes super from c's direct superclasses.
func (g *Graph) RemoveSuperclass(c *Class, super string) error {
	idx := -1
	for i, s := range c.SuperclassNames {
		if s == super {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q is not a direct superclass of %q", ErrSchemaViolation, super, c.Name)
	}
	c.SuperclassNames = append(c.SuperclassNames[:idx], c.SuperclassNames[idx+1:]...)
	if err := g.recomputeAll(); err != nil {
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeSuperclass, ClassName: c.Name, Detail: "-" + super})
	return nil
}

// SetAbstract toggles c's abstract flag.
func (g *Graph) SetAbstract(c *Class, abstract bool) {
	if c.Abstract == abstract {
		return
	}
	c.Abstract = abstract
	markOwner(c)
	g.emit(Change{Kind: ChangeAbstractFlag, ClassName: c.Name})
}

// Subscribe registers fn to receive every future Change. Subscribers must
// not call back into the kernel's write path from fn.
func (g *Graph) Subscribe(fn func(Change)) {
	g.subscribers = append(g.subscribers, fn)
}

func (g *Graph) emit(ch Change) {
	for _, fn := range g.subscribers {
		fn(ch)
	}
}

// markOwner flips the dirty flag of the file owning c, if the kernel has
// attached one; every committed schema mutation goes through here.
func markOwner(c *Class) {
	if c != nil && c.Owner != nil {
		c.Owner.MarkDirty()
	}
}
