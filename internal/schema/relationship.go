package schema

import "fmt"

// AddRelationship declares a new direct relationship on c and rebuilds
// derived tables, rolling back if it would introduce a duplicate name.
func (g *Graph) AddRelationship(c *Class, r *Relationship) error {
	r.Class = c
	c.DirectRelationships = append(c.DirectRelationships, r)
	if err := g.recomputeAll(); err != nil {
		c.DirectRelationships = c.DirectRelationships[:len(c.DirectRelationships)-1]
		_ = g.recomputeAll()
		return err
	}
	g.BindClasses()
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipAdded, ClassName: c.Name, Detail: r.Name})
	return nil
}

// RemoveRelationship removes a direct relationship by name from c.
func (g *Graph) RemoveRelationship(c *Class, name string) error {
	idx, r := findDirectRel(c, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, name)
	}
	c.DirectRelationships = append(c.DirectRelationships[:idx], c.DirectRelationships[idx+1:]...)
	if err := g.recomputeAll(); err != nil {
		c.DirectRelationships = append(c.DirectRelationships[:idx:idx], append([]*Relationship{r}, c.DirectRelationships[idx:]...)...)
		_ = g.recomputeAll()
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipRemoved, ClassName: c.Name, Detail: name})
	return nil
}

// RenameRelationship renames a direct relationship, checking uniqueness in
// the flattened table under the new name before committing.
func (g *Graph) RenameRelationship(c *Class, oldName, newName string) error {
	_, r := findDirectRel(c, oldName)
	if r == nil {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, oldName)
	}
	prev := r.Name
	r.Name = newName
	if err := g.recomputeAll(); err != nil {
		r.Name = prev
		_ = g.recomputeAll()
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipRenamed, ClassName: c.Name, Detail: prev + " -> " + newName})
	return nil
}

// RetargetRelationship changes a direct relationship's declared target class
// name and re-links the resolved-class cache across the whole graph.
func (g *Graph) RetargetRelationship(c *Class, name, targetClassName string) error {
	_, r := findDirectRel(c, name)
	if r == nil {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, name)
	}
	r.TargetClassName = targetClassName
	g.BindClasses()
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipRetargeted, ClassName: c.Name, Detail: name})
	return nil
}

// RecardinalityRelationship changes a direct relationship's low/high bounds.
func (g *Graph) RecardinalityRelationship(c *Class, name string, low LowCC, high HighCC) error {
	_, r := findDirectRel(c, name)
	if r == nil {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, name)
	}
	r.Low = low
	r.High = high
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipRecardinality, ClassName: c.Name, Detail: name})
	return nil
}

// SetRelationshipComposite toggles a direct relationship's composite,
// exclusive and dependent flags together; the composite-exclusive-dependent
// classification is evaluated as a unit, so the three flags change as one.
func (g *Graph) SetRelationshipComposite(c *Class, name string, composite, exclusive, dependent bool) error {
	_, r := findDirectRel(c, name)
	if r == nil {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, name)
	}
	r.Composite = composite
	r.Exclusive = exclusive
	r.Dependent = dependent
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipRecardinality, ClassName: c.Name, Detail: name})
	return nil
}

// SetRelationshipDescription changes a direct relationship's description.
func (g *Graph) SetRelationshipDescription(c *Class, name, desc string) error {
	_, r := findDirectRel(c, name)
	if r == nil {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, name)
	}
	r.Description = desc
	markOwner(c)
	g.emit(Change{Kind: ChangeRelationshipDescription, ClassName: c.Name, Detail: name})
	return nil
}

// ReplaceRelationship overwrites the declared shape of an existing direct
// relationship with r's fields, keeping the name and layout slot stable,
// and re-links target-class caches when the target changed. No-op when the
// declaration is identical.
func (g *Graph) ReplaceRelationship(c *Class, r *Relationship) error {
	_, cur := findDirectRel(c, r.Name)
	if cur == nil {
		return fmt.Errorf("%w: %q has no direct relationship %q", ErrSchemaViolation, c.Name, r.Name)
	}
	if cur.TargetClassName == r.TargetClassName && cur.Low == r.Low && cur.High == r.High &&
		cur.Composite == r.Composite && cur.Exclusive == r.Exclusive && cur.Dependent == r.Dependent &&
		cur.OrderedMulti == r.OrderedMulti && cur.Description == r.Description {
		return nil
	}
	kind := ChangeRelationshipRecardinality
	if cur.TargetClassName != r.TargetClassName {
		kind = ChangeRelationshipRetargeted
	}
	cur.TargetClassName = r.TargetClassName
	cur.Low, cur.High = r.Low, r.High
	cur.Composite, cur.Exclusive, cur.Dependent = r.Composite, r.Exclusive, r.Dependent
	cur.OrderedMulti, cur.Description = r.OrderedMulti, r.Description
	g.BindClasses()
	markOwner(c)
	g.emit(Change{Kind: kind, ClassName: c.Name, Detail: r.Name})
	return nil
}

func findDirectRel(c *Class, name string) (int, *Relationship) {
	for i, r := range c.DirectRelationships {
		if r.Name == name {
			return i, r
		}
	}
	return -1, nil
}
