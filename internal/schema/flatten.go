package schema

import "fmt"

// recomputeAll rebuilds every class's derived caches from scratch. It is
// invoked after any structural schema mutation
// rather than incrementally, trading some wasted work for the certainty
// that the flattened tables and layout offsets are always internally
// consistent — schema graphs are edited far less often than they are read.
func (g *Graph) recomputeAll() error {
	if err := g.checkNoCycles(); err != nil {
		return err
	}
	for _, c := range g.classes {
		c.superclasses = g.transitiveSuperclasses(c)
	}
	for _, c := range g.classes {
		c.subclasses = g.transitiveSubclasses(c)
	}
	for _, c := range g.classes {
		if err := g.flattenClass(c); err != nil {
			return err
		}
	}
	return nil
}

// checkNoCycles runs a DFS over the direct-superclass graph, maintaining a
// visited set and an active-path stack, the same shape the kernel uses for
// include-cycle detection.
func (g *Graph) checkNoCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.classes))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			cycle := append(append([]string(nil), stack...), name)
			return fmt.Errorf("%w: cyclic inheritance: %v", ErrSchemaViolation, cycle)
		}
		color[name] = gray
		stack = append(stack, name)
		if c, ok := g.classes[name]; ok {
			for _, super := range c.SuperclassNames {
				if err := visit(super); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for name := range g.classes {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// transitiveSuperclasses returns c's ancestors, nearest first, in
// topological order.
func (g *Graph) transitiveSuperclasses(c *Class) []*Class {
	seen := map[string]bool{c.Name: true}
	var order []*Class

	var visit func(name string)
	visit = func(name string) {
		sc, ok := g.classes[name]
		if !ok {
			return // unresolved superclass name; reported via bind-classes status
		}
		for _, superName := range sc.SuperclassNames {
			if !seen[superName] {
				seen[superName] = true
				if super, ok := g.classes[superName]; ok {
					order = append(order, super)
				}
				visit(superName)
			}
		}
	}
	for _, superName := range c.SuperclassNames {
		if !seen[superName] {
			seen[superName] = true
			if super, ok := g.classes[superName]; ok {
				order = append(order, super)
			}
			visit(superName)
		}
	}
	return order
}

// transitiveSubclasses returns every class that transitively inherits from c.
func (g *Graph) transitiveSubclasses(c *Class) []*Class {
	var out []*Class
	for _, other := range g.classes {
		if other.Name == c.Name {
			continue
		}
		for _, super := range other.superclasses {
			if super.Name == c.Name {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// flattenClass rebuilds c's flattened attribute/relationship tables and
// value-vector layout from its own direct members plus its (already
// recomputed) superclasses, most-derived first so a subclass's own
// attribute of the same name would be the one that wins — though a
// same-name redeclaration across the inheritance cone is itself a
// violation, detected below.
func (g *Graph) flattenClass(c *Class) error {
	seenAttr := map[string]string{} // name -> declaring class, for error messages
	seenRel := map[string]string{}

	var attrs []*Attribute
	var rels []*Relationship

	addAttr := func(a *Attribute, declaringClass string) error {
		if owner, dup := seenAttr[a.Name]; dup {
			return fmt.Errorf("%w: attribute %q declared in both %q and %q within the inheritance cone of %q",
				ErrSchemaViolation, a.Name, owner, declaringClass, c.Name)
		}
		if _, dup := seenRel[a.Name]; dup {
			return fmt.Errorf("%w: name %q used by both an attribute and a relationship in %q",
				ErrSchemaViolation, a.Name, c.Name)
		}
		seenAttr[a.Name] = declaringClass
		attrs = append(attrs, a)
		return nil
	}
	addRel := func(r *Relationship, declaringClass string) error {
		if owner, dup := seenRel[r.Name]; dup {
			return fmt.Errorf("%w: relationship %q declared in both %q and %q within the inheritance cone of %q",
				ErrSchemaViolation, r.Name, owner, declaringClass, c.Name)
		}
		if _, dup := seenAttr[r.Name]; dup {
			return fmt.Errorf("%w: name %q used by both an attribute and a relationship in %q",
				ErrSchemaViolation, r.Name, c.Name)
		}
		seenRel[r.Name] = declaringClass
		rels = append(rels, r)
		return nil
	}

	for _, a := range c.DirectAttributes {
		if err := addAttr(a, c.Name); err != nil {
			return err
		}
	}
	for _, r := range c.DirectRelationships {
		if err := addRel(r, c.Name); err != nil {
			return err
		}
	}
	for _, super := range c.superclasses {
		for _, a := range super.DirectAttributes {
			if err := addAttr(a, super.Name); err != nil {
				return err
			}
		}
		for _, r := range super.DirectRelationships {
			if err := addRel(r, super.Name); err != nil {
				return err
			}
		}
	}

	c.attrTable = attrs
	c.relTable = rels

	layout := make(map[string]int, len(attrs)+len(rels))
	offset := 0
	for _, a := range attrs {
		layout[a.Name] = offset
		offset++
	}
	for _, r := range rels {
		layout[r.Name] = offset
		offset++
	}
	c.layout = layout
	return nil
}

// BindClasses walks every relationship in the graph and re-links its
// resolved target-class pointer cache, returning a human-readable status of
// any relationship whose target class name is not (yet) declared. The
// status is reported rather than raised: multi-file loads routinely declare
// a target class in a later file.
func (g *Graph) BindClasses() string {
	var unresolved []string
	for _, c := range g.classes {
		for _, r := range c.DirectRelationships {
			target, ok := g.classes[r.TargetClassName]
			if !ok {
				r.targetClass = nil
				unresolved = append(unresolved, fmt.Sprintf("%s.%s -> %s", c.Name, r.Name, r.TargetClassName))
				continue
			}
			r.targetClass = target
		}
	}
	if len(unresolved) == 0 {
		return ""
	}
	msg := "unresolved relationship target classes:"
	for _, u := range unresolved {
		msg += "\n  " + u
	}
	return msg
}
