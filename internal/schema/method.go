package schema

import "fmt"

// AddMethod declares a direct method on c. Methods carry no layout offset
// and do not participate in duplicate-name checking across the inheritance
// cone: they are DAL-facing declarations, not data slots.
func (g *Graph) AddMethod(c *Class, m *Method) error {
	for _, existing := range c.DirectMethods {
		if existing.Name == m.Name {
			return fmt.Errorf("%w: %q already declares method %q", ErrSchemaViolation, c.Name, m.Name)
		}
	}
	c.DirectMethods = append(c.DirectMethods, m)
	markOwner(c)
	g.emit(Change{Kind: ChangeMethodAdded, ClassName: c.Name, Detail: m.Name})
	return nil
}

// RemoveMethod removes a direct method by name.
func (g *Graph) RemoveMethod(c *Class, name string) error {
	for i, m := range c.DirectMethods {
		if m.Name == name {
			c.DirectMethods = append(c.DirectMethods[:i], c.DirectMethods[i+1:]...)
			markOwner(c)
			g.emit(Change{Kind: ChangeMethodRemoved, ClassName: c.Name, Detail: name})
			return nil
		}
	}
	return fmt.Errorf("%w: %q has no direct method %q", ErrSchemaViolation, c.Name, name)
}

// AddMethodImplementation appends an implementation to a direct method.
func (g *Graph) AddMethodImplementation(c *Class, methodName string, impl MethodImplementation) error {
	for _, m := range c.DirectMethods {
		if m.Name == methodName {
			m.Implementations = append(m.Implementations, impl)
			markOwner(c)
			return nil
		}
	}
	return fmt.Errorf("%w: %q has no direct method %q", ErrSchemaViolation, c.Name, methodName)
}
