package schema

import (
	"fmt"
	"strings"

	"oks/internal/value"
)

// AddAttribute declares a new direct attribute on c and rebuilds derived
// tables. The mutation rolls back (c is left unchanged) if the name would
// collide within the flattened table.
func (g *Graph) AddAttribute(c *Class, a *Attribute) error {
	a.Class = c
	c.DirectAttributes = append(c.DirectAttributes, a)
	if err := g.recomputeAll(); err != nil {
		c.DirectAttributes = c.DirectAttributes[:len(c.DirectAttributes)-1]
		_ = g.recomputeAll()
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeAdded, ClassName: c.Name, Detail: a.Name})
	return nil
}

// RemoveAttribute removes a direct attribute by name from c.
func (g *Graph) RemoveAttribute(c *Class, name string) error {
	idx, a := findDirectAttr(c, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	c.DirectAttributes = append(c.DirectAttributes[:idx], c.DirectAttributes[idx+1:]...)
	if err := g.recomputeAll(); err != nil {
		c.DirectAttributes = append(c.DirectAttributes[:idx:idx], append([]*Attribute{a}, c.DirectAttributes[idx:]...)...)
		_ = g.recomputeAll()
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeRemoved, ClassName: c.Name, Detail: name})
	return nil
}

// RenameAttribute renames a direct attribute, checking uniqueness in the
// flattened table under the new name before committing.
func (g *Graph) RenameAttribute(c *Class, oldName, newName string) error {
	_, a := findDirectAttr(c, oldName)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, oldName)
	}
	prev := a.Name
	a.Name = newName
	if err := g.recomputeAll(); err != nil {
		a.Name = prev
		_ = g.recomputeAll()
		return err
	}
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeRenamed, ClassName: c.Name, Detail: prev + " -> " + newName})
	return nil
}

// RetypeAttribute changes a direct attribute's declared Kind.
func (g *Graph) RetypeAttribute(c *Class, name string, kind value.Kind) error {
	_, a := findDirectAttr(c, name)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	a.Kind = kind
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeRetyped, ClassName: c.Name, Detail: name})
	return nil
}

// RerangeAttribute replaces a direct attribute's Range.
func (g *Graph) RerangeAttribute(c *Class, name string, rng *value.Range) error {
	_, a := findDirectAttr(c, name)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	a.Range = rng
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeReranged, ClassName: c.Name, Detail: name})
	return nil
}

// SetAttributeDisplayFormat changes a direct attribute's integer display format.
func (g *Graph) SetAttributeDisplayFormat(c *Class, name string, f value.IntDisplayFormat) error {
	_, a := findDirectAttr(c, name)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	a.IntFormat = f
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeReformatted, ClassName: c.Name, Detail: name})
	return nil
}

// SetAttributeDefault changes a direct attribute's default text.
func (g *Graph) SetAttributeDefault(c *Class, name, defaultText string) error {
	_, a := findDirectAttr(c, name)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	a.DefaultText = defaultText
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeInited, ClassName: c.Name, Detail: name})
	return nil
}

// SetAttributeNonNull toggles a direct attribute's non-null flag.
func (g *Graph) SetAttributeNonNull(c *Class, name string, nonNull bool) error {
	_, a := findDirectAttr(c, name)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	a.NonNull = nonNull
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeNoNull, ClassName: c.Name, Detail: name})
	return nil
}

// SetAttributeDescription changes a direct attribute's description.
func (g *Graph) SetAttributeDescription(c *Class, name, desc string) error {
	_, a := findDirectAttr(c, name)
	if a == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, name)
	}
	a.Description = desc
	markOwner(c)
	g.emit(Change{Kind: ChangeAttributeDescription, ClassName: c.Name, Detail: name})
	return nil
}

// ReplaceAttribute overwrites the declared shape of an existing direct
// attribute with a's fields, keeping the name — and therefore its layout
// slot and resident objects' values — stable. Emits the most specific
// change kind that applies, or nothing when the declaration is identical.
func (g *Graph) ReplaceAttribute(c *Class, a *Attribute) error {
	_, cur := findDirectAttr(c, a.Name)
	if cur == nil {
		return fmt.Errorf("%w: %q has no direct attribute %q", ErrSchemaViolation, c.Name, a.Name)
	}
	kind := ChangeAttributeDescription
	switch {
	case cur.Kind != a.Kind || cur.Multi != a.Multi || cur.OrderedMulti != a.OrderedMulti:
		kind = ChangeAttributeRetyped
	case rangeSource(cur.Range) != rangeSource(a.Range):
		kind = ChangeAttributeReranged
	case cur.IntFormat != a.IntFormat:
		kind = ChangeAttributeReformatted
	case cur.DefaultText != a.DefaultText:
		kind = ChangeAttributeInited
	case cur.NonNull != a.NonNull:
		kind = ChangeAttributeNoNull
	case cur.Description == a.Description:
		return nil
	}
	cur.Kind, cur.Range, cur.IntFormat = a.Kind, a.Range, a.IntFormat
	cur.Multi, cur.NonNull, cur.OrderedMulti = a.Multi, a.NonNull, a.OrderedMulti
	cur.DefaultText, cur.Description = a.DefaultText, a.Description
	markOwner(c)
	g.emit(Change{Kind: kind, ClassName: c.Name, Detail: a.Name})
	return nil
}

// rangeSource renders a range back to its declaration text for equality
// checks; nil and the empty range compare equal.
func rangeSource(r *value.Range) string {
	if r == nil {
		return ""
	}
	if r.Kind == value.KindEnum {
		return strings.Join(r.Labels, ",")
	}
	return r.Source
}

func findDirectAttr(c *Class, name string) (int, *Attribute) {
	for i, a := range c.DirectAttributes {
		if a.Name == name {
			return i, a
		}
	}
	return -1, nil
}
