package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/internal/value"
)

func TestGraphCreateClass(t *testing.T) {
	g := NewGraph()

	t.Run("create and find", func(t *testing.T) {
		c, err := g.CreateClass("Detector", false, "a detector")
		require.NoError(t, err)
		assert.Equal(t, "Detector", c.Name)

		found, ok := g.FindClass("Detector")
		assert.True(t, ok)
		assert.Same(t, c, found)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := g.CreateClass("Detector", false, "again")
		assert.ErrorIs(t, err, ErrSchemaViolation)
	})

	t.Run("not found", func(t *testing.T) {
		_, ok := g.FindClass("Nonexistent")
		assert.False(t, ok)
	})
}

func TestGraphDeleteClass(t *testing.T) {
	g := NewGraph()
	base, err := g.CreateClass("Base", false, "")
	require.NoError(t, err)
	sub, err := g.CreateClass("Sub", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddSuperclass(sub, base.Name))

	t.Run("refuses while subclasses exist", func(t *testing.T) {
		err := g.DeleteClass("Base")
		assert.ErrorIs(t, err, ErrSchemaViolation)
	})

	t.Run("succeeds once orphaned", func(t *testing.T) {
		require.NoError(t, g.RemoveSuperclass(sub, base.Name))
		require.NoError(t, g.DeleteClass("Base"))
		_, ok := g.FindClass("Base")
		assert.False(t, ok)
	})
}

func TestGraphInheritanceFlattening(t *testing.T) {
	g := NewGraph()

	animal, err := g.CreateClass("Animal", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(animal, &Attribute{Name: "weight", Kind: value.KindDouble}))

	mammal, err := g.CreateClass("Mammal", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddSuperclass(mammal, "Animal"))
	require.NoError(t, g.AddAttribute(mammal, &Attribute{Name: "furColor", Kind: value.KindString}))

	dog, err := g.CreateClass("Dog", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddSuperclass(dog, "Mammal"))
	require.NoError(t, g.AddAttribute(dog, &Attribute{Name: "breed", Kind: value.KindString}))

	t.Run("transitive superclasses in topological order", func(t *testing.T) {
		names := classNames(dog.Superclasses())
		assert.Equal(t, []string{"Mammal", "Animal"}, names)
	})

	t.Run("flattened attribute table includes inherited", func(t *testing.T) {
		_, ok := dog.FindAttribute("weight")
		assert.True(t, ok)
		_, ok = dog.FindAttribute("furColor")
		assert.True(t, ok)
		_, ok = dog.FindAttribute("breed")
		assert.True(t, ok)
	})

	t.Run("layout offsets are stable and unique", func(t *testing.T) {
		seen := map[int]bool{}
		for _, a := range dog.AttributeTable() {
			off := dog.Layout(a.Name)
			assert.GreaterOrEqual(t, off, 0)
			assert.False(t, seen[off], "duplicate offset %d", off)
			seen[off] = true
		}
	})

	t.Run("transitive subclass tracking", func(t *testing.T) {
		names := classNames(animal.Subclasses())
		assert.ElementsMatch(t, []string{"Mammal", "Dog"}, names)
	})

	t.Run("is subclass of", func(t *testing.T) {
		assert.True(t, dog.IsSubclassOf("Animal"))
		assert.True(t, dog.IsSubclassOf("Dog"))
		assert.False(t, animal.IsSubclassOf("Dog"))
	})
}

func TestGraphDuplicateAttributeAcrossInheritanceRejected(t *testing.T) {
	g := NewGraph()
	base, err := g.CreateClass("Base", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(base, &Attribute{Name: "x", Kind: value.KindS32}))

	sub, err := g.CreateClass("Sub", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddSuperclass(sub, "Base"))

	err = g.AddAttribute(sub, &Attribute{Name: "x", Kind: value.KindS32})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	assert.Empty(t, sub.DirectAttributes, "rejected mutation must roll back")
}

func TestGraphAttributeVsRelationshipNameCollision(t *testing.T) {
	g := NewGraph()
	c, err := g.CreateClass("C", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(c, &Attribute{Name: "link", Kind: value.KindString}))

	other, err := g.CreateClass("Other", false, "")
	require.NoError(t, err)

	err = g.AddRelationship(c, &Relationship{Name: "link", TargetClassName: other.Name, High: HighOne})
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestGraphCyclicInheritanceRejected(t *testing.T) {
	g := NewGraph()
	a, err := g.CreateClass("A", false, "")
	require.NoError(t, err)
	b, err := g.CreateClass("B", false, "")
	require.NoError(t, err)

	require.NoError(t, g.AddSuperclass(b, a.Name))
	err = g.AddSuperclass(a, b.Name)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestGraphRenameAttribute(t *testing.T) {
	g := NewGraph()
	c, err := g.CreateClass("C", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(c, &Attribute{Name: "old", Kind: value.KindString}))

	require.NoError(t, g.RenameAttribute(c, "old", "new"))
	_, ok := c.FindAttribute("old")
	assert.False(t, ok)
	_, ok = c.FindAttribute("new")
	assert.True(t, ok)
}

func TestGraphBindRelationshipTarget(t *testing.T) {
	g := NewGraph()
	owner, err := g.CreateClass("Owner", false, "")
	require.NoError(t, err)

	t.Run("unresolved target reported, not fatal", func(t *testing.T) {
		require.NoError(t, g.AddRelationship(owner, &Relationship{
			Name: "widget", TargetClassName: "Widget", High: HighOne,
		}))
		status := g.BindClasses()
		assert.Contains(t, status, "Widget")

		r, ok := owner.FindRelationship("widget")
		require.True(t, ok)
		_, resolved := r.TargetClass()
		assert.False(t, resolved)
	})

	t.Run("resolves once target exists", func(t *testing.T) {
		_, err := g.CreateClass("Widget", false, "")
		require.NoError(t, err)
		status := g.BindClasses()
		assert.Empty(t, status)

		r, ok := owner.FindRelationship("widget")
		require.True(t, ok)
		target, resolved := r.TargetClass()
		require.True(t, resolved)
		assert.Equal(t, "Widget", target.Name)
	})
}

func TestGraphSubscription(t *testing.T) {
	g := NewGraph()
	var kinds []ChangeKind
	g.Subscribe(func(ch Change) { kinds = append(kinds, ch.Kind) })

	_, err := g.CreateClass("C", false, "")
	require.NoError(t, err)

	require.Contains(t, kinds, ChangeClassCreated)
}

func classNames(classes []*Class) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name
	}
	return names
}
