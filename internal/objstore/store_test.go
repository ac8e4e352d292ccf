package objstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/internal/schema"
	"oks/internal/value"
)

func newTestGraph(t *testing.T) (*schema.Graph, *schema.Class, *schema.Class) {
	t.Helper()
	g := schema.NewGraph()
	detector, err := g.CreateClass("Detector", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(detector, &schema.Attribute{Name: "name", Kind: value.KindString}))

	module, err := g.CreateClass("Module", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(module, &schema.Attribute{Name: "serial", Kind: value.KindString}))
	require.NoError(t, g.AddRelationship(module, &schema.Relationship{
		Name: "parent", TargetClassName: "Detector", High: schema.HighOne,
		Composite: true, Exclusive: true, Dependent: true,
	}))
	require.Empty(t, g.BindClasses())

	return g, detector, module
}

func TestStoreCreateAndFindObject(t *testing.T) {
	g, detector, _ := newTestGraph(t)
	s := NewStore(g)

	t.Run("create", func(t *testing.T) {
		o, err := s.CreateObject(detector.Name, "det1", nil)
		require.NoError(t, err)
		assert.Equal(t, "det1", o.ObjectID())
		assert.Equal(t, "Detector", o.ClassName())
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		_, err := s.CreateObject(detector.Name, "det1", nil)
		assert.ErrorIs(t, err, ErrDuplicateObject)
	})

	t.Run("find", func(t *testing.T) {
		o, ok := s.FindObject(detector.Name, "det1")
		assert.True(t, ok)
		assert.Equal(t, "det1", o.ObjectID())

		_, ok = s.FindObject(detector.Name, "nope")
		assert.False(t, ok)
	})
}

func TestStoreSetAttributeTypeCheckAndConversion(t *testing.T) {
	g, detector, _ := newTestGraph(t)
	s := NewStore(g)
	o, err := s.CreateObject(detector.Name, "det1", nil)
	require.NoError(t, err)

	t.Run("matching kind, no warning", func(t *testing.T) {
		warn, err := s.SetAttribute(o, "name", value.String("CMS"))
		require.NoError(t, err)
		assert.NoError(t, warn)

		got, err := o.Get("name")
		require.NoError(t, err)
		assert.Equal(t, "CMS", got.Str)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := s.SetAttribute(o, "nope", value.String("x"))
		assert.ErrorIs(t, err, ErrNoSuchMember)
	})
}

func TestStoreCompositeRelationshipMaintainsReverseRefs(t *testing.T) {
	g, detector, module := newTestGraph(t)
	s := NewStore(g)

	det, err := s.CreateObject(detector.Name, "det1", nil)
	require.NoError(t, err)
	mod, err := s.CreateObject(module.Name, "mod1", nil)
	require.NoError(t, err)

	t.Run("set establishes reverse ref", func(t *testing.T) {
		require.NoError(t, s.SetRelationship(mod, "parent", det, false))
		assert.True(t, det.IsCompositeParented())
		refs := det.ReverseRefs()
		require.Len(t, refs, 1)
		assert.Same(t, mod, refs[0].Owner)
	})

	t.Run("clearing removes reverse ref", func(t *testing.T) {
		require.NoError(t, s.SetRelationship(mod, "parent", nil, true))
		assert.False(t, det.IsCompositeParented())
	})
}

func TestStoreDestroyObjectUnbindsReferences(t *testing.T) {
	g, detector, module := newTestGraph(t)
	s := NewStore(g)

	det, err := s.CreateObject(detector.Name, "det1", nil)
	require.NoError(t, err)
	mod, err := s.CreateObject(module.Name, "mod1", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetRelationship(mod, "parent", det, false))

	require.NoError(t, s.DestroyObject(det, false))

	got, err := mod.Get("parent")
	require.NoError(t, err)
	assert.Equal(t, value.KindUID, got.Kind, "unbind_all_rels must convert the dangling forward edge to an unresolved-uid")
	assert.Equal(t, "det1", got.UID.ID)
}

func TestStoreRenameObjectUniquenessAcrossCone(t *testing.T) {
	g, detector, _ := newTestGraph(t)
	s := NewStore(g)

	a, err := s.CreateObject(detector.Name, "a", nil)
	require.NoError(t, err)
	_, err = s.CreateObject(detector.Name, "b", nil)
	require.NoError(t, err)

	t.Run("collision rejected", func(t *testing.T) {
		err := s.RenameObject(a, "b")
		assert.ErrorIs(t, err, ErrDuplicateObject)
	})

	t.Run("rename succeeds and is findable under new id", func(t *testing.T) {
		require.NoError(t, s.RenameObject(a, "c"))
		_, ok := s.FindObject(detector.Name, "a")
		assert.False(t, ok)
		found, ok := s.FindObject(detector.Name, "c")
		assert.True(t, ok)
		assert.Same(t, a, found)
	})
}

func TestStoreDestroyCompositeParentClearsReverseRefs(t *testing.T) {
	g, detector, module := newTestGraph(t)
	s := NewStore(g)

	det, err := s.CreateObject(detector.Name, "slotX", nil)
	require.NoError(t, err)
	mod, err := s.CreateObject(module.Name, "chassis1", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetRelationship(mod, "parent", det, false))
	require.True(t, det.IsCompositeParented())

	// Destroying the owner removes the forward edge and with it the
	// reverse entry on the target; the target is then free for fast delete.
	require.NoError(t, s.DestroyObject(mod, false))
	assert.Empty(t, det.ReverseRefs())
	assert.False(t, det.IsCompositeParented())
	require.NoError(t, s.DestroyObject(det, true))
}

func TestStoreDuplicateIDAcrossInheritanceCone(t *testing.T) {
	g := schema.NewGraph()
	a, err := g.CreateClass("A", true, "")
	require.NoError(t, err)
	b, err := g.CreateClass("B", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddSuperclass(b, a.Name))
	c, err := g.CreateClass("C", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddSuperclass(c, a.Name))

	s := NewStore(g)
	s.TestDuplicatesViaInheritance = true

	_, err = s.CreateObject("B", "x", nil)
	require.NoError(t, err)

	_, err = s.CreateObject("C", "x", nil)
	require.ErrorIs(t, err, schema.ErrSchemaViolation)
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), "inheritance root A")

	s.TestDuplicatesViaInheritance = false
	_, err = s.CreateObject("C", "x", nil)
	assert.NoError(t, err, "without the toggle, ids are scoped per class")
}

func TestStoreAbstractClassCannotOwnObjects(t *testing.T) {
	g := schema.NewGraph()
	_, err := g.CreateClass("A", true, "")
	require.NoError(t, err)

	s := NewStore(g)
	_, err = s.CreateObject("A", "x", nil)
	assert.ErrorIs(t, err, schema.ErrSchemaViolation)
}

func TestStoreRemapsSlotsOnSchemaChange(t *testing.T) {
	g, detector, _ := newTestGraph(t)
	s := NewStore(g)

	o, err := s.CreateObject(detector.Name, "det1", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(o, "name", value.String("CMS"))
	require.NoError(t, err)

	t.Run("added attribute is addressable, survivors keep values", func(t *testing.T) {
		require.NoError(t, g.AddAttribute(detector, &schema.Attribute{Name: "rating", Kind: value.KindS32}))

		name, err := o.Get("name")
		require.NoError(t, err)
		assert.Equal(t, "CMS", name.Str)

		rating, err := o.Get("rating")
		require.NoError(t, err)
		assert.True(t, rating.IsNull())
		_, err = s.SetAttribute(o, "rating", value.Int(value.KindS32, 5))
		require.NoError(t, err)
	})

	t.Run("removed attribute drops, the rest follow their slots", func(t *testing.T) {
		require.NoError(t, g.RemoveAttribute(detector, "name"))

		_, err := o.Get("name")
		assert.ErrorIs(t, err, ErrNoSuchMember)

		rating, err := o.Get("rating")
		require.NoError(t, err)
		assert.Equal(t, int64(5), rating.I)
	})

	t.Run("renamed attribute keeps its value under the new name", func(t *testing.T) {
		require.NoError(t, g.RenameAttribute(detector, "rating", "score"))

		score, err := o.Get("score")
		require.NoError(t, err)
		assert.Equal(t, int64(5), score.I)
	})
}

func TestStoreRemapsSubclassOnSuperclassChange(t *testing.T) {
	g := schema.NewGraph()
	base, err := g.CreateClass("Base", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(base, &schema.Attribute{Name: "tag", Kind: value.KindString}))
	sub, err := g.CreateClass("Sub", false, "")
	require.NoError(t, err)
	require.NoError(t, g.AddAttribute(sub, &schema.Attribute{Name: "own", Kind: value.KindString}))

	s := NewStore(g)
	o, err := s.CreateObject("Sub", "s1", nil)
	require.NoError(t, err)
	_, err = s.SetAttribute(o, "own", value.String("kept"))
	require.NoError(t, err)

	require.NoError(t, g.AddSuperclass(sub, "Base"))

	own, err := o.Get("own")
	require.NoError(t, err)
	assert.Equal(t, "kept", own.Str)

	_, err = s.SetAttribute(o, "tag", value.String("inherited"))
	require.NoError(t, err)
	tag, err := o.Get("tag")
	require.NoError(t, err)
	assert.Equal(t, "inherited", tag.Str)

	// And an attribute added to the ancestor reaches resident subclass
	// objects too.
	require.NoError(t, g.AddAttribute(base, &schema.Attribute{Name: "extra", Kind: value.KindS32}))
	extra, err := o.Get("extra")
	require.NoError(t, err)
	assert.True(t, extra.IsNull())
	own, err = o.Get("own")
	require.NoError(t, err)
	assert.Equal(t, "kept", own.Str)
}
