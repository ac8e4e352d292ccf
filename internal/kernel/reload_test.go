package kernel

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/config"
	"oks/internal/objstore"
	"oks/internal/value"
)

const reloadedSchemaWithRating = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-schema SYSTEM "oks.dtd">
<oks-schema>
<info name="geometry" type="schema" num-of-items="2" oks-format="schema" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<class name="Detector" description="top level detector">
  <attribute name="name" type="string" is-not-null="yes"/>
  <attribute name="rating" type="s32"/>
</class>
<class name="Module">
  <attribute name="serial" type="string"/>
  <relationship name="parent" class-type="Detector" low-cc="zero" high-cc="one" is-composite="yes" is-exclusive="yes" is-dependent="yes"/>
</class>
</oks-schema>
`

const reloadedSchemaWithoutName = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-schema SYSTEM "oks.dtd">
<oks-schema>
<info name="geometry" type="schema" num-of-items="2" oks-format="schema" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<class name="Detector" description="top level detector">
  <attribute name="rating" type="s32"/>
</class>
<class name="Module">
  <attribute name="serial" type="string"/>
  <relationship name="parent" class-type="Detector" low-cc="zero" high-cc="one" is-composite="yes" is-exclusive="yes" is-dependent="yes"/>
</class>
</oks-schema>
`

func TestReloadSchemaAddsAttributeWithResidentObjects(t *testing.T) {
	schemaPath, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	det1, ok := k.Store().FindObject("Detector", "det1")
	require.True(t, ok)

	require.NoError(t, os.WriteFile(schemaPath, []byte(reloadedSchemaWithRating), 0o644))
	result, err := k.Reload(schemaPath)
	require.NoError(t, err)
	assert.Empty(t, result.ClassesAdded)
	assert.Empty(t, result.ClassesRemoved)

	// The surviving attribute keeps its value through the layout rebuild.
	name, _, err := det1.GetAttribute("name")
	require.NoError(t, err)
	assert.Equal(t, "CMS", name.Str)

	// The new attribute is addressable on the pre-existing object.
	rating, _, err := det1.GetAttribute("rating")
	require.NoError(t, err)
	assert.True(t, rating.IsNull())
	_, err = k.Store().SetAttribute(det1, "rating", value.Int(value.KindS32, 7))
	require.NoError(t, err)

	// A class the re-read left untouched keeps its objects' values intact.
	mod1, ok := k.Store().FindObject("Module", "mod1")
	require.True(t, ok)
	parent, _, err := mod1.GetRelationship("parent")
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, parent.Kind)
	assert.Equal(t, "det1", parent.Object.ObjectID())
}

func TestReloadSchemaRemovesAttributeWithResidentObjects(t *testing.T) {
	schemaPath, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	det1, ok := k.Store().FindObject("Detector", "det1")
	require.True(t, ok)

	require.NoError(t, os.WriteFile(schemaPath, []byte(reloadedSchemaWithRating), 0o644))
	_, err = k.Reload(schemaPath)
	require.NoError(t, err)
	_, err = k.Store().SetAttribute(det1, "rating", value.Int(value.KindS32, 7))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(schemaPath, []byte(reloadedSchemaWithoutName), 0o644))
	_, err = k.Reload(schemaPath)
	require.NoError(t, err)

	_, _, err = det1.GetAttribute("name")
	assert.ErrorIs(t, err, objstore.ErrNoSuchMember)

	rating, _, err := det1.GetAttribute("rating")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rating.I, "a surviving attribute's value must follow its slot through the removal")
}

func TestReloadUnchangedSchemaKeepsValues(t *testing.T) {
	schemaPath, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	result, err := k.Reload(schemaPath)
	require.NoError(t, err)
	assert.Empty(t, result.ClassesAdded)
	assert.Empty(t, result.ClassesRemoved)

	det1, ok := k.Store().FindObject("Detector", "det1")
	require.True(t, ok)
	name, _, err := det1.GetAttribute("name")
	require.NoError(t, err)
	assert.Equal(t, "CMS", name.Str)

	mod1, _ := k.Store().FindObject("Module", "mod1")
	parent, _, err := mod1.GetRelationship("parent")
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, parent.Kind)
	det1Again, _ := k.Store().FindObject("Detector", "det1")
	assert.Len(t, det1Again.ReverseRefs(), 1, "an identical re-read must not disturb reverse composite entries")
}
