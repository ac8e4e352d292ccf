package kernel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/config"
	"oks/internal/objstore"
	"oks/internal/schema"
	"oks/internal/value"
)

const testSchemaXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-schema SYSTEM "oks.dtd">
<oks-schema>
<info name="geometry" type="schema" num-of-items="2" oks-format="schema" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<class name="Detector" description="top level detector">
  <attribute name="name" type="string" is-not-null="yes"/>
</class>
<class name="Module">
  <attribute name="serial" type="string"/>
  <relationship name="parent" class-type="Detector" low-cc="zero" high-cc="one" is-composite="yes" is-exclusive="yes" is-dependent="yes"/>
</class>
</oks-schema>
`

const testDataXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-data SYSTEM "oks-data.dtd">
<oks-data>
<info name="geometry-data" type="data" num-of-items="2" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include>
  <file path="schema.xml"/>
</include>
<obj class="@Detector" id="det1">
  <attr name="name" type="string" val="CMS"/>
</obj>
<obj class="Detector" id="det2">
  <attr name="name" type="string" val="ATLAS"/>
</obj>
<obj class="Module" id="mod1">
  <attr name="serial" type="string" val="m-001"/>
  <rel name="parent" class="@Detector" id="det1"/>
</obj>
</oks-data>
`

func writeTestRepo(t *testing.T) (schemaPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	schemaPath = filepath.Join(dir, "schema.xml")
	dataPath = filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemaXML), 0o644))
	require.NoError(t, os.WriteFile(dataPath, []byte(testDataXML), 0o644))
	return schemaPath, dataPath
}

func TestLoadParsesSchemaAndDataWithIncludes(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)

	result, err := k.Load(dataPath, false)
	require.NoError(t, err)
	assert.Len(t, result.Visited, 2)

	det1, ok := k.Store().FindObject("Detector", "det1")
	require.True(t, ok)
	name, _, err := det1.GetAttribute("name")
	require.NoError(t, err)
	assert.Equal(t, "CMS", name.Str)

	mod1, ok := k.Store().FindObject("Module", "mod1")
	require.True(t, ok)
	parent, _, err := mod1.GetRelationship("parent")
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, parent.Kind, "bind pass must resolve the deferred reference")
	assert.Equal(t, "det1", parent.Object.ObjectID())
	assert.True(t, det1.IsCompositeParented())
}

func TestLoadDuplicatedObjectsPolicyReject(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.xml")
	dataPath := filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemaXML), 0o644))
	dup := `<?xml version="1.0" encoding="UTF-8"?>
<oks-data>
<info name="d" type="data" num-of-items="2" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include><file path="schema.xml"/></include>
<obj class="Detector" id="det1"><attr name="name" type="string" val="CMS"/></obj>
<obj class="Detector" id="det1"><attr name="name" type="string" val="CMS2"/></obj>
</oks-data>
`
	require.NoError(t, os.WriteFile(dataPath, []byte(dup), 0o644))

	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	assert.ErrorIs(t, err, ErrDuplicatedObject)
}

func TestReloadDiffsObjectChanges(t *testing.T) {
	schemaPath, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)
	_ = schemaPath

	det1Before, _ := k.Store().FindObject("Detector", "det1")

	updated := `<?xml version="1.0" encoding="UTF-8"?>
<oks-data>
<info name="geometry-data" type="data" num-of-items="2" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include><file path="schema.xml"/></include>
<obj class="@Detector" id="det1"><attr name="name" type="string" val="CMS-v2"/></obj>
<obj class="Module" id="mod1"><attr name="serial" type="string" val="m-001"/><rel name="parent" class="@Detector" id="det1"/></obj>
</oks-data>
`
	require.NoError(t, os.WriteFile(dataPath, []byte(updated), 0o644))

	result, err := k.Reload(dataPath)
	require.NoError(t, err)

	det1After, ok := k.Store().FindObject("Detector", "det1")
	require.True(t, ok)
	assert.Same(t, det1Before, det1After, "reload must keep pointer identity for an unchanged-identity object")

	_, ok = k.Store().FindObject("Detector", "det2")
	assert.False(t, ok, "det2 was dropped from the file and must be destroyed")

	var detReport, modReport *ClassReloadReport
	for i := range result.Objects {
		switch result.Objects[i].ClassName {
		case "Detector":
			detReport = &result.Objects[i]
		case "Module":
			modReport = &result.Objects[i]
		}
	}
	require.NotNil(t, detReport)
	assert.Contains(t, detReport.Modified, "det1")
	assert.Contains(t, detReport.Removed, "det2")
	if modReport != nil {
		assert.NotContains(t, modReport.Modified, "mod1", "mod1's relationship target did not change")
	}
}

func TestSaveRoundTripsCompactForm(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	require.NoError(t, k.Save(dataPath, false))

	k2 := New(config.Defaults(), os.Stderr)
	_, err = k2.Load(dataPath, false)
	require.NoError(t, err)

	mod1, ok := k2.Store().FindObject("Module", "mod1")
	require.True(t, ok)
	parent, _, err := mod1.GetRelationship("parent")
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, parent.Kind)
	assert.Equal(t, "det1", parent.Object.ObjectID())

	det2, ok := k2.Store().FindObject("Detector", "det2")
	require.True(t, ok)
	name, _, err := det2.GetAttribute("name")
	require.NoError(t, err)
	assert.Equal(t, "ATLAS", name.Str)
}

func TestLoadDuplicateIDAcrossInheritanceRejected(t *testing.T) {
	dir := t.TempDir()
	schemaXML := `<?xml version="1.0" encoding="UTF-8"?>
<oks-schema>
<info name="s" type="schema" num-of-items="3" oks-format="schema" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<class name="A" abstract="yes"/>
<class name="B"><superclass name="A"/></class>
<class name="C"><superclass name="A"/></class>
</oks-schema>
`
	dataXML := `<?xml version="1.0" encoding="UTF-8"?>
<oks-data>
<info name="d" type="data" num-of-items="2" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include><file path="schema.xml"/></include>
<obj class="B" id="x"/>
<obj class="C" id="x"/>
</oks-data>
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.xml"), []byte(schemaXML), 0o644))
	dataPath := filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(dataPath, []byte(dataXML), 0o644))

	cfg := config.Defaults()
	cfg.TestDuplicatedObjectsViaInheritance = true
	k := New(cfg, os.Stderr)

	_, err := k.Load(dataPath, false)
	require.ErrorIs(t, err, schema.ErrSchemaViolation)
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), "inheritance root A")
}

func TestLoadCircularIncludePolicies(t *testing.T) {
	writeCycle := func(t *testing.T) string {
		dir := t.TempDir()
		mk := func(name, include string) {
			xml := `<?xml version="1.0" encoding="UTF-8"?>
<oks-schema>
<info name="` + name + `" type="schema" num-of-items="0" oks-format="schema" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include><file path="` + include + `"/></include>
</oks-schema>
`
			require.NoError(t, os.WriteFile(filepath.Join(dir, name+".xml"), []byte(xml), 0o644))
		}
		mk("a", "b.xml")
		mk("b", "a.xml")
		return filepath.Join(dir, "a.xml")
	}

	t.Run("warn policy loads and reports", func(t *testing.T) {
		k := New(config.Defaults(), os.Stderr)
		_, err := k.Load(writeCycle(t), false)
		assert.NoError(t, err)
	})

	t.Run("strict policy raises", func(t *testing.T) {
		k := New(config.Defaults(), os.Stderr)
		k.SetIncludeCyclePolicy(IncludeCycleError)
		_, err := k.Load(writeCycle(t), false)
		assert.ErrorIs(t, err, ErrIncludeCycle)
	})
}

func TestSaveRefusesReadOnlyFile(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	abs, err := filepath.Abs(dataPath)
	require.NoError(t, err)
	f, ok := k.File(abs)
	require.True(t, ok)
	f.SetReadOnly(true)

	assert.ErrorIs(t, k.Save(dataPath, false), ErrFileReadOnly)
}

func TestReloadUnmodifiedFileIsNoOp(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	var notifications []objstore.Change
	k.Store().Subscribe(func(ch objstore.Change) { notifications = append(notifications, ch) })

	result, err := k.Reload(dataPath)
	require.NoError(t, err)

	assert.Empty(t, result.Objects, "no object may be reported created/modified/removed")
	assert.Empty(t, notifications, "an unchanged file must emit no change notifications")

	mod1, ok := k.Store().FindObject("Module", "mod1")
	require.True(t, ok)
	parent, _, err := mod1.GetRelationship("parent")
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, parent.Kind, "the re-read reference must be re-bound")
	det1, _ := k.Store().FindObject("Detector", "det1")
	assert.True(t, det1.IsCompositeParented(), "reverse composite entries must survive the reload")
	assert.Len(t, det1.ReverseRefs(), 1, "and must not be duplicated by it")
}

func TestUpdateFileStatusesDetectsExternalModification(t *testing.T) {
	schemaPath, dataPath := writeTestRepo(t)
	cfg := config.Defaults()
	cfg.Repository = filepath.Dir(schemaPath)
	k := New(cfg, os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(dataPath, future, future))

	changed, err := k.UpdateFileStatuses()
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, StateExternallyModified, changed[0].State())
}
