package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/config"
	"oks/internal/value"
)

func TestCloseDestroysDeclarationsAndOrphanedIncludes(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)

	abs, err := filepath.Abs(dataPath)
	require.NoError(t, err)
	require.NoError(t, k.Close(abs))

	_, ok := k.Store().FindObject("Detector", "det1")
	assert.False(t, ok)
	_, ok = k.Store().FindObject("Module", "mod1")
	assert.False(t, ok)

	// The schema file was only ever pulled in by the data file's include,
	// so closing the data file orphans and closes it too.
	_, ok = k.Schema().FindClass("Detector")
	assert.False(t, ok)
	assert.Empty(t, k.Files())
}

func TestCloseKeepsSharedInclude(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	otherData := filepath.Join(filepath.Dir(dataPath), "other.xml")
	other := `<?xml version="1.0" encoding="UTF-8"?>
<oks-data>
<info name="other" type="data" num-of-items="1" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include><file path="schema.xml"/></include>
<obj class="Detector" id="det9"><attr name="name" type="string" val="LHCb"/></obj>
</oks-data>
`
	require.NoError(t, os.WriteFile(otherData, []byte(other), 0o644))

	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, true)
	require.NoError(t, err)
	_, err = k.Load(otherData, false)
	require.NoError(t, err)

	require.NoError(t, k.Close(dataPath))

	_, ok := k.Schema().FindClass("Detector")
	assert.True(t, ok, "the schema is still included by the surviving data file")
	_, ok = k.Store().FindObject("Detector", "det9")
	assert.True(t, ok)
	_, ok = k.Store().FindObject("Detector", "det1")
	assert.False(t, ok)
}

func TestCreateFileAndSaveNewDataFile(t *testing.T) {
	schemaPath, _ := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(schemaPath, true)
	require.NoError(t, err)

	newPath := filepath.Join(filepath.Dir(schemaPath), "fresh.xml")
	f, err := k.CreateFile(newPath, KindData)
	require.NoError(t, err)
	assert.Equal(t, StateCreatedUnsaved, f.State())
	f.Includes = []string{"schema.xml"}

	o, err := k.Store().CreateObject("Detector", "d9", f)
	require.NoError(t, err)
	_, err = k.Store().SetAttribute(o, "name", value.String("ALICE"))
	require.NoError(t, err)
	f.DeclareObject("Detector", "d9")

	require.NoError(t, k.Save(newPath, false))
	assert.Equal(t, StateLoadedClean, f.State())

	k2 := New(config.Defaults(), os.Stderr)
	_, err = k2.Load(newPath, false)
	require.NoError(t, err)
	got, ok := k2.Store().FindObject("Detector", "d9")
	require.True(t, ok)
	name, _, err := got.GetAttribute("name")
	require.NoError(t, err)
	assert.Equal(t, "ALICE", name.Str)
}

func TestSavePreservesLogicalNameAndType(t *testing.T) {
	_, dataPath := writeTestRepo(t)
	k := New(config.Defaults(), os.Stderr)
	_, err := k.Load(dataPath, false)
	require.NoError(t, err)
	require.NoError(t, k.Save(dataPath, false))

	k2 := New(config.Defaults(), os.Stderr)
	_, err = k2.Load(dataPath, false)
	require.NoError(t, err)
	abs, _ := filepath.Abs(dataPath)
	f, ok := k2.File(abs)
	require.True(t, ok)
	assert.Equal(t, "geometry-data", f.LogicalName)
	assert.Equal(t, "data", f.TypeTag)
}
