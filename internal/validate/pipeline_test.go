package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/config"
)

const validSchemaXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-schema SYSTEM "oks.dtd">
<oks-schema>
<info name="t" type="schema" num-of-items="1" oks-format="schema" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<class name="Widget">
  <attribute name="label" type="string"/>
</class>
</oks-schema>
`

const validDataXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-data SYSTEM "oks-data.dtd">
<oks-data>
<info name="t-data" type="data" num-of-items="1" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include>
  <file path="schema.xml"/>
</include>
<obj class="Widget" id="w1">
  <attr name="label" type="string" val="gizmo"/>
</obj>
</oks-data>
`

const brokenDataXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE oks-data SYSTEM "oks-data.dtd">
<oks-data>
<info name="t-data" type="data" num-of-items="1" oks-format="data" oks-version="1" created-by="t" created-on="20260101T000000" creation-time="20260101T000000" last-modified-by="t" last-modified-on="20260101T000000" last-modification-time="20260101T000000"/>
<include>
  <file path="schema.xml"/>
</include>
<obj class="Widget" id="w1">
  <attr name="label" type="string" val="gizmo"/>
</obj>
<obj class="Widget" id="w1">
  <attr name="label" type="string" val="duplicate"/>
</obj>
</oks-data>
`

func writeRepo(t *testing.T, dataXML string) (dir string, dataPaths []string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.xml"), []byte(validSchemaXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.xml"), []byte(dataXML), 0o644))
	return dir, []string{filepath.Join(dir, "data.xml")}
}

func TestRunValidatesFilesConcurrently(t *testing.T) {
	_, paths := writeRepo(t, validDataXML)
	// Duplicate the single path several times to exercise more than one
	// worker actually doing work.
	paths = append(paths, paths[0], paths[0], paths[0])

	results := Run(config.Defaults(), paths, 3)
	require.Len(t, results, len(paths))
	for _, r := range results {
		assert.True(t, r.OK(), "expected %s to validate cleanly, got %v", r.Path, r.Err)
		assert.Equal(t, 0, r.Bind.Resolved) // Widget has no relationships to bind
	}
}

func TestRunReportsPerFileErrorWithoutAbortingOthers(t *testing.T) {
	_, goodPaths := writeRepo(t, validDataXML)
	_, badPaths := writeRepo(t, brokenDataXML)

	paths := append(goodPaths, badPaths...)
	results := Run(config.Defaults(), paths, 2)
	require.Len(t, results, 2)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Error(t, results[1].Err)
}

func TestRunPreservesResultOrder(t *testing.T) {
	_, p1 := writeRepo(t, validDataXML)
	_, p2 := writeRepo(t, brokenDataXML)
	_, p3 := writeRepo(t, validDataXML)

	paths := []string{p1[0], p2[0], p3[0]}
	results := Run(config.Defaults(), paths, 4)
	require.Len(t, results, 3)
	assert.Equal(t, paths[0], results[0].Path)
	assert.Equal(t, paths[1], results[1].Path)
	assert.Equal(t, paths[2], results[2].Path)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
}

func TestRunWorkersAreIsolated(t *testing.T) {
	_, paths := writeRepo(t, validDataXML)
	results := Run(config.Defaults(), []string{paths[0], paths[0]}, 2)
	require.Len(t, results, 2)
	// Each worker loaded its own private kernel, so an object created in
	// one worker's Widget#w1 must not leak diagnostics into the other.
	assert.True(t, results[0].OK())
	assert.True(t, results[1].OK())
}

func TestSummarize(t *testing.T) {
	_, good := writeRepo(t, validDataXML)
	_, bad := writeRepo(t, brokenDataXML)
	results := Run(config.Defaults(), []string{good[0], bad[0]}, 2)

	s := Summarize(results)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Contains(t, s.String(), "1 failed")
}

func TestRunDefaultsConcurrencyToOne(t *testing.T) {
	_, paths := writeRepo(t, validDataXML)
	results := Run(config.Defaults(), paths, 0)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
}
