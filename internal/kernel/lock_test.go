package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockConflictAndHandoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.xml")
	require.NoError(t, os.WriteFile(path, []byte("<oks-data/>"), 0o644))

	first, err := AcquireLock(path)
	require.NoError(t, err)

	sidecar := sidecarPath(path)
	contents, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "process ")
	assert.Contains(t, string(contents), "started by ")

	_, err = AcquireLock(path)
	require.ErrorIs(t, err, ErrFileLocked)
	assert.Contains(t, err.Error(), "process ", "the error must carry the holder's identity line")

	require.NoError(t, first.Release())
	_, statErr := os.Stat(sidecar)
	assert.True(t, os.IsNotExist(statErr), "release must remove the sidecar")

	second, err := AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquireLockIgnoresStaleSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.xml")
	sidecar := sidecarPath(path)
	require.NoError(t, os.WriteFile(sidecar, []byte("process 99999 on ghost started by nobody at 20200101T000000"), 0o644))

	l, err := AcquireLock(path)
	require.NoError(t, err, "a sidecar with no live OS lock holder is stale")

	contents, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.NotContains(t, string(contents), "ghost", "acquisition must rewrite the stale holder line")
	require.NoError(t, l.Release())
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp", ".oks-lock-foo.xml.txt"), sidecarPath("/tmp/foo.xml"))
}
