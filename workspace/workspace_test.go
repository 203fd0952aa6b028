package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

func TestPrepare_Fresh(t *testing.T) {
	w := NewInMemory()
	require.NoError(t, w.Prepare("input"))

	ok, err := w.Exists("input")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrepare_ResetWipesStaleDirectory(t *testing.T) {
	w := NewInMemory()
	require.NoError(t, w.Prepare("input"))
	_, err := w.WriteFile("input", "stale.xlsm", []byte("old"))
	require.NoError(t, err)

	require.NoError(t, w.Prepare("input"))

	names, err := w.List("input")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPrepare_StrictConflict(t *testing.T) {
	w := NewInMemory(WithPolicy(PolicyStrict))
	assert.Equal(t, PolicyStrict, w.Policy())
	require.NoError(t, w.Prepare("output"))

	err := w.Prepare("output")
	require.Error(t, err)
	assert.Equal(t, mserrors.CodeFilesystemConflict, mserrors.CodeOf(err))
}

func TestWriteReadList(t *testing.T) {
	w := NewInMemory()
	require.NoError(t, w.Prepare("out"))

	_, err := w.WriteFile("out", "b.xlsm", []byte("B"))
	require.NoError(t, err)
	_, err = w.WriteFile("out", "a.xlsm", []byte("A"))
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(w.fs, "out/"+TempPrefix+"c.xlsm", []byte("tmp"), 0o644))
	require.NoError(t, w.fs.MkdirAll("out/nested", 0o755))

	names, err := w.List("out")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xlsm", "b.xlsm"}, names)

	data, err := w.ReadFile("out", "a.xlsm")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
}

func TestList_MissingDirectory(t *testing.T) {
	names, err := NewInMemory().List("nope")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRemove(t *testing.T) {
	w := NewInMemory()
	require.NoError(t, w.Prepare("in"))
	_, err := w.WriteFile("in", "x", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, w.Remove("in"))
	ok, err := w.Exists("in")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, w.Remove("in"), "removing twice is fine")
}

func TestWriteFile_RejectsUnsafeNames(t *testing.T) {
	w := NewInMemory()
	require.NoError(t, w.Prepare("in"))

	for _, name := range []string{"", "..", "a/b.xlsm", `a\b.xlsm`, TempPrefix + "x"} {
		_, err := w.WriteFile("in", name, []byte("x"))
		assert.Error(t, err, name)
		assert.Equal(t, mserrors.CodeInvalidInput, mserrors.CodeOf(err), name)
	}
}

func TestNewOS(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	w, err := NewOS(root)
	require.NoError(t, err)

	require.NoError(t, w.Prepare("input"))
	p, err := w.WriteFile("input", "doc.xlsm", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "input", "doc.xlsm"), p)

	onDisk, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "data", string(onDisk))

	require.NoError(t, w.Remove("input"))
	_, err = os.Stat(filepath.Join(root, "input"))
	assert.True(t, os.IsNotExist(err))
}
