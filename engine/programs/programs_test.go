package programs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded(t *testing.T) {
	s := Embedded()
	assert.Contains(t, s.Kernel, "fn compute_surface")
	assert.Contains(t, s.Vertex, "vertex_coord")
	assert.Contains(t, s.Vertex, "p_matrix")
	assert.Contains(t, s.Fragment, "@fragment")
}

func TestLoadEmptyDirIsEmbedded(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Embedded(), s)
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		KernelFile:   "kernel",
		VertexFile:   "vertex",
		FragmentFile: "fragment",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Sources{Kernel: "kernel", Vertex: "vertex", Fragment: "fragment"}, s)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KernelFile), []byte("kernel"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, VertexFile)
}
