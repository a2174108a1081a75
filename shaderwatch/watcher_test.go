package shaderwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx"
	"github.com/celer/gx/native/nativetest"
)

func newWatcher(t *testing.T) (*Watcher, *gx.GX) {
	t.Helper()
	g, err := gx.New(nativetest.New(), gx.DefaultConfig())
	require.NoError(t, err)
	w, err := New(g)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, w.Close())
		g.Destroy()
	})
	return w, g
}

func writeSPIRV(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestWatcherReloadsChangedShader(t *testing.T) {
	w, g := newWatcher(t)
	path := filepath.Join(t.TempDir(), "mesh.spv")
	writeSPIRV(t, path, 64)

	h, err := g.LoadShader(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Watch(path, h))

	n, err := w.Poll()
	require.NoError(t, err)
	assert.Zero(t, n)

	writeSPIRV(t, path, 128)
	require.Eventually(t, func() bool { return w.Pending() > 0 }, 5*time.Second, 10*time.Millisecond)

	n, err = w.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint32(2), g.Shader(h).Version())
	assert.Zero(t, w.Pending())
}

func TestWatcherKeepsModuleOnBadFile(t *testing.T) {
	w, g := newWatcher(t)
	path := filepath.Join(t.TempDir(), "broken.spv")
	writeSPIRV(t, path, 16)

	h, err := g.LoadShader(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Watch(path, h))

	writeSPIRV(t, path, 7)
	require.Eventually(t, func() bool { return w.Pending() > 0 }, 5*time.Second, 10*time.Millisecond)

	n, err := w.Poll()
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint32(1), g.Shader(h).Version())
}

func TestWatcherIgnoresUnwatchedFiles(t *testing.T) {
	w, g := newWatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.spv")
	writeSPIRV(t, path, 16)

	h, err := g.LoadShader(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Watch(path, h))

	writeSPIRV(t, filepath.Join(dir, "other.spv"), 16)
	require.NoError(t, w.Unwatch(path))
	writeSPIRV(t, path, 32)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, w.Pending())
	n, err := w.Poll()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWatchRejectsEmptyHandle(t *testing.T) {
	w, _ := newWatcher(t)
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "x.spv"), gx.ShaderHandle{}))
}
