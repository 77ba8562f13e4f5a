package featurecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openMem(t)

	key := []byte("k1")
	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	rows := [][]float64{{1, 2, 3}, {4.5, 0, -1}}
	require.NoError(t, c.Put(key, rows))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rows, got)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Purge())
	n, err = c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeyTracksFileAndSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.wav")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	k1, err := Key(path, 1024, 10)
	require.NoError(t, err)
	k2, err := Key(path, 1024, 10)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 8)

	k3, err := Key(path, 512, 10)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	k4, err := Key(path, 1024, 5)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	k5, err := Key(path, 1024, 10)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k5)

	_, err = Key(filepath.Join(t.TempDir(), "missing.wav"), 1024, 10)
	assert.Error(t, err)
}

func TestOnDiskCachePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put([]byte("x"), [][]float64{{7}}))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get([]byte("x"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, [][]float64{{7}}, got)
}
