package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get("competitions.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put("competitions.json", []byte(`[]`)))
	require.NoError(t, c.Put("events/1.json", []byte(`[1]`)))
	require.NoError(t, c.Put("events/2.json", []byte(`[2]`)))

	val, ok, err := c.Get("competitions.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(val))

	keys, err := c.Keys("events/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"events/1.json", "events/2.json"}, keys)
}

func TestCachePersistsOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := DefaultConfig()
	cfg.Dir = dir

	c, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Put("matches/43/3.json", []byte(`{"ok":true}`)))
	require.NoError(t, c.Close())

	c, err = Open(cfg)
	require.NoError(t, err)
	defer c.Close()
	val, ok, err := c.Get("matches/43/3.json")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(val))
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
