package resolver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSaveAndLoadRoundTrips(t *testing.T) {
	c := NewCache()
	mc := &moduleCache{entries: map[uint64]*CoveredSymbol{}}
	c.modules["app"] = mc
	c.insertSentinels(mc, &CoveredSymbol{Name: "foo", File: "foo.c", Line: 42, Offset: 0x1000, Start: 0x1000, End: 0x1010, Status: Resolved})

	path := filepath.Join(t.TempDir(), "cache.gob")
	require.NoError(t, c.SaveToFile(path))

	loaded := NewCache()
	require.NoError(t, loaded.LoadFromFile(path))

	entry, hit, _, _ := loaded.lookup("app", 0x1000)
	assert.True(t, hit)
	assert.Equal(t, "foo", entry.Name)
	assert.Equal(t, Resolved, entry.Status)
}

func TestCacheLoadMissingFileIsNotError(t *testing.T) {
	c := NewCache()
	assert.NoError(t, c.LoadFromFile(filepath.Join(t.TempDir(), "missing.gob")))
}
