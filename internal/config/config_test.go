package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	c := NewConfig(filepath.Join(dir, "cfg"))
	require.NoError(t, c.Load())
	assert.Equal(t, ".log", c.Options.Ext)
}

func TestSaveIfWantOnlySavesWhenRequested(t *testing.T) {
	dir := t.TempDir()
	c := NewConfig(filepath.Join(dir, "cfg"))
	require.NoError(t, c.Load())

	require.NoError(t, c.SaveIfWant())
	_, err := os.Stat(filepath.Join(dir, "cfg", "options.json"))
	assert.Error(t, err)

	c.Options.Root = "/tmp/x"
	c.WantSave()
	require.NoError(t, c.SaveIfWant())

	c2 := NewConfig(filepath.Join(dir, "cfg"))
	require.NoError(t, c2.Load())
	assert.Equal(t, "/tmp/x", c2.Options.Root)
}
