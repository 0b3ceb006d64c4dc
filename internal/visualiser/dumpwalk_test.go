package visualiser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDumpFileGroupsOffsetsByModule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.log")
	require.NoError(t, os.WriteFile(path, []byte("app\t/path/app\n\t+0x100\t1\n\t+0x110\t2\n"), 0644))

	mods, err := LoadDumpFile(path)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "app", mods[0].Name)
	assert.Equal(t, "/path/app", mods[0].Path)
	assert.Equal(t, []uint64{0x100, 0x110}, mods[0].Offsets)
}
