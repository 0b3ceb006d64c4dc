package covset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDumpFileParsesTextRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.log")
	require.NoError(t, os.WriteFile(path, []byte("app\t/path/app\n\t+0x1000\t1\n\t+0x1010\t2\n"), 0644))

	sets, err := LoadDumpFile(path)
	require.NoError(t, err)
	assert.Equal(t, Set{0x1000, 0x1010}, sets["app"])
}
