package extractor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binrts/binrts/internal/host"
	"github.com/binrts/binrts/internal/symfile"
)

func TestExtractAllModeWritesEveryLine(t *testing.T) {
	f := host.NewFake()
	path := filepath.Join(t.TempDir(), "app")
	f.AddLine(path, 0x100, "a.c", 1)
	f.AddLine(path, 0x110, "a.c", 2)
	f.AddSymbol(path, "foo", 0x100, 0x120, "a.c", 1)

	e := New(Options{Mode: All}, f)
	out, err := e.Extract(path)
	require.NoError(t, err)

	records, err := symfile.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExtractSymbolsOnlyModeFiltersToSymbolStarts(t *testing.T) {
	f := host.NewFake()
	path := filepath.Join(t.TempDir(), "app")
	f.AddLine(path, 0x100, "a.c", 1)
	f.AddLine(path, 0x110, "a.c", 2)
	f.AddSymbol(path, "foo", 0x100, 0x120, "a.c", 1)

	e := New(Options{Mode: SymbolsOnly}, f)
	out, err := e.Extract(path)
	require.NoError(t, err)

	records, err := symfile.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "foo", records[0].Name)
	assert.Equal(t, uint64(0x100), records[0].Offset)
}

func TestExtractNoDebugInfoFails(t *testing.T) {
	f := host.NewFake()
	e := New(Options{}, f)
	_, err := e.Extract("/path/nosyms")
	assert.Error(t, err)
}
