package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binrts/binrts/internal/host"
)

func fakeBackendWithFunc(t *testing.T) (*host.Fake, string) {
	f := host.NewFake()
	f.AddSymbol("/path/app", "foo", 0x1000, 0x1010, "foo.c", 42)
	return f, "/path/app"
}

func TestFindSymbolCachesAcrossRepeatedOffsets(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{}, f)

	s1, err := r.FindSymbol("app", path, 0x1002)
	require.NoError(t, err)
	assert.Equal(t, Resolved, s1.Status)
	assert.Equal(t, "foo", s1.Name)

	queriesBefore, hitsBefore := r.Stats()

	s2, err := r.FindSymbol("app", path, 0x1002)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	queriesAfter, hitsAfter := r.Stats()
	assert.Greater(t, queriesAfter, queriesBefore)
	assert.Greater(t, hitsAfter, hitsBefore)
}

func TestFindSymbolSameSymbolShortcut(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{}, f)

	first, err := r.FindSymbol("app", path, 0x1002)
	require.NoError(t, err)

	second, err := r.FindSymbol("app", path, 0x1005)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.File, second.File)
}

func TestFindSymbolNotFound(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{}, f)

	s, err := r.FindSymbol("app", path, 0x9999)
	require.NoError(t, err)
	assert.Equal(t, NotFound, s.Status)
}

func TestFindSymbolStickyStatus(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{}, f)

	s1, _ := r.FindSymbol("app", path, 0x9999)
	require.Equal(t, NotFound, s1.Status)

	_, hits1 := r.Stats()
	s2, _ := r.FindSymbol("app", path, 0x9999)
	_, hits2 := r.Stats()

	assert.Same(t, s1, s2)
	assert.Greater(t, hits2, hits1)
}

func TestRewriteTextDumpProducesSymbolicOutput(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{}, f)

	dir := t.TempDir()
	dump := filepath.Join(dir, "1.log")
	require.NoError(t, os.WriteFile(dump, []byte("app\t"+path+"\n\t+0x1002\t3\n\t+0x1008\t1\n"), 0644))

	require.NoError(t, r.RewriteFile(dump))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	// Both offsets fall inside foo's [0x1000,0x1010) range, so the
	// second is deduped via isSameSymbol.
	assert.Equal(t, "app\t"+path+"\n\t+0x1002\tfoo.c\tfoo\t42\n", string(data))
}

func TestRewriteDedupsRevisitedSymbolAcrossNonAdjacentOffsets(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	f.AddSymbol(path, "bar", 0x2000, 0x2010, "bar.c", 7)
	r := New(Options{}, f)

	dir := t.TempDir()
	dump := filepath.Join(dir, "1.log")
	// foo, then bar, then foo again: the revisit of foo is not adjacent
	// to the first foo offset, so only "last" can't catch it -- it must
	// be deduped against the full set of symbols already written.
	require.NoError(t, os.WriteFile(dump, []byte("app\t"+path+"\n\t+0x1002\t1\n\t+0x2004\t1\n\t+0x1008\t1\n"), 0644))

	require.NoError(t, r.RewriteFile(dump))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Equal(t, "app\t"+path+"\n\t+0x1002\tfoo.c\tfoo\t42\n\t+0x2004\tbar.c\tbar\t7\n", string(data))
}

func TestRewriteIsIdempotent(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{}, f)

	dir := t.TempDir()
	dump := filepath.Join(dir, "1.log")
	require.NoError(t, os.WriteFile(dump, []byte("app\t"+path+"\n\t+0x1002\t3\n"), 0644))

	require.NoError(t, r.RewriteFile(dump))
	first, err := os.ReadFile(dump)
	require.NoError(t, err)

	require.NoError(t, r.RewriteFile(dump))
	second, err := os.ReadFile(dump)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRunSkipsReservedFiles(t *testing.T) {
	f, path := fakeBackendWithFunc(t)
	r := New(Options{Root: "", Ext: ".log"}, f)

	dir := t.TempDir()
	r.opts.Root = dir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dump-lookup.log"), []byte("not a dump"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.log"), []byte("app\t"+path+"\n\t+0x1002\t1\n"), 0644))

	require.NoError(t, r.Run(context.Background()))

	lookup, err := os.ReadFile(filepath.Join(dir, "dump-lookup.log"))
	require.NoError(t, err)
	assert.Equal(t, "not a dump", string(lookup))

	rewritten, err := os.ReadFile(filepath.Join(dir, "1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(rewritten), "foo.c")
}
