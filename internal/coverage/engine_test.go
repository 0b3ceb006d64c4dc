package coverage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binrts/binrts/internal/host"
	"github.com/binrts/binrts/internal/moduletracker"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, string) {
	dir := t.TempDir()
	opts.LogDir = dir
	h := host.NewFake()
	e := New(h)
	require.NoError(t, e.Init(opts))
	e.OnModuleLoad(moduletracker.Descriptor{Name: "app", Path: "/path/app", Start: 0x1000, End: 0x9000})
	return e, dir
}

func TestSnapshotModeSingleBB(t *testing.T) {
	e, dir := newTestEngine(t, Options{TextDump: true, RuntimeDump: false})

	_, err := e.OnBBEmit(0x1000+0x1000, 4)
	require.NoError(t, err)

	out := filepath.Join(dir, "coverage.log")
	require.NoError(t, e.DumpToFile(out, DumpRequest{Reset: false}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "app\t/path/app\n\t+0x1000\t1\n", string(data))
}

func TestCountModeTwoDumps(t *testing.T) {
	e, dir := newTestEngine(t, Options{TextDump: true, RuntimeDump: true})

	entry, err := e.OnBBEmit(0x1000+0x2000, 4)
	require.NoError(t, err)
	e.OnBBExecute(entry)
	e.OnBBExecute(entry)

	e.OnAnnotation("t1___PASSED")

	e.OnBBExecute(entry)
	e.OnBBExecute(entry)

	out := filepath.Join(dir, "coverage.log")
	require.NoError(t, e.DumpToFile(out, DumpRequest{Reset: false}))

	dump1, err := os.ReadFile(filepath.Join(dir, "1.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(dump1), "+0x2000\t3\n") || strings.Contains(string(dump1), "+0x2000\t4\n"))

	final, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(final), "+0x2000\t2")

	lookup, err := os.ReadFile(filepath.Join(dir, "dump-lookup.log"))
	require.NoError(t, err)
	assert.Equal(t, "1;t1___PASSED\n", string(lookup))
}

func TestResetZeroesAllCounters(t *testing.T) {
	e, dir := newTestEngine(t, Options{TextDump: true, RuntimeDump: true})
	entry, err := e.OnBBEmit(0x1000+0x2000, 4)
	require.NoError(t, err)
	e.OnBBExecute(entry)

	out := filepath.Join(dir, "coverage.log")
	require.NoError(t, e.DumpToFile(out, DumpRequest{Reset: true}))
	assert.Equal(t, uint32(0), entry.Data)
}

func TestSyscallFilterSkipsLogsAndExtensionless(t *testing.T) {
	assert.False(t, allowedSyscallPath("/tmp/foo.log"))
	assert.False(t, allowedSyscallPath("/tmp/noext"))
	assert.True(t, allowedSyscallPath("/tmp/data.json"))
}

func TestSoftKillNudgeExactlyOnce(t *testing.T) {
	h := host.NewFake()
	e := New(h)
	require.NoError(t, e.Init(Options{LogDir: t.TempDir()}))

	require.NoError(t, e.SoftKill(42, 7))
	payloads := h.Nudges(42)
	require.Len(t, payloads, 1)
	assert.Equal(t, uint64(1)|uint64(7)<<32, payloads[0])

	var exitCode int
	calls := 0
	exit := func(code int) { exitCode = code; calls++ }

	e.ReceiveNudge(payloads[0], exit)
	e.ReceiveNudge(payloads[0], exit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, exitCode)
}
