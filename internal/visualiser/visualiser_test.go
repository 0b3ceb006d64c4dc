package visualiser

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binrts/binrts/internal/host"
)

func fakeThreeLines(t *testing.T) (*host.Fake, string) {
	f := host.NewFake()
	f.AddLine("/path/app", 0x100, "a.c", 10)
	f.AddLine("/path/app", 0x110, "a.c", 11)
	f.AddLine("/path/app", 0x120, "a.c", 12)
	return f, "/path/app"
}

func TestFindLineExactOffsetHit(t *testing.T) {
	f, path := fakeThreeLines(t)
	v := New(f, false, nil)

	l, ok := v.FindLine(path, 0x110)
	require.True(t, ok)
	assert.Equal(t, 11, l.Line)
	assert.Equal(t, "a.c", l.File)
}

func TestFindLineStraddleIsUnresolved(t *testing.T) {
	f, path := fakeThreeLines(t)
	v := New(f, false, nil)

	// 0x108 sits strictly between 0x100 and 0x110: predecessor is line 10,
	// successor is line 11 -- they disagree, so this is unresolved under
	// the fast-mode predecessor/successor rule.
	_, ok := v.FindLine(path, 0x108)
	assert.False(t, ok)
}

func TestFindLineAgreeingNeighboursResolve(t *testing.T) {
	f := host.NewFake()
	f.AddLine("/path/app", 0x100, "a.c", 10)
	f.AddLine("/path/app", 0x104, "a.c", 10)
	f.AddLine("/path/app", 0x110, "a.c", 11)
	v := New(f, false, nil)

	l, ok := v.FindLine("/path/app", 0x102)
	require.True(t, ok)
	assert.Equal(t, 10, l.Line)
}

func TestFindLineAccurateModeQueriesBackend(t *testing.T) {
	f, path := fakeThreeLines(t)
	f.AddSymbol(path, "foo", 0x108, 0x109, "a.c", 99)
	v := New(f, true, nil)

	l, ok := v.FindLine(path, 0x108)
	require.True(t, ok)
	assert.Equal(t, 99, l.Line)
}

func TestProcessBBMarksLineRangeCovered(t *testing.T) {
	f, path := fakeThreeLines(t)
	v := New(f, false, nil)

	v.ensureEnumerated(path)
	v.ProcessBB(path, 0x100, 0x10)

	var buf bytes.Buffer
	require.NoError(t, v.EmitLCOV(&buf))
	out := buf.String()
	assert.Contains(t, out, "SF:a.c\n")
	assert.Contains(t, out, "DA:10,1\n")
	assert.Contains(t, out, "DA:12,0\n")
	assert.Contains(t, out, "end_of_record\n")
}

func TestProcessBBStraddleLeavesLinesUncovered(t *testing.T) {
	f, path := fakeThreeLines(t)
	v := New(f, false, nil)

	v.ensureEnumerated(path)
	v.ProcessBB(path, 0x108, 4)

	var buf bytes.Buffer
	require.NoError(t, v.EmitLCOV(&buf))
	out := buf.String()
	assert.Contains(t, out, "DA:10,0\n")
	assert.Contains(t, out, "DA:11,0\n")
	assert.NotContains(t, out, ",1\n")
}

func TestEmitSVGProducesNonEmptyOutput(t *testing.T) {
	f, path := fakeThreeLines(t)
	v := New(f, false, nil)
	v.ensureEnumerated(path)
	v.ProcessBB(path, 0x100, 0x10)

	var buf bytes.Buffer
	require.NoError(t, v.EmitSVG(&buf))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "a.c")
}

func TestEmitLCOVHonoursRegexFilter(t *testing.T) {
	f := host.NewFake()
	f.AddLine("/path/app", 0x100, "keep.c", 1)
	f.AddLine("/path/app", 0x200, "skip.c", 1)
	v := New(f, false, regexp.MustCompile("keep"))

	v.ensureEnumerated("/path/app")
	v.ProcessBB("/path/app", 0x100, 1)

	var buf bytes.Buffer
	require.NoError(t, v.EmitLCOV(&buf))
	out := buf.String()
	assert.Contains(t, out, "SF:keep.c")
	assert.NotContains(t, out, "skip.c")
}
