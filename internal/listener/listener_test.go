package listener

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpSequenceForSingleSuite(t *testing.T) {
	var dumps []string
	l := New(func(id string) { dumps = append(dumps, id) })

	l.TestProgramStart()
	l.TestSuiteStart("FooSuite")
	l.TestStart("Case1")
	l.TestEnd("PASSED")
	l.TestStart("Case2")
	l.TestEnd("FAILED")
	l.TestSuiteEnd("PASSED")
	l.TestProgramEnd()

	assert.Equal(t, []string{
		"BEFORE_PROGRAM_START",
		"GLOBAL_TEST_SETUP",
		"FooSuite___setup",
		"FooSuite.Case1___PASSED",
		"FooSuite.Case2___FAILED",
		"FooSuite___PASSED",
		"GLOBAL_TEST_SETUP",
	}, dumps)
}

func TestParameterizedSuiteSuppressesCaseDumpsWhenDisabled(t *testing.T) {
	var dumps []string
	l := New(func(id string) { dumps = append(dumps, id) })
	l.EnableParameterizedTests = false

	l.TestSuiteStart("FooSuite/1")
	l.TestStart("Case1")
	l.TestEnd("PASSED")
	l.TestSuiteEnd("PASSED")

	assert.Equal(t, []string{"GLOBAL_TEST_SETUP", "FooSuite/1___setup", "FooSuite/1___PASSED"}, dumps)
}

func TestParseExcludesFileBuildsFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "excludes.txt")
	require.NoError(t, os.WriteFile(path, []byte("app!!!FooSuite!!!Case1\napp!!!BarSuite!!!Case2\n"), 0644))

	filter, err := ParseExcludesFileToGoogleTestFilter(path, "")
	require.NoError(t, err)
	assert.Equal(t, "-FooSuite.Case1:BarSuite.Case2", filter)
}

func TestParseExcludesFileAppendsToPreviousFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "excludes.txt")
	require.NoError(t, os.WriteFile(path, []byte("app!!!FooSuite!!!Case1\n"), 0644))

	filter, err := ParseExcludesFileToGoogleTestFilter(path, "Some.Filter")
	require.NoError(t, err)
	assert.Equal(t, "Some.Filter-FooSuite.Case1", filter)

	filter2, err := ParseExcludesFileToGoogleTestFilter(path, "Already-Has.Dash")
	require.NoError(t, err)
	assert.Equal(t, "Already-Has.Dash:FooSuite.Case1", filter2)
}

func TestParseExcludesFileMissingReturnsBareDash(t *testing.T) {
	filter, err := ParseExcludesFileToGoogleTestFilter("/nonexistent/path", "")
	require.NoError(t, err)
	assert.Equal(t, "-", filter)
}
