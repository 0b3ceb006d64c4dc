// Package listener implements the test-boundary dump-id vocabulary: a
// thin state machine driven by a test framework's suite/case start and
// end hooks, emitting one dump identifier per boundary through a
// Dump callback (normally host.Host.Nudge's annotation counterpart:
// the embedded instrumentation's own log-annotation call).
package listener

import (
	"bufio"
	"os"
	"strings"

	"github.com/binrts/binrts/internal/errs"
)

const (
	globalTestSetupDumpID = "GLOBAL_TEST_SETUP"
	beforeProgramStartID  = "BEFORE_PROGRAM_START"
	testCaseSeparator     = "."
	testIDSeparator       = "!!!"
)

// Listener tracks test-suite/test-case boundaries and produces the
// dump identifiers spec.md section 4 expects an embedding test
// framework to request.
type Listener struct {
	Dump func(id string)

	// EnableParameterizedTests mirrors the original flag: when false,
	// per-case dumps are suppressed for a parameterized suite (one
	// whose identifier contains a '/'), leaving only the suite-level
	// dump.
	EnableParameterizedTests bool

	testCounter      int
	testSuiteCounter int

	currentSuite        string
	currentTest         string
	suiteIsParameterized bool
}

func New(dump func(id string)) *Listener {
	return &Listener{Dump: dump, EnableParameterizedTests: true}
}

func (l *Listener) dump(id string) {
	if l.Dump != nil {
		l.Dump(id)
	}
}

// TestProgramStart fires once before any test runs.
func (l *Listener) TestProgramStart() {
	l.dump(beforeProgramStartID)
}

// TestProgramEnd fires once after the whole test program finishes.
func (l *Listener) TestProgramEnd() {
	l.testSuiteCounter = 0
	l.dump(globalTestSetupDumpID)
}

// TestSuiteStart fires when a new suite begins. The first suite in the
// program also triggers the global setup dump.
func (l *Listener) TestSuiteStart(suiteID string) {
	l.currentSuite = suiteID
	l.suiteIsParameterized = strings.Contains(suiteID, "/")
	if l.testSuiteCounter == 0 {
		l.dump(globalTestSetupDumpID)
	}
	l.testSuiteCounter++
}

// TestSuiteEnd fires when a suite finishes, encoding result in the
// dump id.
func (l *Listener) TestSuiteEnd(result string) {
	l.dump(l.currentSuite + "___" + result)
	l.testCounter = 0
	l.suiteIsParameterized = false
}

// TestStart fires when a test case begins. The first case in a suite
// also triggers that suite's setup dump.
func (l *Listener) TestStart(testID string) {
	l.currentTest = l.currentSuite + testCaseSeparator + testID
	if l.testCounter == 0 {
		l.dump(l.currentSuite + "___setup")
	}
	l.testCounter++
}

// TestEnd fires when a test case finishes, encoding result in the
// dump id. Suppressed for parameterized suites unless
// EnableParameterizedTests is set.
func (l *Listener) TestEnd(result string) {
	if l.EnableParameterizedTests || !l.suiteIsParameterized {
		l.dump(l.currentTest + "___" + result)
	}
}

// GTestExcludesFileFromEnv returns the value of GTEST_EXCLUDES_FILE,
// the environment variable that names a file of previously-excluded
// dump ids (one per line, module-prefixed with "!!!").
func GTestExcludesFileFromEnv() string {
	return os.Getenv("GTEST_EXCLUDES_FILE")
}

// ParseExcludesFileToGoogleTestFilter reads an excludes file and turns
// each "<module>!!!<suite>!!!<case>" line into a gtest "-"-filter
// entry "<suite>.<case>", appended to any previousFilter. A
// previousFilter already containing '-' gets new entries joined with
// ':'; one without it gets a literal '-' appended first.
func ParseExcludesFileToGoogleTestFilter(path, previousFilter string) (string, error) {
	testFilter := "-"
	if previousFilter != "" {
		if strings.Contains(previousFilter, "-") {
			testFilter = previousFilter + ":"
		} else {
			testFilter = previousFilter + "-"
		}
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return testFilter, nil
	}
	if err != nil {
		return "", errs.Wrapf(err, "listener: open excludes file %q", path)
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		idx := strings.Index(line, testIDSeparator)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(testIDSeparator):]
		rest = strings.Replace(rest, testIDSeparator, testCaseSeparator, 1)
		if count > 0 {
			testFilter += ":"
		}
		testFilter += rest
		count++
	}
	if err := sc.Err(); err != nil {
		return "", errs.Wrapf(err, "listener: read excludes file %q", path)
	}
	return testFilter, nil
}
