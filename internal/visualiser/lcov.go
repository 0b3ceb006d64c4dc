package visualiser

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

type fileCoverage struct {
	covered   map[int]bool
	uncovered map[int]bool
}

func newFileCoverage() *fileCoverage {
	return &fileCoverage{covered: map[int]bool{}, uncovered: map[int]bool{}}
}

func (v *Visualiser) fileCoverage(file string) *fileCoverage {
	v.mu.Lock()
	defer v.mu.Unlock()
	fc, ok := v.files[file]
	if !ok {
		fc = newFileCoverage()
		v.files[file] = fc
	}
	return fc
}

// ProcessBB implements spec.md section 4.4's LCOV emission rule: a BB
// from (start, size) whose start offset and start+size offset resolve to
// lines L1 and L2 of the same file moves every line in [L1, L2] from
// uncovered to covered. A size of 0 resolves the start offset only.
func (v *Visualiser) ProcessBB(modulePath string, start uint64, size uint32) {
	startLine, ok1 := v.FindLine(modulePath, start)
	endLine, ok2 := v.FindLine(modulePath, start+uint64(size))
	if !ok1 || !ok2 || startLine.File != endLine.File {
		return
	}

	l1, l2 := startLine.Line, endLine.Line
	if l2 < l1 {
		l1, l2 = l2, l1
	}

	fc := v.fileCoverage(startLine.File)
	v.mu.Lock()
	for l := l1; l <= l2; l++ {
		fc.covered[l] = true
		delete(fc.uncovered, l)
	}
	v.mu.Unlock()
}

// markKnownLine registers a source line as part of a file's universe of
// lines (initially uncovered), called as modules are enumerated.
func (v *Visualiser) markKnownLine(file string, line int) {
	fc := v.fileCoverage(file)
	v.mu.Lock()
	if !fc.covered[line] {
		fc.uncovered[line] = true
	}
	v.mu.Unlock()
}

// EmitLCOV writes an LCOV record per tracked file, honouring the
// optional source-path regex (spec.md section 4.4 / 6).
func (v *Visualiser) EmitLCOV(w io.Writer) error {
	bw := bufio.NewWriter(w)

	v.mu.Lock()
	files := make([]string, 0, len(v.files))
	for f := range v.files {
		files = append(files, f)
	}
	v.mu.Unlock()
	sort.Strings(files)

	for _, file := range files {
		if v.Regex != nil && !v.Regex.MatchString(file) {
			continue
		}
		fc := v.fileCoverage(file)

		fmt.Fprintf(bw, "SF:%s\n", file)
		for _, l := range sortedKeys(fc.covered) {
			fmt.Fprintf(bw, "DA:%d,1\n", l)
		}
		for _, l := range sortedKeys(fc.uncovered) {
			fmt.Fprintf(bw, "DA:%d,0\n", l)
		}
		fmt.Fprintln(bw, "end_of_record")
	}
	return bw.Flush()
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
