// Package visualiser implements the LineVisualiser component: converts
// BB start/size pairs into line-level covered/uncovered sets using the
// order-statistics predecessor/successor trick from spec.md section 4.4,
// and emits LCOV.
package visualiser

import (
	"regexp"
	"sort"
	"sync"

	"github.com/binrts/binrts/internal/host"
)

// CoveredLine is the visualiser's per-offset cache entry (spec.md
// section 3).
type CoveredLine struct {
	File   string
	Line   int
	Offset uint64
}

// moduleLines holds, per module, the two parallel structures from
// spec.md section 3: an unordered offset->line map and an ordered set of
// known offsets for predecessor/successor queries.
type moduleLines struct {
	byOffset map[uint64]*CoveredLine
	offsets  []uint64 // sorted
	enumerateOnce sync.Once
}

func (m *moduleLines) insert(l *CoveredLine) {
	if _, ok := m.byOffset[l.Offset]; ok {
		return
	}
	m.byOffset[l.Offset] = l
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] >= l.Offset })
	m.offsets = append(m.offsets, 0)
	copy(m.offsets[i+1:], m.offsets[i:])
	m.offsets[i] = l.Offset
}

// predecessorSuccessor returns the nearest recorded line-start <= offset
// and the next recorded line-start > offset, per spec.md section 4.4.
func (m *moduleLines) predecessorSuccessor(offset uint64) (pred, succ *CoveredLine) {
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] > offset })
	if i > 0 {
		pred = m.byOffset[m.offsets[i-1]]
	}
	if i < len(m.offsets) {
		succ = m.byOffset[m.offsets[i]]
	}
	return
}

// Visualiser is the LineVisualiser component.
type Visualiser struct {
	backend host.DebugBackend
	Regex   *regexp.Regexp // optional source-path filter
	Accurate bool          // -accurate: query the backend instead of the predecessor trick

	mu      sync.Mutex
	modules map[string]*moduleLines
	files   map[string]*fileCoverage
}

func New(backend host.DebugBackend, accurate bool, sourceRegex *regexp.Regexp) *Visualiser {
	return &Visualiser{
		backend: backend,
		Accurate: accurate,
		Regex:   sourceRegex,
		modules: map[string]*moduleLines{},
		files:   map[string]*fileCoverage{},
	}
}

func (v *Visualiser) lines(modulePath string) *moduleLines {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.modules[modulePath]
	if !ok {
		m = &moduleLines{byOffset: map[uint64]*CoveredLine{}}
		v.modules[modulePath] = m
	}
	return m
}

// ensureEnumerated implements spec.md section 4.4's "Core trick": on
// first sight of a module, enumerate all its source lines via
// EnumerateLines. Concurrent callers for the same module wait until
// that enumeration has finished.
func (v *Visualiser) ensureEnumerated(modulePath string) *moduleLines {
	m := v.lines(modulePath)

	m.enumerateOnce.Do(func() {
		v.backend.EnumerateLines(modulePath, func(offset uint64, file string, line int) bool {
			v.mu.Lock()
			m.insert(&CoveredLine{File: file, Line: line, Offset: offset})
			v.mu.Unlock()
			v.markKnownLine(file, line)
			return true
		})
	})
	return m
}

// FindLine implements spec.md section 4.4's per-offset line resolution.
func (v *Visualiser) FindLine(modulePath string, offset uint64) (*CoveredLine, bool) {
	m := v.ensureEnumerated(modulePath)

	v.mu.Lock()
	if l, ok := m.byOffset[offset]; ok {
		v.mu.Unlock()
		return l, true
	}
	v.mu.Unlock()

	if v.Accurate {
		sym, err := v.backend.LookupAddress(modulePath, offset)
		if err != nil {
			return nil, false
		}
		l := &CoveredLine{File: sym.File, Line: sym.Line, Offset: offset}
		v.mu.Lock()
		m.insert(l)
		v.mu.Unlock()
		return l, true
	}

	v.mu.Lock()
	pred, succ := m.predecessorSuccessor(offset)
	v.mu.Unlock()
	if pred == nil || succ == nil {
		return nil, false
	}
	if pred.File != succ.File || pred.Line != succ.Line {
		// The BB straddles a line boundary ambiguously.
		return nil, false
	}
	return &CoveredLine{File: pred.File, Line: pred.Line, Offset: offset}, true
}
