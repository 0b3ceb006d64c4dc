package host

import (
	"sort"
	"sync"
)

// Fake is an in-memory Host double. It lets CoverageEngine and
// SymbolResolver be driven and tested without a real DBI process
// attached, mirroring the lock-protected in-memory state store the
// teacher uses to exercise its own tracer protocol end to end.
type Fake struct {
	lock sync.RWMutex

	symbols map[string][]fakeSymbol // module path -> symbols, sorted by Start
	lines   map[string][]fakeLine  // module path -> lines, sorted by offset
	kinds   map[string]DebugKind

	annotation AnnotationHandler
	nudged     map[int][]uint64
}

type fakeSymbol struct {
	Name       string
	Start, End uint64
	File       string
	Line       int
}

type fakeLine struct {
	Offset uint64
	File   string
	Line   int
}

// NewFake returns an empty Fake. Use AddSymbol/AddLine to populate it
// before driving a resolver or visualiser against it.
func NewFake() *Fake {
	return &Fake{
		symbols: map[string][]fakeSymbol{},
		lines:   map[string][]fakeLine{},
		kinds:   map[string]DebugKind{},
		nudged:  map[int][]uint64{},
	}
}

// AddSymbol registers a synthetic symbol covering [start, end] (both
// ends inclusive) in modulePath, resolving to (file, name, line) for any
// offset inside it.
func (f *Fake) AddSymbol(modulePath, name string, start, end uint64, file string, line int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.symbols[modulePath] = append(f.symbols[modulePath], fakeSymbol{name, start, end, file, line})
	sort.Slice(f.symbols[modulePath], func(i, j int) bool {
		return f.symbols[modulePath][i].Start < f.symbols[modulePath][j].Start
	})
	if _, ok := f.kinds[modulePath]; !ok {
		f.kinds[modulePath] = DebugKindELFSymtab
	}
}

// AddLine registers a source line start at offset, for EnumerateLines.
func (f *Fake) AddLine(modulePath string, offset uint64, file string, line int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.lines[modulePath] = append(f.lines[modulePath], fakeLine{offset, file, line})
	sort.Slice(f.lines[modulePath], func(i, j int) bool {
		return f.lines[modulePath][i].Offset < f.lines[modulePath][j].Offset
	})
}

func (f *Fake) LookupAddress(modulePath string, offset uint64) (Symbol, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	syms := f.symbols[modulePath]
	for _, s := range syms {
		if offset >= s.Start && offset <= s.End {
			return Symbol{Name: s.Name, File: s.File, Line: s.Line}, nil
		}
	}
	return Symbol{}, ErrSymbolNotFound
}

func (f *Fake) EnumerateLines(modulePath string, cb LineCallback) error {
	f.lock.RLock()
	lines := append([]fakeLine(nil), f.lines[modulePath]...)
	f.lock.RUnlock()

	for _, l := range lines {
		if !cb(l.Offset, l.File, l.Line) {
			break
		}
	}
	return nil
}

func (f *Fake) EnumerateSymbols(modulePath string, cb SymbolCallback) error {
	f.lock.RLock()
	syms := append([]fakeSymbol(nil), f.symbols[modulePath]...)
	f.lock.RUnlock()

	for _, s := range syms {
		if !cb(s.Name, s.Start, s.End) {
			break
		}
	}
	return nil
}

func (f *Fake) ModuleDebugKind(modulePath string) (DebugKind, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	k, ok := f.kinds[modulePath]
	if !ok {
		return DebugKindNone, ErrSymbolNotFound
	}
	return k, nil
}

func (f *Fake) RegisterAnnotation(handler AnnotationHandler) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.annotation = handler
}

// Annotate simulates the instrumented application invoking
// dynamorio_annotate_log(arg).
func (f *Fake) Annotate(arg string) {
	f.lock.RLock()
	h := f.annotation
	f.lock.RUnlock()
	if h != nil {
		h(arg)
	}
}

func (f *Fake) Nudge(pid int, payload uint64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.nudged[pid] = append(f.nudged[pid], payload)
	return nil
}

// Nudges returns the payloads delivered to pid, for test assertions.
func (f *Fake) Nudges(pid int) []uint64 {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]uint64(nil), f.nudged[pid]...)
}
