// Package coverage implements the CoverageEngine component: the
// in-process BB table, BB-emit/execute instrumentation hooks, the
// syscall-open filter, and the dump-on-event protocol (spec.md section
// 4.2). It runs embedded in the instrumented application and is driven
// by a host.Host.
package coverage

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/binrts/binrts/internal/host"
	"github.com/binrts/binrts/internal/logging"
	"github.com/binrts/binrts/internal/moduletracker"
)

// BBEntry is one observed basic block inside a covered module. Data's
// meaning is mode-dependent: hit count in counting mode, BB size in
// snapshot+size mode, or a plain presence marker otherwise.
//
// The field is deliberately not wrapped in atomic.Uint32: spec.md
// section 4.2 calls for a non-atomic increment on the hot path (a lost
// update can never move a live counter back to zero, which is all RTS
// selection needs), so this repo reproduces that raciness rather than
// hiding it behind a safer primitive.
type BBEntry struct {
	Offset uint32
	Data   uint32
}

// CoveredModule is the (module-id, name, path, offset->BBEntry) entity
// from spec.md section 3. Created lazily on first observed BB.
type CoveredModule struct {
	ModuleID moduletracker.ID
	Name     string
	Path     string

	mu  sync.Mutex
	bbs map[uint32]*BBEntry
}

func newCoveredModule(id moduletracker.ID, name, path string) *CoveredModule {
	return &CoveredModule{ModuleID: id, Name: name, Path: path, bbs: map[uint32]*BBEntry{}}
}

func (m *CoveredModule) entry(offset uint32) (*BBEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bbs[offset]
	if !ok {
		e = &BBEntry{Offset: offset}
		m.bbs[offset] = e
	}
	return e, !ok
}

// snapshot returns the entries sorted by offset, for deterministic dumps.
func (m *CoveredModule) snapshot() []*BBEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*BBEntry, 0, len(m.bbs))
	for _, e := range m.bbs {
		out = append(out, e)
	}
	sortBBEntries(out)
	return out
}

// Options mirrors the CLI flags (engine, via host options string) in
// spec.md section 6.
type Options struct {
	LogDir       string
	Output       string
	ModuleAllow  []string // -modules: newline-separated allow-list
	TextDump     bool     // -text_dump
	Symbols      bool     // -symbols (implies TextDump)
	RuntimeDump  bool     // -runtime_dump: counting mode vs snapshot mode
	DumpBBSize   bool     // record BB size instead of hit count/presence
	Syscalls     bool     // -syscalls
	Verbose      int      // -verbose
}

func (o Options) textDump() bool { return o.TextDump || o.Symbols }

// Engine is the CoverageEngine component.
type Engine struct {
	opts    Options
	host    host.Host
	tracker *moduletracker.Tracker

	initRefs int32 // reference-counted init, per spec.md section 4.2

	mu      sync.Mutex
	modules map[moduletracker.ID]*CoveredModule
	order   []moduletracker.ID // insertion order, for dump output order

	openedFiles   []string
	openedFilesMu sync.Mutex

	dumpCount int64

	nudgeCounter atomic.Int32
}

// New constructs an Engine bound to h. Call Init before use.
func New(h host.Host) *Engine {
	return &Engine{
		host:    h,
		tracker: moduletracker.New(nil),
		modules: map[moduletracker.ID]*CoveredModule{},
	}
}

// Init implements spec.md section 4.2's init(options): idempotent via a
// reference-counted counter, rebuilds the module allow-list.
func (e *Engine) Init(opts Options) error {
	if atomic.AddInt32(&e.initRefs, 1) > 1 {
		return nil
	}
	e.opts = opts
	if len(opts.ModuleAllow) > 0 {
		e.tracker = moduletracker.New(opts.ModuleAllow)
	}
	e.host.RegisterAnnotation(e.OnAnnotation)
	logging.Infof("coverage: initialised logdir=%s runtime_dump=%v", opts.LogDir, opts.RuntimeDump)
	return nil
}

// Exit implements spec.md section 4.2's exit(): on the last reference,
// performs a final dump (reset=false) to finalDumpPath. The module
// tracker is left as it is.
func (e *Engine) Exit(finalDumpPath string) error {
	if atomic.AddInt32(&e.initRefs, -1) > 0 {
		return nil
	}
	return e.DumpToFile(finalDumpPath, DumpRequest{Reset: false})
}

// OnModuleLoad forwards to the ModuleTracker.
func (e *Engine) OnModuleLoad(desc moduletracker.Descriptor) {
	e.tracker.OnModuleLoad(desc)
}

// OnModuleUnload forwards to the ModuleTracker.
func (e *Engine) OnModuleUnload(start uint64) {
	e.tracker.OnModuleUnload(start)
}

// OnBBEmit implements spec.md section 4.2's on_bb_emit for pc, the
// address of the BB's first instruction, given its size in bytes. It is
// called once, when the host is about to commit the BB to its code
// cache — not once per execution.
func (e *Engine) OnBBEmit(pc uint64, size uint32) (*BBEntry, error) {
	res, err := e.tracker.Lookup(pc)
	if err != nil {
		return nil, err
	}
	offset := uint32(pc - res.Base)

	cm := e.coveredModule(res)
	entry, created := cm.entry(offset)

	switch {
	case e.opts.DumpBBSize:
		entry.Data = size
	case !e.opts.RuntimeDump:
		// snapshot mode: presence is coverage.
		if created {
			entry.Data = 1
		}
	default:
		// counting mode: guarantee at least one count survives even if
		// the inserted instrumentation's own increment loses the race.
		entry.Data++
	}
	return entry, nil
}

// OnBBExecute simulates the inlined, architecture-specific increment
// spec.md section 4.2 describes for counting mode. It is intentionally
// not atomic: any nonzero value is sufficient for RTS selection, and a
// lost update cannot move a counter from zero to zero.
func (e *Engine) OnBBExecute(entry *BBEntry) {
	if e.opts.RuntimeDump {
		entry.Data++
	}
}

func (e *Engine) coveredModule(res moduletracker.Result) *CoveredModule {
	e.mu.Lock()
	defer e.mu.Unlock()
	cm, ok := e.modules[res.ModuleID]
	if !ok {
		cm = newCoveredModule(res.ModuleID, res.ModuleName, res.ModulePath)
		e.modules[res.ModuleID] = cm
		e.order = append(e.order, res.ModuleID)
	}
	return cm
}

func (e *Engine) coveredModulesInOrder() []*CoveredModule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*CoveredModule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.modules[id])
	}
	return out
}

// allowedSyscallPath implements spec.md section 4.2's syscall filter:
// skip anything containing ".log", require an extension.
func allowedSyscallPath(path string) bool {
	if strings.Contains(path, ".log") {
		return false
	}
	return filepath.Ext(path) != ""
}

// OnSyscallOpen implements the pre-syscall hook's filename capture.
func (e *Engine) OnSyscallOpen(path string) {
	if !e.opts.Syscalls || !allowedSyscallPath(path) {
		return
	}
	e.openedFilesMu.Lock()
	e.openedFiles = append(e.openedFiles, path)
	e.openedFilesMu.Unlock()
}

func (e *Engine) resetOpenedFiles() []string {
	e.openedFilesMu.Lock()
	defer e.openedFilesMu.Unlock()
	old := e.openedFiles
	e.openedFiles = nil
	return old
}
