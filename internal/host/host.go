// Package host models the DBI collaborator that spec.md section 1 treats
// as external: module enumeration, BB-emit callbacks, syscall hooks,
// nudges, and the drsym_* debug-symbol lookup service. Of these, the
// interfaces here cover the debug-symbol service, annotation registration
// and nudge delivery; module load, BB emit and file-open events reach
// CoverageEngine through its own On* methods instead. Nothing in this
// repo implements a real DBI adapter — that is explicitly out of scope —
// but CoverageEngine and SymbolResolver are written against these
// interfaces so they can be driven by the in-memory Fake in fake.go for
// tests and for the "simulate" CLI subcommand, the way the teacher
// exercises its tracer protocol with tracer/logutil's simulator instead
// of a live traced process.
package host

import "errors"

// ErrSymbolNotFound is returned by DebugBackend implementations when a
// module or offset carries no resolvable symbol information.
var ErrSymbolNotFound = errors.New("host: symbol not found")

// DebugKind identifies the flavour of debug information a module carries,
// mirroring drsym_get_module_debug_kind.
type DebugKind int

const (
	DebugKindNone DebugKind = iota
	DebugKindELFSymtab
	DebugKindPECOFF
	DebugKindMachO
	DebugKindPDB
)

func (k DebugKind) String() string {
	switch k {
	case DebugKindELFSymtab:
		return "ELF symtab"
	case DebugKindPECOFF:
		return "PECOFF symtab"
	case DebugKindMachO:
		return "Mach-O symtab"
	case DebugKindPDB:
		return "PDB"
	default:
		return "no symbols"
	}
}

// Symbol is a resolved (file, name, line) triple for a module offset.
type Symbol struct {
	Name string
	File string
	Line int
}

// LineCallback is invoked once per enumerated source line; returning
// false stops enumeration early.
type LineCallback func(offset uint64, file string, line int) bool

// SymbolCallback is invoked once per enumerated symbol; returning false
// stops enumeration early.
type SymbolCallback func(name string, start, end uint64) bool

// DebugBackend is the drsym_* capability trait from spec.md section 9:
// "Model drsym_* as a capability trait". SymbolResolver and
// LineVisualiser depend only on this, never on a concrete backend, so
// the DBI-native, pre-extracted-file, and in-memory test-double
// implementations are interchangeable.
type DebugBackend interface {
	LookupAddress(modulePath string, offset uint64) (Symbol, error)
	EnumerateLines(modulePath string, cb LineCallback) error
	EnumerateSymbols(modulePath string, cb SymbolCallback) error
	ModuleDebugKind(modulePath string) (DebugKind, error)
}

// AnnotationHandler is invoked when the instrumented application calls
// the dynamorio_annotate_log annotation.
type AnnotationHandler func(arg string)

// Host is the full DBI-side contract CoverageEngine needs: debug-symbol
// lookup plus annotation registration and soft-kill nudge delivery.
type Host interface {
	DebugBackend

	// RegisterAnnotation wires the single dynamorio_annotate_log
	// annotation (spec.md section 6) to handler.
	RegisterAnnotation(handler AnnotationHandler)

	// Nudge delivers a soft-kill nudge to pid carrying payload, per
	// spec.md section 4.2's process-termination protocol.
	Nudge(pid int, payload uint64) error
}
