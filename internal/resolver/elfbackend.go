package resolver

import (
	"debug/dwarf"
	"debug/elf"
	"sort"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"github.com/binrts/binrts/internal/errs"
	"github.com/binrts/binrts/internal/host"
)

// ELFBackend implements host.DebugBackend over stdlib debug/elf and
// debug/dwarf, the way the pack's ELF symbolizer walks compile units
// into a sorted line-entry index and falls back to the ELF symbol table
// when DWARF has nothing for an address. Offsets passed in are module-
// relative, matching the link-time addresses of a position-independent
// module whose lowest section starts at 0 — the common case for the
// shared objects this pipeline instruments.
type ELFBackend struct {
	mu      sync.Mutex
	modules map[string]*elfModule
}

func NewELFBackend() *ELFBackend {
	return &ELFBackend{modules: map[string]*elfModule{}}
}

type lineEntry struct {
	pc   uint64
	file string
	line int
}

type elfModule struct {
	lines   []lineEntry   // sorted by pc
	symbols []elf.Symbol  // sorted by Value
	hasSym  bool
}

func (b *ELFBackend) get(path string) (*elfModule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.modules[path]; ok {
		return m, nil
	}

	m, err := loadELFModule(path)
	if err != nil {
		return nil, err
	}
	b.modules[path] = m
	return m, nil
}

func loadELFModule(path string) (*elfModule, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errs.Wrapf(err, "resolver: open ELF %q", path)
	}
	defer f.Close()

	m := &elfModule{}

	if syms, err := f.Symbols(); err == nil {
		m.symbols = syms
		m.hasSym = true
		sort.Slice(m.symbols, func(i, j int) bool { return m.symbols[i].Value < m.symbols[j].Value })
	}

	dw, err := f.DWARF()
	if err != nil {
		// No DWARF: symtab-only resolution is still useful.
		return m, nil
	}

	r := dw.Reader()
	for {
		entry, err := r.Next()
		if entry == nil || err != nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := dw.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			m.lines = append(m.lines, lineEntry{pc: le.Address, file: le.File.Name, line: le.Line})
		}
	}
	sort.Slice(m.lines, func(i, j int) bool { return m.lines[i].pc < m.lines[j].pc })
	return m, nil
}

func (b *ELFBackend) LookupAddress(modulePath string, offset uint64) (host.Symbol, error) {
	m, err := b.get(modulePath)
	if err != nil {
		return host.Symbol{}, err
	}

	file, line := m.findLine(offset)
	name := m.findSymbolName(offset)
	if file == "" && name == "" {
		return host.Symbol{}, host.ErrSymbolNotFound
	}
	return host.Symbol{Name: name, File: file, Line: line}, nil
}

func (m *elfModule) findLine(pc uint64) (string, int) {
	i := sort.Search(len(m.lines), func(i int) bool { return m.lines[i].pc > pc }) - 1
	if i < 0 {
		return "", 0
	}
	return m.lines[i].file, m.lines[i].line
}

func (m *elfModule) findSymbolName(pc uint64) string {
	i := sort.Search(len(m.symbols), func(i int) bool { return m.symbols[i].Value > pc }) - 1
	if i < 0 {
		return ""
	}
	sym := m.symbols[i]
	if sym.Size > 0 && pc >= sym.Value+sym.Size {
		return ""
	}
	return demangleName(sym.Name)
}

// demangleName demangles Itanium/C++ mangled names, falling back to the
// raw name when it isn't a recognised mangling.
func demangleName(name string) string {
	return demangle.Filter(name)
}

func (b *ELFBackend) EnumerateLines(modulePath string, cb host.LineCallback) error {
	m, err := b.get(modulePath)
	if err != nil {
		return err
	}
	for _, l := range m.lines {
		if !cb(l.pc, l.file, l.line) {
			break
		}
	}
	return nil
}

func (b *ELFBackend) EnumerateSymbols(modulePath string, cb host.SymbolCallback) error {
	m, err := b.get(modulePath)
	if err != nil {
		return err
	}
	for _, s := range m.symbols {
		if s.Size == 0 {
			continue
		}
		if !cb(demangleName(s.Name), s.Value, s.Value+s.Size) {
			break
		}
	}
	return nil
}

func (b *ELFBackend) ModuleDebugKind(modulePath string) (host.DebugKind, error) {
	m, err := b.get(modulePath)
	if err != nil {
		return host.DebugKindNone, err
	}
	if m.hasSym {
		return host.DebugKindELFSymtab, nil
	}
	return host.DebugKindNone, nil
}
