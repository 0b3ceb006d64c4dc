package coverage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/binrts/binrts/internal/errs"
	"github.com/binrts/binrts/internal/logging"
)

func sortBBEntries(es []*BBEntry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Offset < es[j].Offset })
}

// DumpRequest carries the short-lived, stack-allocated parameters of a
// dump, per spec.md section 3's "Dump request" entity.
type DumpRequest struct {
	Reset        bool
	ResolveSymbols bool // online -symbols mode
}

// DumpToFile opens path and writes a full dump per req, per spec.md
// section 4.2's dump protocol. If Syscalls is enabled, it also writes
// the companion "<path>.syscalls" file.
func (e *Engine) DumpToFile(path string, req DumpRequest) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(err, "coverage: open dump file %q", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := e.dump(w, req); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errs.Wrap(err, "coverage: flush dump file")
	}

	if e.opts.Syscalls {
		if err := e.dumpSyscalls(path + ".syscalls"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dumpSyscalls(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(err, "coverage: open syscalls file %q", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range e.resetOpenedFiles() {
		fmt.Fprintln(w, p)
	}
	return w.Flush()
}

// dump implements the dumper described in spec.md section 4.2: iterate
// covered modules, and for each with at least one qualifying BB, write
// its header then its BB records in the configured format.
func (e *Engine) dump(w *bufio.Writer, req DumpRequest) error {
	for _, cm := range e.coveredModulesInOrder() {
		entries := cm.snapshot()

		qualifying := entries[:0:0]
		for _, en := range entries {
			if en.Data > 0 || e.opts.DumpBBSize {
				qualifying = append(qualifying, en)
			}
		}
		if len(qualifying) == 0 {
			continue
		}

		fmt.Fprintf(w, "%s\t%s\n", cm.Name, cm.Path)

		switch {
		case req.ResolveSymbols:
			if err := e.dumpSymbolic(w, cm, qualifying); err != nil {
				return err
			}
		case e.opts.textDump():
			dumpText(w, qualifying)
		default:
			dumpBinary(w, qualifying)
		}

		if req.Reset {
			for _, en := range qualifying {
				en.Data = 0
			}
		}
	}
	return nil
}

// dumpText implements spec.md section 4.2's text format: one line per BB.
func dumpText(w *bufio.Writer, entries []*BBEntry) {
	for _, en := range entries {
		fmt.Fprintf(w, "\t+0x%x\t%d\n", en.Offset, en.Data)
	}
}

// dumpBinary implements spec.md section 4.2's binary format: a size
// header followed by a contiguous run of raw pointer-sized offsets.
func dumpBinary(w *bufio.Writer, entries []*BBEntry) {
	fmt.Fprintf(w, "\tBBs: %d\n", len(entries))
	buf := make([]byte, 8)
	for _, en := range entries {
		binary.LittleEndian.PutUint64(buf, uint64(en.Offset))
		w.Write(buf)
	}
	w.WriteByte('\n')
}

// dumpSymbolic implements spec.md section 4.2's online symbol format:
// per BB, query the host's debug backend; skip BBs the backend cannot
// resolve.
func (e *Engine) dumpSymbolic(w *bufio.Writer, cm *CoveredModule, entries []*BBEntry) error {
	for _, en := range entries {
		sym, err := e.host.LookupAddress(cm.Path, uint64(en.Offset))
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "\t+0x%x\t%s\t%s\t%d\n", en.Offset, sym.File, sym.Name, sym.Line)
	}
	return nil
}

// OnAnnotation implements spec.md section 4.2's annotation callback: a
// full reset dump to a new, monotonically numbered file, then an
// append to the dump-lookup.log index.
func (e *Engine) OnAnnotation(dumpID string) {
	n := e.dumpCount + 1
	e.dumpCount = n

	path := filepath.Join(e.opts.LogDir, fmt.Sprintf("%d.log", n))
	if err := e.DumpToFile(path, DumpRequest{Reset: true, ResolveSymbols: e.opts.Symbols}); err != nil {
		// Transient I/O error: log and continue, per spec.md section 7.
		logging.Errorf("coverage: annotation dump failed: %v", err)
		return
	}
	if err := e.appendDumpLookup(n, dumpID); err != nil {
		logging.Errorf("coverage: dump-lookup append failed: %v", err)
	}
}

func (e *Engine) appendDumpLookup(n int64, dumpID string) error {
	path := filepath.Join(e.opts.LogDir, "dump-lookup.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(err, "coverage: open dump-lookup.log")
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d;%s\n", n, dumpID)
	return err
}
