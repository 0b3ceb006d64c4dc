package resolver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/binrts/binrts/internal/errs"
)

// rawBB is one parsed dump-file BB record, before symbol resolution.
// Exactly one of the value forms is populated, discriminated by kind.
type rawBB struct {
	offset uint64

	// text format: hit count / size.
	hasData bool
	data    uint64

	// already-symbolic format (idempotent round trip input).
	symbolic bool
	file     string
	name     string
	line     int
}

type rawModule struct {
	name, path string
	bbs        []rawBB
}

// parseDumpFile implements spec.md section 4.3's dump-file parse state
// machine: toggles between "expect module header" and "expect BB
// records" on each module-header line. It accepts binary, text, and
// already-symbolic input so that rewriting a symbolic file is a no-op
// round trip (spec.md section 8, "Resolver round-trip").
func parseDumpFile(r io.Reader) ([]rawModule, error) {
	br := bufio.NewReader(r)
	var modules []rawModule
	var cur *rawModule

	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		trimmed := strings.TrimSuffix(line, "\n")

		if !strings.HasPrefix(trimmed, "\t") {
			if trimmed == "" {
				if err != nil {
					break
				}
				continue
			}
			fields := strings.SplitN(trimmed, "\t", 2)
			modules = append(modules, rawModule{name: fields[0], path: lastOr(fields, "")})
			cur = &modules[len(modules)-1]
			if err != nil {
				break
			}
			continue
		}

		if cur == nil {
			if err != nil {
				break
			}
			continue
		}

		body := strings.TrimPrefix(trimmed, "\t")
		if strings.HasPrefix(body, "BBs: ") {
			n, perr := strconv.Atoi(strings.TrimPrefix(body, "BBs: "))
			if perr != nil {
				return nil, errs.Wrapf(perr, "resolver: bad BBs header %q", line)
			}
			for i := 0; i < n; i++ {
				buf := make([]byte, 8)
				if _, rerr := io.ReadFull(br, buf); rerr != nil {
					return nil, errs.Wrap(rerr, "resolver: truncated binary BB run")
				}
				cur.bbs = append(cur.bbs, rawBB{offset: binary.LittleEndian.Uint64(buf)})
			}
			// consume the trailing newline after the raw run.
			br.ReadString('\n')
		} else if strings.HasPrefix(body, "+0x") {
			bb, perr := parseBBLine(body)
			if perr != nil {
				return nil, perr
			}
			cur.bbs = append(cur.bbs, bb)
		}

		if err != nil {
			break
		}
	}
	return modules, nil
}

func lastOr(fields []string, def string) string {
	if len(fields) < 2 {
		return def
	}
	return fields[1]
}

func parseBBLine(body string) (rawBB, error) {
	fields := strings.Split(body, "\t")
	offset, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "+0x"), 16, 64)
	if err != nil {
		return rawBB{}, errs.Wrapf(err, "resolver: bad offset in %q", body)
	}
	switch len(fields) {
	case 2:
		data, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return rawBB{}, errs.Wrapf(err, "resolver: bad data word in %q", body)
		}
		return rawBB{offset: offset, hasData: true, data: data}, nil
	case 4:
		line, err := strconv.Atoi(fields[3])
		if err != nil {
			return rawBB{}, errs.Wrapf(err, "resolver: bad line number in %q", body)
		}
		return rawBB{offset: offset, symbolic: true, file: fields[1], name: fields[2], line: line}, nil
	default:
		return rawBB{}, fmt.Errorf("resolver: unrecognised BB record %q", body)
	}
}

// RewriteFile implements spec.md section 4.3's rewrite: resolve every BB
// in path and overwrite it in place with the symbolic record format.
func (r *Resolver) RewriteFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrapf(err, "resolver: open %q", path)
	}
	modules, err := parseDumpFile(f)
	f.Close()
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(err, "resolver: create %q", path)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, m := range modules {
		if err := r.rewriteModule(w, m); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (r *Resolver) rewriteModule(w *bufio.Writer, m rawModule) error {
	var last *CoveredSymbol
	var written []*CoveredSymbol

	var lines []string
	for _, bb := range m.bbs {
		var sym *CoveredSymbol
		if bb.symbolic {
			sym = &CoveredSymbol{File: bb.file, Name: bb.name, Line: bb.line, Offset: bb.offset, Start: bb.offset, End: bb.offset, Status: Resolved}
		} else {
			var err error
			sym, err = r.FindSymbol(m.name, m.path, bb.offset)
			if err != nil {
				continue
			}
		}

		if sym.Status != Resolved {
			continue
		}
		// Dedup per spec.md section 4.3's rewrite rule: skip a symbol
		// that is the same symbol or the same line as the last one
		// added, or that was already added for this module.
		if last != nil && (last.isSameSymbol(bb.offset) || sym.isSameLine(last)) {
			continue
		}
		if containsSymbol(written, bb.offset, sym) {
			continue
		}

		lines = append(lines, fmt.Sprintf("\t+0x%x\t%s\t%s\t%d\n", bb.offset, sym.File, sym.Name, sym.Line))
		written = append(written, sym)
		last = sym
	}

	if len(lines) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s\t%s\n", m.name, m.path); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			return err
		}
	}
	return nil
}

// containsSymbol implements the "already added for this module" half of
// spec.md section 4.3's rewrite dedup rule, matching ModuleCoverage::
// addSymbol's full-list scan: a value-based check against every symbol
// written so far, not just the last one, since the cache mints a fresh
// *CoveredSymbol per offset even when two non-adjacent offsets resolve
// to the same function or line.
func containsSymbol(written []*CoveredSymbol, offset uint64, sym *CoveredSymbol) bool {
	for _, w := range written {
		if w.isSameSymbol(offset) || sym.isSameLine(w) {
			return true
		}
	}
	return false
}
