package visualiser

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/binrts/binrts/internal/errs"
)

// ModuleOffsets is one module's (path, offsets) pair as read from a
// dump file, keyed by module path since that's what the debug backend
// needs to enumerate lines.
type ModuleOffsets struct {
	Name    string
	Path    string
	Offsets []uint64
}

// LoadDumpFile reads a coverage dump file's BB offsets grouped by
// module, accepting the same binary, text, and symbolic record forms
// the resolver's rewriter does -- the visualiser only needs offsets,
// not the per-record payload.
func LoadDumpFile(path string) ([]ModuleOffsets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrapf(err, "visualiser: open %q", path)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var modules []ModuleOffsets
	var cur *ModuleOffsets

	for {
		line, rerr := br.ReadString('\n')
		if line == "" && rerr != nil {
			break
		}
		trimmed := strings.TrimSuffix(line, "\n")

		if !strings.HasPrefix(trimmed, "\t") {
			if trimmed == "" {
				if rerr != nil {
					break
				}
				continue
			}
			fields := strings.SplitN(trimmed, "\t", 2)
			modPath := ""
			if len(fields) == 2 {
				modPath = fields[1]
			}
			modules = append(modules, ModuleOffsets{Name: fields[0], Path: modPath})
			cur = &modules[len(modules)-1]
			if rerr != nil {
				break
			}
			continue
		}

		if cur == nil {
			if rerr != nil {
				break
			}
			continue
		}

		body := strings.TrimPrefix(trimmed, "\t")
		switch {
		case strings.HasPrefix(body, "BBs: "):
			n, perr := strconv.Atoi(strings.TrimPrefix(body, "BBs: "))
			if perr != nil {
				return nil, errs.Wrapf(perr, "visualiser: bad BBs header %q", line)
			}
			for i := 0; i < n; i++ {
				buf := make([]byte, 8)
				if _, ioerr := io.ReadFull(br, buf); ioerr != nil {
					return nil, errs.Wrap(ioerr, "visualiser: truncated binary BB run")
				}
				cur.Offsets = append(cur.Offsets, binary.LittleEndian.Uint64(buf))
			}
			br.ReadString('\n')
		case strings.HasPrefix(body, "+0x"):
			fields := strings.Split(body, "\t")
			offset, perr := strconv.ParseUint(strings.TrimPrefix(fields[0], "+0x"), 16, 64)
			if perr != nil {
				return nil, errs.Wrapf(perr, "visualiser: bad offset in %q", body)
			}
			cur.Offsets = append(cur.Offsets, offset)
		}

		if rerr != nil {
			break
		}
	}
	return modules, nil
}
