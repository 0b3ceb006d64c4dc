// Package symfile implements the "<module-basename>.binaryrts"
// pre-extracted symbol file format from spec.md section 6: one line per
// symbol, in the same shape as a symbolic dump-file BB record. It is
// shared by internal/extractor (writer) and internal/resolver (reader).
package symfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/binrts/binrts/internal/errs"
)

// Record is one extracted (offset, file, name, line) entry.
type Record struct {
	Offset uint64
	File   string
	Name   string
	Line   int
}

// Write emits records in the "\t+0x<offset>\t<file>\t<name>\t<line>\n"
// line format.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintf(bw, "\t+0x%x\t%s\t%s\t%d\n", r.Offset, r.File, r.Name, r.Line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile truncates or creates path and writes records to it.
func WriteFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(err, "symfile: create %q", path)
	}
	defer f.Close()
	return Write(f, records)
}

// ReadFile opens path and parses the records written by WriteFile.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrapf(err, "symfile: open %q", path)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a .binaryrts file written by Write.
func Read(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		rec, ok, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, sc.Err()
}

func parseLine(line string) (Record, bool, error) {
	trimmed := strings.TrimPrefix(line, "\t")
	if trimmed == line || !strings.HasPrefix(trimmed, "+0x") {
		return Record{}, false, nil
	}
	fields := strings.SplitN(trimmed, "\t", 4)
	if len(fields) != 4 {
		return Record{}, false, fmt.Errorf("symfile: malformed line %q", line)
	}
	offset, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "+0x"), 16, 64)
	if err != nil {
		return Record{}, false, errs.Wrapf(err, "symfile: bad offset in %q", line)
	}
	line64, err := strconv.Atoi(fields[3])
	if err != nil {
		return Record{}, false, errs.Wrapf(err, "symfile: bad line number in %q", line)
	}
	return Record{Offset: offset, File: fields[1], Name: fields[2], Line: line64}, true, nil
}
