// Package extractor implements the pre-extraction pass: enumerate a
// module's (offset, file, line) triples once, ahead of time, and write
// them to a sibling ".binaryrts" file so that later resolver runs can
// load symbols without touching the module's debug info at all (useful
// when the module itself is cleaned up before resolution happens).
package extractor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/binrts/binrts/internal/errs"
	"github.com/binrts/binrts/internal/host"
	"github.com/binrts/binrts/internal/logging"
	"github.com/binrts/binrts/internal/symfile"
)

// Mode selects what ends up in the extracted file.
type Mode int

const (
	// All extracts every enumerated source line.
	All Mode = iota
	// SymbolsOnly extracts only the lines that coincide with a
	// function's entry offset, keyed by symbol name.
	SymbolsOnly
)

type Options struct {
	Mode        Mode
	SourceRegex *regexp.Regexp
	Debug       bool
}

// Extractor runs the pre-extraction pass against a host.DebugBackend.
type Extractor struct {
	opts    Options
	backend host.DebugBackend
}

func New(opts Options, backend host.DebugBackend) *Extractor {
	return &Extractor{opts: opts, backend: backend}
}

// Extract enumerates modulePath's lines (and, in SymbolsOnly mode,
// cross-references them against its symbols) and writes the result to
// modulePath + ".binaryrts".
func (e *Extractor) Extract(modulePath string) (string, error) {
	start := time.Now()

	kind, err := e.backend.ModuleDebugKind(modulePath)
	if err != nil {
		return "", errs.Wrapf(err, "extractor: query debug kind for %q", modulePath)
	}
	if kind == host.DebugKindNone {
		return "", fmt.Errorf("extractor: no symbol or line information for %q", modulePath)
	}
	logging.Infof("extractor: using symbol format %s for %s", kind, modulePath)

	byOffset := map[uint64]symfile.Record{}
	if err := e.backend.EnumerateLines(modulePath, func(offset uint64, file string, line int) bool {
		if e.opts.SourceRegex != nil && !e.opts.SourceRegex.MatchString(file) {
			return true
		}
		byOffset[offset] = symfile.Record{Offset: offset, File: file, Name: "unknown", Line: line}
		return true
	}); err != nil {
		return "", errs.Wrapf(err, "extractor: enumerate lines for %q", modulePath)
	}

	var records []symfile.Record
	switch e.opts.Mode {
	case SymbolsOnly:
		err := e.backend.EnumerateSymbols(modulePath, func(name string, symStart, symEnd uint64) bool {
			if rec, ok := byOffset[symStart]; ok {
				rec.Name = name
				records = append(records, rec)
				delete(byOffset, symStart)
			}
			return true
		})
		if err != nil {
			return "", errs.Wrapf(err, "extractor: enumerate symbols for %q", modulePath)
		}
	default:
		for _, rec := range byOffset {
			records = append(records, rec)
		}
	}

	outPath := modulePath + ".binaryrts"
	if err := symfile.WriteFile(outPath, records); err != nil {
		return "", err
	}
	logging.Infof("extractor: wrote %d records for %s in %s", len(records), filepath.Base(modulePath), time.Since(start))
	return outPath, nil
}
