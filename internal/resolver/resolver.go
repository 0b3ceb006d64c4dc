package resolver

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/binrts/binrts/internal/errs"
	"github.com/binrts/binrts/internal/host"
	"github.com/binrts/binrts/internal/symfile"
)

// Options configures a Resolver, mirroring the resolver's CLI flags in
// spec.md section 6.
type Options struct {
	Ext            string         // -ext, default ".log"
	SourceRegex    *regexp.Regexp // -regex
	Root           string         // -root
	Extracted      bool           // -extracted: disables online resolution
	Debug          bool           // -debug
	CachePath      string         // gob-encoded cache snapshot, loaded at the start of Run and saved at its end
}

// skippedFiles are the dump-directory files run() never treats as dump
// files to rewrite (spec.md section 4.3).
var skippedFiles = map[string]bool{
	"dump-lookup.log": true,
	"coverage.log":    true,
}

// Resolver is the SymbolResolver component.
type Resolver struct {
	opts    Options
	backend host.DebugBackend
	cache   *Cache

	extractedGroup singleflight.Group
	extractedMu    sync.Mutex
	extractedCache map[string][]symfile.Record
}

// New builds a Resolver. backend is used for online resolution; pass the
// ELF/DWARF backend (see elfbackend.go) for real binaries, or an
// host.Fake for tests.
func New(opts Options, backend host.DebugBackend) *Resolver {
	if opts.Ext == "" {
		opts.Ext = ".log"
	}
	return &Resolver{
		opts:           opts,
		backend:        backend,
		cache:          NewCache(),
		extractedCache: map[string][]symfile.Record{},
	}
}

// Stats exposes the cache's query/hit counters.
func (r *Resolver) Stats() (queries, hits int64) { return r.cache.Stats() }

// FindSymbol implements spec.md section 4.3's find_symbol: the resolver's
// interior hot path.
func (r *Resolver) FindSymbol(moduleName, modulePath string, offset uint64) (*CoveredSymbol, error) {
	entry, hit, copyFrom, mc := r.cache.lookup(moduleName, offset)
	if hit {
		return entry, nil
	}

	entry = r.cache.insertUnresolved(mc, moduleName, offset)

	if copyFrom != nil {
		fillFromLast(entry, copyFrom)
		return entry, nil
	}

	if r.opts.Extracted {
		return r.resolveFromExtracted(moduleName, modulePath, entry, mc)
	}

	if r.backend == nil {
		entry.Status = NotFound
		return entry, nil
	}

	sym, err := r.backend.LookupAddress(modulePath, offset)
	if err != nil {
		entry.Status = NotFound
		return entry, nil
	}

	entry.Name = sym.Name
	entry.File = sym.File
	entry.Line = sym.Line
	// The fake/real backend is expected to also expose the symbol's
	// start/end via EnumerateSymbols; approximate a single-offset range
	// when unavailable so isSameSymbol degrades to "this offset only".
	entry.Start, entry.End = r.symbolRange(modulePath, offset, sym.Name)

	if r.opts.SourceRegex != nil && !r.opts.SourceRegex.MatchString(entry.File) {
		entry.Status = Excluded
	} else {
		entry.Status = Resolved
	}

	r.cache.insertSentinels(mc, entry)
	return entry, nil
}

func (r *Resolver) symbolRange(modulePath string, offset uint64, name string) (uint64, uint64) {
	var start, end uint64 = offset, offset
	r.backend.EnumerateSymbols(modulePath, func(symName string, s, e uint64) bool {
		if symName == name && offset >= s && offset <= e {
			start, end = s, e
			return false
		}
		return true
	})
	return start, end
}

// resolveFromExtracted implements spec.md section 4.3's -extracted mode:
// load "<module path>.binaryrts" (the file internal/extractor writes,
// beside the module) on first access and populate the cache with
// Resolved entries.
func (r *Resolver) resolveFromExtracted(moduleName, modulePath string, entry *CoveredSymbol, mc *moduleCache) (*CoveredSymbol, error) {
	records, err := r.loadExtracted(modulePath)
	if err != nil {
		entry.Status = NotFound
		return entry, nil
	}

	for _, rec := range records {
		e := &CoveredSymbol{Name: rec.Name, File: rec.File, Line: rec.Line, Offset: rec.Offset, Start: rec.Offset, End: rec.Offset, Status: Resolved}
		r.cache.mu.Lock()
		if _, ok := mc.entries[rec.Offset]; !ok {
			mc.entries[rec.Offset] = e
		}
		r.cache.mu.Unlock()
	}

	r.cache.mu.Lock()
	e, ok := mc.entries[entry.Offset]
	r.cache.mu.Unlock()
	if !ok {
		entry.Status = NotFound
		return entry, nil
	}
	return e, nil
}

func (r *Resolver) loadExtracted(modulePath string) ([]symfile.Record, error) {
	path := modulePath + ".binaryrts"

	r.extractedMu.Lock()
	if recs, ok := r.extractedCache[path]; ok {
		r.extractedMu.Unlock()
		return recs, nil
	}
	r.extractedMu.Unlock()

	v, err, _ := r.extractedGroup.Do(path, func() (interface{}, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.Wrapf(err, "resolver: open extracted symbols %q", path)
		}
		defer f.Close()
		return symfile.Read(f)
	})
	if err != nil {
		return nil, err
	}

	recs := v.([]symfile.Record)
	r.extractedMu.Lock()
	r.extractedCache[path] = recs
	r.extractedMu.Unlock()
	return recs, nil
}

// LoadCache warm-starts the resolver's cache from opts.CachePath, if set.
// A missing snapshot is not an error.
func (r *Resolver) LoadCache() error {
	if r.opts.CachePath == "" {
		return nil
	}
	return r.cache.LoadFromFile(r.opts.CachePath)
}

// SaveCache persists the resolver's cache to opts.CachePath, if set.
func (r *Resolver) SaveCache() error {
	if r.opts.CachePath == "" {
		return nil
	}
	return r.cache.SaveToFile(r.opts.CachePath)
}

// Run implements spec.md section 4.3's run(): walk opts.Root recursively,
// rewrite every file matching opts.Ext that isn't in skippedFiles, then
// persist the cache snapshot if configured so the next invocation can
// warm-start.
func (r *Resolver) Run(ctx context.Context) error {
	if err := r.LoadCache(); err != nil {
		return err
	}

	var files []string
	err := filepath.Walk(r.opts.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if skippedFiles[name] {
			return nil
		}
		if filepath.Ext(path) != r.opts.Ext {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return errs.Wrapf(err, "resolver: walk %q", r.opts.Root)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := r.RewriteFile(f); err != nil {
				// Batch tools continue past per-file failures, per
				// spec.md section 7.
				return nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return r.SaveCache()
}
