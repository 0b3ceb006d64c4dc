// Package resolver implements the SymbolResolver component: offline
// resolution of BB offsets to (file, function, line) symbols with a
// multi-tier cache, and symbolic rewriting of dump files. The cache
// algorithm (shortcut slots, sentinel insertion at a symbol's start/end)
// is a direct port of the original C++ resolver's findSymbol.
package resolver

import "sync"

// Status is a CoveredSymbol's resolution state. It only ever moves
// Unresolved -> {NotFound, Excluded, Resolved}; the latter three are
// sticky terminal states (spec.md section 3).
type Status int

const (
	Unresolved Status = iota
	NotFound
	Excluded
	Resolved
)

// CoveredSymbol is the resolver's per-offset cache entry (spec.md
// section 3).
type CoveredSymbol struct {
	Name   string
	File   string
	Line   int
	Offset uint64
	Start  uint64
	End    uint64
	Status Status
}

// isSameSymbol reports whether offset falls inside this symbol's range.
func (s *CoveredSymbol) isSameSymbol(offset uint64) bool {
	return s.Start <= offset && offset <= s.End
}

// isSameLine reports whether s and other resolved to the same
// (file, line) pair.
func (s *CoveredSymbol) isSameLine(other *CoveredSymbol) bool {
	return s.File == other.File && s.Line == other.Line
}

type moduleCache struct {
	entries map[uint64]*CoveredSymbol
}

// Cache is the resolver's multi-tier symbol cache: one map per module,
// plus two single-slot MRU shortcuts (spec.md section 4.3).
type Cache struct {
	mu sync.Mutex

	modules map[string]*moduleCache

	lastModuleName string
	lastModuleMap  *moduleCache
	lastOffset     uint64
	lastEntry      *CoveredSymbol

	Queries   int64
	CacheHits int64
}

func NewCache() *Cache {
	return &Cache{modules: map[string]*moduleCache{}}
}

// Stats returns (queries, cache hits) for the observable counters spec.md
// section 4.3 calls out.
func (c *Cache) Stats() (queries, hits int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Queries, c.CacheHits
}

// lookup implements the shortcut-cache portion of find_symbol (steps 1-3
// of spec.md section 4.3). It returns the existing entry if one is
// cached, and whether the new entry (if any) should be filled in from
// lastEntry without a backend query.
func (c *Cache) lookup(moduleName string, offset uint64) (entry *CoveredSymbol, hit bool, copyFrom *CoveredSymbol, mc *moduleCache) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Queries++

	if c.lastModuleName == moduleName && c.lastModuleMap != nil {
		if c.lastOffset == offset {
			c.CacheHits++
			return c.lastEntry, true, nil, c.lastModuleMap
		}
		if c.lastEntry != nil && c.lastEntry.isSameSymbol(offset) {
			copyFrom = c.lastEntry
		}
		mc = c.lastModuleMap
	} else {
		mc = c.modules[moduleName]
		if mc == nil {
			mc = &moduleCache{entries: map[uint64]*CoveredSymbol{}}
			c.modules[moduleName] = mc
		}
		c.lastModuleName = moduleName
		c.lastModuleMap = mc
	}

	if e, ok := mc.entries[offset]; ok {
		c.CacheHits++
		c.lastOffset = offset
		c.lastEntry = e
		return e, true, nil, mc
	}

	return nil, false, copyFrom, mc
}

// insertUnresolved creates a fresh Unresolved entry at offset and records
// it as the cache's MRU shortcut.
func (c *Cache) insertUnresolved(mc *moduleCache, moduleName string, offset uint64) *CoveredSymbol {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &CoveredSymbol{Offset: offset, Status: Unresolved}
	mc.entries[offset] = e
	c.lastModuleName = moduleName
	c.lastModuleMap = mc
	c.lastOffset = offset
	c.lastEntry = e
	return e
}

// fillFromLast copies name/file/line/start/end/status from src into dst,
// the "sameAsLast" shortcut fill from spec.md section 4.3 step 4.
func fillFromLast(dst, src *CoveredSymbol) {
	dst.Name = src.Name
	dst.File = src.File
	dst.Line = src.Line
	dst.Start = src.Start
	dst.End = src.End
	dst.Status = src.Status
}

// insertSentinels records sentinel cache entries at a resolved symbol's
// start and end offsets, so future offsets inside the same symbol hit
// the shortcut-cache tier (spec.md section 4.3 step 6).
func (c *Cache) insertSentinels(mc *moduleCache, sym *CoveredSymbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := mc.entries[sym.Start]; !ok {
		mc.entries[sym.Start] = sym
	}
	if _, ok := mc.entries[sym.End]; !ok {
		mc.entries[sym.End] = sym
	}
}
