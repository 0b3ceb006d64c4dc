package resolver

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/binrts/binrts/internal/errs"
)

// cacheSnapshot is the gob-encoded form of a Cache's resolved entries,
// grounded on the teacher's append-only gob encoder for its symbol
// store. Only the per-module entry maps are persisted; the MRU shortcut
// slots are rebuilt on first use after loading.
type cacheSnapshot struct {
	Modules map[string]map[uint64]*CoveredSymbol
}

// SaveToFile gob-encodes the cache's resolved entries to path, so a
// later run against the same binaries can warm-start instead of
// re-querying the debug backend.
func (c *Cache) SaveToFile(path string) error {
	c.mu.Lock()
	snap := cacheSnapshot{Modules: make(map[string]map[uint64]*CoveredSymbol, len(c.modules))}
	for name, mc := range c.modules {
		snap.Modules[name] = mc.entries
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrapf(err, "resolver: mkdir for cache snapshot %q", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrapf(err, "resolver: create cache snapshot %q", path)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		return errs.Wrapf(err, "resolver: encode cache snapshot %q", path)
	}
	return nil
}

// LoadFromFile restores a previously saved snapshot. A missing file is
// not an error: the cache just starts cold.
func (c *Cache) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrapf(err, "resolver: open cache snapshot %q", path)
	}
	defer f.Close()

	var snap cacheSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return errs.Wrapf(err, "resolver: decode cache snapshot %q", path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = map[string]*moduleCache{}
	for name, entries := range snap.Modules {
		c.modules[name] = &moduleCache{entries: entries}
	}
	return nil
}
