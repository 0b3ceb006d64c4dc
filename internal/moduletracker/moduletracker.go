// Package moduletracker keeps the authoritative table of natively loaded
// modules and answers "which module owns this program counter?" on the
// instrumentation hot path. It mirrors the Module/ModuleManager contract
// shape used across the pack's debugger tooling, generalised to the
// reload-rebind and segment-range semantics this pipeline needs.
package moduletracker

import (
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set"

	"github.com/binrts/binrts/internal/errs"
)

// ID is a stable, monotonically non-decreasing module identifier. Ids are
// never reused.
type ID uint64

// Descriptor is everything the host tells the tracker about a module at
// load time.
type Descriptor struct {
	Name       string
	Path       string
	Start      uint64
	End        uint64
	EntryPoint uint64
	Checksum   uint32
	Timestamp  uint32
}

func (d Descriptor) contains(pc uint64) bool {
	return pc >= d.Start && pc < d.End
}

// sameIdentity reports whether two descriptors describe the same on-disk
// module loaded at the same address, the rebind condition from spec.md
// section 3 ("Module entry").
func (d Descriptor) sameIdentity(o Descriptor) bool {
	return d.Start == o.Start && d.End == o.End &&
		d.EntryPoint == o.EntryPoint && d.Name == o.Name &&
		d.Checksum == o.Checksum && d.Timestamp == o.Timestamp
}

// Entry is a tracked module. Once created, only Unloaded is ever mutated;
// callers must not retain pointers across table mutations without regard
// for that flag.
type Entry struct {
	ID       ID
	Desc     Descriptor
	Unloaded bool
}

// Result is what Lookup returns on a hit.
type Result struct {
	ModuleID   ID
	Base       uint64
	ModuleName string
	ModulePath string
}

const (
	perGoroutineLRUSize = 4
	globalCacheSlots    = 8
)

// lru is the per-goroutine tier: a tiny fixed-size, most-recently-used-
// first list. Only ever touched by the goroutine that owns it, so it
// needs no locking of its own.
type lru struct {
	entries [perGoroutineLRUSize]*Entry
}

func (l *lru) find(pc uint64) *Entry {
	for i, e := range l.entries {
		if e == nil {
			break
		}
		if e.Desc.contains(pc) {
			l.promote(i)
			return e
		}
	}
	return nil
}

func (l *lru) promote(i int) {
	if i == 0 {
		return
	}
	e := l.entries[i]
	copy(l.entries[1:i+1], l.entries[0:i])
	l.entries[0] = e
}

func (l *lru) insert(e *Entry) {
	copy(l.entries[1:], l.entries[0:perGoroutineLRUSize-1])
	l.entries[0] = e
}

// gidRegexp mirrors the goroutine-id-extraction trick used across the
// pack for anything that needs a cheap per-goroutine key without true
// thread-local storage: parse it out of runtime.Stack's first line.
var gidRegexp = regexp.MustCompile(`^goroutine (\d+)`)

func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	m := gidRegexp.FindSubmatch(buf[:n])
	if m == nil {
		return -1
	}
	id, _ := strconv.ParseInt(string(m[1]), 10, 64)
	return id
}

// Tracker is the ModuleTracker component: spec.md section 4.1.
type Tracker struct {
	mu      sync.Mutex
	entries []*Entry // append-only except for the Unloaded flag; scanned back to front
	nextID  ID

	allowList mapset.Set // of module name; nil means "instrument everything"

	global [globalCacheSlots]atomic.Pointer[Entry]

	goroutineCaches sync.Map // int64 goroutine id -> *lru
}

// New creates a Tracker. allowList, if non-nil, restricts on_module_load
// to the given module names; anything not on it is never added to the
// table (spec.md section 4.1).
func New(allowList []string) *Tracker {
	t := &Tracker{}
	if allowList != nil {
		s := mapset.NewSet()
		for _, n := range allowList {
			s.Add(n)
		}
		t.allowList = s
	}
	return t
}

// OnModuleLoad implements spec.md section 4.1's on_module_load. It is
// idempotent: a matching unloaded entry is resurrected in place rather
// than assigned a new id.
func (t *Tracker) OnModuleLoad(desc Descriptor) (*Entry, bool) {
	if t.allowList != nil && !t.allowList.Contains(desc.Name) {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if e.Unloaded && e.Desc.sameIdentity(desc) {
			e.Unloaded = false
			return e, true
		}
	}

	e := &Entry{ID: t.nextID, Desc: desc}
	t.nextID++
	t.entries = append(t.entries, e)
	return e, true
}

// OnModuleUnload implements spec.md section 4.1's on_module_unload. It
// walks the table back to front because reloads cluster near the tail.
func (t *Tracker) OnModuleUnload(start uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if !e.Unloaded && e.Desc.Start == start {
			e.Unloaded = true
			return
		}
	}
}

// Lookup implements the three-tier algorithm from spec.md section 4.1.
// It is the instrumentation hot path.
func (t *Tracker) Lookup(pc uint64) (Result, error) {
	gid := goroutineID()
	var cache *lru
	if v, ok := t.goroutineCaches.Load(gid); ok {
		cache = v.(*lru)
		if e := cache.find(pc); e != nil && !e.Unloaded {
			return resultOf(e), nil
		}
	}

	for i := range t.global {
		e := t.global[i].Load()
		if e != nil && !e.Unloaded && e.Desc.contains(pc) {
			t.populate(cache, gid, e)
			return resultOf(e), nil
		}
	}

	t.mu.Lock()
	var found *Entry
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if !e.Unloaded && e.Desc.contains(pc) {
			found = e
			break
		}
	}
	t.mu.Unlock()

	if found == nil {
		return Result{}, errs.ErrNotFound
	}

	t.global[uint64(found.ID)%globalCacheSlots].Store(found)
	t.populate(cache, gid, found)
	return resultOf(found), nil
}

func (t *Tracker) populate(cache *lru, gid int64, e *Entry) {
	if cache == nil {
		cache = &lru{}
		t.goroutineCaches.Store(gid, cache)
	}
	cache.insert(e)
}

func resultOf(e *Entry) Result {
	return Result{
		ModuleID:   e.ID,
		Base:       e.Desc.Start,
		ModuleName: e.Desc.Name,
		ModulePath: e.Desc.Path,
	}
}

// Entries returns a snapshot of all tracked entries (live and unloaded),
// ordered by id.
func (t *Tracker) Entries() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
