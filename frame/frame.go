// Package frame implements spec.md §4.2: the system-wide frame table and
// its enhanced second-chance eviction engine.
//
// Grounded on biscuit/src/mem/mem.go's Physmem_t (a fixed arena handed out from
// a free list, refcounted, with allocation falling back to reclaiming
// pages under contention) generalized from "allocate or panic" to
// "allocate or evict a victim and retry", and on biscuit/src/fs/blk.go's
// Disk_i / Bdev_block_t eviction callbacks (Tryevict/Evictnow/EvictDone),
// whose try-then-evict shape becomes this package's victim scan.
package frame

import (
	"container/list"
	"sync"

	"pagevm/corelock"
	"pagevm/defs"
	"pagevm/framepool"
	"pagevm/pagedir"
)

// Kind is the SPT entry kind. It is defined here rather than in package spt
// (which imports frame for Table), keeping the two packages' dependency
// acyclic: spt entries store and report their Kind through the Owner
// interface below using these same three values.
type Kind int

const (
	Code Kind = iota
	File
	Mmap
)

// Owner is implemented by the SPT entry that owns a resident frame. The
// frame table never reaches into SPT internals directly; kind-specific
// persistence during eviction is dispatched back through this interface,
// matching spec.md §9's note that the SPT↔FrameTable link is non-owning on
// both sides.
type Owner interface {
	Kind() Kind
	Pinned() bool
	// WriteBack persists frameData to the owner's backing file if the page
	// directory reports it dirty, then clears the dirty bit on success. It
	// is a no-op (and returns nil) if the page is clean or has no file
	// backing (CODE).
	WriteBack(dir pagedir.Dir, upage uintptr, frameData []byte) error
	// Evict fully evicts the owner's resident page: promotes FILE to CODE
	// and swaps out, swaps out CODE directly, or write-backs MMAP. It does
	// not touch the hardware mapping or the frame table entry.
	Evict(dir pagedir.Dir, upage uintptr, frameData []byte) error
	// Detach clears the owner's resident-frame bookkeeping. Called after
	// the hardware mapping is cleared and the frame table entry removed.
	Detach()
}

// Entry is a FrameTableEntry (spec.md §3.2): one resident frame's
// bookkeeping.
type Entry struct {
	elem  *list.Element
	Frame []byte
	Dir   pagedir.Dir
	Upage uintptr
	Pid   defs.Tid_t
	Owner Owner
}

// Request bundles the context the frame table needs to build an Entry on a
// successful allocation.
type Request struct {
	Owner Owner
	Dir   pagedir.Dir
	Upage uintptr
	Pid   defs.Tid_t
}

// Table is the system-wide frame table.
type Table struct {
	pool    framepool.Pool
	mu      sync.Mutex // serializes list access beyond corelock.FrameTable's scan-time hold
	entries *list.List // FIFO of *Entry, insertion order
	byFrame map[*byte]*Entry
}

// NewTable returns a frame table allocating from pool.
func NewTable(pool framepool.Pool) *Table {
	return &Table{
		pool:    pool,
		entries: list.New(),
		byFrame: make(map[*byte]*Entry),
	}
}

func frameKey(kpage []byte) *byte {
	return &kpage[0]
}

// GetFrame implements get_frame(flags, spte): allocate a fresh frame, or
// evict victims until one is free. flags' Zero bit requests zero-fill (used
// by CODE loads).
//
// Callers must already hold corelock.Evict: GetFrame's only production
// caller, spt.Table.InstallLoad, takes it for its whole body so a loader
// never races the victim scanner into a half-resident state, and
// eviction itself must run under that same lock. GetFrame therefore never
// acquires corelock.Evict itself — doing so here would be a second,
// self-deadlocking acquisition by the same goroutine when called from
// InstallLoad. Tests that call GetFrame directly (bypassing InstallLoad)
// must take corelock.Evict around the call themselves.
func (t *Table) GetFrame(flags framepool.Flags, req Request) ([]byte, error) {
	if kpage, ok := t.pool.Alloc(flags); ok {
		t.track(kpage, req)
		return kpage, nil
	}

	corelock.Pin.Lock()
	defer corelock.Pin.Unlock()
	corelock.FrameTable.Lock()
	defer corelock.FrameTable.Unlock()

	for {
		if kpage, ok := t.pool.Alloc(flags); ok {
			t.track(kpage, req)
			return kpage, nil
		}
		if t.entries.Len() == 0 {
			panic("frame: pool exhausted and frame table empty")
		}
		if err := t.evictOneLockedNoEvictLock(); err != nil {
			return nil, err
		}
	}
}

func (t *Table) track(kpage []byte, req Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &Entry{Frame: kpage, Dir: req.Dir, Upage: req.Upage, Pid: req.Pid, Owner: req.Owner}
	e.elem = t.entries.PushBack(e)
	t.byFrame[frameKey(kpage)] = e
}

// FreeFrame releases kpage explicitly (outside of eviction), removing its
// frame table entry and returning the frame to the pool.
func (t *Table) FreeFrame(kpage []byte) {
	t.mu.Lock()
	e, ok := t.byFrame[frameKey(kpage)]
	if !ok {
		t.mu.Unlock()
		return
	}
	t.entries.Remove(e.elem)
	delete(t.byFrame, frameKey(kpage))
	t.mu.Unlock()
	t.pool.Free(kpage)
}

// evictOneLockedNoEvictLock runs the three-phase enhanced second-chance
// scan and evicts the chosen victim. Callers must hold corelock.Pin,
// corelock.FrameTable, and corelock.Evict; this method never acquires
// corelock.Evict itself (see GetFrame) since its only caller already holds
// it for the duration of the retry loop.
func (t *Table) evictOneLockedNoEvictLock() error {
	t.mu.Lock()
	victim := t.selectVictim()
	t.mu.Unlock()
	if victim == nil {
		// every frame is pinned: the caller (syscall pinning discipline)
		// failed to uphold the invariant that at least one unpinned frame
		// exists under normal load.
		panic("frame: no unpinned frame available to evict")
	}

	kpage := victim.Frame
	if err := victim.Owner.Evict(victim.Dir, victim.Upage, kpage); err != nil {
		return defs.Wrap(err, "frame: evict")
	}
	victim.Dir.Clear(victim.Upage)

	t.mu.Lock()
	t.entries.Remove(victim.elem)
	delete(t.byFrame, frameKey(kpage))
	t.mu.Unlock()

	victim.Owner.Detach()
	t.pool.Free(kpage)
	return nil
}

// selectVictim runs phases 1–3 of the enhanced second-chance scan. Callers
// must hold t.mu.
func (t *Table) selectVictim() *Entry {
	if v := t.scanOnce(); v != nil {
		return v
	}
	// Phase 2: second-chance sweep. Clear the accessed bit on every
	// unpinned frame, then re-search.
	for e := t.entries.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*Entry)
		if !ent.Owner.Pinned() {
			ent.Dir.SetAccessed(ent.Upage, false)
		}
	}
	if v := t.scanOnce(); v != nil {
		return v
	}
	// Phase 3: fallback, first unpinned frame in FIFO order.
	for e := t.entries.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*Entry)
		if !ent.Owner.Pinned() {
			return ent
		}
	}
	return nil
}

// scanOnce runs phase 1's single pass: opportunistically clean dirty
// non-CODE pages in place, and return the first not-accessed candidate
// whose dirty bit doesn't block eviction.
func (t *Table) scanOnce() *Entry {
	for e := t.entries.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*Entry)
		if ent.Owner.Pinned() {
			continue
		}
		kind := ent.Owner.Kind()
		dirty := ent.Dir.IsDirty(ent.Upage)
		if kind != Code && dirty {
			// Opportunistic cleaning: write back now, keep scanning. Errors
			// here are not fatal to the scan; a write-back failure simply
			// leaves the page dirty and it will be considered again (or
			// fall through to phase 3).
			_ = ent.Owner.WriteBack(ent.Dir, ent.Upage, ent.Frame)
			continue
		}
		accessed := ent.Dir.IsAccessed(ent.Upage)
		if !accessed && (!dirty || kind == Code) {
			return ent
		}
	}
	return nil
}

// Len reports the number of resident frames, for diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len()
}

// Snapshot returns the frame table entries in FIFO order, for diagnostics
// (package diag) without exposing the live list.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, t.entries.Len())
	for e := t.entries.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Entry))
	}
	return out
}
