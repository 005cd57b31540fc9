// Package spt implements spec.md §4.1: the per-process supplemental page
// table, the authority on what a user virtual page is backed by and
// whether it is currently resident.
//
// Grounded on biscuit/src/vm/as.go's Vm_t (a per-process address-space struct
// owning its page directory and a name-your-own-mapping table) for the
// per-process-table shape, and on DESIGN NOTES' "kind as a tagged variant"
// guidance: CODE/FILE/MMAP carry disjoint per-kind data (codeData,
// fileData) rather than one struct with a union of optional fields.
package spt

import (
	"io"
	"sync"

	"pagevm/corelock"
	"pagevm/defs"
	"pagevm/fileops"
	"pagevm/frame"
	"pagevm/framepool"
	"pagevm/pagedir"
	"pagevm/swap"
	"pagevm/util"
)

// codeData holds the per-kind state of a CODE entry: anonymous, swap-backed.
type codeData struct {
	inSwap   bool
	swapSlot swap.Slot
}

// fileData holds the per-kind state shared by FILE and MMAP entries.
type fileData struct {
	file      fileops.File
	ofs       int64
	readBytes int
	zeroBytes int
	writable  bool
}

// Entry is an SptEntry (spec.md §3.1). It implements frame.Owner so the
// frame table can dispatch eviction without depending on this package.
type Entry struct {
	mu        sync.Mutex
	table     *Table
	upage     uintptr
	kind      frame.Kind
	frameData []byte // present ⟺ resident
	pinned    bool
	code      *codeData
	file      *fileData
}

// Upage returns the entry's page-aligned user virtual address.
func (e *Entry) Upage() uintptr { return e.upage }

// Kind implements frame.Owner.
func (e *Entry) Kind() frame.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kind
}

// Pinned implements frame.Owner. Callers scanning for a victim already hold
// corelock.Pin, so no additional synchronization against concurrent pin/unpin
// is required here beyond the entry's own field lock.
func (e *Entry) Pinned() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pinned
}

// WriteBack implements frame.Owner and backs write_to_disk (spec.md §4.2):
// a no-op if the page directory reports the page clean or the entry has no
// file backing (CODE).
func (e *Entry) WriteBack(dir pagedir.Dir, upage uintptr, frameData []byte) error {
	e.mu.Lock()
	kind := e.kind
	fd := e.file
	e.mu.Unlock()
	if kind == frame.Code || fd == nil {
		return nil
	}
	if !dir.IsDirty(upage) {
		return nil
	}
	if _, err := fd.file.WriteAt(frameData[:fd.readBytes], fd.ofs); err != nil {
		return defs.Wrap(err, "spt: write_to_disk")
	}
	dir.SetDirty(upage, false)
	return nil
}

// WriteToDisk is the exported, no-argument form used outside of eviction
// (e.g. by free_spte during teardown).
func (e *Entry) WriteToDisk() error {
	e.mu.Lock()
	dir := e.table.dir
	upage := e.upage
	kpage := e.frameData
	e.mu.Unlock()
	if kpage == nil {
		return nil
	}
	return e.WriteBack(dir, upage, kpage)
}

// Evict implements frame.Owner (spec.md §4.2 evict(fte)). It persists the
// frame's contents according to kind but does not touch the hardware
// mapping or the frame table entry — the caller (package frame) does that.
func (e *Entry) Evict(dir pagedir.Dir, upage uintptr, frameData []byte) error {
	e.mu.Lock()
	kind := e.kind
	e.mu.Unlock()

	switch kind {
	case frame.Mmap:
		if err := e.WriteBack(dir, upage, frameData); err != nil {
			return defs.Wrap(err, "spt: mmap write-back on evict")
		}
		return nil
	case frame.File:
		// FILE→CODE promotion (DESIGN NOTES): a writable, dirty FILE page
		// cannot be written back to the read-only executable; swap it
		// instead, as CODE.
		e.mu.Lock()
		e.kind = frame.Code
		e.code = &codeData{}
		e.file = nil
		e.mu.Unlock()
		fallthrough
	case frame.Code:
		slot, err := e.table.swap.SwapOut(frameData)
		if err != nil {
			// Supplemental feature: swap exhaustion is process-fatal, not
			// system-fatal — the error propagates up through
			// frame.Table.GetFrame to whatever caller was servicing this
			// fault, which terminates only that process.
			return defs.Wrap(err, "spt: swap out")
		}
		e.mu.Lock()
		e.code.inSwap = true
		e.code.swapSlot = slot
		e.mu.Unlock()
		return nil
	}
	return nil
}

// Detach implements frame.Owner: clears resident-frame bookkeeping after
// the frame table has removed its entry for this page.
func (e *Entry) Detach() {
	e.mu.Lock()
	e.frameData = nil
	e.mu.Unlock()
}

// Table is a per-process supplemental page table (spt_init's result).
type Table struct {
	mu      sync.RWMutex
	entries map[uintptr]*Entry

	dir    pagedir.Dir
	pid    defs.Tid_t
	frames *frame.Table
	swap   swap.Device

	stackCeiling uintptr
	maxStackSize uintptr
}

// New is spt_init: an empty per-process table bound to dir (this process's
// page directory), the system-wide frame table, and the system-wide swap
// device. stackCeiling is the user-address ceiling the stack grows down
// from; maxStackSize bounds grow_stack (spec.md §4.1).
func New(dir pagedir.Dir, pid defs.Tid_t, frames *frame.Table, sw swap.Device, stackCeiling, maxStackSize uintptr) *Table {
	return &Table{
		entries:      make(map[uintptr]*Entry),
		dir:          dir,
		pid:          pid,
		frames:       frames,
		swap:         sw,
		stackCeiling: stackCeiling,
		maxStackSize: maxStackSize,
	}
}

// Lookup is spt_lookup: round addr down to its page and return that page's
// entry, if any.
func (t *Table) Lookup(addr uintptr) (*Entry, bool) {
	pg := defs.PageRounddown(addr)
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[pg]
	return e, ok
}

// CreateCode is spt_create_code: register a new anonymous page, not yet
// resident. Used for stack growth and heap.
func (t *Table) CreateCode(upage uintptr) (*Entry, error) {
	upage = defs.PageRounddown(upage)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[upage]; exists {
		return nil, defs.EINVAL
	}
	e := &Entry{table: t, upage: upage, kind: frame.Code, code: &codeData{}}
	t.entries[upage] = e
	return e, nil
}

// CreateFile is spt_create_file: register one read-only or writable
// file-backed page. Callers split a multi-page run into one call per page,
// advancing ofs by readBytes each time, so the evictor can operate per page
// (spec.md §4.1).
func (t *Table) CreateFile(file fileops.File, ofs int64, upage uintptr, readBytes, zeroBytes int, writable bool) (*Entry, error) {
	if readBytes+zeroBytes != defs.PageSize {
		return nil, defs.EINVAL
	}
	upage = defs.PageRounddown(upage)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[upage]; exists {
		return nil, defs.EINVAL
	}
	e := &Entry{
		table: t, upage: upage, kind: frame.File,
		file: &fileData{file: file, ofs: ofs, readBytes: readBytes, zeroBytes: zeroBytes, writable: writable},
	}
	t.entries[upage] = e
	return e, nil
}

// CreateMmap is spt_create_mmap: allocate a run of MMAP entries covering
// length bytes starting at upage. Fails with defs.EMMAPCONFLICT and rolls
// back nothing (nothing is inserted until every target page is confirmed
// free) if any target page already has an entry.
func (t *Table) CreateMmap(file fileops.File, length int64, upage uintptr) (*Entry, error) {
	if length <= 0 {
		return nil, defs.EINVAL
	}
	base := defs.PageRounddown(upage)
	count := int((length + defs.PageSize - 1) / defs.PageSize)

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < count; i++ {
		pg := base + uintptr(i)*defs.PageSize
		if _, exists := t.entries[pg]; exists {
			return nil, defs.EMMAPCONFLICT
		}
	}

	var first *Entry
	remaining := length
	for i := 0; i < count; i++ {
		pg := base + uintptr(i)*defs.PageSize
		readBytes := int(util.Min(remaining, int64(defs.PageSize)))
		e := &Entry{
			table: t, upage: pg, kind: frame.Mmap,
			file: &fileData{
				file: file, ofs: int64(i) * defs.PageSize,
				readBytes: readBytes, zeroBytes: defs.PageSize - readBytes,
				writable: true,
			},
		}
		t.entries[pg] = e
		if first == nil {
			first = e
		}
		remaining -= int64(readBytes)
	}
	return first, nil
}

// DestroyMmap is spt_destroy_mmap: release every page of the mapping
// firstEntry anchors. Per the supplemental "iterate by page count" fix
// (DESIGN NOTES (b)), the walk is bounded by ceil(file length / page size),
// not by trusting any single entry's read_bytes bookkeeping, so a corrupt
// or zeroed read_bytes on one page can never truncate the teardown.
func (t *Table) DestroyMmap(firstEntry *Entry) error {
	firstEntry.mu.Lock()
	if firstEntry.kind != frame.Mmap || firstEntry.file == nil {
		firstEntry.mu.Unlock()
		return defs.EINVAL
	}
	backing := firstEntry.file.file
	base := firstEntry.upage
	firstEntry.mu.Unlock()

	length, err := backing.Length()
	if err != nil {
		return defs.Wrap(err, "spt: destroy_mmap length")
	}
	count := int((length + defs.PageSize - 1) / defs.PageSize)

	var firstErr error
	for i := 0; i < count; i++ {
		pg := base + uintptr(i)*defs.PageSize
		t.mu.Lock()
		e, ok := t.entries[pg]
		t.mu.Unlock()
		if !ok {
			continue
		}
		e.mu.Lock()
		sameFile := e.kind == frame.Mmap && e.file != nil && e.file.file == backing
		e.mu.Unlock()
		if !sameFile {
			continue
		}
		if err := t.freeSpte(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DestroyAll is spt_destroy_all: free every entry, releasing frames and
// swap slots. Write-back failures during this teardown path are best-effort
// and silently discarded (spec.md §7: "the process is exiting").
func (t *Table) DestroyAll() {
	t.mu.Lock()
	all := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		all = append(all, e)
	}
	t.mu.Unlock()
	for _, e := range all {
		_ = t.freeSpte(e)
	}
}

// freeSpte is the per-entry release procedure (spec.md §4.1): write back if
// owed, detach hardware mapping, free the frame, release any swap slot,
// remove from the table.
func (t *Table) freeSpte(e *Entry) error {
	e.mu.Lock()
	resident := e.frameData != nil
	kpage := e.frameData
	kind := e.kind
	writable := e.file != nil && e.file.writable
	e.mu.Unlock()

	var writeErr error
	if resident && (kind == frame.Mmap || (kind == frame.File && writable)) {
		writeErr = e.WriteBack(t.dir, e.upage, kpage)
	}

	if resident {
		t.dir.Clear(e.upage)
		t.frames.FreeFrame(kpage)
	}

	e.mu.Lock()
	if e.kind == frame.Code && e.code != nil && e.code.inSwap {
		t.swap.Free(e.code.swapSlot)
	}
	e.mu.Unlock()

	t.mu.Lock()
	delete(t.entries, e.upage)
	t.mu.Unlock()

	return writeErr
}

// InstallLoad is install_load_page: materialize entry's contents into a
// fresh frame and install the hardware mapping. Serialized system-wide
// under corelock.Evict so a loader never races the victim scanner into a
// half-resident state.
func (t *Table) InstallLoad(e *Entry) error {
	corelock.Evict.Lock()
	defer corelock.Evict.Unlock()

	e.mu.Lock()
	kind := e.kind
	e.mu.Unlock()

	flags := framepool.User
	if kind == frame.Code {
		flags |= framepool.Zero
	}

	kpage, err := t.frames.GetFrame(flags, frame.Request{Owner: e, Dir: t.dir, Upage: e.upage, Pid: t.pid})
	if err != nil {
		return err
	}

	var writable bool
	switch kind {
	case frame.File, frame.Mmap:
		e.mu.Lock()
		fd := e.file
		e.mu.Unlock()
		n, rerr := fd.file.ReadAt(kpage[:fd.readBytes], fd.ofs)
		if n < fd.readBytes {
			t.frames.FreeFrame(kpage)
			if rerr == nil {
				rerr = io.ErrUnexpectedEOF
			}
			return defs.Wrap(rerr, "spt: install_load short read")
		}
		for i := fd.readBytes; i < defs.PageSize; i++ {
			kpage[i] = 0
		}
		writable = fd.writable
	case frame.Code:
		e.mu.Lock()
		inSwap := e.code.inSwap
		slot := e.code.swapSlot
		e.mu.Unlock()
		if inSwap {
			if err := t.swap.SwapIn(slot, kpage); err != nil {
				t.frames.FreeFrame(kpage)
				return defs.Wrap(err, "spt: install_load swap in")
			}
			t.swap.Free(slot)
			e.mu.Lock()
			e.code.inSwap = false
			e.mu.Unlock()
		}
		writable = true
	}

	if !t.dir.Install(e.upage, kpage, writable) {
		t.frames.FreeFrame(kpage)
		return defs.EFAULT
	}

	e.mu.Lock()
	e.frameData = kpage
	e.mu.Unlock()
	return nil
}

// GrowStack is grow_stack: create an anonymous CODE entry at
// round_down(addr) and load it, refusing growth past maxStackSize below the
// stack ceiling. pinned makes the new page unevictable until the caller
// unpins it.
func (t *Table) GrowStack(addr uintptr, pinned bool) (*Entry, error) {
	page := defs.PageRounddown(addr)
	if page > t.stackCeiling || t.stackCeiling-page > t.maxStackSize {
		return nil, defs.EFAULT
	}

	e, err := t.CreateCode(page)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.pinned = pinned
	e.mu.Unlock()

	if err := t.InstallLoad(e); err != nil {
		_ = t.freeSpte(e)
		return nil, err
	}
	return e, nil
}

// SetPinned is used by package fault to mark/clear an entry's pinned bit
// under corelock.Pin.
func (e *Entry) SetPinned(v bool) {
	e.mu.Lock()
	e.pinned = v
	e.mu.Unlock()
}

// Resident reports whether the entry currently has a mapped frame.
func (e *Entry) Resident() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameData != nil
}

// Writable reports the entry's writability: always true for CODE, the
// stored flag for FILE/MMAP.
func (e *Entry) Writable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kind == frame.Code {
		return true
	}
	if e.file == nil {
		return false
	}
	return e.file.writable
}
