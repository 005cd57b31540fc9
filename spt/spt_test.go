package spt

import (
	"testing"

	"pagevm/defs"
	"pagevm/fileops"
	"pagevm/frame"
	"pagevm/framepool"
	"pagevm/pagedir"
	"pagevm/swap"
)

func newTestTable() (*Table, *pagedir.Fake, *frame.Table, *swap.Fake) {
	return newTestTableWithFrames(4)
}

func newTestTableWithFrames(nframes int) (*Table, *pagedir.Fake, *frame.Table, *swap.Fake) {
	pool := framepool.NewArena(nframes)
	frames := frame.NewTable(pool)
	sw := swap.NewFake(4)
	dir := pagedir.NewFake()
	tbl := New(dir, defs.Tid_t(1), frames, sw, 0xC0000000, 1<<20)
	return tbl, dir, frames, sw
}

func TestCreateCodeThenInstallLoadIsZeroed(t *testing.T) {
	tbl, dir, _, _ := newTestTable()
	e, err := tbl.CreateCode(0x1000)
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if e.Resident() {
		t.Fatal("a freshly created entry must not be resident")
	}
	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad: %v", err)
	}
	if !e.Resident() {
		t.Fatal("entry should be resident after InstallLoad")
	}
	kpage, ok := dir.GetPage(0x1000)
	if !ok {
		t.Fatal("page directory has no mapping after InstallLoad")
	}
	for i, b := range kpage {
		if b != 0 {
			t.Fatalf("CODE page byte %d = %#x, want 0 (zero-filled)", i, b)
		}
	}
}

func TestCreateCodeDuplicateRejected(t *testing.T) {
	tbl, _, _, _ := newTestTable()
	if _, err := tbl.CreateCode(0x1000); err != nil {
		t.Fatalf("first CreateCode: %v", err)
	}
	if _, err := tbl.CreateCode(0x1000); err != defs.EINVAL {
		t.Fatalf("duplicate CreateCode err = %v, want EINVAL", err)
	}
}

func TestCreateFileBadSplitRejected(t *testing.T) {
	tbl, _, _, _ := newTestTable()
	backing := fileops.NewFake(make([]byte, defs.PageSize))
	if _, err := tbl.CreateFile(backing, 0, 0x1000, defs.PageSize, 1, false); err != defs.EINVAL {
		t.Fatalf("CreateFile with readBytes+zeroBytes != PageSize err = %v, want EINVAL", err)
	}
}

func TestFileLoadThenWriteBackOnlyIfDirty(t *testing.T) {
	tbl, dir, _, _ := newTestTable()
	content := make([]byte, defs.PageSize)
	copy(content, []byte("hello"))
	backing := fileops.NewFake(content)

	e, err := tbl.CreateFile(backing, 0, 0x1000, defs.PageSize, 0, true)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad: %v", err)
	}
	kpage, _ := dir.GetPage(0x1000)
	if string(kpage[:5]) != "hello" {
		t.Fatalf("loaded page = %q, want prefix %q", kpage[:5], "hello")
	}

	// Clean: WriteToDisk must not touch the backing file.
	if err := e.WriteToDisk(); err != nil {
		t.Fatalf("WriteToDisk (clean): %v", err)
	}

	// Dirty: WriteToDisk must persist and clear the dirty bit.
	copy(kpage, []byte("world"))
	dir.MarkWritten(0x1000)
	if err := e.WriteToDisk(); err != nil {
		t.Fatalf("WriteToDisk (dirty): %v", err)
	}
	if dir.IsDirty(0x1000) {
		t.Fatal("WriteToDisk did not clear the dirty bit")
	}
	if string(backing.Bytes()[:5]) != "world" {
		t.Fatalf("backing file = %q, want prefix %q", backing.Bytes()[:5], "world")
	}
}

func TestCreateMmapRejectsOverlapWithoutPartialInsert(t *testing.T) {
	tbl, _, _, _ := newTestTable()
	if _, err := tbl.CreateCode(0x1000 + defs.PageSize); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	backing := fileops.NewFake(make([]byte, 3*defs.PageSize))
	_, err := tbl.CreateMmap(backing, 3*defs.PageSize, 0x1000)
	if err != defs.EMMAPCONFLICT {
		t.Fatalf("CreateMmap overlap err = %v, want EMMAPCONFLICT", err)
	}
	if _, ok := tbl.Lookup(0x1000); ok {
		t.Fatal("CreateMmap must not insert any entry when a later page conflicts")
	}
}

func TestDestroyMmapWritesBackDirtyPagesByFileLength(t *testing.T) {
	tbl, dir, frames, _ := newTestTable()
	backing := fileops.NewFake(make([]byte, defs.PageSize+100))

	first, err := tbl.CreateMmap(backing, defs.PageSize+100, 0x40000000)
	if err != nil {
		t.Fatalf("CreateMmap: %v", err)
	}
	second, ok := tbl.Lookup(0x40000000 + defs.PageSize)
	if !ok {
		t.Fatal("expected a second mmap page covering the tail bytes")
	}

	if err := tbl.InstallLoad(first); err != nil {
		t.Fatalf("InstallLoad first: %v", err)
	}
	if err := tbl.InstallLoad(second); err != nil {
		t.Fatalf("InstallLoad second: %v", err)
	}
	kpage, _ := dir.GetPage(0x40000000)
	copy(kpage, []byte("dirtydata"))
	dir.MarkWritten(0x40000000)

	if err := tbl.DestroyMmap(first); err != nil {
		t.Fatalf("DestroyMmap: %v", err)
	}
	if string(backing.Bytes()[:9]) != "dirtydata" {
		t.Fatalf("backing file = %q, want prefix %q", backing.Bytes()[:9], "dirtydata")
	}
	if _, ok := tbl.Lookup(0x40000000); ok {
		t.Fatal("first page entry should be removed after DestroyMmap")
	}
	if _, ok := tbl.Lookup(0x40000000 + defs.PageSize); ok {
		t.Fatal("second page entry should be removed after DestroyMmap")
	}
	if frames.Len() != 0 {
		t.Fatalf("frame table Len() = %d after DestroyMmap, want 0", frames.Len())
	}
}

func TestEvictionSwapsOutCodeAndInstallLoadSwapsBackIn(t *testing.T) {
	tbl, dir, _, sw := newTestTable()
	e, err := tbl.CreateCode(0x1000)
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad: %v", err)
	}
	kpage, _ := dir.GetPage(0x1000)
	copy(kpage, []byte("stateful"))

	if err := e.Evict(dir, 0x1000, kpage); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if sw.FreeSlots() != 3 {
		t.Fatalf("FreeSlots() after evict = %d, want 3", sw.FreeSlots())
	}
	e.Detach()
	if e.Resident() {
		t.Fatal("entry should not be resident after Detach")
	}

	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad after swap-out: %v", err)
	}
	kpage2, _ := dir.GetPage(0x1000)
	if string(kpage2[:8]) != "stateful" {
		t.Fatalf("reloaded page = %q, want prefix %q", kpage2[:8], "stateful")
	}
	if sw.FreeSlots() != 4 {
		t.Fatalf("FreeSlots() after swap-in = %d, want 4 (slot released)", sw.FreeSlots())
	}
}

func TestFilePagePromotesToCodeOnWritableDirtyEvict(t *testing.T) {
	tbl, dir, _, sw := newTestTable()
	backing := fileops.NewFake(make([]byte, defs.PageSize))
	e, err := tbl.CreateFile(backing, 0, 0x1000, defs.PageSize, 0, true)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad: %v", err)
	}
	kpage, _ := dir.GetPage(0x1000)
	copy(kpage, []byte("clobber"))
	dir.MarkWritten(0x1000)

	if err := e.Evict(dir, 0x1000, kpage); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if e.Kind() != frame.Code {
		t.Fatalf("Kind() after promotion = %v, want Code", e.Kind())
	}
	if sw.FreeSlots() != 3 {
		t.Fatalf("FreeSlots() after promoted evict = %d, want 3 (swapped, not written to backing file)", sw.FreeSlots())
	}
	if string(backing.Bytes()[:7]) == "clobber" {
		t.Fatal("a writable FILE page must never write its dirty contents back to the executable's backing file")
	}
}

// TestInstallLoadEvictsUnderPoolExhaustion forces eviction to happen from
// inside InstallLoad itself (pool exhaustion, not a hand-called Evict), the
// same way cmd/pagevmctl's eviction-under-pressure scenario drives more
// CODE pages through InstallLoad than the frame pool has frames for. A
// regression reintroducing a self-deadlock between InstallLoad's
// corelock.Evict hold and frame.Table.GetFrame's eviction path would hang
// this test forever instead of failing it.
func TestInstallLoadEvictsUnderPoolExhaustion(t *testing.T) {
	tbl, _, frames, _ := newTestTableWithFrames(4)

	const n = 5 // one more than the pool has frames for
	entries := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := tbl.CreateCode(uintptr(0x20000000 + i*defs.PageSize))
		if err != nil {
			t.Fatalf("CreateCode %d: %v", i, err)
		}
		entries = append(entries, e)
	}
	for i, e := range entries {
		if err := tbl.InstallLoad(e); err != nil {
			t.Fatalf("InstallLoad %d: %v", i, err)
		}
	}

	if frames.Len() != 4 {
		t.Fatalf("frame table Len() = %d, want 4 (bounded by pool capacity)", frames.Len())
	}
	residentCount := 0
	for _, e := range entries {
		if e.Resident() {
			residentCount++
		}
	}
	if residentCount != 4 {
		t.Fatalf("resident entries = %d, want 4 (one evicted to make room for the fifth)", residentCount)
	}
}

func TestGrowStackRejectsBeyondMaxSize(t *testing.T) {
	tbl, _, _, _ := newTestTable()
	ceiling := uintptr(0xC0000000)
	if _, err := tbl.GrowStack(ceiling-(1<<20)-defs.PageSize, true); err != defs.EFAULT {
		t.Fatalf("GrowStack beyond max size err = %v, want EFAULT", err)
	}
	if _, ok := tbl.Lookup(defs.PageRounddown(ceiling - (1 << 20) - defs.PageSize)); ok {
		t.Fatal("a rejected GrowStack must not leave a stray entry behind")
	}
}

func TestGrowStackWithinBoundsSucceedsAndPins(t *testing.T) {
	tbl, _, _, _ := newTestTable()
	ceiling := uintptr(0xC0000000)
	e, err := tbl.GrowStack(ceiling-defs.PageSize, true)
	if err != nil {
		t.Fatalf("GrowStack: %v", err)
	}
	if !e.Resident() {
		t.Fatal("GrowStack must install_load the new page")
	}
	if !e.Pinned() {
		t.Fatal("GrowStack(pinned=true) must leave the entry pinned")
	}
}
