package fault

import (
	"testing"

	"pagevm/defs"
	"pagevm/fileops"
	"pagevm/frame"
	"pagevm/framepool"
	"pagevm/pagedir"
	"pagevm/spt"
	"pagevm/swap"
	"pagevm/thread"
)

const (
	testMin  = 0x1000
	testMax  = 0xC0000000
	stackTop = testMax
)

func newTestInfo(nframes int) (*thread.Info, *pagedir.Fake, *spt.Table) {
	pool := framepool.NewArena(nframes)
	frames := frame.NewTable(pool)
	sw := swap.NewFake(8)
	dir := pagedir.NewFake()
	tbl := spt.New(dir, defs.Tid_t(1), frames, sw, stackTop, 1<<20)
	info := &thread.Info{Tid: 1, Dir: dir, Spt: tbl, Esp: stackTop - 4096}
	return info, dir, tbl
}

func TestValidateUserRangeLoadsAndUnpins(t *testing.T) {
	info, _, tbl := newTestInfo(4)
	backing := fileops.NewFake(make([]byte, defs.PageSize))
	e, err := tbl.CreateFile(backing, 0, 0x10000, defs.PageSize, 0, false)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	bounds := Bounds{Min: testMin, Max: testMax}
	if err := ValidateUserRange(info, 0x10000, 10, bounds); err != nil {
		t.Fatalf("ValidateUserRange: %v", err)
	}
	if !e.Resident() {
		t.Fatal("ValidateUserRange must lazily load the touched page")
	}
	if !e.Pinned() {
		t.Fatal("ValidateUserRange must leave touched pages pinned")
	}

	UnpinRange(info, 0x10000, 10)
	if e.Pinned() {
		t.Fatal("UnpinRange must clear the pinned bit")
	}
}

func TestValidateUserRangeOutOfBounds(t *testing.T) {
	info, _, _ := newTestInfo(4)
	bounds := Bounds{Min: testMin, Max: testMax}
	if err := ValidateUserRange(info, testMax-4, 16, bounds); err != defs.EFAULT {
		t.Fatalf("err = %v, want EFAULT for a range crossing the bound", err)
	}
}

func TestValidateUserRangeGrowsStack(t *testing.T) {
	info, _, tbl := newTestInfo(4)
	bounds := Bounds{Min: testMin, Max: testMax}
	addr := info.Esp - 16 // within StackHeuristic of esp
	if err := ValidateUserRange(info, addr, 4, bounds); err != nil {
		t.Fatalf("ValidateUserRange: %v", err)
	}
	if _, ok := tbl.Lookup(addr); !ok {
		t.Fatal("a stack-heuristic address must grow the stack, creating an entry")
	}
}

func TestValidateUserRangeUnknownAddressFails(t *testing.T) {
	info, _, _ := newTestInfo(4)
	bounds := Bounds{Min: testMin, Max: testMax}
	// Far below esp: not a stack-growth candidate, and no entry exists.
	if err := ValidateUserRange(info, 0x50000, 4, bounds); err != defs.EFAULT {
		t.Fatalf("err = %v, want EFAULT", err)
	}
}

func TestValidateUserRangeForWriteRejectsReadOnlyFile(t *testing.T) {
	info, _, tbl := newTestInfo(4)
	backing := fileops.NewFake(make([]byte, defs.PageSize))
	e, err := tbl.CreateFile(backing, 0, 0x10000, defs.PageSize, 0, false)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	bounds := Bounds{Min: testMin, Max: testMax}
	if err := ValidateUserRangeForWrite(info, 0x10000, 10, bounds); err != defs.EFAULT {
		t.Fatalf("err = %v, want EFAULT for a write into a read-only FILE page", err)
	}
	if e.Pinned() {
		t.Fatal("a rejected write validation must unpin everything it pinned")
	}
}

func TestValidateUserStringFindsTerminator(t *testing.T) {
	info, dir, tbl := newTestInfo(4)
	e, err := tbl.CreateCode(0x20000)
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad: %v", err)
	}
	kpage, _ := dir.GetPage(0x20000)
	copy(kpage, []byte("hi\x00"))

	bounds := Bounds{Min: testMin, Max: testMax}
	n, err := ValidateUserString(info, 0x20000, bounds, 128)
	if err != nil {
		t.Fatalf("ValidateUserString: %v", err)
	}
	if n != 2 {
		t.Fatalf("ValidateUserString length = %d, want 2", n)
	}
	if !e.Pinned() {
		t.Fatal("ValidateUserString must leave the page pinned for the caller to unpin")
	}
	UnpinString(info, 0x20000, n)
	if e.Pinned() {
		t.Fatal("UnpinString must clear the pinned bit")
	}
}

func TestValidateUserStringTooLong(t *testing.T) {
	info, dir, tbl := newTestInfo(4)
	e, err := tbl.CreateCode(0x20000)
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if err := tbl.InstallLoad(e); err != nil {
		t.Fatalf("InstallLoad: %v", err)
	}
	kpage, _ := dir.GetPage(0x20000)
	for i := range kpage {
		kpage[i] = 'a' // never terminated within this page
	}

	bounds := Bounds{Min: testMin, Max: testMax}
	if _, err := ValidateUserString(info, 0x20000, bounds, 4); err != defs.ENAMETOOLONG {
		t.Fatalf("err = %v, want ENAMETOOLONG", err)
	}
	if e.Pinned() {
		t.Fatal("a failed ValidateUserString must roll back its pins")
	}
}

func TestHandlePageFaultLoadsGrowsOrFails(t *testing.T) {
	info, _, tbl := newTestInfo(4)
	backing := fileops.NewFake(make([]byte, defs.PageSize))
	e, err := tbl.CreateFile(backing, 0, 0x10000, defs.PageSize, 0, false)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	bounds := Bounds{Min: testMin, Max: testMax}

	if err := HandlePageFault(info, 0x10000, bounds); err != nil {
		t.Fatalf("HandlePageFault on existing entry: %v", err)
	}
	if !e.Resident() {
		t.Fatal("HandlePageFault must load the faulted entry")
	}
	if e.Pinned() {
		t.Fatal("HandlePageFault (not a syscall validator) must not pin")
	}

	growAddr := info.Esp - 16
	if err := HandlePageFault(info, growAddr, bounds); err != nil {
		t.Fatalf("HandlePageFault stack growth: %v", err)
	}
	if _, ok := tbl.Lookup(growAddr); !ok {
		t.Fatal("HandlePageFault must grow the stack on a heuristic match")
	}

	if err := HandlePageFault(info, 0x50000, bounds); err != defs.EFAULT {
		t.Fatalf("HandlePageFault on unmapped non-stack address err = %v, want EFAULT", err)
	}
}
