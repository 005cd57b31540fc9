package diag

import (
	"bytes"
	"testing"

	"pagevm/corelock"
	"pagevm/defs"
	"pagevm/frame"
	"pagevm/framepool"
	"pagevm/pagedir"
)

type fakeOwner struct{ kind frame.Kind }

func (o *fakeOwner) Kind() frame.Kind   { return o.kind }
func (o *fakeOwner) Pinned() bool       { return false }
func (o *fakeOwner) WriteBack(pagedir.Dir, uintptr, []byte) error { return nil }
func (o *fakeOwner) Evict(pagedir.Dir, uintptr, []byte) error     { return nil }
func (o *fakeOwner) Detach()                                      {}

// getFrame mirrors spt.Table.InstallLoad's contract: GetFrame must be
// called with corelock.Evict held.
func getFrame(frames *frame.Table, flags framepool.Flags, req frame.Request) ([]byte, error) {
	corelock.Evict.Lock()
	defer corelock.Evict.Unlock()
	return frames.GetFrame(flags, req)
}

func TestSnapshotOneSamplePerFrame(t *testing.T) {
	pool := framepool.NewArena(2)
	frames := frame.NewTable(pool)
	dir := pagedir.NewFake()

	if _, err := getFrame(frames, framepool.User, frame.Request{Owner: &fakeOwner{kind: frame.Code}, Dir: dir, Upage: 0x1000, Pid: 1}); err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if _, err := getFrame(frames, framepool.User, frame.Request{Owner: &fakeOwner{kind: frame.File}, Dir: dir, Upage: 0x2000, Pid: 1}); err != nil {
		t.Fatalf("GetFrame: %v", err)
	}

	p := Snapshot(frames)
	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
	for _, s := range p.Sample {
		if s.Value[0] != 1 || s.Value[1] != int64(defs.PageSize) {
			t.Fatalf("Sample.Value = %v, want [1 %d]", s.Value, defs.PageSize)
		}
	}
}

func TestWriteProducesNonEmptyOutput(t *testing.T) {
	pool := framepool.NewArena(1)
	frames := frame.NewTable(pool)
	dir := pagedir.NewFake()
	if _, err := getFrame(frames, framepool.User, frame.Request{Owner: &fakeOwner{kind: frame.Mmap}, Dir: dir, Upage: 0x3000, Pid: 1}); err != nil {
		t.Fatalf("GetFrame: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(frames, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Write produced no output")
	}
}
