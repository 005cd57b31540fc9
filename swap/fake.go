package swap

import "pagevm/defs"

// Fake is an in-memory Device for unit tests that don't want to touch the
// filesystem.
type Fake struct {
	slots []*[defs.PageSize]byte
	free  []Slot
}

// NewFake returns a Fake able to hold nslots pages.
func NewFake(nslots int) *Fake {
	f := &Fake{slots: make([]*[defs.PageSize]byte, nslots)}
	for i := nslots; i >= 1; i-- {
		f.free = append(f.free, Slot(i))
	}
	return f
}

func (f *Fake) SwapOut(page []byte) (Slot, error) {
	if len(page) != defs.PageSize {
		return 0, defs.EINVAL
	}
	if len(f.free) == 0 {
		return 0, defs.ENOHEAP
	}
	slot := f.free[len(f.free)-1]
	f.free = f.free[:len(f.free)-1]
	var buf [defs.PageSize]byte
	copy(buf[:], page)
	f.slots[slot-1] = &buf
	return slot, nil
}

func (f *Fake) SwapIn(slot Slot, dst []byte) error {
	if len(dst) != defs.PageSize {
		return defs.EINVAL
	}
	buf := f.slots[slot-1]
	if buf == nil {
		return defs.EINVAL
	}
	copy(dst, buf[:])
	return nil
}

func (f *Fake) Free(slot Slot) {
	idx := int(slot) - 1
	if idx < 0 || idx >= len(f.slots) || f.slots[idx] == nil {
		return
	}
	f.slots[idx] = nil
	f.free = append(f.free, slot)
}

// FreeSlots reports the number of unallocated slots.
func (f *Fake) FreeSlots() int {
	return len(f.free)
}
