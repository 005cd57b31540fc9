// Package swap implements the bitmap-allocated slot store of spec.md §3.3:
// a fixed number of page-sized slots, allocated by SwapOut and freed by an
// explicit Free (SwapIn only reads a slot; spt frees it right after).
//
// Grounded on biscuit/src/fs/blk.go's Disk_i/Bdev_block_t shape (a small
// device interface plus synchronous Read/Write passed a backing page) and
// on biscuit/src/mem/mem.go's free-list bitmap allocator style, generalized from
// physical frames to swap slots. The backing store itself uses
// golang.org/x/sys/unix's Pread/Pwrite against a single pre-sized file,
// the portable equivalent of a dedicated swap partition.
package swap

import (
	"sync"

	"golang.org/x/sys/unix"

	"pagevm/defs"
)

// Slot identifies one allocated swap slot. The zero value never denotes a
// live slot; Device.SwapOut returns slots starting at 1 so a Slot can be
// safely embedded in an SptEntry alongside a boolean validity flag without
// risking a zero-value collision.
type Slot int

// Device is the external swap interface (spec.md §6: swap_out/swap_in).
type Device interface {
	// SwapOut copies page (exactly defs.PageSize bytes) into a freshly
	// allocated slot and returns its identifier.
	SwapOut(page []byte) (Slot, error)
	// SwapIn copies the slot's contents into dst (which must be
	// defs.PageSize bytes) but does not free the slot.
	SwapIn(slot Slot, dst []byte) error
	// Free releases slot back to the bitmap without reading it.
	Free(slot Slot)
}

// Bitmap is the default Device: a fixed slot count backed by a file
// (typically a preallocated raw partition or sparse file standing in for
// one).
type Bitmap struct {
	mu    sync.Mutex
	used  []bool
	nfree int
	fd    int
}

// NewBitmap opens (or creates) path as the backing store for nslots
// page-sized swap slots.
func NewBitmap(path string, nslots int) (*Bitmap, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0600)
	if err != nil {
		return nil, defs.Wrap(err, "swap: open backing file")
	}
	size := int64(nslots) * defs.PageSize
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, defs.Wrap(err, "swap: truncate backing file")
	}
	return &Bitmap{
		used:  make([]bool, nslots),
		nfree: nslots,
		fd:    fd,
	}, nil
}

// Close releases the backing file descriptor.
func (b *Bitmap) Close() error {
	return unix.Close(b.fd)
}

func (b *Bitmap) allocSlot() (Slot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nfree == 0 {
		return 0, false
	}
	for i, u := range b.used {
		if !u {
			b.used[i] = true
			b.nfree--
			return Slot(i + 1), true
		}
	}
	panic("swap: nfree positive but no free slot found")
}

func (b *Bitmap) offset(slot Slot) int64 {
	return int64(slot-1) * defs.PageSize
}

func (b *Bitmap) SwapOut(page []byte) (Slot, error) {
	if len(page) != defs.PageSize {
		return 0, defs.EINVAL
	}
	slot, ok := b.allocSlot()
	if !ok {
		return 0, defs.ENOHEAP
	}
	if _, err := unix.Pwrite(b.fd, page, b.offset(slot)); err != nil {
		b.Free(slot)
		return 0, defs.Wrap(err, "swap: write slot")
	}
	return slot, nil
}

func (b *Bitmap) SwapIn(slot Slot, dst []byte) error {
	if len(dst) != defs.PageSize {
		return defs.EINVAL
	}
	if _, err := unix.Pread(b.fd, dst, b.offset(slot)); err != nil {
		return defs.Wrap(err, "swap: read slot")
	}
	return nil
}

func (b *Bitmap) Free(slot Slot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := int(slot) - 1
	if idx < 0 || idx >= len(b.used) {
		return
	}
	if b.used[idx] {
		b.used[idx] = false
		b.nfree++
	}
}

// FreeSlots reports the number of unallocated slots, for diagnostics.
func (b *Bitmap) FreeSlots() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nfree
}
