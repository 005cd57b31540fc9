// Package framepool is the raw user-frame allocator the core treats as an
// external collaborator (spec.md §6: palloc/pfree). It is grounded on
// biscuit/src/mem/mem.go's Physmem_t: a fixed-size arena of page slots handed
// out from per-shard free lists. The original's per-CPU sharding used
// nonstandard runtime intrinsics (runtime.CPUHint, runtime.Get_phys) that
// only exist under biscuit's patched Go runtime; here the arena is a plain
// byte slice split across a fixed number of shards, each guarded by its own
// sync.Mutex, and Alloc starts its search at the shard indexed by the
// current in-use count. Frames carry no refcounts.
package framepool

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"pagevm/defs"
)

// Flags governs allocation behavior, mirroring spec.md §6's USER/ZERO bits.
type Flags uint

const (
	User Flags = 1 << iota
	Zero
)

// Pool is the external frame-allocation interface.
type Pool interface {
	// Alloc returns a fresh page-sized frame, or false on exhaustion.
	Alloc(flags Flags) ([]byte, bool)
	// Free returns kpage to the pool. kpage must have come from Alloc.
	Free(kpage []byte)
}

type shard struct {
	sync.Mutex
	free []int32 // indices of free slots, LIFO
}

// Arena is the default Pool: a fixed number of page-sized slots backed by
// one contiguous byte slice (standing in for the bootloader-reserved user
// physical frame range in a real kernel).
type Arena struct {
	mem    []byte
	nslots int
	shards []shard
	inUse  int32
}

// NewArena allocates an Arena able to hand out nslots frames of
// defs.PageSize bytes each.
func NewArena(nslots int) *Arena {
	a := &Arena{
		mem:    make([]byte, nslots*defs.PageSize),
		nslots: nslots,
		shards: make([]shard, shardCount()),
	}
	for i := 0; i < nslots; i++ {
		s := &a.shards[i%len(a.shards)]
		s.free = append(s.free, int32(i))
	}
	return a
}

func shardCount() int {
	// At least one shard; bounded so tests with tiny arenas still see
	// contention-free behavior.
	return 8
}

func (a *Arena) Alloc(flags Flags) ([]byte, bool) {
	start := int(atomic.LoadInt32(&a.inUse)) % len(a.shards)
	for i := 0; i < len(a.shards); i++ {
		s := &a.shards[(start+i)%len(a.shards)]
		s.Lock()
		if n := len(s.free); n > 0 {
			idx := s.free[n-1]
			s.free = s.free[:n-1]
			s.Unlock()
			atomic.AddInt32(&a.inUse, 1)
			pg := a.mem[int(idx)*defs.PageSize : (int(idx)+1)*defs.PageSize]
			if flags&Zero != 0 {
				clear(pg)
			}
			return pg, true
		}
		s.Unlock()
	}
	return nil, false
}

func (a *Arena) Free(kpage []byte) {
	idx := a.indexOf(kpage)
	s := &a.shards[idx%len(a.shards)]
	s.Lock()
	s.free = append(s.free, int32(idx))
	s.Unlock()
	atomic.AddInt32(&a.inUse, -1)
}

func (a *Arena) indexOf(kpage []byte) int {
	// kpage is always a sub-slice of a.mem returned by Alloc.
	p := uintptr(unsafe.Pointer(&kpage[0]))
	q := uintptr(unsafe.Pointer(&a.mem[0]))
	return int((p - q) / defs.PageSize)
}

// InUse reports the number of currently allocated frames, for diagnostics.
func (a *Arena) InUse() int {
	return int(atomic.LoadInt32(&a.inUse))
}

// Capacity reports the total number of frames the arena can hand out.
func (a *Arena) Capacity() int {
	return a.nslots
}
