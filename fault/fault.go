// Package fault implements spec.md §4.3: the entry point every kernel-side
// user-pointer validation and the page-fault handler call into. It pins
// pages a syscall is about to touch, lazily loads them, grows the stack on
// a plausible stack-overflow fault, and unpins on syscall completion.
//
// Grounded on biscuit/src/vm/as.go's fault-handling shape (consult the address
// space, grow the stack on a heuristic match, else fail) generalized from
// one Vm_t to this package's explicit thread.Info parameter.
package fault

import (
	"golang.org/x/sync/errgroup"

	"pagevm/corelock"
	"pagevm/defs"
	"pagevm/frame"
	"pagevm/spt"
	"pagevm/thread"
	"pagevm/ustr"
)

// StackHeuristic is the small gap below the captured stack pointer a fault
// or validation address may fall within and still be treated as legitimate
// stack growth (spec.md §4.3: covers the PUSHA instruction).
const StackHeuristic = 32

// Bounds is the user address space the current process may touch.
type Bounds struct {
	Min uintptr
	Max uintptr
}

func withinStackHeuristic(addr, esp uintptr) bool {
	lo := esp
	if lo > StackHeuristic {
		lo -= StackHeuristic
	} else {
		lo = 0
	}
	return addr >= lo
}

// pageWalk is ValidateUserRange's pin/grow/collect loop (ValidateUserString
// runs its own loop, since it scans each page before deciding whether to
// go on). It pins every page from start to finish inclusive, growing the
// stack where the heuristic allows for the lowest address of the range
// that lies in that page (ptr for the first page), and returns the pinned
// entries plus the subset not yet resident (for the caller to load). On
// any failure it unpins everything it pinned so far.
func pageWalk(info *thread.Info, ptr, start, finish uintptr) ([]*spt.Entry, []*spt.Entry, error) {
	var pinned []*spt.Entry
	rollback := func() {
		for _, e := range pinned {
			corelock.Pin.Lock()
			e.SetPinned(false)
			corelock.Pin.Unlock()
		}
	}

	var toLoad []*spt.Entry
	for pg := start; ; pg += defs.PageSize {
		e, ok := info.Spt.Lookup(pg)
		if ok {
			corelock.Pin.Lock()
			e.SetPinned(true)
			corelock.Pin.Unlock()
			pinned = append(pinned, e)
			if !e.Resident() {
				toLoad = append(toLoad, e)
			}
		} else if withinStackHeuristic(max(pg, ptr), info.Esp) {
			ne, err := info.Spt.GrowStack(pg, true)
			if err != nil {
				rollback()
				return nil, nil, err
			}
			pinned = append(pinned, ne)
		} else {
			rollback()
			return nil, nil, defs.EFAULT
		}
		if pg >= finish {
			break
		}
	}
	return pinned, toLoad, nil
}

func loadAll(spt0 *spt.Table, toLoad []*spt.Entry) error {
	if len(toLoad) == 0 {
		return nil
	}
	g := new(errgroup.Group)
	for _, e := range toLoad {
		e := e
		g.Go(func() error {
			return spt0.InstallLoad(e)
		})
	}
	return g.Wait()
}

func unpinAll(pinned []*spt.Entry) {
	corelock.Pin.Lock()
	defer corelock.Pin.Unlock()
	for _, e := range pinned {
		e.SetPinned(false)
	}
}

// ValidateUserRange is validate_user_range: pin and (if necessary) lazily
// load every page of [ptr, ptr+size), growing the stack where the
// heuristic allows. Per-page install_load calls are fanned out
// concurrently; install_load itself serializes under the eviction lock, so
// this is a latency optimization, not a correctness one.
func ValidateUserRange(info *thread.Info, ptr uintptr, size int, bounds Bounds) error {
	if size < 0 {
		return defs.EINVAL
	}
	if size == 0 {
		return nil
	}
	end := ptr + uintptr(size)
	if end < ptr || ptr < bounds.Min || end > bounds.Max {
		return defs.EFAULT
	}

	start := defs.PageRounddown(ptr)
	finish := defs.PageRounddown(end - 1)

	pinned, toLoad, err := pageWalk(info, ptr, start, finish)
	if err != nil {
		return err
	}
	if err := loadAll(info.Spt, toLoad); err != nil {
		unpinAll(pinned)
		return err
	}
	return nil
}

// ValidateUserRangeForWrite is ValidateUserRange plus the write-validation
// rule: a read-only FILE page rejects the write and terminates the process.
func ValidateUserRangeForWrite(info *thread.Info, ptr uintptr, size int, bounds Bounds) error {
	if err := ValidateUserRange(info, ptr, size, bounds); err != nil {
		return err
	}
	start := defs.PageRounddown(ptr)
	finish := defs.PageRounddown(ptr + uintptr(size) - 1)
	for pg := start; ; pg += defs.PageSize {
		if e, ok := info.Spt.Lookup(pg); ok && e.Kind() == frame.File && !e.Writable() {
			UnpinRange(info, ptr, size)
			return defs.EFAULT
		}
		if pg >= finish {
			break
		}
	}
	return nil
}

// ValidateUserString is validate_user_string: pin and load pages starting
// at ptr until a NUL terminator is found, capped at maxLen bytes. Returns
// the string's length (excluding the terminator).
func ValidateUserString(info *thread.Info, ptr uintptr, bounds Bounds, maxLen int) (int, error) {
	if ptr < bounds.Min || ptr >= bounds.Max {
		return 0, defs.EFAULT
	}

	var pinned []*spt.Entry
	rollback := func() {
		corelock.Pin.Lock()
		defer corelock.Pin.Unlock()
		for _, e := range pinned {
			e.SetPinned(false)
		}
	}

	length := 0
	pg := defs.PageRounddown(ptr)
	offset := int(defs.PageOffset(ptr))
	for {
		if pg >= bounds.Max {
			rollback()
			return 0, defs.EFAULT
		}
		e, ok := info.Spt.Lookup(pg)
		if ok {
			corelock.Pin.Lock()
			e.SetPinned(true)
			corelock.Pin.Unlock()
			pinned = append(pinned, e)
			if !e.Resident() {
				if err := info.Spt.InstallLoad(e); err != nil {
					rollback()
					return 0, err
				}
			}
		} else if withinStackHeuristic(pg+uintptr(offset), info.Esp) {
			ne, err := info.Spt.GrowStack(pg, true)
			if err != nil {
				rollback()
				return 0, err
			}
			pinned = append(pinned, ne)
		} else {
			rollback()
			return 0, defs.EFAULT
		}

		kpage, ok := info.Dir.GetPage(pg)
		if !ok {
			rollback()
			return 0, defs.EFAULT
		}
		n, terminated := ustr.ScanNUL(kpage[offset:])
		length += n
		if length > maxLen {
			rollback()
			return 0, defs.ENAMETOOLONG
		}
		if terminated {
			return length, nil
		}
		pg += defs.PageSize
		offset = 0
	}
}

// UnpinRange is unpin_range: best-effort, silently ignoring pages with no
// SPT entry (e.g. a buffer smaller than advertised never faulted them in).
func UnpinRange(info *thread.Info, ptr uintptr, size int) {
	if size <= 0 {
		return
	}
	start := defs.PageRounddown(ptr)
	finish := defs.PageRounddown(ptr + uintptr(size) - 1)
	corelock.Pin.Lock()
	defer corelock.Pin.Unlock()
	for pg := start; ; pg += defs.PageSize {
		if e, ok := info.Spt.Lookup(pg); ok {
			e.SetPinned(false)
		}
		if pg >= finish {
			break
		}
	}
}

// UnpinString is unpin_string: unpin the pages a prior ValidateUserString
// call pinned, given the length it returned.
func UnpinString(info *thread.Info, ptr uintptr, length int) {
	UnpinRange(info, ptr, length+1)
}

// HandlePageFault is the page-fault handler's entry into this component,
// for faults not originating from a syscall validator: install_load without
// pinning on a hit, grow the stack on a plausible stack-overflow fault,
// else the fault is a UserFault the caller should terminate the process for.
func HandlePageFault(info *thread.Info, faultAddr uintptr, bounds Bounds) error {
	if faultAddr < bounds.Min || faultAddr >= bounds.Max {
		return defs.EFAULT
	}
	pg := defs.PageRounddown(faultAddr)
	if e, ok := info.Spt.Lookup(pg); ok {
		if e.Resident() {
			return nil
		}
		return info.Spt.InstallLoad(e)
	}
	if withinStackHeuristic(faultAddr, info.Esp) {
		_, err := info.Spt.GrowStack(pg, false)
		return err
	}
	return defs.EFAULT
}
