// Package thread tracks the per-thread state the fault/pin protocol needs
// from its external "thread ops" collaborator (spec.md §6): a thread's
// identity, its page directory, its supplemental page table, and the user
// stack pointer captured at syscall entry.
//
// Grounded on biscuit/src/tinfo/tinfo.go's Threadinfo_t (a Tid_t-keyed map of
// thread notes guarded by one mutex). The original also exposed a
// goroutine-implicit Current()/SetCurrent() pair built on runtime.Gptr,
// a forked-runtime intrinsic with no stock-Go equivalent; Go's idiomatic
// substitute for thread-local state is to pass the handle explicitly, so
// this package drops Current()/SetCurrent() and has callers look a thread
// up by Tid_t instead (the syscall dispatcher already knows which thread
// it is running as).
package thread

import (
	"sync"

	"pagevm/defs"
	"pagevm/pagedir"
	"pagevm/spt"
)

// Info is one thread's identity and the state the fault/pin protocol reads.
type Info struct {
	Tid defs.Tid_t
	Dir pagedir.Dir
	Spt *spt.Table
	// Esp is the user stack pointer captured at syscall entry (DESIGN
	// NOTES: "the stack heuristic needs the user SP at syscall entry, not
	// the current kernel SP"). The dispatcher updates this once per syscall
	// before calling into validation.
	Esp uintptr
}

// Table is the system-wide registry of live threads.
type Table struct {
	mu    sync.Mutex
	infos map[defs.Tid_t]*Info
}

// NewTable returns an empty thread registry.
func NewTable() *Table {
	return &Table{infos: make(map[defs.Tid_t]*Info)}
}

// Register adds info, keyed by its Tid.
func (t *Table) Register(info *Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.infos[info.Tid] = info
}

// Unregister removes a thread's info, e.g. on thread exit.
func (t *Table) Unregister(tid defs.Tid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.infos, tid)
}

// Get returns tid's info, if registered.
func (t *Table) Get(tid defs.Tid_t) (*Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.infos[tid]
	return info, ok
}

// SetEsp updates tid's captured stack pointer, called once per syscall
// entry by the dispatcher before it validates any user buffer.
func (t *Table) SetEsp(tid defs.Tid_t, esp uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if info, ok := t.infos[tid]; ok {
		info.Esp = esp
	}
}
