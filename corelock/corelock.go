// Package corelock holds the three global locks pin_lock, frame_table_lock
// and evict_lock. They live in their own package because spt, frame, and
// fault all take them and none of those three packages may import the
// others without creating a cycle (frame evicts through an interface spt
// implements; fault drives both spt and frame).
//
// Acquisition order as the code takes them: spt.Table.InstallLoad holds
// Evict for its whole body, and frame.Table.GetFrame, called from there,
// takes Pin and then FrameTable on its eviction path, so Evict is acquired
// before Pin and FrameTable. fault takes Pin on its own, never while
// holding either of the other two.
//
// Grounded on biscuit/src/vm/as.go's Vm_t.Lock_pmap/Unlock_pmap pair (a named,
// assert-guarded lock rather than a bare sync.Mutex), generalized from one
// lock per address space to the three system-wide locks the spec requires.
package corelock

import "sync"

// Pin guards the Pinned field of every SptEntry in the system.
var Pin sync.Mutex

// FrameTable guards the frame table's list and victim scan.
var FrameTable sync.Mutex

// Evict serializes install_load with eviction and with other install_load
// calls.
var Evict sync.Mutex
