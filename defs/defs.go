// Package defs holds the small cross-cutting types shared by every package
// in this module: error codes, thread/process identifiers, and the page
// size constants the rest of the core aligns addresses against.
//
// Grounded on biscuit/src/defs/device.go (package shape, doc-comment density)
// and biscuit/src/defs (Err_t/Tid_t referenced throughout biscuit/src/vm/as.go and
// biscuit/src/tinfo/tinfo.go, though the concrete definitions were filtered out
// of the retrieval pack).
package defs

import "github.com/pkg/errors"

// Tid_t identifies a kernel thread. One thread drives one user process.
type Tid_t int

// Page geometry, grounded on biscuit/src/mem/mem.go's PGSHIFT/PGSIZE/PGOFFSET.
const (
	PageShift  = 12
	PageSize   = 1 << PageShift
	pageOffset = PageSize - 1
)

// PageRounddown aligns va down to the start of its containing page.
func PageRounddown(va uintptr) uintptr {
	return va &^ uintptr(pageOffset)
}

// PageRoundup aligns va up to the start of the next page, unless va is
// already page-aligned.
func PageRoundup(va uintptr) uintptr {
	return PageRounddown(va+pageOffset)
}

// PageOffset returns the byte offset of va within its containing page.
func PageOffset(va uintptr) uintptr {
	return va & uintptr(pageOffset)
}

// Errno is a POSIX-flavored error code. Negative values (mirroring the
// C convention `-errno`) are never used here; the sign convention from the
// original source is dropped in favor of idiomatic Go: a zero Errno never
// appears as an error value, callers test via the usual `err != nil`.
type Errno int

const (
	EFAULT       Errno = iota + 1 // malformed or unmapped user pointer
	ENOMEM                        // frame or SPT-entry allocation failed
	ENOHEAP                       // swap slot allocation failed
	ENAMETOOLONG                  // user string exceeded the caller's max length
	EINVAL                       // malformed arguments
	EMMAPCONFLICT                // create_mmap target overlaps an existing entry
)

func (e Errno) Error() string {
	switch e {
	case EFAULT:
		return "bad user address"
	case ENOMEM:
		return "out of physical frames"
	case ENOHEAP:
		return "out of swap slots"
	case ENAMETOOLONG:
		return "user string too long"
	case EINVAL:
		return "invalid argument"
	case EMMAPCONFLICT:
		return "mmap target overlaps an existing mapping"
	default:
		return "unknown error"
	}
}

// IsUserFault reports whether err should terminate only the calling
// process (spec taxonomy: UserFault), as opposed to halting the system.
func IsUserFault(err error) bool {
	var e Errno
	if !errors.As(err, &e) {
		return false
	}
	return e == EFAULT || e == ENAMETOOLONG
}

// Wrap attaches msg as context to err using the stack-trace-carrying
// wrapper the rest of the core uses for IOFailure / fatal paths.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}
