// Package ustr scans raw user-memory bytes for a NUL terminator, the
// primitive validate_user_string needs to discover a C string's length one
// resident page at a time.
//
// Grounded on biscuit/src/ustr/ustr.go's MkUstrSlice (truncate a byte slice at
// its first NUL) and IndexByte; trimmed of the path-specific helpers
// (Isdot/Isdotdot/Extend/IsAbsolute) that belonged to that package's
// filesystem-path role, which has no counterpart here.
package ustr

// ScanNUL returns the number of bytes in buf before the first NUL byte, and
// whether a NUL was found. If no NUL is found, n is len(buf) and the caller
// must continue scanning the next page.
func ScanNUL(buf []byte) (n int, terminated bool) {
	for i, b := range buf {
		if b == 0 {
			return i, true
		}
	}
	return len(buf), false
}
