// Package util contains small alignment helpers shared by the rest of the
// core. Grounded on biscuit/src/util/util.go, trimmed to generic integer
// helpers: Min, Rounddown and Roundup, of which only Min has a caller (in
// spt). Readn/Writen's fixed-width user value marshalling was dropped: the
// core never decodes raw syscall argument words, only page-granular buffers.
package util

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}
