package fileops

import (
	"sync"

	"pagevm/defs"
)

// fakeBacking is the shared state behind every handle Reopen returns, so
// writes through one Fake are visible to its siblings the way writes
// through independently-reopened fds of the same file are.
type fakeBacking struct {
	sync.Mutex
	data []byte
}

// Fake is an in-memory File used by unit tests and the demo CLI's synthetic
// executable/mmap scenarios.
type Fake struct {
	b *fakeBacking
}

// NewFake returns a Fake whose contents are a copy of data.
func NewFake(data []byte) *Fake {
	b := &fakeBacking{data: make([]byte, len(data))}
	copy(b.data, data)
	return &Fake{b: b}
}

func (f *Fake) ReadAt(p []byte, off int64) (int, error) {
	f.b.Lock()
	defer f.b.Unlock()
	if off < 0 || off > int64(len(f.b.data)) {
		return 0, defs.EFAULT
	}
	n := copy(p, f.b.data[off:])
	return n, nil
}

func (f *Fake) WriteAt(p []byte, off int64) (int, error) {
	f.b.Lock()
	defer f.b.Unlock()
	if off < 0 {
		return 0, defs.EFAULT
	}
	end := off + int64(len(p))
	if end > int64(len(f.b.data)) {
		grown := make([]byte, end)
		copy(grown, f.b.data)
		f.b.data = grown
	}
	n := copy(f.b.data[off:], p)
	return n, nil
}

func (f *Fake) Length() (int64, error) {
	f.b.Lock()
	defer f.b.Unlock()
	return int64(len(f.b.data)), nil
}

func (f *Fake) Reopen() (File, error) {
	return &Fake{b: f.b}, nil
}

func (f *Fake) Close() error { return nil }

// Bytes returns a copy of the current file contents, for test assertions.
func (f *Fake) Bytes() []byte {
	f.b.Lock()
	defer f.b.Unlock()
	out := make([]byte, len(f.b.data))
	copy(out, f.b.data)
	return out
}
