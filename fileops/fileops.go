// Package fileops declares the file operations the core needs for FILE and
// MMAP backed pages (spec.md §6: open/close/reopen/read_at/write_at/seek/
// tell/length) and provides a default implementation over *os.File.
//
// Grounded on biscuit/src/vm/as.go's use of an opaque fdops.Fdops_i handle per
// Vminfo_t.file (the fdops package itself was filtered out of the pack, so
// the interface below is reconstructed from spec.md §6's named operations)
// and on biscuit/src/fs/blk.go's Disk_i shape (a narrow, swappable device
// handle passed by value into block structures).
package fileops

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// File is the narrow file surface FILE/MMAP-backed SPT entries read from
// and (when writable/dirty) write back to.
type File interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Length() (int64, error)
	// Reopen returns an independent handle to the same underlying file,
	// used when an mmap mapping must outlive the fd that created it.
	Reopen() (File, error)
	Close() error
}

// OSFile adapts *os.File to File.
type OSFile struct {
	f    *os.File
	path string
}

// Open opens path for reading and writing, creating the default backing
// implementation used outside of tests.
func Open(path string) (*OSFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "fileops: open %s", path)
	}
	return &OSFile{f: f, path: path}, nil
}

func (o *OSFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := o.f.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, errors.Wrap(err, "fileops: read_at")
	}
	return n, nil
}

func (o *OSFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := o.f.WriteAt(p, off)
	if err != nil {
		return n, errors.Wrap(err, "fileops: write_at")
	}
	return n, nil
}

func (o *OSFile) Length() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "fileops: stat")
	}
	return fi.Size(), nil
}

func (o *OSFile) Reopen() (File, error) {
	return Open(o.path)
}

func (o *OSFile) Close() error {
	return o.f.Close()
}
