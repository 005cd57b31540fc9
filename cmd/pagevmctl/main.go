// Command pagevmctl is a demo driver for the virtual memory core: it wires
// together a frame pool, a swap device, and a single simulated process's
// page directory and supplemental page table, then runs the lazy-load,
// eviction-under-pressure, and mmap-write-back scenarios end to end,
// printing a summary report.
//
// Grounded on _examples/talyz-systemd_exporter/systemd/systemd.go's flag
// style (package-level kingpin.Flag vars parsed once in main) for the CLI
// surface.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"pagevm/defs"
	"pagevm/fault"
	"pagevm/fileops"
	"pagevm/frame"
	"pagevm/framepool"
	"pagevm/logbuf"
	"pagevm/metrics"
	"pagevm/pagedir"
	"pagevm/spt"
	"pagevm/swap"
	"pagevm/thread"
)

var (
	numFrames    = kingpin.Flag("frames", "Number of physical user frames in the demo pool.").Default("4").Int()
	numSwapSlots = kingpin.Flag("swap-slots", "Number of swap slots in the demo device.").Default("16").Int()
	maxStackSize = kingpin.Flag("max-stack-size", "Bytes the stack may grow below the stack ceiling.").Default("1048576").Int()
	watchDir     = kingpin.Flag("watch-dir", "Directory to watch for backing-file changes during the demo.").Default(os.TempDir()).String()
)

const (
	userMin      = 0x1000
	userMax      = 0xC0000000 // PHYS_BASE analogue: ceiling of the demo user address space
	stackCeiling = userMax
)

func main() {
	kingpin.Parse()

	logs := logbuf.New(256)
	reg := prometheus.NewRegistry()

	pool := framepool.NewArena(*numFrames)
	frames := frame.NewTable(pool)
	swapDev := swap.NewFake(*numSwapSlots)
	counters := metrics.Register(reg, frames, swapDev)

	stopWatch := watchBackingDir(*watchDir, logs)
	defer stopWatch()

	dir := pagedir.NewFake()
	tbl := spt.New(dir, defs.Tid_t(1), frames, swapDev, stackCeiling, uintptr(*maxStackSize))
	info := &thread.Info{Tid: 1, Dir: dir, Spt: tbl, Esp: stackCeiling - 16}
	bounds := fault.Bounds{Min: userMin, Max: userMax}

	logs.Write("scenario: lazy executable load")
	runLazyLoad(tbl, dir, info, bounds, counters, logs)

	logs.Write("scenario: eviction under pressure")
	runEvictionPressure(tbl, dir, counters, logs)

	logs.Write("scenario: mmap write-back")
	runMmapWriteBack(tbl, logs)

	printSummary(frames, swapDev, counters, logs)
}

func watchBackingDir(dir string, logs *logbuf.Buffer) func() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logs.Write(fmt.Sprintf("fsnotify: %v (backing-file change notifications disabled)", err))
		return func() {}
	}
	if err := w.Add(dir); err != nil {
		logs.Write(fmt.Sprintf("fsnotify: watch %s: %v", dir, err))
		w.Close()
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				logs.Write(fmt.Sprintf("backing file changed: %s (%s)", ev.Name, ev.Op))
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		w.Close()
	}
}

func runLazyLoad(tbl *spt.Table, dir *pagedir.Fake, info *thread.Info, bounds fault.Bounds, counters *metrics.Counters, logs *logbuf.Buffer) {
	backing := fileops.NewFake(make([]byte, 8192))
	base := uintptr(0x08048000)
	// Three pages: two full pages of file content, one tail page zero-padded.
	for i := 0; i < 3; i++ {
		upage := base + uintptr(i)*defs.PageSize
		ofs := int64(i) * defs.PageSize
		readBytes := defs.PageSize
		if i == 2 {
			readBytes = 8192 - 2*defs.PageSize
		}
		if _, err := tbl.CreateFile(backing, ofs, upage, readBytes, defs.PageSize-readBytes, false); err != nil {
			logs.Write(fmt.Sprintf("create_file page %d: %v", i, err))
			return
		}
	}
	for i := 0; i < 3; i++ {
		upage := base + uintptr(i)*defs.PageSize
		if err := fault.ValidateUserRange(info, upage, 1, bounds); err != nil {
			logs.Write(fmt.Sprintf("fault on page %d: %v", i, err))
			return
		}
		counters.Faults.Inc()
		fault.UnpinRange(info, upage, 1)
	}
	logs.Write("lazy executable load: three pages resident")
}

func runEvictionPressure(tbl *spt.Table, dir *pagedir.Fake, counters *metrics.Counters, logs *logbuf.Buffer) {
	base := uintptr(0x20000000)
	n := 5 // one more than the default 4-frame pool
	entries := make([]*spt.Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := tbl.CreateCode(base + uintptr(i)*defs.PageSize)
		if err != nil {
			logs.Write(fmt.Sprintf("create_code page %d: %v", i, err))
			return
		}
		entries = append(entries, e)
	}
	for i, e := range entries {
		if err := tbl.InstallLoad(e); err != nil {
			logs.Write(fmt.Sprintf("install_load page %d: %v", i, err))
			return
		}
		counters.Faults.Inc()
	}
	evicted := 0
	for _, e := range entries {
		if !e.Resident() {
			evicted++
		}
	}
	counters.Evictions.Add(float64(evicted))
	logs.Write(fmt.Sprintf("eviction under pressure: %d of %d pages evicted to swap", evicted, n))
}

func runMmapWriteBack(tbl *spt.Table, logs *logbuf.Buffer) {
	dir, err := os.MkdirTemp("", "pagevm-demo")
	if err != nil {
		logs.Write(fmt.Sprintf("mmap demo: %v", err))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "mapped.bin")
	if err := os.WriteFile(path, make([]byte, 5000), 0600); err != nil {
		logs.Write(fmt.Sprintf("mmap demo: write backing file: %v", err))
		return
	}
	backing, err := fileops.Open(path)
	if err != nil {
		logs.Write(fmt.Sprintf("mmap demo: open: %v", err))
		return
	}
	defer backing.Close()

	first, err := tbl.CreateMmap(backing, 5000, 0x40000000)
	if err != nil {
		logs.Write(fmt.Sprintf("mmap demo: create_mmap: %v", err))
		return
	}
	if err := tbl.InstallLoad(first); err != nil {
		logs.Write(fmt.Sprintf("mmap demo: install_load: %v", err))
		return
	}
	if err := tbl.DestroyMmap(first); err != nil {
		logs.Write(fmt.Sprintf("mmap demo: destroy_mmap: %v", err))
		return
	}
	logs.Write("mmap write-back: mapping torn down, dirty pages flushed")
}

func printSummary(frames *frame.Table, swapDev *swap.Fake, counters *metrics.Counters, logs *logbuf.Buffer) {
	p := message.NewPrinter(language.English)
	p.Printf("resident frames: %d\n", frames.Len())
	p.Printf("free swap slots: %d\n", swapDev.FreeSlots())
	p.Printf("faults handled: %d\n", int(testutil.ToFloat64(counters.Faults)))
	p.Printf("evictions: %d\n", int(testutil.ToFloat64(counters.Evictions)))
	fmt.Println("--- log ---")
	for _, line := range logs.Drain() {
		fmt.Println(line)
	}
}
