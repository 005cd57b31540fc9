// Package metrics exposes Prometheus instrumentation for the core: fault,
// eviction, and swap activity counters plus a live gauge of resident
// frames, in the same Collector shape the pack's systemd_exporter teacher
// uses for its own unit statistics.
//
// Grounded on _examples/talyz-systemd_exporter/systemd/systemd.go's
// Collector (prometheus.Desc fields built in a constructor, Describe/
// Collect pair reading live state rather than pre-registered metric
// objects) for the frame/swap gauges, which must reflect live state off
// frame.Table and swap.Device rather than being counters the core
// increments itself.
package metrics

import (
	"github.com/povilasv/prommod"
	"github.com/prometheus/client_golang/prometheus"

	"pagevm/frame"
)

const namespace = "pagevm"

// FreeSlotCounter is satisfied by swap.Bitmap and swap.Fake.
type FreeSlotCounter interface {
	FreeSlots() int
}

// Collector reports live frame-table and swap-device occupancy.
type Collector struct {
	frames *frame.Table
	swapDv FreeSlotCounter

	residentFrames *prometheus.Desc
	freeSwapSlots  *prometheus.Desc
}

// NewCollector returns a Collector reading frames and sw's live state.
func NewCollector(frames *frame.Table, sw FreeSlotCounter) *Collector {
	return &Collector{
		frames: frames,
		swapDv: sw,
		residentFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "resident_frames"),
			"Number of frames currently tracked by the frame table.",
			nil, nil,
		),
		freeSwapSlots: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "free_swap_slots"),
			"Number of unallocated swap slots.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.residentFrames
	ch <- c.freeSwapSlots
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.residentFrames, prometheus.GaugeValue, float64(c.frames.Len()))
	if c.swapDv != nil {
		ch <- prometheus.MustNewConstMetric(c.freeSwapSlots, prometheus.GaugeValue, float64(c.swapDv.FreeSlots()))
	}
}

// Counters are event counters that callers increment directly (in this
// module only cmd/pagevmctl does, for faults and evictions; fault, frame and
// spt do not touch them); they have no live-state source to recompute from,
// unlike the gauges above.
type Counters struct {
	Faults       prometheus.Counter
	Evictions    prometheus.Counter
	SwapIns      prometheus.Counter
	SwapOuts     prometheus.Counter
	ProcessKills prometheus.Counter
}

// NewCounters builds and registers the event counters against reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		Faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "faults_total", Help: "Page faults handled.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "evictions_total", Help: "Frames evicted by the replacement policy.",
		}),
		SwapIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "swap_ins_total", Help: "Pages read back from swap.",
		}),
		SwapOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "swap_outs_total", Help: "Pages written out to swap.",
		}),
		ProcessKills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "process_kills_total", Help: "Processes terminated for a UserFault.",
		}),
	}
	reg.MustRegister(c.Faults, c.Evictions, c.SwapIns, c.SwapOuts, c.ProcessKills)
	return c
}

// Register wires this package's gauges and build-info collector (via
// prommod, the same build-info exporter the pack's systemd_exporter teacher
// stack uses) into reg.
func Register(reg *prometheus.Registry, frames *frame.Table, sw FreeSlotCounter) *Counters {
	reg.MustRegister(NewCollector(frames, sw))
	reg.MustRegister(prommod.NewCollector("pagevm"))
	return NewCounters(reg)
}
