// Package metrics derives the overlay's headline numbers from a component
// snapshot and from periodic memory and frame sampling.
package metrics

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"devlens/internal/model"

	"github.com/dustin/go-humanize"
)

const bytesPerMB = 1048576

// CountNodes returns the number of nodes in the forest, children included.
func CountNodes(nodes []*model.Node) int {
	total := 0
	for _, n := range nodes {
		total++
		total += CountNodes(n.Children)
	}
	return total
}

// AggregateRenderAverage is total render time over total updates across
// every node that has rendered at least once. ok is false when no node
// qualifies.
func AggregateRenderAverage(nodes []*model.Node) (avg float64, ok bool) {
	var total float64
	var updates int
	var walk func([]*model.Node)
	walk = func(ns []*model.Node) {
		for _, n := range ns {
			if n.Metrics != nil && n.Metrics.Updates > 0 {
				total += n.Metrics.Total
				updates += n.Metrics.Updates
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	if updates == 0 {
		return 0, false
	}
	return total / float64(updates), true
}

// FormatMillis renders a duration in milliseconds: whole numbers from
// 100 ms upward, two decimals below.
func FormatMillis(ms float64) string {
	if ms >= 100 {
		return fmt.Sprintf("%.0f ms", ms)
	}
	return fmt.Sprintf("%.2f ms", ms)
}

// Memory source labels.
const (
	SourceExpvar = "expvar"
	SourceHeap   = "heap"
)

// Probe reads memory use in MB. ok is false when the source has no data.
type Probe struct {
	Name string
	Read func(ctx context.Context) (mb float64, ok bool)
}

// Sample is one memory reading and where it came from.
type Sample struct {
	MB     float64
	Source string
}

// SampleMemory tries probes in order and returns the first successful one.
func SampleMemory(ctx context.Context, probes ...Probe) (Sample, bool) {
	for _, p := range probes {
		if p.Read == nil {
			continue
		}
		if mb, ok := p.Read(ctx); ok {
			return Sample{MB: mb, Source: p.Name}, true
		}
	}
	return Sample{}, false
}

// HeapProbe reads the overlay process's own heap.
func HeapProbe() Probe {
	return Probe{Name: SourceHeap, Read: func(context.Context) (float64, bool) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapAlloc == 0 {
			return 0, false
		}
		return float64(ms.HeapAlloc) / bytesPerMB, true
	}}
}

// Fed carries metrics pushed by the host. Nil fields are left alone.
type Fed struct {
	FPS    *float64 `json:"fps,omitempty"`
	Mem    *float64 `json:"mem,omitempty"`
	Render *float64 `json:"render,omitempty"`
}

// KPI is the headline row. It is owned by the UI loop.
type KPI struct {
	FPS       float64
	HasFPS    bool
	MemMB     float64
	MemSource string
	HasMem    bool
	RenderMS  float64
	HasRender bool
	Nodes     int

	frames      int
	windowStart time.Time
	fedRender   bool
}

// Frame counts one rendered frame. Once a second has elapsed since the
// window opened, FPS is updated and a new window starts.
func (k *KPI) Frame(now time.Time) {
	if k.windowStart.IsZero() {
		k.windowStart = now
		return
	}
	k.frames++
	elapsed := now.Sub(k.windowStart)
	if elapsed >= time.Second {
		k.FPS = float64(k.frames) / elapsed.Seconds()
		k.HasFPS = true
		k.frames = 0
		k.windowStart = now
	}
}

// SetMemory records a sample. A failed tick keeps the previous reading.
func (k *KPI) SetMemory(s Sample, ok bool) {
	if !ok {
		return
	}
	k.MemMB, k.MemSource, k.HasMem = s.MB, s.Source, true
}

// SetTree recomputes node count and, unless the host pushed its own figure,
// the render average.
func (k *KPI) SetTree(nodes []*model.Node) {
	k.Nodes = CountNodes(nodes)
	if k.fedRender {
		return
	}
	k.RenderMS, k.HasRender = AggregateRenderAverage(nodes)
}

// Feed applies host-pushed metrics.
func (k *KPI) Feed(f Fed) {
	if f.FPS != nil {
		k.FPS, k.HasFPS = *f.FPS, true
	}
	if f.Mem != nil {
		k.MemMB, k.MemSource, k.HasMem = *f.Mem, "host", true
	}
	if f.Render != nil {
		k.RenderMS, k.HasRender, k.fedRender = *f.Render, true, true
	}
}

// Reset clears everything, as when the panel closes.
func (k *KPI) Reset() {
	*k = KPI{}
}

// FPSText is the display form of FPS, "—" when unknown.
func (k *KPI) FPSText() string {
	if !k.HasFPS {
		return "—"
	}
	return fmt.Sprintf("%.0f", k.FPS)
}

// MemText is the display form of memory with its source.
func (k *KPI) MemText() string {
	if !k.HasMem {
		return "—"
	}
	return humanize.FormatFloat("#,###.#", k.MemMB) + " MB (" + k.MemSource + ")"
}

// RenderText is the display form of the render average.
func (k *KPI) RenderText() string {
	if !k.HasRender {
		return "—"
	}
	return FormatMillis(k.RenderMS)
}

// NodesText is the node count with thousands separators.
func (k *KPI) NodesText() string {
	return humanize.Comma(int64(k.Nodes))
}
