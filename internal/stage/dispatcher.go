// Package stage runs the render side of the pipeline: a fixed-rate loop
// that claims the newest datagram from the mailbox once per tick, hands it
// to the mapper and advances every envelope.
package stage

import (
	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/monitoring"
)

// Applier consumes validated frames. *mapper.Mapper implements it.
type Applier interface {
	Apply(f frame.SensorFrame) mapper.Triggers
}

// FrameHook observes every frame the dispatcher applied, on the render
// goroutine. It must not block.
type FrameHook func(f frame.SensorFrame, tr mapper.Triggers)

// DispatchStats counts what Poll did with each claimed datagram.
type DispatchStats struct {
	Processed uint64 `json:"processed"`
	Malformed uint64 `json:"malformed"`
	Stale     uint64 `json:"stale"`
	LastSeq   uint64 `json:"last_seq"`
}

// Dispatcher moves at most one datagram per poll from the mailbox to the
// mapper. The mailbox lock is held only inside Take, never while mapping.
type Dispatcher struct {
	box   *mailbox.Mailbox[*frame.Datagram]
	apply Applier
	hooks []FrameHook
	stats DispatchStats
}

// malformedLogEvery rate-limits malformed-frame logging.
const malformedLogEvery = 100

// NewDispatcher reads from box into apply.
func NewDispatcher(box *mailbox.Mailbox[*frame.Datagram], apply Applier) *Dispatcher {
	return &Dispatcher{box: box, apply: apply}
}

// OnFrame registers a hook run after each applied frame.
func (d *Dispatcher) OnFrame(h FrameHook) {
	d.hooks = append(d.hooks, h)
}

// Poll claims the pending datagram, if any, and applies it. It reports
// whether a frame reached the mapper. With nothing new, or with a short or
// already-seen datagram, nothing is recomputed and the sink keeps the last
// outputs.
func (d *Dispatcher) Poll() bool {
	dg, ok := d.box.Take()
	if !ok || dg == nil {
		return false
	}
	if dg.Seq != 0 {
		if dg.Seq <= d.stats.LastSeq {
			d.stats.Stale++
			return false
		}
		d.stats.LastSeq = dg.Seq
	}

	f, err := frame.Decode(dg)
	if err != nil {
		d.stats.Malformed++
		if d.stats.Malformed%malformedLogEvery == 1 {
			monitoring.Opsf("[stage] dropping malformed datagram seq=%d: %v (%d so far)", dg.Seq, err, d.stats.Malformed)
		}
		return false
	}

	tr := d.apply.Apply(f)
	d.stats.Processed++
	for _, h := range d.hooks {
		h(f, tr)
	}
	if tr.Any() && monitoring.TraceEnabled() {
		monitoring.Tracef("[stage] seq=%d fired %v", f.Seq, tr.Names())
	}
	return true
}

// Stats returns the dispatch counters. Call it from the render goroutine.
func (d *Dispatcher) Stats() DispatchStats { return d.stats }
