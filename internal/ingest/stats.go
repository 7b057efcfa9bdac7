package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/monitoring"
)

// PacketStats tracks ingest counters with thread-safe operations. Interval
// counters reset on every log line; totals never reset.
type PacketStats struct {
	mu             sync.Mutex
	packetCount    int64
	byteCount      int64
	errorCount     int64
	forwardDropped int64
	lastReset      time.Time

	totalPackets int64
	totalBytes   int64
	totalErrors  int64
}

// NewPacketStats creates a new PacketStats instance.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket counts one received datagram.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
	ps.totalPackets++
	ps.totalBytes += int64(bytes)
}

// AddError counts one receive error.
func (ps *PacketStats) AddError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.errorCount++
	ps.totalErrors++
}

// AddDropped counts one datagram the forwarder could not queue.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.forwardDropped++
}

// Totals is the lifetime view of the counters.
type Totals struct {
	Packets int64 `json:"packets"`
	Bytes   int64 `json:"bytes"`
	Errors  int64 `json:"errors"`
}

// Totals returns lifetime counters.
func (ps *PacketStats) Totals() Totals {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return Totals{Packets: ps.totalPackets, Bytes: ps.totalBytes, Errors: ps.totalErrors}
}

// Interval is one reporting window.
type Interval struct {
	Packets        int64
	Bytes          int64
	Errors         int64
	ForwardDropped int64
	Duration       time.Duration
}

// GetAndReset returns the current window and starts a new one.
func (ps *PacketStats) GetAndReset() Interval {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	iv := Interval{
		Packets:        ps.packetCount,
		Bytes:          ps.byteCount,
		Errors:         ps.errorCount,
		ForwardDropped: ps.forwardDropped,
		Duration:       now.Sub(ps.lastReset),
	}
	ps.packetCount = 0
	ps.byteCount = 0
	ps.errorCount = 0
	ps.forwardDropped = 0
	ps.lastReset = now
	return iv
}

// FormatInterval renders a window plus the mailbox counters as one line.
// It returns "" when nothing happened.
func FormatInterval(iv Interval, mb mailbox.Stats) string {
	if iv.Packets == 0 && iv.Errors == 0 && iv.ForwardDropped == 0 {
		return ""
	}
	secs := iv.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("[ingest] stats (/sec): %.1f datagrams, %.1f KB; mailbox published=%d taken=%d superseded=%d",
		float64(iv.Packets)/secs, float64(iv.Bytes)/secs/1024, mb.Published, mb.Taken, mb.Dropped)
	if iv.Errors > 0 {
		msg += fmt.Sprintf(", %d receive errors", iv.Errors)
	}
	if iv.ForwardDropped > 0 {
		msg += fmt.Sprintf(", %d dropped on forward", iv.ForwardDropped)
	}
	return msg
}

// LogStats writes the current window to the diag stream and resets it.
func (ps *PacketStats) LogStats(mb mailbox.Stats) {
	if msg := FormatInterval(ps.GetAndReset(), mb); msg != "" {
		monitoring.Diagf("%s", msg)
	}
}
