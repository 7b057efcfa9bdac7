package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/glovestage/internal/monitoring"
)

// PCAPReplay replays UDP payloads addressed to one port from a capture
// file, so a rehearsal can be re-run against the stage.
type PCAPReplay struct {
	Path string
	Port int
	// Realtime paces packets by their capture timestamps. Otherwise they
	// are published as fast as they can be read.
	Realtime bool
	// Speed multiplies replay pace when Realtime is set; 0 means 1.
	Speed float64
	Pub   *Publisher
	Stats *PacketStats
	// Sleep waits between paced packets; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run opens the file and replays it to the end.
func (p *PCAPReplay) Run(ctx context.Context) error {
	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", p.Path, err)
	}
	defer f.Close()
	n, err := p.ReplayFrom(ctx, f)
	if err != nil {
		return err
	}
	monitoring.Opsf("[ingest] PCAP replay of %s complete: %d datagrams", p.Path, n)
	return nil
}

// ReplayFrom reads a pcap stream from r and returns how many payloads were
// published.
func (p *PCAPReplay) ReplayFrom(ctx context.Context, r io.Reader) (int, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read PCAP header: %w", err)
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	speed := p.Speed
	if speed <= 0 {
		speed = 1
	}

	var (
		published int
		first     time.Time
		started   = time.Now()
	)
	for {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return published, nil
		}
		if err != nil {
			return published, fmt.Errorf("reading PCAP packet: %w", err)
		}

		payload, ok := udpPayload(data, reader.LinkType(), port)
		if !ok {
			continue
		}

		if p.Realtime {
			if first.IsZero() {
				first = ci.Timestamp
			}
			due := time.Duration(float64(ci.Timestamp.Sub(first)) / speed)
			if wait := due - time.Since(started); wait > 0 {
				if err := sleep(ctx, wait); err != nil {
					return published, err
				}
			}
		}

		if p.Stats != nil {
			p.Stats.AddPacket(len(payload))
		}
		p.Pub.Publish(payload)
		published++
	}
}

func udpPayload(data []byte, link layers.LinkType, port int) ([]byte, bool) {
	packet := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok || int(udp.DstPort) != port || len(udp.Payload) == 0 {
		return nil, false
	}
	return udp.Payload, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
