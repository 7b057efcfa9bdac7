package ingest

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/glovestage/internal/monitoring"
)

// DropCounter counts datagrams the forwarder could not queue.
type DropCounter interface {
	AddDropped()
}

// PacketForwarder mirrors raw datagrams to a second host, typically a
// backup visual machine. Forwarding never blocks the receive loop: when the
// buffer is full the datagram is dropped and counted.
type PacketForwarder struct {
	conn        net.Conn
	channel     chan []byte
	stats       DropCounter
	logInterval time.Duration
	address     string
	closeOnce   sync.Once
}

// NewPacketForwarder dials address ("host:port").
func NewPacketForwarder(address string, stats DropCounter, logInterval time.Duration) (*PacketForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	return newPacketForwarder(conn, address, stats, logInterval), nil
}

func newPacketForwarder(conn net.Conn, address string, stats DropCounter, logInterval time.Duration) *PacketForwarder {
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		stats:       stats,
		logInterval: logInterval,
		address:     address,
	}
}

// Start runs the forwarding goroutine until ctx ends.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(packet); err != nil {
					failed++
					lastError = err
				}
			case <-ticker.C:
				if failed > 0 && lastError != nil {
					monitoring.Opsf("[ingest] %d forwarded datagrams failed (latest: %v)", failed, lastError)
					failed = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Opsf("[ingest] forwarding datagrams to %s", f.address)
}

// ForwardAsync queues a copy of packet without blocking.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := append([]byte(nil), packet...)
	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Close closes the connection. Call it only after the receive loop has
// stopped forwarding.
func (f *PacketForwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.channel)
		err = f.conn.Close()
	})
	return err
}
