// Package ingest owns the receive side of the stage: it reads sensor
// datagrams from a UDP socket, a serial port or a capture file and
// publishes each one into the latest-wins mailbox. Nothing here parses or
// validates frames; that happens on the render loop.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/monitoring"
	"github.com/banshee-data/glovestage/internal/timeutil"
)

// DefaultPort is the port the glove rig sends to.
const DefaultPort = 1236

// ErrBind marks a failure to resolve or bind the listen address. It is the
// only ingest error that should stop the daemon.
var ErrBind = errors.New("ingest: bind failed")

// Source is anything that feeds datagrams into a mailbox until ctx ends.
type Source interface {
	Run(ctx context.Context) error
}

// Publisher is the mailbox side a source writes into.
type Publisher struct {
	box   *mailbox.Mailbox[*frame.Datagram]
	clock timeutil.Clock
	seq   atomic.Uint64
	tap   func(*frame.Datagram)
}

// NewPublisher wraps box. A nil clock uses the real clock.
func NewPublisher(box *mailbox.Mailbox[*frame.Datagram], clock timeutil.Clock) *Publisher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Publisher{box: box, clock: clock}
}

// WithTap registers f to see every published datagram, on the publishing
// goroutine. f must not block.
func (p *Publisher) WithTap(f func(*frame.Datagram)) *Publisher {
	p.tap = f
	return p
}

// Publish copies payload into a new datagram and overwrites the mailbox
// slot with it.
func (p *Publisher) Publish(payload []byte) *frame.Datagram {
	d := &frame.Datagram{
		Seq:        p.seq.Add(1),
		ReceivedAt: p.clock.Now(),
		Payload:    append([]byte(nil), payload...),
	}
	p.box.Put(d)
	if p.tap != nil {
		p.tap(d)
	}
	return d
}

// Mailbox returns the mailbox being written.
func (p *Publisher) Mailbox() *mailbox.Mailbox[*frame.Datagram] { return p.box }

// UDPListener receives sensor datagrams from one UDP socket.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	maxDatagram int
	factory     UDPSocketFactory
	stats       *PacketStats
	forwarder   *PacketForwarder
	pub         *Publisher

	mu   sync.Mutex
	sock UDPSocket
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address       string // default ":1236"
	RcvBuf        int
	LogInterval   time.Duration
	MaxDatagram   int // read buffer size, default 2048
	SocketFactory UDPSocketFactory
	Stats         *PacketStats
	Forwarder     *PacketForwarder
	Publisher     *Publisher
}

// NewUDPListener creates a listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	l := &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: config.LogInterval,
		maxDatagram: config.MaxDatagram,
		factory:     config.SocketFactory,
		stats:       config.Stats,
		forwarder:   config.Forwarder,
		pub:         config.Publisher,
	}
	if l.address == "" {
		l.address = fmt.Sprintf(":%d", DefaultPort)
	}
	if l.logInterval == 0 {
		l.logInterval = time.Minute
	}
	if l.maxDatagram <= 0 {
		l.maxDatagram = 2048
	}
	if l.factory == nil {
		l.factory = RealUDPSocketFactory{}
	}
	if l.stats == nil {
		l.stats = NewPacketStats()
	}
	return l
}

// Stats returns the listener's counters.
func (l *UDPListener) Stats() *PacketStats { return l.stats }

// Bind resolves the address and opens the socket. Errors wrap ErrBind.
func (l *UDPListener) Bind() error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %v", ErrBind, l.address, err)
	}
	sock, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen %q: %v", ErrBind, l.address, err)
	}
	if l.rcvBuf > 0 {
		if err := sock.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Opsf("[ingest] warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	l.mu.Lock()
	l.sock = sock
	l.mu.Unlock()
	monitoring.Opsf("[ingest] UDP listener bound to %s", sock.LocalAddr())
	return nil
}

// LocalAddr returns the bound address, or nil before Bind.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sock == nil {
		return nil
	}
	return l.sock.LocalAddr()
}

// Run binds if needed, then receives until ctx is cancelled or the socket
// is closed. There is no read deadline: cancellation closes the socket,
// which unblocks the pending read. Receive errors are logged and the loop
// keeps listening.
func (l *UDPListener) Run(ctx context.Context) error {
	if l.pub == nil {
		return errors.New("ingest: UDP listener has no publisher")
	}
	l.mu.Lock()
	sock := l.sock
	l.mu.Unlock()
	if sock == nil {
		if err := l.Bind(); err != nil {
			return err
		}
		l.mu.Lock()
		sock = l.sock
		l.mu.Unlock()
	}

	stop := context.AfterFunc(ctx, func() { sock.Close() })
	defer stop()
	defer sock.Close()

	if l.forwarder != nil {
		l.forwarder.Start(ctx)
	}
	go l.logStats(ctx)

	buffer := make([]byte, l.maxDatagram)
	for {
		n, addr, err := sock.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				monitoring.Opsf("[ingest] UDP listener stopping: %v", ctx.Err())
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.stats.AddError()
			monitoring.Diagf("[ingest] UDP read error: %v", err)
			continue
		}
		l.handle(buffer[:n], addr)
	}
}

func (l *UDPListener) handle(packet []byte, addr *net.UDPAddr) {
	l.stats.AddPacket(len(packet))
	d := l.pub.Publish(packet)
	if l.forwarder != nil {
		l.forwarder.ForwardAsync(packet)
	}
	if monitoring.TraceEnabled() {
		monitoring.Tracef("[ingest] seq=%d from=%v len=%d", d.Seq, addr, len(packet))
	}
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats(l.pub.Mailbox().Stats())
		}
	}
}

// Close closes the socket, ending Run.
func (l *UDPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sock != nil {
		return l.sock.Close()
	}
	return nil
}
