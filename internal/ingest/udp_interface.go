package ingest

import (
	"net"
	"sync"
)

// UDPSocket defines the socket operations the listener needs.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	// ReadFromUDP blocks until a datagram arrives or the socket is closed.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// SetReadBuffer sets the size of the operating system's receive buffer.
	SetReadBuffer(bytes int) error

	// Close closes the socket, unblocking any pending read.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// UDPSocketFactory creates UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
// *net.UDPConn satisfies UDPSocket directly.
type RealUDPSocketFactory struct{}

// ListenUDP creates a new UDP socket.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket implements UDPSocket for testing. It returns the queued
// packets in order, then blocks like a silent sender until Close.
type MockUDPSocket struct {
	mu      sync.Mutex
	packets []MockUDPPacket
	closed  bool
	done    chan struct{}
	more    chan struct{}

	// ReadBufferSize holds the value set by SetReadBuffer.
	ReadBufferSize int
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// Reads counts completed ReadFromUDP calls.
	Reads int
}

// MockUDPPacket is one queued read. A non-nil Err is returned instead of
// data.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
	Err  error
}

// NewMockUDPSocket creates a MockUDPSocket with the given packets queued.
func NewMockUDPSocket(packets ...MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		packets: packets,
		done:    make(chan struct{}),
		more:    make(chan struct{}, 1),
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 1236,
		},
	}
}

// Push queues more packets, waking a blocked reader.
func (m *MockUDPSocket) Push(packets ...MockUDPPacket) {
	m.mu.Lock()
	m.packets = append(m.packets, packets...)
	m.mu.Unlock()
	select {
	case m.more <- struct{}{}:
	default:
	}
}

// Pending returns how many queued packets have not been read yet.
func (m *MockUDPSocket) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

// ReadFromUDP returns the next queued packet or blocks until one is pushed
// or the socket is closed.
func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, nil, net.ErrClosed
		}
		if len(m.packets) > 0 {
			pkt := m.packets[0]
			m.packets = m.packets[1:]
			m.Reads++
			m.mu.Unlock()
			if pkt.Err != nil {
				return 0, nil, pkt.Err
			}
			return copy(b, pkt.Data), pkt.Addr, nil
		}
		m.mu.Unlock()

		select {
		case <-m.done:
		case <-m.more:
		}
	}
}

// SetReadBuffer records the buffer size.
func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

// Close marks the socket closed and unblocks readers. It is idempotent.
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (m *MockUDPSocket) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockUDPSocketFactory implements UDPSocketFactory for testing.
type MockUDPSocketFactory struct {
	// Socket is the socket to return from ListenUDP.
	Socket *MockUDPSocket
	// Error is returned by ListenUDP if set.
	Error error
	// ListenCalls records all ListenUDP calls.
	ListenCalls []MockListenCall
}

// MockListenCall records a call to ListenUDP.
type MockListenCall struct {
	Network string
	Addr    *net.UDPAddr
}

// NewMockUDPSocketFactory creates a factory returning socket.
func NewMockUDPSocketFactory(socket *MockUDPSocket) *MockUDPSocketFactory {
	return &MockUDPSocketFactory{Socket: socket}
}

// ListenUDP returns the configured mock socket.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.ListenCalls = append(f.ListenCalls, MockListenCall{Network: network, Addr: laddr})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}
