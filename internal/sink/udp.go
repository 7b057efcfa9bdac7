package sink

import (
	"fmt"
	"net"

	"github.com/hypebeast/go-osc/osc"
)

type dialFunc func(network, address string) (net.Conn, error)

// UDPSender writes encoded OSC packets over one UDP socket dialed at
// construction. Writes on a connected UDP socket do not wait on the peer.
type UDPSender struct {
	conn    net.Conn
	address string
}

// NewUDPSender resolves and dials host:port once.
func NewUDPSender(host string, port int) (*UDPSender, error) {
	return newUDPSender(fmt.Sprintf("%s:%d", host, port), net.Dial)
}

func newUDPSender(address string, dial dialFunc) (*UDPSender, error) {
	if _, err := net.ResolveUDPAddr("udp", address); err != nil {
		return nil, fmt.Errorf("failed to resolve osc address %s: %w", address, err)
	}
	conn, err := dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to create osc connection to %s: %w", address, err)
	}
	return &UDPSender{conn: conn, address: address}, nil
}

// Address returns the host:port the socket is connected to.
func (u *UDPSender) Address() string { return u.address }

// Send encodes p and writes it as one datagram.
func (u *UDPSender) Send(p osc.Packet) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode osc packet: %w", err)
	}
	_, err = u.conn.Write(data)
	return err
}

// Close closes the socket.
func (u *UDPSender) Close() error { return u.conn.Close() }
