package sink

import (
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConn struct {
	net.Conn
	writes [][]byte
	closed bool
}

func (c *countingConn) Write(b []byte) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (c *countingConn) Close() error {
	c.closed = true
	return nil
}

func TestUDPSender_DialsOnce(t *testing.T) {
	conn := &countingConn{}
	dials := 0
	u, err := newUDPSender("127.0.0.1:9000", func(network, address string) (net.Conn, error) {
		dials++
		assert.Equal(t, "udp", network)
		assert.Equal(t, "127.0.0.1:9000", address)
		return conn, nil
	})
	require.NoError(t, err)

	s := NewOSCSinkWithSender(u, "")
	for i := 0; i < 100; i++ {
		s.SetContinuousParam("impulse", ParamScale, float64(i))
	}

	assert.Equal(t, 1, dials, "the socket is reused across sends")
	require.Len(t, conn.writes, 100)
	assert.Equal(t, uint64(100), s.Sent())

	p, err := osc.ParsePacket(string(conn.writes[99]))
	require.NoError(t, err)
	msg, ok := p.(*osc.Message)
	require.True(t, ok)
	assert.Equal(t, "/stage/object/impulse/param/scale", msg.Address)
	assert.Equal(t, []interface{}{float32(99)}, msg.Arguments)

	require.NoError(t, s.Close())
	assert.True(t, conn.closed)
}

func TestUDPSender_BadAddress(t *testing.T) {
	_, err := newUDPSender("127.0.0.1:99999", func(string, string) (net.Conn, error) {
		t.Fatal("dial must not run for an unresolvable address")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestOSCSink_Loopback(t *testing.T) {
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer pc.Close()

	s, err := NewOSCSink("127.0.0.1", pc.LocalAddr().(*net.UDPAddr).Port)
	require.NoError(t, err)
	defer s.Close()

	s.SetCameraZoom(3)
	s.SetGlobalTimeScale(0.5)

	buf := make([]byte, 1500)
	var got []*osc.Message
	for len(got) < 2 {
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := pc.ReadFromUDP(buf)
		require.NoError(t, err)
		p, err := osc.ParsePacket(string(buf[:n]))
		require.NoError(t, err)
		got = append(got, p.(*osc.Message))
	}
	assert.Equal(t, "/stage/camera/zoom", got[0].Address)
	assert.Equal(t, []interface{}{float32(3)}, got[0].Arguments)
	assert.Equal(t, "/stage/time/scale", got[1].Address)
	assert.Equal(t, uint64(2), s.Sent())
}
