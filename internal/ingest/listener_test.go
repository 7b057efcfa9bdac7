package ingest

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/timeutil"
)

func payload(thumb byte) []byte {
	return (&frame.Builder{}).Set(frame.Thumb, thumb).Payload()
}

func runListener(t *testing.T, l *UDPListener) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestUDPListener_LatestWinsAndSurvivesReadErrors(t *testing.T) {
	sock := NewMockUDPSocket(
		MockUDPPacket{Data: payload(10)},
		MockUDPPacket{Err: errors.New("connection refused")},
		MockUDPPacket{Data: payload(20)},
		MockUDPPacket{Data: []byte{1, 2, 3}},
	)
	box := mailbox.New[*frame.Datagram]()
	l := NewUDPListener(UDPListenerConfig{
		SocketFactory: NewMockUDPSocketFactory(sock),
		Publisher:     NewPublisher(box, nil),
	})

	cancel, done := runListener(t, l)
	require.Eventually(t, func() bool { return box.Stats().Published == 3 }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
	assert.True(t, sock.Closed(), "cancel closes the socket to unblock the read")

	d, ok := box.Take()
	require.True(t, ok)
	assert.Equal(t, uint64(3), d.Seq)
	assert.Equal(t, []byte{1, 2, 3}, d.Payload, "short payloads are published untouched")

	st := box.Stats()
	assert.Equal(t, uint64(2), st.Dropped)

	totals := l.Stats().Totals()
	assert.Equal(t, int64(3), totals.Packets)
	assert.Equal(t, int64(1), totals.Errors)
}

func TestUDPListener_BindFailure(t *testing.T) {
	factory := NewMockUDPSocketFactory(nil)
	factory.Error = errors.New("address already in use")
	l := NewUDPListener(UDPListenerConfig{
		SocketFactory: factory,
		Publisher:     NewPublisher(mailbox.New[*frame.Datagram](), nil),
	})

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, ErrBind)
	require.Len(t, factory.ListenCalls, 1)
	assert.Equal(t, DefaultPort, factory.ListenCalls[0].Addr.Port)
	assert.Nil(t, l.LocalAddr())
}

func TestUDPListener_ResolveFailure(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{
		Address:   "127.0.0.1:99999",
		Publisher: NewPublisher(mailbox.New[*frame.Datagram](), nil),
	})
	assert.ErrorIs(t, l.Bind(), ErrBind)
}

func TestUDPListener_ReadBufferWarningIsNotFatal(t *testing.T) {
	sock := NewMockUDPSocket()
	sock.SetReadBufferError = errors.New("not permitted")
	l := NewUDPListener(UDPListenerConfig{
		RcvBuf:        1 << 20,
		SocketFactory: NewMockUDPSocketFactory(sock),
		Publisher:     NewPublisher(mailbox.New[*frame.Datagram](), nil),
	})
	require.NoError(t, l.Bind())
	assert.Equal(t, sock.LocalAddress, l.LocalAddr())
	require.NoError(t, l.Close())
	assert.True(t, sock.Closed())
}

func TestUDPListener_CloseEndsRun(t *testing.T) {
	sock := NewMockUDPSocket()
	l := NewUDPListener(UDPListenerConfig{
		SocketFactory: NewMockUDPSocketFactory(sock),
		Publisher:     NewPublisher(mailbox.New[*frame.Datagram](), nil),
	})
	require.NoError(t, l.Bind())
	_, done := runListener(t, l)

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestUDPListener_NoPublisher(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{SocketFactory: NewMockUDPSocketFactory(NewMockUDPSocket())})
	assert.Error(t, l.Run(context.Background()))
}

func TestUDPListener_RealSocket(t *testing.T) {
	box := mailbox.New[*frame.Datagram]()
	l := NewUDPListener(UDPListenerConfig{
		Address:   "127.0.0.1:0",
		Publisher: NewPublisher(box, nil),
	})
	require.NoError(t, l.Bind())
	cancel, done := runListener(t, l)

	conn, err := net.Dial("udp", l.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	for _, v := range []byte{5, 6, 7} {
		_, err := conn.Write(payload(v))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return box.Stats().Published == 3 }, 2*time.Second, 5*time.Millisecond)
	d, ok := box.Take()
	require.True(t, ok)
	f, err := frame.Decode(d)
	require.NoError(t, err)
	assert.Equal(t, byte(7), f.Raw(frame.Thumb))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPublisher_CopiesAndStamps(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	box := mailbox.New[*frame.Datagram]()
	var tapped []uint64
	pub := NewPublisher(box, clock).WithTap(func(d *frame.Datagram) { tapped = append(tapped, d.Seq) })

	buf := payload(9)
	d := pub.Publish(buf)
	buf[frame.Thumb] = 0

	assert.Equal(t, byte(9), d.Payload[frame.Thumb])
	assert.Equal(t, clock.Now(), d.ReceivedAt)
	pub.Publish(buf)
	assert.Equal(t, []uint64{1, 2}, tapped)
	assert.Same(t, box, pub.Mailbox())
}
