package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glovestage/internal/mailbox"
)

func TestPacketForwarder_Mirrors(t *testing.T) {
	backup, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer backup.Close()

	stats := NewPacketStats()
	f, err := NewPacketForwarder(backup.LocalAddr().String(), stats, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)

	src := payload(42)
	f.ForwardAsync(src)
	src[0] = 0xFF // forwarder must have copied

	require.NoError(t, backup.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, _, err := backup.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, payload(42), buf[:n])

	cancel()
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close(), "second close is a no-op")
}

func TestPacketForwarder_DropsWhenFull(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	stats := NewPacketStats()
	f := newPacketForwarder(client, "pipe", stats, time.Second)

	// Not started, so nothing drains the buffer.
	for i := 0; i < cap(f.channel)+5; i++ {
		f.ForwardAsync([]byte{1})
	}
	assert.Equal(t, int64(5), stats.GetAndReset().ForwardDropped)
	require.NoError(t, f.Close())
}

func TestFormatInterval(t *testing.T) {
	assert.Empty(t, FormatInterval(Interval{Duration: time.Second}, mailbox.Stats{}))

	msg := FormatInterval(Interval{
		Packets: 120, Bytes: 120 * 16, Errors: 2, ForwardDropped: 3, Duration: 2 * time.Second,
	}, mailbox.Stats{Published: 120, Taken: 100, Dropped: 20})
	assert.Contains(t, msg, "60.0 datagrams")
	assert.Contains(t, msg, "superseded=20")
	assert.Contains(t, msg, "2 receive errors")
	assert.Contains(t, msg, "3 dropped on forward")
}

func TestPacketStats_GetAndResetKeepsTotals(t *testing.T) {
	ps := NewPacketStats()
	ps.AddPacket(16)
	ps.AddPacket(16)
	ps.AddError()

	iv := ps.GetAndReset()
	assert.Equal(t, int64(2), iv.Packets)
	assert.Equal(t, int64(32), iv.Bytes)
	assert.Zero(t, ps.GetAndReset().Packets)
	assert.Equal(t, Totals{Packets: 2, Bytes: 32, Errors: 1}, ps.Totals())
}
