package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/timeutil"
)

func testFrame(t *testing.T, seq uint64, thumb byte) frame.SensorFrame {
	t.Helper()
	f, err := frame.Decode(&frame.Datagram{
		Seq:        seq,
		ReceivedAt: time.Unix(1_700_000_000, int64(seq)*int64(time.Millisecond)),
		Payload:    (&frame.Builder{}).Set(frame.Thumb, thumb).Payload(),
	})
	require.NoError(t, err)
	return f
}

func runRecorder(t *testing.T, r *Recorder) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func TestRecorder_WritesFramesAndTriggers(t *testing.T) {
	db := newTestDB(t)
	id, err := db.StartSession("udp", "", time.Now())
	require.NoError(t, err)

	r := NewRecorder(db, id, RecorderOptions{BatchSize: 4, Clock: timeutil.NewMockClock(time.Unix(0, 0))})
	cancel, done := runRecorder(t, r)

	for seq := uint64(1); seq <= 10; seq++ {
		tr := mapper.Triggers{}
		if seq%3 == 0 {
			tr.Kick = true
			tr.HiHat = seq == 9
		}
		r.Record(testFrame(t, seq, byte(seq)), tr)
	}
	cancel()
	require.NoError(t, <-done)

	frames, err := db.SessionFrames(id)
	require.NoError(t, err)
	require.Len(t, frames, 10)
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Seq)
		assert.Len(t, f.Payload, frame.Size)
		assert.Equal(t, byte(i+1), f.Payload[frame.Thumb])
	}
	assert.True(t, frames[0].ReceivedAt.Equal(time.Unix(1_700_000_000, int64(time.Millisecond))))

	counts, err := db.TriggerCounts(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"kick": 3, "hihat": 1}, counts)

	st := r.Stats()
	assert.Equal(t, RecorderStats{Queued: 10, Written: 10}, st)

	s, err := db.Session(id)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Frames)
}

func TestRecorder_FlushesOnTicker(t *testing.T) {
	db := newTestDB(t)
	id, err := db.StartSession("udp", "", time.Now())
	require.NoError(t, err)

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	r := NewRecorder(db, id, RecorderOptions{BatchSize: 1000, FlushInterval: time.Second, Clock: clock})
	cancel, done := runRecorder(t, r)
	defer func() {
		cancel()
		<-done
	}()

	r.Record(testFrame(t, 1, 9), mapper.Triggers{})
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return r.Stats().Written == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, "unused", RecorderOptions{Buffer: 2})

	for seq := uint64(1); seq <= 5; seq++ {
		r.Record(testFrame(t, seq, 1), mapper.Triggers{})
	}
	st := r.Stats()
	assert.Equal(t, uint64(2), st.Queued)
	assert.Equal(t, uint64(3), st.Dropped)
}

func TestRecorder_CountsFailedWrites(t *testing.T) {
	db := newTestDB(t)
	// No session row, so the foreign key rejects the batch.
	r := NewRecorder(db, "no-such-session", RecorderOptions{Clock: timeutil.NewMockClock(time.Unix(0, 0))})
	cancel, done := runRecorder(t, r)

	r.Record(testFrame(t, 1, 1), mapper.Triggers{Kick: true})
	r.Record(testFrame(t, 2, 1), mapper.Triggers{})
	cancel()
	require.NoError(t, <-done)

	st := r.Stats()
	assert.Equal(t, uint64(2), st.Failed)
	assert.Zero(t, st.Written)
}
