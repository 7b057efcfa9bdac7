package stage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glovestage/internal/config"
	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/sink"
	"github.com/banshee-data/glovestage/internal/timeutil"
)

func newTestLoop(t *testing.T, clock timeutil.Clock) (*Loop, *mailbox.Mailbox[*frame.Datagram], *sink.Recorder) {
	t.Helper()
	box := mailbox.New[*frame.Datagram]()
	rec := sink.NewRecorder(0)
	m, err := mapper.NewFromConfig(config.DefaultStageConfig(), rec)
	require.NoError(t, err)
	return NewLoop(LoopConfig{Mailbox: box, Mapper: m, Clock: clock, Interval: 10 * time.Millisecond}), box, rec
}

func TestLoop_TickRunsKickEnvelopeToCompletion(t *testing.T) {
	l, box, rec := newTestLoop(t, timeutil.NewMockClock(time.Unix(0, 0)))

	box.Put(&frame.Datagram{Seq: 1, Payload: (&frame.Builder{}).Set(frame.Thumb, 40).Payload()})
	l.Tick(10 * time.Millisecond)

	st := l.Snapshot()
	assert.Equal(t, uint64(1), st.Ticks)
	assert.Equal(t, uint64(1), st.Dispatch.Processed)
	require.NotNil(t, st.Mapper)
	assert.Contains(t, st.Mapper.Objects[0].Running, "scale")

	// Default kick lasts 300ms.
	for i := 0; i < 30; i++ {
		l.Tick(10 * time.Millisecond)
	}
	st = l.Snapshot()
	assert.Empty(t, st.Mapper.Objects[0].Running)
	assert.InDelta(t, 1.0, st.Mapper.Objects[0].Scale, 1e-9)

	scales := rec.Params("impulse", sink.ParamScale)
	require.NotEmpty(t, scales)
	peak := 0.0
	for _, s := range scales {
		if s > peak {
			peak = s
		}
	}
	assert.InDelta(t, 1.4, peak, 1e-9)
}

func TestLoop_TickClampsStall(t *testing.T) {
	l, box, _ := newTestLoop(t, timeutil.NewMockClock(time.Unix(0, 0)))
	box.Put(&frame.Datagram{Seq: 1, Payload: (&frame.Builder{}).Set(frame.Thumb, 40).Payload()})
	l.Tick(0)
	l.Tick(time.Hour)

	// A 300ms kick survives one clamped 250ms step.
	assert.Contains(t, l.Snapshot().Mapper.Objects[0].Running, "scale")
}

func TestLoop_RunFollowsClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	l, _, _ := newTestLoop(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		clock.Advance(10 * time.Millisecond)
		return l.Snapshot().Ticks >= 3
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLoop_Curves(t *testing.T) {
	l, _, _ := newTestLoop(t, nil)
	curves := l.Curves()
	require.Len(t, curves, 8)
	assert.Equal(t, "impulse/scale", curves[0].Name)
	// 300ms at 10ms steps, plus the trigger sample.
	assert.Len(t, curves[0].Values, 31)
	assert.Equal(t, 10*time.Millisecond, l.Interval())
}

func loopbackRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAttachAdminRoutes(t *testing.T) {
	l, box, _ := newTestLoop(t, timeutil.NewMockClock(time.Unix(0, 0)))
	box.Put(&frame.Datagram{Seq: 7, Payload: (&frame.Builder{}).Set(frame.Ring, 60).Payload()})
	l.Tick(10 * time.Millisecond)

	mux := http.NewServeMux()
	l.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, loopbackRequest(http.MethodGet, "/debug/stage"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, uint64(7), snap.Dispatch.LastSeq)
	require.NotNil(t, snap.Mapper)
	assert.Equal(t, uint64(1), snap.Mapper.Fired["hihat"])

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, loopbackRequest(http.MethodGet, "/debug/envelopes"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), "fractal/hihat")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/stage", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	mux.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusOK, w.Code, "debug pages are loopback only")
}
