package stage

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/timeutil"
)

// DefaultTickInterval is a 60 Hz render cadence.
const DefaultTickInterval = time.Second / 60

// maxTickDelta bounds one step after a stall so envelopes do not jump to
// completion because the process was suspended.
const maxTickDelta = 250 * time.Millisecond

// Advancer steps time-based state once per tick. *mapper.Mapper implements
// it.
type Advancer interface {
	Advance(dt time.Duration)
}

// Snapshot is the debug view of the render side, refreshed every tick.
type Snapshot struct {
	Ticks    uint64        `json:"ticks"`
	Dispatch DispatchStats `json:"dispatch"`
	Mailbox  mailbox.Stats `json:"mailbox"`
	Mapper   *mapper.Stats `json:"mapper,omitempty"`
	Updated  time.Time     `json:"updated"`
}

// Curve is one envelope's sampled trajectory for charts.
type Curve struct {
	Name   string
	Step   time.Duration
	Values []float64
}

// LoopConfig wires a Loop.
type LoopConfig struct {
	Mailbox  *mailbox.Mailbox[*frame.Datagram]
	Mapper   *mapper.Mapper
	Clock    timeutil.Clock
	Interval time.Duration
}

// Loop drives the dispatcher and mapper at a fixed tick. Everything it
// touches is owned by the goroutine calling Run or Tick; only the snapshot
// is shared, behind a lock.
type Loop struct {
	dispatcher *Dispatcher
	advancer   Advancer
	box        *mailbox.Mailbox[*frame.Datagram]
	statsFn    func() mapper.Stats
	clock      timeutil.Clock
	interval   time.Duration
	curves     []Curve

	ticks uint64

	mu   sync.RWMutex
	snap Snapshot
}

// NewLoop builds the dispatcher over cfg.Mailbox and cfg.Mapper.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		dispatcher: NewDispatcher(cfg.Mailbox, cfg.Mapper),
		advancer:   cfg.Mapper,
		box:        cfg.Mailbox,
		statsFn:    cfg.Mapper.Stats,
		clock:      cfg.Clock,
		interval:   cfg.Interval,
	}
	if l.clock == nil {
		l.clock = timeutil.RealClock{}
	}
	if l.interval <= 0 {
		l.interval = DefaultTickInterval
	}
	// Envelope configs never change after setup, so the curves are
	// sampled once here instead of from the HTTP goroutine.
	l.curves = sampleCurves(cfg.Mapper.Envelopes(), l.interval)
	l.refresh()
	return l
}

func sampleCurves(envs []mapper.NamedEnvelope, step time.Duration) []Curve {
	out := make([]Curve, 0, len(envs))
	for _, ne := range envs {
		out = append(out, Curve{Name: ne.Name, Step: step, Values: ne.Envelope.Trajectory(step)})
	}
	return out
}

// Dispatcher returns the loop's dispatcher, for registering frame hooks.
func (l *Loop) Dispatcher() *Dispatcher { return l.dispatcher }

// Interval returns the tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Curves returns the sampled envelope trajectories.
func (l *Loop) Curves() []Curve { return l.curves }

// Tick runs one render step: poll for a new frame, then advance by dt.
func (l *Loop) Tick(dt time.Duration) {
	if dt > maxTickDelta {
		dt = maxTickDelta
	}
	if dt < 0 {
		dt = 0
	}
	l.dispatcher.Poll()
	l.advancer.Advance(dt)
	l.ticks++
	l.refresh()
}

// Run ticks on the clock until ctx is cancelled. The step passed to Tick is
// the measured time since the previous tick.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()
	last := l.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			dt := now.Sub(last)
			last = now
			l.Tick(dt)
		}
	}
}

func (l *Loop) refresh() {
	s := Snapshot{
		Ticks:    l.ticks,
		Dispatch: l.dispatcher.Stats(),
		Mailbox:  l.box.Stats(),
		Updated:  l.clock.Now(),
	}
	if l.statsFn != nil {
		ms := l.statsFn()
		s.Mapper = &ms
	}
	l.mu.Lock()
	l.snap = s
	l.mu.Unlock()
}

// Snapshot returns the latest debug view. Safe from any goroutine.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}
