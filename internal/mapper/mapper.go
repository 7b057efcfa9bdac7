// Package mapper turns decoded sensor frames into envelope triggers and
// continuous sink updates.
//
// Apply runs once per dispatched frame and evaluates the trigger rules in a
// fixed order. Advance runs once per render tick, whether or not a frame
// arrived, and moves every envelope forward. Both are called only from the
// render loop goroutine.
package mapper

import (
	"errors"
	"math"
	"time"

	"github.com/banshee-data/glovestage/internal/autorange"
	"github.com/banshee-data/glovestage/internal/envelope"
	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/particles"
	"github.com/banshee-data/glovestage/internal/responsive"
	"github.com/banshee-data/glovestage/internal/sink"
)

// Options holds the mapper's thresholds and global effect settings.
type Options struct {
	KickThreshold         float64
	KickRequiresDominance bool
	SnareThreshold        float64
	SnareHardThreshold    float64
	HiHatThreshold        float64
	CrashThreshold        float64

	// IdleNoise is the primary object's noise amount while it is not
	// pulsing; NoiseGain scales the colour value while it is.
	IdleNoise float64
	NoiseGain float64

	// NoiseSmoothTime eases noise writes toward each new level across render
	// ticks; zero writes the level as it arrives. ColorLerp is the share of a
	// new colour blended in per frame; 1 replaces the colour outright.
	NoiseSmoothTime time.Duration
	ColorLerp       float64

	SlowdownDuration  time.Duration
	SlowdownTimeScale float64

	// RefreshTicks rewrites the global time scale once per that many ticks
	// even when it has not changed. Zero writes changes only.
	RefreshTicks int
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		KickThreshold:         0.07,
		KickRequiresDominance: true,
		SnareThreshold:        0.07,
		SnareHardThreshold:    0.4,
		HiHatThreshold:        0.1,
		CrashThreshold:        0.1,
		IdleNoise:             0.1,
		NoiseGain:             2,
		ColorLerp:             1,
		SlowdownDuration:      time.Second,
		SlowdownTimeScale:     0.6,
		RefreshTicks:          60,
	}
}

// Hook is an optional continuous mapping evaluated after the built-in rules.
type Hook interface {
	Apply(f frame.SensorFrame, tr *autorange.Tracker)
}

// Scene is the set of host-side collaborators the mapper drives.
type Scene struct {
	Primary   *responsive.Object
	Fractal   *responsive.Object
	Particles *particles.Controller
	// Out receives camera and global time scale writes.
	Out   sink.Sink
	Hooks []Hook
}

var errIncompleteScene = errors.New("mapper: scene needs primary, fractal, particles and out")

// Triggers reports which rules fired for one frame.
type Triggers struct {
	Kick   bool `json:"kick"`
	Snare  bool `json:"snare"`
	Impact bool `json:"impact"`
	HiHat  bool `json:"hihat"`
	Crash  bool `json:"crash"`
}

// Any reports whether any rule fired.
func (t Triggers) Any() bool { return t.Kick || t.Snare || t.Impact || t.HiHat || t.Crash }

// Names lists the fired rules in evaluation order.
func (t Triggers) Names() []string {
	var out []string
	for _, p := range []struct {
		on   bool
		name string
	}{{t.Kick, "kick"}, {t.Snare, "snare"}, {t.Impact, "impact"}, {t.HiHat, "hihat"}, {t.Crash, "crash"}} {
		if p.on {
			out = append(out, p.name)
		}
	}
	return out
}

// Mapper owns the auto-range tracker and the global time scale.
type Mapper struct {
	opts    Options
	scene   Scene
	tracker *autorange.Tracker

	dilation       *envelope.Envelope
	timeScale      float64
	timeScaleDirty bool

	ticks    int
	noise    Damper
	color    sink.RGBA
	colorSet bool

	applied uint64
	fired   map[string]uint64
}

// New wires a mapper over scene.
func New(opts Options, scene Scene) (*Mapper, error) {
	if scene.Primary == nil || scene.Fractal == nil || scene.Particles == nil || scene.Out == nil {
		return nil, errIncompleteScene
	}
	dilation, err := envelope.New(envelope.Config{
		Duration: opts.SlowdownDuration,
		Shape:    envelope.LinearDecay,
		Base:     1,
		Target:   opts.SlowdownTimeScale,
	})
	if err != nil {
		return nil, err
	}
	return &Mapper{
		opts:           opts,
		scene:          scene,
		tracker:        autorange.New(),
		dilation:       dilation,
		timeScale:      1,
		timeScaleDirty: true,
		noise:          Damper{SmoothTime: opts.NoiseSmoothTime, Value: opts.IdleNoise, Target: opts.IdleNoise},
		fired:          make(map[string]uint64),
	}, nil
}

// Tracker exposes the auto-range tracker for inspection.
func (m *Mapper) Tracker() *autorange.Tracker { return m.tracker }

// TimeScale returns the current global time scale.
func (m *Mapper) TimeScale() float64 { return m.timeScale }

// Apply evaluates every rule against f in order and returns what fired.
func (m *Mapper) Apply(f frame.SensorFrame) Triggers {
	var tr Triggers
	m.applied++

	// 1. auto-range the band levels
	level0 := f.Level(frame.Band0)
	level2 := f.Level(frame.Band2)
	m.tracker.Observe(frame.Band0, level0)
	m.tracker.Observe(frame.Band2, level2)

	// 2. continuous colour and noise on the primary object
	colorVal := m.tracker.Normalize(frame.Band0, level0)
	primary := m.scene.Primary
	m.setColor(sink.HSV(colorVal, 1, colorVal))
	noise := m.opts.IdleNoise
	if primary.Running(envelope.KindScale) {
		noise = m.opts.NoiseGain * colorVal
	}
	m.noise.Target = noise
	if m.opts.NoiseSmoothTime <= 0 {
		primary.SetParam(sink.ParamNoiseAmount, noise)
	}

	// 3. kick
	kick := f.Normalized(frame.Thumb)
	snare := f.Normalized(frame.Middle)
	if kick > m.opts.KickThreshold && (!m.opts.KickRequiresDominance || kick > snare) {
		tr.Kick = true
		primary.Arm(envelope.KindScale, envelope.KindRotation)
		m.scene.Fractal.Arm(envelope.KindKick)
	}

	// 4. snare particle impulse
	if snare > m.opts.SnareThreshold {
		tr.Snare = true
		m.scene.Particles.Trigger()
	}

	// 5. fractal fade input and hard snare impact
	fractal := m.scene.Fractal
	fade := m.tracker.Normalize(frame.Band2, level2)
	fractal.SetFadeInput(fade)
	fractal.SetParam(sink.ParamFadeInput, fade)
	fractal.SetParam(sink.ParamBandLevel, level2)
	if snare > m.opts.SnareHardThreshold {
		tr.Impact = true
		fractal.SetColor(sink.HSV(snare, 1, 1))
		fractal.Arm(envelope.KindScale, envelope.KindRotation)
	}

	// 6. hi-hat
	if f.Normalized(frame.Ring) > m.opts.HiHatThreshold {
		tr.HiHat = true
		fractal.Arm(envelope.KindHiHat)
	}

	// 7. crash slows global time
	if f.Normalized(frame.Pinky) > m.opts.CrashThreshold {
		tr.Crash = true
		if m.dilation.Trigger() {
			m.setTimeScale(m.dilation.Sample().Value)
			m.flushTimeScale()
		}
	}

	// 8. flex sensors drive the camera directly
	out := m.scene.Out
	out.SetCameraOrbit(OrbitAngle(f.Normalized(frame.FlexA)))
	out.SetCameraHeight(CameraHeight(f.Normalized(frame.FlexB)))
	out.SetCameraZoom(CameraRadius(f.Normalized(frame.FlexC)))

	for _, h := range m.scene.Hooks {
		h.Apply(f, m.tracker)
	}

	for _, name := range tr.Names() {
		m.fired[name]++
	}
	return tr
}

// Advance steps time dilation by the wall-clock dt, then every object and
// the particle impulse by dt scaled by the resulting time scale.
func (m *Mapper) Advance(dt time.Duration) {
	m.ticks++
	if m.opts.RefreshTicks > 0 && m.ticks%m.opts.RefreshTicks == 0 {
		m.timeScaleDirty = true
	}
	if m.dilation.Running() {
		m.setTimeScale(m.dilation.Advance(dt).Value)
	}
	m.flushTimeScale()

	scaled := time.Duration(float64(dt) * m.timeScale)
	if m.opts.NoiseSmoothTime > 0 {
		m.scene.Primary.SetParam(sink.ParamNoiseAmount, m.noise.Step(scaled))
	}
	m.scene.Primary.Advance(scaled)
	m.scene.Fractal.Advance(scaled)
	m.scene.Particles.Advance(scaled)
}

func (m *Mapper) setColor(c sink.RGBA) {
	if m.colorSet && m.opts.ColorLerp > 0 && m.opts.ColorLerp < 1 {
		c = LerpColor(m.color, c, m.opts.ColorLerp)
	}
	m.color, m.colorSet = c, true
	m.scene.Primary.SetColor(c)
}

func (m *Mapper) setTimeScale(v float64) {
	if v != m.timeScale {
		m.timeScale = v
		m.timeScaleDirty = true
	}
}

func (m *Mapper) flushTimeScale() {
	if !m.timeScaleDirty {
		return
	}
	m.scene.Out.SetGlobalTimeScale(m.timeScale)
	m.timeScaleDirty = false
}

// OrbitAngle maps a flex value in [0,1] to a camera orbit angle in radians,
// a quarter turn behind the start so the rest position faces the scene.
func OrbitAngle(v float64) float64 {
	return 2*math.Pi*v - math.Pi/2
}

// CameraHeight maps [0,1] to a height offset in [-1,5].
func CameraHeight(v float64) float64 {
	return mapRange(v, 0, 1, -1, 5)
}

// CameraRadius maps [0,1] to an orbit radius in [6,3]; bending closes in.
func CameraRadius(v float64) float64 {
	return mapRange(v, 0, 1, 6, 3)
}

func mapRange(v, fromLow, fromHigh, toLow, toHigh float64) float64 {
	return (v-fromLow)*(toHigh-toLow)/(fromHigh-fromLow) + toLow
}

// Stats is the mapper's debug snapshot.
type Stats struct {
	Applied   uint64             `json:"applied"`
	Fired     map[string]uint64  `json:"fired"`
	TimeScale float64            `json:"time_scale"`
	Ranges    map[string]float64 `json:"ranges"`
	Objects   []responsive.State `json:"objects"`
	Particles bool               `json:"particle_impulse_active"`
}

// Stats returns a snapshot. Call it from the render goroutine.
func (m *Mapper) Stats() Stats {
	fired := make(map[string]uint64, len(m.fired))
	for k, v := range m.fired {
		fired[k] = v
	}
	return Stats{
		Applied:   m.applied,
		Fired:     fired,
		TimeScale: m.timeScale,
		Ranges:    m.tracker.Snapshot(),
		Objects:   []responsive.State{m.scene.Primary.State(), m.scene.Fractal.State()},
		Particles: m.scene.Particles.Active(),
	}
}

// NamedEnvelope identifies one configured envelope in the scene.
type NamedEnvelope struct {
	Name     string
	Envelope *envelope.Envelope
}

// Envelopes lists every configured envelope, for charts and plots.
func (m *Mapper) Envelopes() []NamedEnvelope {
	var out []NamedEnvelope
	for _, o := range []*responsive.Object{m.scene.Primary, m.scene.Fractal} {
		for _, s := range o.Envelopes() {
			out = append(out, NamedEnvelope{Name: string(o.ID()) + "/" + string(s.Kind), Envelope: s.Envelope})
		}
	}
	return append(out, NamedEnvelope{Name: "time/slowdown", Envelope: m.dilation})
}
