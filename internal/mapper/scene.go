package mapper

import (
	"fmt"

	"github.com/banshee-data/glovestage/internal/config"
	"github.com/banshee-data/glovestage/internal/envelope"
	"github.com/banshee-data/glovestage/internal/particles"
	"github.com/banshee-data/glovestage/internal/responsive"
	"github.com/banshee-data/glovestage/internal/sink"
)

// OptionsFromConfig copies the mapper settings out of cfg.
func OptionsFromConfig(cfg *config.StageConfig) Options {
	return Options{
		KickThreshold:         cfg.GetKickThreshold(),
		KickRequiresDominance: cfg.GetKickRequiresDominance(),
		SnareThreshold:        cfg.GetSnareThreshold(),
		SnareHardThreshold:    cfg.GetSnareHardThreshold(),
		HiHatThreshold:        cfg.GetHiHatThreshold(),
		CrashThreshold:        cfg.GetCrashThreshold(),
		IdleNoise:             cfg.GetIdleNoise(),
		NoiseGain:             cfg.GetNoiseGain(),
		NoiseSmoothTime:       cfg.GetNoiseSmoothTime(),
		ColorLerp:             cfg.GetColorLerp(),
		SlowdownDuration:      cfg.GetSlowdownDuration(),
		SlowdownTimeScale:     cfg.GetSlowdownTimeScale(),
		RefreshTicks:          cfg.GetRefreshTicks(),
	}
}

// SceneFromConfig builds the stock scene: a spinning primary object pulsed
// by the kick, a fractal root with kick, impact, hi-hat and chained fade
// envelopes, and the snare particle impulse.
func SceneFromConfig(cfg *config.StageConfig, out sink.Sink) (Scene, error) {
	var envErr error
	mk := func(c envelope.Config) *envelope.Envelope {
		e, err := envelope.New(c)
		if err != nil && envErr == nil {
			envErr = err
		}
		return e
	}

	refresh := cfg.GetRefreshTicks()
	primary := responsive.New(sink.ObjectID(cfg.GetPrimaryObject()), out).
		WithSpin(cfg.GetIdleSpinDegrees()).
		WithRefresh(refresh)
	scale := mk(envelope.Config{
		Duration: cfg.GetKickDuration(), Shape: envelope.TriangularUpDown,
		Base: 1, Target: cfg.GetKickScale(),
	})
	rot := mk(envelope.Config{
		Duration: cfg.GetKickDuration(), Shape: envelope.SlerpRotation,
		RotationOffset: envelope.YawDegrees(cfg.GetKickRotationDegrees()),
	})

	fractal := responsive.New(sink.ObjectID(cfg.GetFractalObject()), out).WithRefresh(refresh)
	fkick := mk(envelope.Config{
		Duration: cfg.GetFractalKickDuration(), Shape: envelope.TriangularUpDown,
		Base: 1, Target: cfg.GetFractalKickScale(),
	})
	impact := mk(envelope.Config{
		Duration: cfg.GetImpactDuration(), Shape: envelope.TriangularUpDown,
		Base: 1, Target: cfg.GetImpactScale(),
	})
	impactRot := mk(envelope.Config{
		Duration: cfg.GetImpactDuration(), Shape: envelope.SlerpRotation,
		RotationOffset: envelope.YawDegrees(cfg.GetImpactRotationDegrees()),
	})
	hihat := mk(envelope.Config{
		Duration: cfg.GetHiHatDuration(), Shape: envelope.SlerpRotation,
		RotationOffset: envelope.YawDegrees(cfg.GetHiHatRotationDegrees()),
	})
	fade := mk(envelope.Config{
		Duration: cfg.GetFadeDuration(), Shape: envelope.LinearDecay,
		Base: 0, Target: 1,
	})
	if envErr != nil {
		return Scene{}, fmt.Errorf("building scene envelopes: %w", envErr)
	}

	primary.Add(envelope.KindScale, scale).Add(envelope.KindRotation, rot)
	fractal.Add(envelope.KindKick, fkick).
		Add(envelope.KindScale, impact).
		Add(envelope.KindRotation, impactRot).
		Add(envelope.KindHiHat, hihat).
		Add(envelope.KindFade, fade).
		Chain(envelope.KindScale, envelope.KindFade)

	field := particles.NewSinkField(out, sink.ObjectID(cfg.GetFieldObject()), cfg.GetFieldGravity(), cfg.GetFieldAttraction())
	system := particles.NewSinkSystem(out, sink.ObjectID(cfg.GetParticleObject()))
	ctrl, err := particles.NewController(field, system, cfg.GetParticleBoost(), cfg.GetParticleDuration())
	if err != nil {
		return Scene{}, fmt.Errorf("building particle impulse: %w", err)
	}

	scene := Scene{Primary: primary, Fractal: fractal, Particles: ctrl, Out: out}
	if id := cfg.GetHueObject(); id != "" {
		scene.Hooks = append(scene.Hooks, HueHook{Out: out, ID: sink.ObjectID(id)})
	}
	return scene, nil
}

// NewFromConfig builds the stock scene over out and a mapper driving it.
func NewFromConfig(cfg *config.StageConfig, out sink.Sink) (*Mapper, error) {
	scene, err := SceneFromConfig(cfg, out)
	if err != nil {
		return nil, err
	}
	return New(OptionsFromConfig(cfg), scene)
}
