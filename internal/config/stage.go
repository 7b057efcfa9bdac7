package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical stage defaults file.
const DefaultConfigPath = "config/stage.defaults.json"

// StageConfig holds every tunable of the stage: trigger thresholds, envelope
// timings and targets, host object identities and the render tick rate.
// Omitted fields fall back to the defaults returned by the Get* methods, so
// partial configs are safe.
type StageConfig struct {
	// Trigger thresholds, normalized [0,1]. Comparisons are strict.
	KickThreshold         *float64 `json:"kick_threshold,omitempty"`
	KickRequiresDominance *bool    `json:"kick_requires_dominance,omitempty"` // kick must also exceed snare
	SnareThreshold        *float64 `json:"snare_threshold,omitempty"`
	SnareHardThreshold    *float64 `json:"snare_hard_threshold,omitempty"`
	HiHatThreshold        *float64 `json:"hihat_threshold,omitempty"`
	CrashThreshold        *float64 `json:"crash_threshold,omitempty"`

	// Primary impulse-response object
	KickDuration        *string  `json:"kick_duration,omitempty"` // duration string like "300ms"
	KickScale           *float64 `json:"kick_scale,omitempty"`
	KickRotationDegrees *float64 `json:"kick_rotation_degrees,omitempty"`
	IdleSpinDegrees     *float64 `json:"idle_spin_degrees,omitempty"` // per second
	IdleNoise           *float64 `json:"idle_noise,omitempty"`
	NoiseGain           *float64 `json:"noise_gain,omitempty"`
	NoiseSmoothTime     *string  `json:"noise_smooth_time,omitempty"` // "0s" writes the raw value
	ColorLerp           *float64 `json:"color_lerp,omitempty"`        // share of the new colour per frame; 1 is no smoothing

	// Fractal root
	FractalKickDuration   *string  `json:"fractal_kick_duration,omitempty"`
	FractalKickScale      *float64 `json:"fractal_kick_scale,omitempty"`
	ImpactDuration        *string  `json:"impact_duration,omitempty"`
	ImpactScale           *float64 `json:"impact_scale,omitempty"`
	ImpactRotationDegrees *float64 `json:"impact_rotation_degrees,omitempty"`
	FadeDuration          *string  `json:"fade_duration,omitempty"`
	HiHatDuration         *string  `json:"hihat_duration,omitempty"`
	HiHatRotationDegrees  *float64 `json:"hihat_rotation_degrees,omitempty"`

	// Particle impulse
	ParticleDuration *string  `json:"particle_duration,omitempty"`
	ParticleBoost    *float64 `json:"particle_boost,omitempty"`
	FieldGravity     *float64 `json:"field_gravity,omitempty"`
	FieldAttraction  *float64 `json:"field_attraction,omitempty"`

	// Global slow motion
	SlowdownDuration  *string  `json:"slowdown_duration,omitempty"`
	SlowdownTimeScale *float64 `json:"slowdown_time_scale,omitempty"`

	// Host object identities
	PrimaryObject  *string `json:"primary_object,omitempty"`
	FractalObject  *string `json:"fractal_object,omitempty"`
	FieldObject    *string `json:"field_object,omitempty"`
	ParticleObject *string `json:"particle_object,omitempty"`
	HueObject      *string `json:"hue_object,omitempty"` // empty disables the centroid hue hook

	// Render loop
	TickRateHz   *int `json:"tick_rate_hz,omitempty"`
	RefreshTicks *int `json:"refresh_ticks,omitempty"` // full rewrite period; 0 writes changes only
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyStageConfig returns a StageConfig with all fields nil.
func EmptyStageConfig() *StageConfig {
	return &StageConfig{}
}

// DefaultStageConfig returns a StageConfig with every field set to its
// default. It mirrors config/stage.defaults.json.
func DefaultStageConfig() *StageConfig {
	return &StageConfig{
		KickThreshold:         ptrFloat64(0.07),
		KickRequiresDominance: ptrBool(true),
		SnareThreshold:        ptrFloat64(0.07),
		SnareHardThreshold:    ptrFloat64(0.4),
		HiHatThreshold:        ptrFloat64(0.1),
		CrashThreshold:        ptrFloat64(0.1),

		KickDuration:        ptrString("300ms"),
		KickScale:           ptrFloat64(1.4),
		KickRotationDegrees: ptrFloat64(45),
		IdleSpinDegrees:     ptrFloat64(20),
		IdleNoise:           ptrFloat64(0.1),
		NoiseGain:           ptrFloat64(2),
		NoiseSmoothTime:     ptrString("0s"),
		ColorLerp:           ptrFloat64(1),

		FractalKickDuration:   ptrString("250ms"),
		FractalKickScale:      ptrFloat64(1.2),
		ImpactDuration:        ptrString("400ms"),
		ImpactScale:           ptrFloat64(1.6),
		ImpactRotationDegrees: ptrFloat64(90),
		FadeDuration:          ptrString("600ms"),
		HiHatDuration:         ptrString("200ms"),
		HiHatRotationDegrees:  ptrFloat64(30),

		ParticleDuration: ptrString("500ms"),
		ParticleBoost:    ptrFloat64(1.5),
		FieldGravity:     ptrFloat64(1),
		FieldAttraction:  ptrFloat64(1),

		SlowdownDuration:  ptrString("1s"),
		SlowdownTimeScale: ptrFloat64(0.6),

		PrimaryObject:  ptrString("impulse"),
		FractalObject:  ptrString("fractal"),
		FieldObject:    ptrString("snare_field"),
		ParticleObject: ptrString("snare_particles"),
		HueObject:      ptrString(""),

		TickRateHz:   ptrInt(60),
		RefreshTicks: ptrInt(60),
	}
}

// LoadStageConfig loads a StageConfig from a JSON file. The file must have
// a .json extension and be at most 1MB.
func LoadStageConfig(path string) (*StageConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyStageConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. Panics if the file cannot be loaded;
// intended for test setup.
func MustLoadDefaultConfig() *StageConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/x/
	}
	for _, path := range candidates {
		if cfg, err := LoadStageConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *StageConfig) Validate() error {
	unit := map[string]*float64{
		"kick_threshold":       c.KickThreshold,
		"snare_threshold":      c.SnareThreshold,
		"snare_hard_threshold": c.SnareHardThreshold,
		"hihat_threshold":      c.HiHatThreshold,
		"crash_threshold":      c.CrashThreshold,
		"idle_noise":           c.IdleNoise,
	}
	for name, v := range unit {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	durations := map[string]*string{
		"kick_duration":         c.KickDuration,
		"fractal_kick_duration": c.FractalKickDuration,
		"impact_duration":       c.ImpactDuration,
		"fade_duration":         c.FadeDuration,
		"hihat_duration":        c.HiHatDuration,
		"particle_duration":     c.ParticleDuration,
		"slowdown_duration":     c.SlowdownDuration,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.SlowdownTimeScale != nil && (*c.SlowdownTimeScale <= 0 || *c.SlowdownTimeScale > 1) {
		return fmt.Errorf("slowdown_time_scale must be in (0, 1], got %f", *c.SlowdownTimeScale)
	}
	if c.ParticleBoost != nil && *c.ParticleBoost <= 0 {
		return fmt.Errorf("particle_boost must be positive, got %f", *c.ParticleBoost)
	}
	if c.TickRateHz != nil && (*c.TickRateHz < 1 || *c.TickRateHz > 1000) {
		return fmt.Errorf("tick_rate_hz must be between 1 and 1000, got %d", *c.TickRateHz)
	}
	if c.RefreshTicks != nil && *c.RefreshTicks < 0 {
		return fmt.Errorf("refresh_ticks must not be negative, got %d", *c.RefreshTicks)
	}
	if c.ColorLerp != nil && (*c.ColorLerp <= 0 || *c.ColorLerp > 1) {
		return fmt.Errorf("color_lerp must be in (0, 1], got %f", *c.ColorLerp)
	}
	if c.NoiseSmoothTime != nil && *c.NoiseSmoothTime != "" {
		d, err := time.ParseDuration(*c.NoiseSmoothTime)
		if err != nil {
			return fmt.Errorf("invalid noise_smooth_time '%s': %w", *c.NoiseSmoothTime, err)
		}
		if d < 0 {
			return fmt.Errorf("noise_smooth_time must not be negative, got %s", *c.NoiseSmoothTime)
		}
	}
	return nil
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

// GetKickThreshold returns the kick_threshold value or the default.
func (c *StageConfig) GetKickThreshold() float64 { return floatOr(c.KickThreshold, 0.07) }

// GetKickRequiresDominance returns the kick_requires_dominance value or the default.
func (c *StageConfig) GetKickRequiresDominance() bool {
	if c.KickRequiresDominance == nil {
		return true
	}
	return *c.KickRequiresDominance
}

// GetSnareThreshold returns the snare_threshold value or the default.
func (c *StageConfig) GetSnareThreshold() float64 { return floatOr(c.SnareThreshold, 0.07) }

// GetSnareHardThreshold returns the snare_hard_threshold value or the default.
func (c *StageConfig) GetSnareHardThreshold() float64 { return floatOr(c.SnareHardThreshold, 0.4) }

// GetHiHatThreshold returns the hihat_threshold value or the default.
func (c *StageConfig) GetHiHatThreshold() float64 { return floatOr(c.HiHatThreshold, 0.1) }

// GetCrashThreshold returns the crash_threshold value or the default.
func (c *StageConfig) GetCrashThreshold() float64 { return floatOr(c.CrashThreshold, 0.1) }

func (c *StageConfig) GetKickDuration() time.Duration {
	return durationOr(c.KickDuration, 300*time.Millisecond)
}
func (c *StageConfig) GetKickScale() float64           { return floatOr(c.KickScale, 1.4) }
func (c *StageConfig) GetKickRotationDegrees() float64 { return floatOr(c.KickRotationDegrees, 45) }
func (c *StageConfig) GetIdleSpinDegrees() float64     { return floatOr(c.IdleSpinDegrees, 20) }
func (c *StageConfig) GetIdleNoise() float64           { return floatOr(c.IdleNoise, 0.1) }
func (c *StageConfig) GetNoiseGain() float64           { return floatOr(c.NoiseGain, 2) }

// GetNoiseSmoothTime returns the time noise takes to settle on a new level.
// Zero disables smoothing.
func (c *StageConfig) GetNoiseSmoothTime() time.Duration {
	if c.NoiseSmoothTime == nil || *c.NoiseSmoothTime == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.NoiseSmoothTime)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetColorLerp returns the color_lerp value or the default.
func (c *StageConfig) GetColorLerp() float64 { return floatOr(c.ColorLerp, 1) }

func (c *StageConfig) GetFractalKickDuration() time.Duration {
	return durationOr(c.FractalKickDuration, 250*time.Millisecond)
}
func (c *StageConfig) GetFractalKickScale() float64 { return floatOr(c.FractalKickScale, 1.2) }
func (c *StageConfig) GetImpactDuration() time.Duration {
	return durationOr(c.ImpactDuration, 400*time.Millisecond)
}
func (c *StageConfig) GetImpactScale() float64 { return floatOr(c.ImpactScale, 1.6) }
func (c *StageConfig) GetImpactRotationDegrees() float64 {
	return floatOr(c.ImpactRotationDegrees, 90)
}
func (c *StageConfig) GetFadeDuration() time.Duration {
	return durationOr(c.FadeDuration, 600*time.Millisecond)
}
func (c *StageConfig) GetHiHatDuration() time.Duration {
	return durationOr(c.HiHatDuration, 200*time.Millisecond)
}
func (c *StageConfig) GetHiHatRotationDegrees() float64 {
	return floatOr(c.HiHatRotationDegrees, 30)
}

func (c *StageConfig) GetParticleDuration() time.Duration {
	return durationOr(c.ParticleDuration, 500*time.Millisecond)
}
func (c *StageConfig) GetParticleBoost() float64   { return floatOr(c.ParticleBoost, 1.5) }
func (c *StageConfig) GetFieldGravity() float64    { return floatOr(c.FieldGravity, 1) }
func (c *StageConfig) GetFieldAttraction() float64 { return floatOr(c.FieldAttraction, 1) }

// GetSlowdownDuration returns how long the crash slow motion lasts in wall
// time.
func (c *StageConfig) GetSlowdownDuration() time.Duration {
	return durationOr(c.SlowdownDuration, time.Second)
}

// GetSlowdownTimeScale returns the time scale reached at the start of the
// slow motion.
func (c *StageConfig) GetSlowdownTimeScale() float64 { return floatOr(c.SlowdownTimeScale, 0.6) }

func (c *StageConfig) GetPrimaryObject() string  { return stringOr(c.PrimaryObject, "impulse") }
func (c *StageConfig) GetFractalObject() string  { return stringOr(c.FractalObject, "fractal") }
func (c *StageConfig) GetFieldObject() string    { return stringOr(c.FieldObject, "snare_field") }
func (c *StageConfig) GetParticleObject() string { return stringOr(c.ParticleObject, "snare_particles") }
func (c *StageConfig) GetHueObject() string      { return stringOr(c.HueObject, "") }

// GetTickRateHz returns the tick_rate_hz value or the default.
func (c *StageConfig) GetTickRateHz() int {
	if c.TickRateHz == nil {
		return 60
	}
	return *c.TickRateHz
}

// GetRefreshTicks returns how many ticks pass between full rewrites of
// every host parameter.
func (c *StageConfig) GetRefreshTicks() int {
	if c.RefreshTicks == nil {
		return 60
	}
	return *c.RefreshTicks
}

// GetTickInterval returns the render tick period.
func (c *StageConfig) GetTickInterval() time.Duration {
	return time.Second / time.Duration(c.GetTickRateHz())
}
