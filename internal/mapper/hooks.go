package mapper

import (
	"github.com/banshee-data/glovestage/internal/autorange"
	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/sink"
)

// HueHook drives an object's hue from the spectral-centroid channel,
// auto-ranged like the band levels.
type HueHook struct {
	Out sink.Sink
	ID  sink.ObjectID
}

// Apply observes the centroid level and writes its auto-ranged value as the hue.
func (h HueHook) Apply(f frame.SensorFrame, tr *autorange.Tracker) {
	level := f.Level(frame.Centroid)
	tr.Observe(frame.Centroid, level)
	h.Out.SetContinuousParam(h.ID, sink.ParamHue, tr.Normalize(frame.Centroid, level))
}
