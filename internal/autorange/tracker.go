// Package autorange normalises unbounded input levels by the largest value
// seen so far on each channel.
package autorange

import "github.com/banshee-data/glovestage/internal/frame"

// Tracker keeps a running maximum per channel since construction. Maxima
// never decrease and are never reset; the first observation on a channel
// seeds its maximum. A Tracker is not safe for concurrent use and is owned
// by the render loop.
type Tracker struct {
	max map[frame.Channel]float64
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{max: make(map[frame.Channel]float64)}
}

// Observe records v for ch and returns the channel's updated maximum.
func (t *Tracker) Observe(ch frame.Channel, v float64) float64 {
	cur, seen := t.max[ch]
	if !seen || v > cur {
		t.max[ch] = v
		return v
	}
	return cur
}

// Max returns the tracked maximum and whether ch has been observed.
func (t *Tracker) Max(ch frame.Channel) (float64, bool) {
	v, ok := t.max[ch]
	return v, ok
}

// Normalize divides v by the channel maximum. It returns 0 when the channel
// is unseen or its maximum is not positive.
func (t *Tracker) Normalize(ch frame.Channel, v float64) float64 {
	m, ok := t.max[ch]
	if !ok || m <= 0 {
		return 0
	}
	return v / m
}

// Snapshot returns a copy of all tracked maxima keyed by channel name.
func (t *Tracker) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.max))
	for ch, v := range t.max {
		out[ch.String()] = v
	}
	return out
}
