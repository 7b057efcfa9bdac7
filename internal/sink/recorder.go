package sink

import "sync"

// Call is one recorded sink invocation. Fields not used by Method are zero.
type Call struct {
	Method string
	ID     ObjectID
	Name   string
	Value  float64
	Color  RGBA
}

// Recorder keeps every call in memory. It is safe to read from another
// goroutine while the render loop writes, which the debug page relies on.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	limit int
}

// NewRecorder returns a recorder that keeps at most limit calls, discarding
// the oldest. A limit of 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.limit > 0 && len(r.calls) > r.limit {
		r.calls = append(r.calls[:0], r.calls[len(r.calls)-r.limit:]...)
	}
}

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset discards all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Count returns how many calls used method.
func (r *Recorder) Count(method string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Arms returns the kinds armed on id, in order.
func (r *Recorder) Arms(id ObjectID) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Method == "ArmEnvelope" && c.ID == id {
			out = append(out, c.Name)
		}
	}
	return out
}

// Params returns every value written to the named parameter of id.
func (r *Recorder) Params(id ObjectID, name string) []float64 {
	var out []float64
	for _, c := range r.Calls() {
		if c.Method == "SetContinuousParam" && c.ID == id && c.Name == name {
			out = append(out, c.Value)
		}
	}
	return out
}

// Last returns the most recent value for a method with no object, such as
// SetCameraZoom, and whether one was recorded.
func (r *Recorder) Last(method string) (float64, bool) {
	calls := r.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i].Value, true
		}
	}
	return 0, false
}

// LastColor returns the most recent colour set on id.
func (r *Recorder) LastColor(id ObjectID) (RGBA, bool) {
	calls := r.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == "SetColor" && calls[i].ID == id {
			return calls[i].Color, true
		}
	}
	return RGBA{}, false
}

// SetColor records a SetColor call.
func (r *Recorder) SetColor(id ObjectID, c RGBA) {
	r.add(Call{Method: "SetColor", ID: id, Color: c})
}

// SetContinuousParam records a SetContinuousParam call.
func (r *Recorder) SetContinuousParam(id ObjectID, name string, v float64) {
	r.add(Call{Method: "SetContinuousParam", ID: id, Name: name, Value: v})
}

// ArmEnvelope records the kind in Name.
func (r *Recorder) ArmEnvelope(id ObjectID, kind string) {
	r.add(Call{Method: "ArmEnvelope", ID: id, Name: kind})
}

// SetCameraOrbit records a SetCameraOrbit call.
func (r *Recorder) SetCameraOrbit(angle float64) {
	r.add(Call{Method: "SetCameraOrbit", Value: angle})
}

// SetCameraHeight records a SetCameraHeight call.
func (r *Recorder) SetCameraHeight(v float64) {
	r.add(Call{Method: "SetCameraHeight", Value: v})
}

// SetCameraZoom records a SetCameraZoom call.
func (r *Recorder) SetCameraZoom(v float64) {
	r.add(Call{Method: "SetCameraZoom", Value: v})
}

// SetGlobalTimeScale records a SetGlobalTimeScale call.
func (r *Recorder) SetGlobalTimeScale(v float64) {
	r.add(Call{Method: "SetGlobalTimeScale", Value: v})
}
