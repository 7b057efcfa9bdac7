package sink

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"

	"github.com/banshee-data/glovestage/internal/monitoring"
)

// DefaultOSCPrefix roots every address the stage sends.
const DefaultOSCPrefix = "/stage"

// Sender hands one encoded OSC packet to the host.
type Sender interface {
	Send(packet osc.Packet) error
}

// OSCSink encodes each update as one OSC message. Sends are UDP writes and
// never wait on the host; failures are counted and logged on the ops stream
// at most once per errLogEvery failures.
//
// Address layout:
//
//	{prefix}/object/{id}/color        r g b a
//	{prefix}/object/{id}/param/{name} v
//	{prefix}/object/{id}/arm          kind
//	{prefix}/camera/orbit|height|zoom v
//	{prefix}/time/scale               v
type OSCSink struct {
	sender Sender
	prefix string
	sent   atomic.Uint64
	errs   atomic.Uint64
}

const errLogEvery = 500

// NewOSCSink returns a sink writing to host:port over one UDP socket.
func NewOSCSink(host string, port int) (*OSCSink, error) {
	u, err := NewUDPSender(host, port)
	if err != nil {
		return nil, err
	}
	return NewOSCSinkWithSender(u, DefaultOSCPrefix), nil
}

// NewOSCSinkWithSender wires an explicit sender, mainly for tests.
func NewOSCSinkWithSender(s Sender, prefix string) *OSCSink {
	if prefix == "" {
		prefix = DefaultOSCPrefix
	}
	return &OSCSink{sender: s, prefix: prefix}
}

// Sent returns the number of messages handed to the sender without error.
func (o *OSCSink) Sent() uint64 { return o.sent.Load() }

// Errors returns the number of failed sends.
func (o *OSCSink) Errors() uint64 { return o.errs.Load() }

// Close releases the sender when it holds a socket.
func (o *OSCSink) Close() error {
	if c, ok := o.sender.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (o *OSCSink) send(addr string, args ...interface{}) {
	msg := osc.NewMessage(o.prefix + addr)
	for _, a := range args {
		msg.Append(a)
	}
	if err := o.sender.Send(msg); err != nil {
		if n := o.errs.Add(1); n%errLogEvery == 1 {
			monitoring.Opsf("[sink] osc send %s failed (%d failures so far): %v", msg.Address, n, err)
		}
		return
	}
	o.sent.Add(1)
}

// SetColor sends {prefix}/object/{id}/color.
func (o *OSCSink) SetColor(id ObjectID, c RGBA) {
	o.send(fmt.Sprintf("/object/%s/color", id), float32(c.R), float32(c.G), float32(c.B), float32(c.A))
}

// SetContinuousParam sends {prefix}/object/{id}/param/{name}.
func (o *OSCSink) SetContinuousParam(id ObjectID, name string, v float64) {
	o.send(fmt.Sprintf("/object/%s/param/%s", id, name), float32(v))
}

// ArmEnvelope sends {prefix}/object/{id}/arm with the kind as a string.
func (o *OSCSink) ArmEnvelope(id ObjectID, kind string) {
	o.send(fmt.Sprintf("/object/%s/arm", id), kind)
}

// SetCameraOrbit sends {prefix}/camera/orbit in radians.
func (o *OSCSink) SetCameraOrbit(angle float64) {
	o.send("/camera/orbit", float32(angle))
}

// SetCameraHeight sends {prefix}/camera/height.
func (o *OSCSink) SetCameraHeight(v float64) {
	o.send("/camera/height", float32(v))
}

// SetCameraZoom sends {prefix}/camera/zoom.
func (o *OSCSink) SetCameraZoom(v float64) {
	o.send("/camera/zoom", float32(v))
}

// SetGlobalTimeScale sends {prefix}/time/scale.
func (o *OSCSink) SetGlobalTimeScale(v float64) {
	o.send("/time/scale", float32(v))
}
