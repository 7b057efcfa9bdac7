// Package frame defines the glove rig's wire layout and the decode step that
// turns a raw datagram into a validated SensorFrame.
//
// Layout (byte offset -> meaning):
//
//	 0  band-0 energy          8  flex sensor A (orbit)
//	 1  band-2 energy          9  flex sensor B (height)
//	 7  spectral centroid     10  flex sensor C (zoom)
//	11  thumb pad (kick)      13  middle pad (snare)
//	14  ring pad (hi-hat)     15  pinky pad (crash)
//
// Unlisted offsets are reserved. Channel bytes are 7-bit (0..127).
package frame

import (
	"fmt"
	"math"
	"time"
)

// Size is the number of bytes a datagram must carry to decode.
const Size = 16

// FullScale is the largest value a channel byte carries.
const FullScale = 127.0

// Channel is a byte offset into a sensor frame.
type Channel int

const (
	Band0    Channel = 0
	Band2    Channel = 1
	Centroid Channel = 7
	FlexA    Channel = 8
	FlexB    Channel = 9
	FlexC    Channel = 10
	Thumb    Channel = 11
	Middle   Channel = 13
	Ring     Channel = 14
	Pinky    Channel = 15
)

var channelNames = map[Channel]string{
	Band0:    "band0",
	Band2:    "band2",
	Centroid: "centroid",
	FlexA:    "flex_a",
	FlexB:    "flex_b",
	FlexC:    "flex_c",
	Thumb:    "thumb",
	Middle:   "middle",
	Ring:     "ring",
	Pinky:    "pinky",
}

// String returns the channel's short name, or its offset if reserved.
func (c Channel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ch%d", int(c))
}

// Datagram is one payload exactly as received, before any validation. The
// ingest side allocates a fresh Payload for every datagram so a Datagram is
// never mutated after it is published.
type Datagram struct {
	Seq        uint64
	ReceivedAt time.Time
	Payload    []byte
}

// SensorFrame is a validated, immutable copy of the first Size bytes of a
// datagram.
type SensorFrame struct {
	Seq        uint64
	ReceivedAt time.Time
	data       [Size]byte
}

// Decode validates a datagram and copies its channel bytes into a frame.
// Payloads shorter than Size are rejected with ErrShortFrame; trailing bytes
// past Size are ignored.
func Decode(d *Datagram) (SensorFrame, error) {
	if d == nil {
		return SensorFrame{}, ErrNilDatagram
	}
	if len(d.Payload) < Size {
		return SensorFrame{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortFrame, len(d.Payload), Size)
	}
	f := SensorFrame{Seq: d.Seq, ReceivedAt: d.ReceivedAt}
	copy(f.data[:], d.Payload[:Size])
	return f, nil
}

// FromBytes builds a frame directly from channel bytes. It is meant for tools
// and tests that synthesise frames; b must hold at least Size bytes.
func FromBytes(b []byte) (SensorFrame, error) {
	return Decode(&Datagram{Payload: b})
}

// Raw returns the channel's byte value.
func (f SensorFrame) Raw(ch Channel) byte {
	if ch < 0 || int(ch) >= Size {
		return 0
	}
	return f.data[ch]
}

// Normalized maps the channel byte onto [0,1] by FullScale.
func (f SensorFrame) Normalized(ch Channel) float64 {
	v := float64(f.Raw(ch)) / FullScale
	if v > 1 {
		return 1
	}
	return v
}

// Level returns log10 of the channel byte, or 0 when the byte is 0 so that
// silent bands never produce -Inf.
func (f SensorFrame) Level(ch Channel) float64 {
	raw := f.Raw(ch)
	if raw == 0 {
		return 0
	}
	return math.Log10(float64(raw))
}

// Bytes returns a copy of the channel bytes.
func (f SensorFrame) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, f.data[:])
	return out
}

// Builder assembles channel bytes for synthetic frames.
type Builder struct {
	data [Size]byte
}

// Set stores a raw byte for a channel and returns the builder for chaining.
func (b *Builder) Set(ch Channel, v byte) *Builder {
	if ch >= 0 && int(ch) < Size {
		b.data[ch] = v
	}
	return b
}

// Payload returns a fresh copy of the assembled bytes.
func (b *Builder) Payload() []byte {
	out := make([]byte, Size)
	copy(out, b.data[:])
	return out
}
