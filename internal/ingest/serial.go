package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"

	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/monitoring"
)

// DefaultStatusByte starts every frame on the serial link. Channel bytes
// are 7-bit, so any byte with the high bit set is a frame boundary.
const DefaultStatusByte = 0xF0

// PortOptions describes the serial connection to the glove rig.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{BaudRate: opts.BaudRate, DataBits: opts.DataBits}
	switch opts.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// PortOpener opens a serial port. serial.Open satisfies it through
// OpenSerialPort.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

// OpenSerialPort opens a real port.
func OpenSerialPort(path string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(path, mode)
}

// SerialSource reads status-byte framed sensor frames from a serial port.
type SerialSource struct {
	path   string
	opts   PortOptions
	status byte
	open   PortOpener
	pub    *Publisher
	stats  *PacketStats
}

// NewSerialSource returns a source for the port at path. A nil opener uses
// OpenSerialPort.
func NewSerialSource(path string, opts PortOptions, open PortOpener, pub *Publisher, stats *PacketStats) *SerialSource {
	if open == nil {
		open = OpenSerialPort
	}
	if stats == nil {
		stats = NewPacketStats()
	}
	return &SerialSource{path: path, opts: opts, status: DefaultStatusByte, open: open, pub: pub, stats: stats}
}

// Run opens the port and publishes frames until ctx ends or the port
// reports EOF. Failing to open the port is fatal, like a UDP bind failure.
func (s *SerialSource) Run(ctx context.Context) error {
	mode, err := s.opts.SerialMode()
	if err != nil {
		return fmt.Errorf("serial options: %w", err)
	}
	port, err := s.open(s.path, mode)
	if err != nil {
		return fmt.Errorf("%w: open serial %s: %v", ErrBind, s.path, err)
	}
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()
	defer port.Close()

	monitoring.Opsf("[ingest] reading frames from serial %s at %d baud", s.path, mode.BaudRate)

	err = ReadFramed(port, s.status, func(payload []byte) {
		s.stats.AddPacket(len(payload))
		s.pub.Publish(payload)
	}, func() { s.stats.AddError() })
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ReadFramed scans r for frames of frame.Size data bytes each preceded by
// status. A status byte arriving mid-frame abandons the partial frame and
// starts a new one; data bytes before the first status byte are skipped.
// onResync is called for every abandoned or skipped run. The returned error
// is whatever ended reading.
func ReadFramed(r io.Reader, status byte, emit func([]byte), onResync func()) error {
	buf := make([]byte, 256)
	payload := make([]byte, 0, frame.Size)
	synced := false
	skipping := false

	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			switch {
			case b == status:
				if synced && len(payload) > 0 || skipping {
					onResync()
				}
				synced, skipping = true, false
				payload = payload[:0]
			case b >= 0x80:
				// Unknown status byte; drop until the next frame start.
				if synced && len(payload) > 0 {
					onResync()
				}
				synced = false
				payload = payload[:0]
			case !synced:
				skipping = true
			default:
				payload = append(payload, b)
				if len(payload) == frame.Size {
					emit(payload)
					payload = payload[:0]
					synced = false
				}
			}
		}
		if err != nil {
			return err
		}
	}
}
