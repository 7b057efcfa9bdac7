package frame

import "errors"

var (
	ErrShortFrame  = errors.New("sensor frame too short")
	ErrNilDatagram = errors.New("nil datagram")
)
