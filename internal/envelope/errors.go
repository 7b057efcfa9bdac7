package envelope

import "errors"

var (
	ErrInvalidDuration = errors.New("envelope duration must be positive")
	ErrUnknownShape    = errors.New("unknown envelope shape")
)
