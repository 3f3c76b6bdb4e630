package store

import "errors"

// Typed errors surfaced to the command layer as RESP Error frames. The
// command layer is responsible for the exact wire message; these
// sentinel errors let it classify what happened. None of them is fatal
// to the connection.
var (
	// ErrWrongType is returned when an operation targets a key holding a
	// different value kind.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger is returned by INCR when the existing value does not
	// parse as an integer.
	ErrNotInteger = errors.New("ERR value is not an integer or out of range")

	// ErrNoSuchKey is returned by operations that require an existing key.
	ErrNoSuchKey = errors.New("ERR no such key")
)

// StreamIDError carries the exact XADD error message sent verbatim on
// the wire.
type StreamIDError struct {
	Msg string
}

func (e *StreamIDError) Error() string { return e.Msg }

var (
	errStreamIDZero  = &StreamIDError{Msg: "ERR The ID specified in XADD must be greater than 0-0"}
	errStreamIDSmall = &StreamIDError{Msg: "ERR The ID specified in XADD is equal or smaller than the target stream top item"}
)

// GeoError reports an invalid coordinate pair passed to GEOADD.
type GeoError struct {
	Msg string
}

func (e *GeoError) Error() string { return e.Msg }
