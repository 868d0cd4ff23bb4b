package proto

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed signals an orderly close of a stream peer. When it
// occurs at a frame boundary the session simply ended; when wrapped with
// additional context it means the stream closed mid-frame.
var ErrConnectionClosed = errors.New("connection closed")

// ErrHandshakeTimeout signals that no ACK arrived within the configured
// bound. Callers proceed degraded rather than aborting.
var ErrHandshakeTimeout = errors.New("timed out waiting for ack")

// ErrFrameTooLarge signals a header declaring a topic or payload length
// beyond the codec limits. On a stream this is fatal to the connection
// because the remaining bytes cannot be resynchronized.
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// DecodeError reports invalid text-safe payload input. Pos is the byte
// offset of the offending symbol, or -1 for a length violation.
type DecodeError struct {
	Pos    int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Pos < 0 {
		return "payload decode: " + e.Reason
	}
	return fmt.Sprintf("payload decode: %s at offset %d", e.Reason, e.Pos)
}

// MalformedFrameError reports a datagram too short for the fields its
// header declares. Malformed datagrams are dropped, never re-requested.
type MalformedFrameError struct {
	Have int
	Want int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed datagram: have %d bytes, need %d", e.Have, e.Want)
}
