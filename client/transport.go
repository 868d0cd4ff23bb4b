package client

import (
	"time"

	"github.com/mkarlsen/busline/proto"
)

// Transport is one client-side connection to the broker.
type Transport interface {
	Connect(addr string) error
	Send(proto.Message) error
	Recv() (proto.Message, error)

	// SetRecvDeadline bounds the next Recv calls. The zero time clears
	// the deadline.
	SetRecvDeadline(t time.Time) error

	// Reliable reports stream semantics: ordered delivery and a strict
	// request/response subscribe handshake. Datagram transports return
	// false and get the reorder-tolerant handshake instead.
	Reliable() bool

	Close() error
}
