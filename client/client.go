package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mkarlsen/busline/proto"
)

// State of the handshake machine. Subscribers walk Idle → Subscribing →
// Active; publishers loop Publishing → AwaitingAck → Publishing. Closed
// is terminal and reachable from anywhere.
type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateActive
	StatePublishing
	StateAwaitingAck
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StatePublishing:
		return "publishing"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const defaultAckTimeout = 5 * time.Second

// Client drives the protocol from the peer side. It is fully sequential:
// one request in flight, blocking reads bounded by the ack timeout where
// the protocol allows a bound.
type Client struct {
	transport  Transport
	events     Events
	ackTimeout time.Duration
	state      State
}

type Option func(*Client)

// WithEvents routes structured notifications to sink instead of
// discarding them.
func WithEvents(sink Events) Option {
	return func(c *Client) { c.events = sink }
}

// WithAckTimeout bounds every wait for a broker ACK.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Client) { c.ackTimeout = d }
}

func New(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:  transport,
		events:     nopEvents{},
		ackTimeout: defaultAckTimeout,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	return c.state
}

func (c *Client) Connect(addr string) error {
	return c.transport.Connect(addr)
}

// Subscribe performs the subscribe handshake for each topic in order:
// send SUBSCRIBE, then wait for the matching ACK. On a stream transport
// the next frame must be that ACK; anything else is a fatal setup error.
// On a datagram transport, MSG frames may legitimately arrive before the
// ACK (an earlier publish already in flight), so those are consumed and
// delivered while the wait continues, bounded by the ack timeout. On
// timeout the subscription proceeds unconfirmed, reported as a warning
// rather than masked.
func (c *Client) Subscribe(topics ...string) error {
	for _, topic := range topics {
		c.state = StateSubscribing
		if err := c.transport.Send(proto.Message{Type: proto.TypeSubscribe, Topic: topic}); err != nil {
			c.state = StateClosed
			return fmt.Errorf("sending subscribe for %q: %w", topic, err)
		}

		var err error
		if c.transport.Reliable() {
			err = c.awaitSubscribeAckStrict(topic)
		} else {
			err = c.awaitSubscribeAckTolerant(topic)
		}
		if err != nil {
			c.state = StateClosed
			return err
		}
		c.events.Subscribed(topic)
	}

	c.setRecvDeadline(time.Time{})
	c.state = StateActive
	return nil
}

func (c *Client) awaitSubscribeAckStrict(topic string) error {
	c.setRecvDeadline(time.Now().Add(c.ackTimeout))

	msg, err := c.transport.Recv()
	if err != nil {
		return fmt.Errorf("subscribe handshake for %q: %w", topic, err)
	}
	if msg.Type != proto.TypeAck || msg.Topic != topic {
		return fmt.Errorf("subscribe handshake for %q: expected ack, got %s for %q",
			topic, proto.TypeName(msg.Type), msg.Topic)
	}
	c.events.Acknowledged(topic)
	return nil
}

func (c *Client) awaitSubscribeAckTolerant(topic string) error {
	deadline := time.Now().Add(c.ackTimeout)
	c.setRecvDeadline(deadline)

	for {
		msg, err := c.transport.Recv()
		if err != nil {
			var mfe *proto.MalformedFrameError
			switch {
			case errors.As(err, &mfe):
				c.events.Warning("dropping malformed datagram", err)
				continue
			case isTimeout(err):
				c.events.Warning(fmt.Sprintf("no ack for subscribe %q, proceeding unconfirmed", topic), proto.ErrHandshakeTimeout)
				return nil
			default:
				return fmt.Errorf("subscribe handshake for %q: %w", topic, err)
			}
		}

		switch msg.Type {
		case proto.TypeAck:
			if msg.Topic == topic {
				c.events.Acknowledged(topic)
				return nil
			}
			c.events.Warning(fmt.Sprintf("ack for unexpected topic %q", msg.Topic), nil)
		case proto.TypeMsg:
			// A delivery that raced ahead of the ack; consume it and
			// keep waiting.
			c.deliver(msg)
		default:
			c.events.Warning(fmt.Sprintf("unexpected %s frame during subscribe", proto.TypeName(msg.Type)), nil)
		}
	}
}

// Listen runs the active receive loop: deliver every MSG, log anything
// unsolicited, until the session ends.
func (c *Client) Listen() error {
	c.state = StateActive
	c.setRecvDeadline(time.Time{})

	for {
		msg, err := c.transport.Recv()
		if err != nil {
			var mfe *proto.MalformedFrameError
			if errors.As(err, &mfe) {
				c.events.Warning("dropping malformed datagram", err)
				continue
			}
			c.state = StateClosed
			c.events.Disconnected(err)
			if err == proto.ErrConnectionClosed || errors.Is(err, net.ErrClosed) {
				return nil // orderly close, or Close was called locally
			}
			return err
		}

		switch msg.Type {
		case proto.TypeMsg:
			c.deliver(msg)
		case proto.TypeAck:
			c.events.Warning(fmt.Sprintf("unsolicited ack for %q", msg.Topic), nil)
		default:
			c.events.Warning(fmt.Sprintf("unexpected %s frame", proto.TypeName(msg.Type)), nil)
		}
	}
}

// Publish encodes payload, sends it on topic, and waits for the broker's
// ACK up to the ack timeout. On timeout it proceeds without confirmation.
func (c *Client) Publish(topic string, payload []byte) error {
	c.state = StatePublishing

	msg := proto.Message{
		Type:    proto.TypePublish,
		Topic:   topic,
		Payload: proto.EncodePayload(payload),
	}
	if err := c.transport.Send(msg); err != nil {
		c.state = StateClosed
		return fmt.Errorf("sending publish for %q: %w", topic, err)
	}

	c.state = StateAwaitingAck
	err := c.awaitPublishAck(topic)
	if err != nil {
		c.state = StateClosed
		return err
	}
	c.setRecvDeadline(time.Time{})
	c.state = StatePublishing
	return nil
}

func (c *Client) awaitPublishAck(topic string) error {
	deadline := time.Now().Add(c.ackTimeout)
	c.setRecvDeadline(deadline)

	for {
		msg, err := c.transport.Recv()
		if err != nil {
			var mfe *proto.MalformedFrameError
			switch {
			case errors.As(err, &mfe):
				c.events.Warning("dropping malformed datagram", err)
				continue
			case isTimeout(err):
				c.events.Warning(fmt.Sprintf("no ack for publish on %q, proceeding unconfirmed", topic), proto.ErrHandshakeTimeout)
				return nil
			default:
				return fmt.Errorf("awaiting publish ack for %q: %w", topic, err)
			}
		}

		switch msg.Type {
		case proto.TypeAck:
			if msg.Topic == topic {
				c.events.Acknowledged(topic)
				return nil
			}
			c.events.Warning(fmt.Sprintf("ack for unexpected topic %q", msg.Topic), nil)
		case proto.TypeMsg:
			// Our own publish echoed back, or a delivery for a topic
			// this client also subscribes to.
			c.deliver(msg)
		default:
			c.events.Warning(fmt.Sprintf("unexpected %s frame while awaiting ack", proto.TypeName(msg.Type)), nil)
		}
	}
}

// Terminate announces the end of the session and waits best-effort for a
// final ACK before closing the transport.
func (c *Client) Terminate() error {
	if c.state == StateClosed {
		return nil
	}

	if err := c.transport.Send(proto.Message{Type: proto.TypeTerminate}); err != nil {
		c.events.Warning("failed to send terminate", err)
	} else {
		c.setRecvDeadline(time.Now().Add(c.ackTimeout))
		for {
			msg, err := c.transport.Recv()
			if err != nil {
				break
			}
			if msg.Type == proto.TypeAck {
				break
			}
		}
	}

	err := c.transport.Close()
	c.state = StateClosed
	return err
}

// Close tears the transport down without the terminate handshake.
func (c *Client) Close() error {
	c.state = StateClosed
	return c.transport.Close()
}

func (c *Client) deliver(msg proto.Message) {
	decoded, err := proto.DecodePayload(msg.Payload)
	if err != nil {
		c.events.Warning(fmt.Sprintf("undecodable payload on %q", msg.Topic), err)
		c.events.Received(msg.Topic, []byte("<undecodable payload>"))
		return
	}
	c.events.Received(msg.Topic, decoded)
}

// setRecvDeadline applies a receive deadline and reports a failure to
// set it. A silently lost deadline would turn a bounded ack wait into
// an unbounded blocking read.
func (c *Client) setRecvDeadline(t time.Time) {
	if err := c.transport.SetRecvDeadline(t); err != nil {
		c.events.Warning("failed to set receive deadline", err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
