package server

import (
	"log/slog"

	"github.com/mkarlsen/busline/proto"
)

// Handle applies one inbound message from sender. Per-message errors are
// contained here; nothing that happens in dispatch may take down another
// session or the coordinator itself.
func (c *Coordinator) Handle(msg proto.Message, sender Client) {
	sender.Meta().Touch()

	switch msg.Type {
	case proto.TypeSubscribe:
		c.handleSubscribe(msg, sender)
	case proto.TypePublish:
		c.handlePublish(msg, sender)
	case proto.TypeTerminate:
		c.handleTerminate(msg, sender)
	default:
		slog.Warn("Unhandled message type", "type", msg.Type, "sender", sender.Meta().ID)
	}
}

func (c *Coordinator) handleSubscribe(msg proto.Message, sender Client) {
	if c.Broker.Subscribe(msg.Topic, sender) {
		c.Metrics.AddSubscriptions(1)
	}
	// A duplicate SUBSCRIBE still gets its own ACK.
	c.ack(msg.Topic, sender)
}

func (c *Coordinator) handlePublish(msg proto.Message, sender Client) {
	c.Metrics.IncPublished()

	out := proto.Message{Type: proto.TypeMsg, Topic: msg.Topic, Payload: msg.Payload}
	// Snapshot under the registry lock, send outside it: a slow
	// subscriber must not stall unrelated registry operations.
	for _, sub := range c.Broker.Subscribers(msg.Topic) {
		if sub == sender && !c.EchoToPublisher {
			continue
		}
		if err := sub.Send(out); err != nil {
			c.Metrics.IncDeliveryFailures()
			slog.Warn("Failed to deliver to subscriber", "topic", msg.Topic, "subscriber", sub.Meta().ID, "error", err.Error())
			continue
		}
		c.Metrics.IncDelivered()
	}

	c.ack(msg.Topic, sender)
	slog.Debug("Publish dispatched", "topic", msg.Topic, "sender", sender.Meta().ID, "size", len(msg.Payload))
}

func (c *Coordinator) handleTerminate(msg proto.Message, sender Client) {
	removed := c.Broker.UnsubscribeAll(sender)
	c.Metrics.AddSubscriptions(-removed)

	// The final ACK is best effort; the peer may already be gone.
	if err := sender.Send(proto.Message{Type: proto.TypeAck, Topic: msg.Topic}); err != nil {
		slog.Debug("Terminate ack not delivered", "sender", sender.Meta().ID, "error", err.Error())
	}

	if err := sender.Close(); err != nil {
		slog.Debug("Error closing terminated session", "sender", sender.Meta().ID, "error", err.Error())
	}
	slog.Info("Session terminated", "sender", sender.Meta().ID, "subscriptions", removed)
}

func (c *Coordinator) ack(topic string, sender Client) {
	if err := sender.Send(proto.Message{Type: proto.TypeAck, Topic: topic}); err != nil {
		slog.Warn("Failed to send ack", "topic", topic, "sender", sender.Meta().ID, "error", err.Error())
	}
}
