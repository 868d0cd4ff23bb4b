package server

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mkarlsen/busline/proto"
)

func newTestCoordinator() *Coordinator {
	return NewCoordinator(NewBroker(), NewClientRegistry(), nil)
}

func countByType(msgs []proto.Message, msgType uint32) int {
	n := 0
	for _, m := range msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func TestHandle_SubscribeAcks(t *testing.T) {
	c := newTestCoordinator()
	sub := NewMockClient("sub")

	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, sub)

	msgs := sub.Messages()
	if len(msgs) != 1 || msgs[0].Type != proto.TypeAck || msgs[0].Topic != "news" {
		t.Errorf("Expected a single ack for %q, got %v", "news", msgs)
	}
	if subs := c.Broker.Subscribers("news"); len(subs) != 1 {
		t.Errorf("Expected 1 subscriber, got %d", len(subs))
	}
}

func TestHandle_SubscribeTwiceAcksTwice(t *testing.T) {
	c := newTestCoordinator()
	sub := NewMockClient("sub")

	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, sub)
	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, sub)

	if acks := countByType(sub.Messages(), proto.TypeAck); acks != 2 {
		t.Errorf("Expected 2 acks for duplicate subscribes, got %d", acks)
	}
	if subs := c.Broker.Subscribers("news"); len(subs) != 1 {
		t.Errorf("Expected registry to hold 1 entry, got %d", len(subs))
	}
}

func TestHandle_PublishFanout(t *testing.T) {
	c := newTestCoordinator()
	sub := NewMockClient("sub")
	pub := NewMockClient("pub")

	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, sub)
	sub.mu.Lock()
	sub.messages = nil
	sub.mu.Unlock()

	payload := proto.EncodePayload([]byte("hello"))
	c.Handle(proto.Message{Type: proto.TypePublish, Topic: "news", Payload: payload}, pub)

	subMsgs := sub.Messages()
	if len(subMsgs) != 1 || subMsgs[0].Type != proto.TypeMsg || subMsgs[0].Topic != "news" {
		t.Fatalf("Expected exactly one MSG for subscriber, got %v", subMsgs)
	}
	decoded, err := proto.DecodePayload(subMsgs[0].Payload)
	if err != nil {
		t.Fatalf("Failed to decode delivered payload: %v", err)
	}
	if !bytes.Equal(decoded, []byte("hello")) {
		t.Errorf("Expected payload %q, got %q", "hello", decoded)
	}

	pubMsgs := pub.Messages()
	if len(pubMsgs) != 1 || pubMsgs[0].Type != proto.TypeAck || pubMsgs[0].Topic != "news" {
		t.Errorf("Expected exactly one ack for publisher, got %v", pubMsgs)
	}
}

func TestHandle_PublishWithoutSubscribers(t *testing.T) {
	c := newTestCoordinator()
	pub := NewMockClient("pub")

	c.Handle(proto.Message{Type: proto.TypePublish, Topic: "empty", Payload: proto.EncodePayload([]byte("x"))}, pub)

	msgs := pub.Messages()
	if len(msgs) != 1 || msgs[0].Type != proto.TypeAck {
		t.Errorf("Expected exactly one ack and no deliveries, got %v", msgs)
	}
}

func TestHandle_PublishMultiTopic(t *testing.T) {
	c := newTestCoordinator()
	sub := NewMockClient("sub")
	pub := NewMockClient("pub")

	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "a"}, sub)
	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "b"}, sub)
	sub.mu.Lock()
	sub.messages = nil
	sub.mu.Unlock()

	for _, topic := range []string{"c", "a", "b"} {
		c.Handle(proto.Message{Type: proto.TypePublish, Topic: topic, Payload: proto.EncodePayload([]byte("x"))}, pub)
	}

	msgs := sub.Messages()
	if got := countByType(msgs, proto.TypeMsg); got != 2 {
		t.Errorf("Expected 2 deliveries (for a and b), got %d", got)
	}
	for _, m := range msgs {
		if m.Topic == "c" {
			t.Error("Subscriber received a delivery for an unsubscribed topic")
		}
	}
}

func TestHandle_EchoToPublisher(t *testing.T) {
	for _, echo := range []bool{true, false} {
		c := newTestCoordinator()
		c.EchoToPublisher = echo
		pub := NewMockClient("pub")

		c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, pub)
		pub.mu.Lock()
		pub.messages = nil
		pub.mu.Unlock()

		c.Handle(proto.Message{Type: proto.TypePublish, Topic: "news", Payload: proto.EncodePayload([]byte("x"))}, pub)

		wantMsgs := 0
		if echo {
			wantMsgs = 1
		}
		if got := countByType(pub.Messages(), proto.TypeMsg); got != wantMsgs {
			t.Errorf("echo=%v: expected %d self-deliveries, got %d", echo, wantMsgs, got)
		}
		if acks := countByType(pub.Messages(), proto.TypeAck); acks != 1 {
			t.Errorf("echo=%v: expected 1 ack, got %d", echo, acks)
		}
	}
}

func TestHandle_FanoutFailureDoesNotAbort(t *testing.T) {
	c := newTestCoordinator()
	broken := NewMockClient("broken")
	healthy := NewMockClient("healthy")
	pub := NewMockClient("pub")

	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, broken)
	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, healthy)
	healthy.mu.Lock()
	healthy.messages = nil
	healthy.mu.Unlock()
	broken.SetSendError(errors.New("wedged stream"))

	c.Handle(proto.Message{Type: proto.TypePublish, Topic: "news", Payload: proto.EncodePayload([]byte("x"))}, pub)

	if got := countByType(healthy.Messages(), proto.TypeMsg); got != 1 {
		t.Errorf("Expected healthy subscriber to receive delivery despite failing peer, got %d", got)
	}
	if acks := countByType(pub.Messages(), proto.TypeAck); acks != 1 {
		t.Errorf("Expected publisher ack despite failing peer, got %d", acks)
	}
}

func TestHandle_Terminate(t *testing.T) {
	c := newTestCoordinator()
	sub := NewMockClient("sub")

	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "news"}, sub)
	c.Handle(proto.Message{Type: proto.TypeSubscribe, Topic: "weather"}, sub)
	c.Handle(proto.Message{Type: proto.TypeTerminate}, sub)

	if subs := c.Broker.Subscribers("news"); len(subs) != 0 {
		t.Errorf("Expected no subscribers after terminate, got %d", len(subs))
	}
	if !sub.Closed() {
		t.Error("Expected terminated session to be closed")
	}
	if acks := countByType(sub.Messages(), proto.TypeAck); acks != 3 {
		t.Errorf("Expected 2 subscribe acks plus best-effort terminate ack, got %d", acks)
	}
}

func TestHandle_UnknownTypeIgnored(t *testing.T) {
	c := newTestCoordinator()
	sender := NewMockClient("sender")

	c.Handle(proto.Message{Type: 99, Topic: "news"}, sender)

	if len(sender.Messages()) != 0 {
		t.Error("Expected no response for unknown message type")
	}
}
