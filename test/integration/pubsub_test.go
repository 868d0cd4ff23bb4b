package integration

import (
	"testing"
	"time"

	"github.com/mkarlsen/busline/client"
)

func TestStreamPubSub(t *testing.T) {
	tcpAddr, _ := startBroker(t)

	subEvents := newChanEvents()
	subscriber := client.New(client.NewTCPTransport(), client.WithEvents(subEvents))
	if err := subscriber.Connect(tcpAddr); err != nil {
		t.Fatalf("Subscriber failed to connect: %v", err)
	}
	defer subscriber.Close()

	if err := subscriber.Subscribe("news"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	go subscriber.Listen()

	pubEvents := newChanEvents()
	publisher := client.New(client.NewTCPTransport(), client.WithEvents(pubEvents))
	if err := publisher.Connect(tcpAddr); err != nil {
		t.Fatalf("Publisher failed to connect: %v", err)
	}
	defer publisher.Close()

	if err := publisher.Publish("news", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := waitReceived(t, subEvents)
	if got.Topic != "news" || got.Payload != "hello" {
		t.Errorf("Expected hello on news, got %+v", got)
	}

	select {
	case topic := <-pubEvents.acked:
		if topic != "news" {
			t.Errorf("Expected publish ack for news, got %q", topic)
		}
	case <-time.After(3 * time.Second):
		t.Error("Timed out waiting for publish ack")
	}

	if err := publisher.Terminate(); err != nil {
		t.Errorf("Terminate failed: %v", err)
	}
}

func TestDatagramPubSub(t *testing.T) {
	_, udpAddr := startBroker(t)

	subEvents := newChanEvents()
	subscriber := client.New(client.NewUDPTransport(),
		client.WithEvents(subEvents), client.WithAckTimeout(time.Second))
	if err := subscriber.Connect(udpAddr); err != nil {
		t.Fatalf("Subscriber failed to connect: %v", err)
	}
	defer subscriber.Close()

	if err := subscriber.Subscribe("sensor"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	go subscriber.Listen()

	publisher := client.New(client.NewUDPTransport(),
		client.WithEvents(newChanEvents()), client.WithAckTimeout(time.Second))
	if err := publisher.Connect(udpAddr); err != nil {
		t.Fatalf("Publisher failed to connect: %v", err)
	}
	defer publisher.Close()

	if err := publisher.Publish("sensor", []byte("21.5")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := waitReceived(t, subEvents)
	if got.Topic != "sensor" || got.Payload != "21.5" {
		t.Errorf("Expected 21.5 on sensor, got %+v", got)
	}
}

func TestCrossTransportFanout(t *testing.T) {
	tcpAddr, udpAddr := startBroker(t)

	streamEvents := newChanEvents()
	streamSub := client.New(client.NewTCPTransport(), client.WithEvents(streamEvents))
	if err := streamSub.Connect(tcpAddr); err != nil {
		t.Fatalf("Stream subscriber failed to connect: %v", err)
	}
	defer streamSub.Close()
	if err := streamSub.Subscribe("mixed"); err != nil {
		t.Fatalf("Stream subscribe failed: %v", err)
	}
	go streamSub.Listen()

	datagramEvents := newChanEvents()
	datagramSub := client.New(client.NewUDPTransport(),
		client.WithEvents(datagramEvents), client.WithAckTimeout(time.Second))
	if err := datagramSub.Connect(udpAddr); err != nil {
		t.Fatalf("Datagram subscriber failed to connect: %v", err)
	}
	defer datagramSub.Close()
	if err := datagramSub.Subscribe("mixed"); err != nil {
		t.Fatalf("Datagram subscribe failed: %v", err)
	}
	go datagramSub.Listen()

	publisher := client.New(client.NewTCPTransport(), client.WithEvents(newChanEvents()))
	if err := publisher.Connect(tcpAddr); err != nil {
		t.Fatalf("Publisher failed to connect: %v", err)
	}
	defer publisher.Close()

	if err := publisher.Publish("mixed", []byte("both")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// One publish reaches subscribers on both transports.
	if got := waitReceived(t, streamEvents); got.Payload != "both" {
		t.Errorf("Stream subscriber got %+v", got)
	}
	if got := waitReceived(t, datagramEvents); got.Payload != "both" {
		t.Errorf("Datagram subscriber got %+v", got)
	}
}

func TestPublishWithoutSubscribersStillAcked(t *testing.T) {
	tcpAddr, _ := startBroker(t)

	pubEvents := newChanEvents()
	publisher := client.New(client.NewTCPTransport(), client.WithEvents(pubEvents))
	if err := publisher.Connect(tcpAddr); err != nil {
		t.Fatalf("Publisher failed to connect: %v", err)
	}
	defer publisher.Close()

	if err := publisher.Publish("empty", []byte("x")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case topic := <-pubEvents.acked:
		if topic != "empty" {
			t.Errorf("Expected ack for empty, got %q", topic)
		}
	case <-time.After(3 * time.Second):
		t.Error("Timed out waiting for ack")
	}
}

func TestSequentialDeliveryOrderOnStream(t *testing.T) {
	tcpAddr, _ := startBroker(t)

	subEvents := newChanEvents()
	subscriber := client.New(client.NewTCPTransport(), client.WithEvents(subEvents))
	if err := subscriber.Connect(tcpAddr); err != nil {
		t.Fatalf("Subscriber failed to connect: %v", err)
	}
	defer subscriber.Close()
	if err := subscriber.Subscribe("ordered"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	go subscriber.Listen()

	publisher := client.New(client.NewTCPTransport(), client.WithEvents(newChanEvents()))
	if err := publisher.Connect(tcpAddr); err != nil {
		t.Fatalf("Publisher failed to connect: %v", err)
	}
	defer publisher.Close()

	// Publishes submitted strictly sequentially must arrive in order on
	// a single stream subscriber.
	want := []string{"one", "two", "three", "four"}
	for _, payload := range want {
		if err := publisher.Publish("ordered", []byte(payload)); err != nil {
			t.Fatalf("Publish %q failed: %v", payload, err)
		}
	}

	for i, expected := range want {
		got := waitReceived(t, subEvents)
		if got.Payload != expected {
			t.Errorf("Delivery %d: expected %q, got %q", i, expected, got.Payload)
		}
	}
}
