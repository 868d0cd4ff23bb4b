package server

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/mkarlsen/busline/proto"
)

func startUDPTransport(t *testing.T) (*UDPTransport, *transportCallbacks, string) {
	t.Helper()
	addr := fmt.Sprintf("127.0.0.1:%d", getFreePort(t, "udp"))
	transport := NewUDPTransport(addr)
	cb := hookCallbacks(transport)

	go transport.Start()
	t.Cleanup(func() { transport.Shutdown() })
	time.Sleep(100 * time.Millisecond)
	return transport, cb, addr
}

func dialUDP(t *testing.T, addr string) *net.UDPConn {
	t.Helper()
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		t.Fatalf("Failed to dial transport: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendDatagram(t *testing.T, conn *net.UDPConn, msg proto.Message) {
	t.Helper()
	buf, err := proto.MarshalDatagram(msg)
	if err != nil {
		t.Fatalf("MarshalDatagram failed: %v", err)
	}
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("Failed to send datagram: %v", err)
	}
}

func TestUDPTransport_StartWithoutCallbacks(t *testing.T) {
	transport := NewUDPTransport("127.0.0.1:0")
	if err := transport.Start(); err == nil {
		t.Error("Expected error when starting without callbacks")
	}
}

func TestUDPTransport_ReceiveAndReply(t *testing.T) {
	_, cb, addr := startUDPTransport(t)
	conn := dialUDP(t, addr)

	sendDatagram(t, conn, proto.Message{Type: proto.TypeSubscribe, Topic: "news"})

	client := waitFor(t, cb.connects, "peer registration")
	got := waitFor(t, cb.messages, "message callback")
	if got.Type != proto.TypeSubscribe || got.Topic != "news" {
		t.Errorf("Unexpected message %+v", got)
	}
	<-cb.senders

	if err := client.Send(proto.Message{Type: proto.TypeAck, Topic: "news"}); err != nil {
		t.Fatalf("Send to peer failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, proto.MaxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Failed to read reply datagram: %v", err)
	}
	reply, err := proto.UnmarshalDatagram(buf[:n])
	if err != nil {
		t.Fatalf("Failed to parse reply: %v", err)
	}
	if reply.Type != proto.TypeAck || reply.Topic != "news" {
		t.Errorf("Expected ack for news, got %+v", reply)
	}
}

func TestUDPTransport_StableIdentityPerAddress(t *testing.T) {
	_, cb, addr := startUDPTransport(t)
	conn := dialUDP(t, addr)

	sendDatagram(t, conn, proto.Message{Type: proto.TypeSubscribe, Topic: "a"})
	sendDatagram(t, conn, proto.Message{Type: proto.TypePublish, Topic: "a", Payload: proto.EncodePayload([]byte("x"))})

	waitFor(t, cb.connects, "peer registration")
	<-cb.messages
	first := waitFor(t, cb.senders, "first sender")
	<-cb.messages
	second := waitFor(t, cb.senders, "second sender")

	if first != second {
		t.Error("Expected the same peer address to map to one client identity")
	}

	select {
	case <-cb.connects:
		t.Error("Second datagram from a known peer should not re-register it")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUDPTransport_DropsMalformedAndContinues(t *testing.T) {
	_, cb, addr := startUDPTransport(t)
	conn := dialUDP(t, addr)

	// Shorter than the header: dropped without any callback.
	if _, err := conn.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Failed to send garbage: %v", err)
	}
	select {
	case <-cb.messages:
		t.Fatal("Malformed datagram must not reach the dispatcher")
	case <-time.After(200 * time.Millisecond):
	}

	// The loop keeps serving valid traffic afterwards.
	sendDatagram(t, conn, proto.Message{Type: proto.TypeSubscribe, Topic: "news"})
	got := waitFor(t, cb.messages, "valid datagram after malformed one")
	if got.Topic != "news" {
		t.Errorf("Unexpected message %+v", got)
	}
}

func TestUDPTransport_TerminateDropsPeer(t *testing.T) {
	transport, cb, addr := startUDPTransport(t)
	conn := dialUDP(t, addr)

	sendDatagram(t, conn, proto.Message{Type: proto.TypeSubscribe, Topic: "news"})
	client := waitFor(t, cb.connects, "peer registration")

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	dropped := waitFor(t, cb.disconnects, "disconnect callback")
	if dropped != client {
		t.Error("Expected disconnect for the terminated peer")
	}
	if transport.Meta().Clients != 0 {
		t.Errorf("Expected no peers after terminate, got %d", transport.Meta().Clients)
	}

	// Closing twice is a no-op.
	if err := client.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}
