package integration

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/mkarlsen/busline/server"
)

func getRandomPort(t *testing.T, network string) int {
	t.Helper()
	if network == "udp" {
		conn, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to get port: %v", err)
		}
		defer conn.Close()
		return conn.LocalAddr().(*net.UDPAddr).Port
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to get port: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// startBroker runs a full broker with TCP and UDP transports on random
// ports and quiet logging. Both transports are torn down with the test.
func startBroker(t *testing.T) (tcpAddr, udpAddr string) {
	t.Helper()

	tcpAddr = fmt.Sprintf("127.0.0.1:%d", getRandomPort(t, "tcp"))
	udpAddr = fmt.Sprintf("127.0.0.1:%d", getRandomPort(t, "udp"))

	ctx, cancel := context.WithCancel(context.Background())
	srv := server.NewBrokerServer(server.BrokerServerOptions{
		Logging:         server.SuppressedLogConfig(),
		Context:         ctx,
		EchoToPublisher: true,
	})
	srv.RegisterTransport(server.NewTCPTransport(tcpAddr))
	srv.RegisterTransport(server.NewUDPTransport(udpAddr))

	go func() {
		if err := srv.Start(); err != nil {
			t.Errorf("Broker failed: %v", err)
		}
	}()
	t.Cleanup(cancel)
	time.Sleep(100 * time.Millisecond)
	return tcpAddr, udpAddr
}

type receivedMsg struct {
	Topic   string
	Payload string
}

// chanEvents exposes client events as channels for test synchronization.
type chanEvents struct {
	received chan receivedMsg
	acked    chan string
	warnings chan error
}

func newChanEvents() *chanEvents {
	return &chanEvents{
		received: make(chan receivedMsg, 32),
		acked:    make(chan string, 32),
		warnings: make(chan error, 32),
	}
}

func (e *chanEvents) Subscribed(string) {}

func (e *chanEvents) Acknowledged(topic string) {
	e.acked <- topic
}

func (e *chanEvents) Received(topic string, payload []byte) {
	e.received <- receivedMsg{Topic: topic, Payload: string(payload)}
}

func (e *chanEvents) Warning(_ string, err error) {
	e.warnings <- err
}

func (e *chanEvents) Disconnected(error) {}

func waitReceived(t *testing.T, e *chanEvents) receivedMsg {
	t.Helper()
	select {
	case msg := <-e.received:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for a delivery")
		return receivedMsg{}
	}
}
