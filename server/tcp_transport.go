package server

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/mkarlsen/busline/proto"
)

// TCPTransport is the stream transport. Every accepted connection gets
// its own goroutine that decodes frames and feeds them to the dispatcher.
type TCPTransport struct {
	Addr         string
	listener     net.Listener
	onMessage    func(proto.Message, Client)
	onConnect    func(Client) error
	onDisconnect func(Client)
	metrics      *Metrics

	clients map[string]Client
	cmu     sync.RWMutex

	maxClients int
	connected  bool
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{Addr: addr, maxClients: 64, clients: make(map[string]Client)}
}

func (t *TCPTransport) Start() error {
	slog.Info("Starting tcp transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		return fmt.Errorf("tcp transport started without coordinator callbacks")
	}

	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	t.listener = l
	t.setConnected(true)
	defer func() {
		l.Close()
		t.setConnected(false)
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return err // exits when the listener is closed
		}

		t.cmu.RLock()
		clientCount := len(t.clients)
		maxClients := t.maxClients
		t.cmu.RUnlock()

		if maxClients > 0 && clientCount >= maxClients {
			slog.Warn("Max clients reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go t.handleConnection(conn)
	}
}

func (t *TCPTransport) handleConnection(conn net.Conn) {
	client := NewTCPClient(conn)
	remote := client.Meta().Remote
	slog.Info("Stream client connected", "addr", remote)
	t.metrics.ConnectionOpened()

	defer func() {
		t.cmu.Lock()
		delete(t.clients, client.Meta().ID)
		t.cmu.Unlock()

		t.onDisconnect(client)
		conn.Close()
		t.metrics.ConnectionClosed()
		slog.Info("Stream client disconnected", "addr", remote, "id", client.Meta().ID)
	}()

	if err := t.onConnect(client); err != nil {
		slog.Error("Failed to register client", "addr", remote, "error", err.Error())
		return
	}
	t.cmu.Lock()
	t.clients[client.Meta().ID] = client
	t.cmu.Unlock()

	reader := bufio.NewReader(conn)
	for {
		msg, err := proto.ReadFrame(reader)
		if err != nil {
			switch {
			case err == proto.ErrConnectionClosed:
				// Orderly close at a frame boundary.
			case errors.Is(err, proto.ErrConnectionClosed):
				slog.Warn("Stream closed mid-frame", "addr", remote, "error", err.Error())
			case errors.Is(err, proto.ErrFrameTooLarge):
				// The stream cannot be resynchronized past a bad header.
				slog.Warn("Dropping connection on oversized frame", "addr", remote, "error", err.Error())
			default:
				slog.Warn("Stream read error", "addr", remote, "error", err.Error())
			}
			return
		}
		slog.Debug("Frame received", "type", proto.TypeName(msg.Type), "topic", msg.Topic, "sender", client.Meta().ID, "size", len(msg.Payload))
		t.onMessage(msg, client)
	}
}

func (t *TCPTransport) Shutdown() error {
	slog.Info("Shutting down tcp transport", "addr", t.Addr)
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

func (t *TCPTransport) OnMessage(fn func(proto.Message, Client)) {
	t.onMessage = fn
}

func (t *TCPTransport) OnConnect(fn func(Client) error) {
	t.onConnect = fn
}

func (t *TCPTransport) OnDisconnect(fn func(Client)) {
	t.onDisconnect = fn
}

func (t *TCPTransport) SetMaxClients(n int) {
	t.cmu.Lock()
	t.maxClients = n
	t.cmu.Unlock()
}

func (t *TCPTransport) SetMetrics(m *Metrics) {
	t.metrics = m
}

func (t *TCPTransport) setConnected(v bool) {
	t.cmu.Lock()
	t.connected = v
	t.cmu.Unlock()
}

// Meta is served concurrently by the admin API, so everything the
// accept loop mutates is read under the lock.
func (t *TCPTransport) Meta() TransportMetadata {
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	return TransportMetadata{
		Name:       "tcp",
		Protocol:   "stream",
		Address:    t.Addr,
		Clients:    len(t.clients),
		MaxClients: t.maxClients,
		Connected:  t.connected,
	}
}
