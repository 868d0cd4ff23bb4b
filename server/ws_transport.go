package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mkarlsen/busline/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSTransport carries the datagram frame form over WebSocket binary
// messages. The transport preserves message boundaries, so the single-
// buffer codec applies as-is.
type WSTransport struct {
	Addr         string
	server       *http.Server
	onMessage    func(proto.Message, Client)
	onConnect    func(Client) error
	onDisconnect func(Client)
	metrics      *Metrics

	clients map[string]Client
	cmu     sync.RWMutex

	maxClients int
	connected  bool
}

func NewWSTransport(addr string) *WSTransport {
	return &WSTransport{Addr: addr, maxClients: 64, clients: make(map[string]Client)}
}

func (t *WSTransport) Start() error {
	slog.Info("Starting websocket transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		return fmt.Errorf("websocket transport started without coordinator callbacks")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleWebSocket)

	t.server = &http.Server{Addr: t.Addr, Handler: mux}
	t.setConnected(true)

	err := t.server.ListenAndServe()
	t.setConnected(false)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (t *WSTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err.Error())
		return
	}

	t.cmu.RLock()
	clientCount := len(t.clients)
	maxClients := t.maxClients
	t.cmu.RUnlock()

	if maxClients > 0 && clientCount >= maxClients {
		slog.Warn("Max clients reached, rejecting websocket", "remote_addr", conn.RemoteAddr())
		conn.Close()
		return
	}

	client := NewWSClient(conn)
	remote := client.Meta().Remote
	slog.Info("Websocket client connected", "addr", remote)
	t.metrics.ConnectionOpened()

	defer func() {
		t.cmu.Lock()
		delete(t.clients, client.Meta().ID)
		t.cmu.Unlock()

		t.onDisconnect(client)
		conn.Close()
		t.metrics.ConnectionClosed()
		slog.Info("Websocket client disconnected", "addr", remote, "id", client.Meta().ID)
	}()

	if err := t.onConnect(client); err != nil {
		slog.Error("Failed to register client", "addr", remote, "error", err.Error())
		return
	}
	t.cmu.Lock()
	t.clients[client.Meta().ID] = client
	t.cmu.Unlock()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Websocket read error", "addr", remote, "error", err.Error())
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			slog.Warn("Ignoring non-binary websocket message", "addr", remote, "type", msgType)
			continue
		}

		msg, err := proto.UnmarshalDatagram(data)
		if err != nil {
			t.metrics.IncMalformedDatagrams()
			slog.Warn("Dropping malformed websocket frame", "addr", remote, "size", len(data), "error", err.Error())
			continue
		}
		slog.Debug("Frame received", "type", proto.TypeName(msg.Type), "topic", msg.Topic, "sender", client.Meta().ID, "size", len(data))
		t.onMessage(msg, client)
	}
}

func (t *WSTransport) Shutdown() error {
	slog.Info("Shutting down websocket transport", "addr", t.Addr)
	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

func (t *WSTransport) OnMessage(fn func(proto.Message, Client)) {
	t.onMessage = fn
}

func (t *WSTransport) OnConnect(fn func(Client) error) {
	t.onConnect = fn
}

func (t *WSTransport) OnDisconnect(fn func(Client)) {
	t.onDisconnect = fn
}

func (t *WSTransport) SetMaxClients(n int) {
	t.cmu.Lock()
	t.maxClients = n
	t.cmu.Unlock()
}

func (t *WSTransport) SetMetrics(m *Metrics) {
	t.metrics = m
}

func (t *WSTransport) setConnected(v bool) {
	t.cmu.Lock()
	t.connected = v
	t.cmu.Unlock()
}

func (t *WSTransport) Meta() TransportMetadata {
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	return TransportMetadata{
		Name:       "websocket",
		Protocol:   "datagram",
		Address:    t.Addr,
		Clients:    len(t.clients),
		MaxClients: t.maxClients,
		Connected:  t.connected,
	}
}
