package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/mkarlsen/busline/proto"
)

// UDPTransport is the datagram transport: a single-goroutine receive loop
// over one socket. Peers are tracked by remote address so the same
// address always maps to the same Client identity. There is no disconnect
// signal; a peer entry lives until an explicit TERMINATE or shutdown.
type UDPTransport struct {
	Addr         string
	conn         *net.UDPConn
	onMessage    func(proto.Message, Client)
	onConnect    func(Client) error
	onDisconnect func(Client)
	metrics      *Metrics

	peers map[string]*UDPClient
	pmu   sync.RWMutex

	connected bool
}

func NewUDPTransport(addr string) *UDPTransport {
	return &UDPTransport{Addr: addr, peers: make(map[string]*UDPClient)}
}

func (t *UDPTransport) Start() error {
	slog.Info("Starting udp transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		return fmt.Errorf("udp transport started without coordinator callbacks")
	}

	addr, err := net.ResolveUDPAddr("udp", t.Addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	t.conn = conn
	t.setConnected(true)
	defer func() {
		conn.Close()
		t.setConnected(false)
	}()

	// UnmarshalDatagram copies everything it keeps, so one receive
	// buffer serves the whole loop.
	buf := make([]byte, proto.MaxDatagramSize+1)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		msg, err := proto.UnmarshalDatagram(buf[:n])
		if err != nil {
			// Malformed datagrams are dropped, never re-requested.
			t.metrics.IncMalformedDatagrams()
			slog.Warn("Dropping malformed datagram", "from", raddr.String(), "size", n, "error", err.Error())
			continue
		}

		client, err := t.peer(raddr)
		if err != nil {
			slog.Error("Failed to register datagram peer", "from", raddr.String(), "error", err.Error())
			continue
		}
		slog.Debug("Datagram received", "type", proto.TypeName(msg.Type), "topic", msg.Topic, "sender", client.Meta().ID, "size", n)
		t.onMessage(msg, client)
	}
}

// peer returns the Client for raddr, creating and registering it on
// first sight.
func (t *UDPTransport) peer(raddr *net.UDPAddr) (*UDPClient, error) {
	key := raddr.String()

	t.pmu.RLock()
	client, ok := t.peers[key]
	t.pmu.RUnlock()
	if ok {
		return client, nil
	}

	client = NewUDPClient(t, raddr)
	if err := t.onConnect(client); err != nil {
		return nil, err
	}
	t.pmu.Lock()
	t.peers[key] = client
	t.pmu.Unlock()
	slog.Info("Datagram peer seen", "addr", key, "id", client.Meta().ID)
	return client, nil
}

// dropPeer removes a terminated peer and reports its departure. Called
// from UDPClient.Close.
func (t *UDPTransport) dropPeer(client *UDPClient) {
	t.pmu.Lock()
	_, ok := t.peers[client.Meta().Remote]
	if ok {
		delete(t.peers, client.Meta().Remote)
	}
	t.pmu.Unlock()

	if ok {
		t.onDisconnect(client)
	}
}

func (t *UDPTransport) Shutdown() error {
	slog.Info("Shutting down udp transport", "addr", t.Addr)
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *UDPTransport) OnMessage(fn func(proto.Message, Client)) {
	t.onMessage = fn
}

func (t *UDPTransport) OnConnect(fn func(Client) error) {
	t.onConnect = fn
}

func (t *UDPTransport) OnDisconnect(fn func(Client)) {
	t.onDisconnect = fn
}

func (t *UDPTransport) SetMetrics(m *Metrics) {
	t.metrics = m
}

func (t *UDPTransport) setConnected(v bool) {
	t.pmu.Lock()
	t.connected = v
	t.pmu.Unlock()
}

func (t *UDPTransport) Meta() TransportMetadata {
	t.pmu.RLock()
	defer t.pmu.RUnlock()
	return TransportMetadata{
		Name:      "udp",
		Protocol:  "datagram",
		Address:   t.Addr,
		Clients:   len(t.peers),
		Connected: t.connected,
	}
}
