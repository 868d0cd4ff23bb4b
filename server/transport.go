package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/busline/proto"
)

// Transport accepts raw messages on one listener and feeds them to the
// coordinator. Implementations own their sockets; the coordinator owns
// everything above the frame codec.
type Transport interface {
	Start() error
	OnMessage(func(proto.Message, Client))
	OnConnect(func(Client) error)
	OnDisconnect(func(Client))
	Shutdown() error
	Meta() TransportMetadata
}

type TransportMetadata struct {
	Name       string `json:"name"`     // e.g. "tcp", "udp", "websocket"
	Protocol   string `json:"protocol"` // wire form: "stream" or "datagram"
	Address    string `json:"address"`
	Clients    int    `json:"clients"`
	MaxClients int    `json:"max_clients"` // 0 means unbounded
	Connected  bool   `json:"connected"`
}

// Client is a subscriber identity: a live stream connection or a datagram
// peer address. Identity equality is pointer equality; datagram transports
// must hand out one Client per remote address.
type Client interface {
	Send(proto.Message) error
	Close() error
	Meta() *ClientMetadata
}

type ClientMetadata struct {
	ID          string
	Transport   string
	Remote      string
	ConnectedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func newClientMetadata(prefix, remote string) ClientMetadata {
	now := time.Now()
	return ClientMetadata{
		ID:          prefix + "-" + uuid.NewString(),
		Transport:   prefix,
		Remote:      remote,
		ConnectedAt: now,
		lastSeen:    now,
	}
}

// Touch records message activity from the client.
func (m *ClientMetadata) Touch() {
	m.mu.Lock()
	m.lastSeen = time.Now()
	m.mu.Unlock()
}

func (m *ClientMetadata) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}
