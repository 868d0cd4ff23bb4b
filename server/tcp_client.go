package server

import (
	"log/slog"
	"net"
	"sync"

	"github.com/mkarlsen/busline/proto"
)

type TCPClient struct {
	ClientMetadata
	conn net.Conn

	// Guards frame writes: fan-out for different topics may reach the
	// same subscriber from several dispatcher goroutines.
	wmu sync.Mutex
}

func NewTCPClient(conn net.Conn) *TCPClient {
	return &TCPClient{
		conn:           conn,
		ClientMetadata: newClientMetadata("tcp", conn.RemoteAddr().String()),
	}
}

func (c *TCPClient) Send(msg proto.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := proto.WriteFrame(c.conn, msg); err != nil {
		return err
	}
	slog.Debug("Sent frame", "to", c.ID, "type", proto.TypeName(msg.Type), "topic", msg.Topic, "size", len(msg.Payload))
	return nil
}

func (c *TCPClient) Close() error {
	return c.conn.Close()
}

func (c *TCPClient) Meta() *ClientMetadata {
	return &c.ClientMetadata
}
