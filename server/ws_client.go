package server

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mkarlsen/busline/proto"
)

type WSClient struct {
	ClientMetadata
	conn *websocket.Conn

	// gorilla/websocket allows at most one concurrent writer.
	wmu sync.Mutex
}

func NewWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		conn:           conn,
		ClientMetadata: newClientMetadata("ws", conn.RemoteAddr().String()),
	}
}

func (c *WSClient) Send(msg proto.Message) error {
	buf, err := proto.MarshalDatagram(msg)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return err
	}
	slog.Debug("Sent websocket frame", "to", c.ID, "type", proto.TypeName(msg.Type), "topic", msg.Topic, "size", len(buf))
	return nil
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

func (c *WSClient) Meta() *ClientMetadata {
	return &c.ClientMetadata
}
