package server

import (
	"log/slog"
	"net"

	"github.com/mkarlsen/busline/proto"
)

// UDPClient is a datagram peer identity. Sends go through the shared
// transport socket; WriteToUDP is safe for concurrent use, so no write
// lock is needed here.
type UDPClient struct {
	ClientMetadata
	transport *UDPTransport
	raddr     *net.UDPAddr
}

func NewUDPClient(t *UDPTransport, raddr *net.UDPAddr) *UDPClient {
	return &UDPClient{
		transport:      t,
		raddr:          raddr,
		ClientMetadata: newClientMetadata("udp", raddr.String()),
	}
}

func (c *UDPClient) Send(msg proto.Message) error {
	buf, err := proto.MarshalDatagram(msg)
	if err != nil {
		return err
	}
	if _, err := c.transport.conn.WriteToUDP(buf, c.raddr); err != nil {
		return err
	}
	slog.Debug("Sent datagram", "to", c.ID, "type", proto.TypeName(msg.Type), "topic", msg.Topic, "size", len(buf))
	return nil
}

// Close ends the datagram session. This is the only way a datagram peer
// ever leaves the transport, since no connection exists to observe.
func (c *UDPClient) Close() error {
	c.transport.dropPeer(c)
	return nil
}

func (c *UDPClient) Meta() *ClientMetadata {
	return &c.ClientMetadata
}
