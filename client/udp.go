package client

import (
	"fmt"
	"net"
	"time"

	"github.com/mkarlsen/busline/proto"
)

// UDPTransport is the datagram connection to the broker. The socket is
// connected so the broker address is fixed; each Recv returns exactly
// one datagram.
type UDPTransport struct {
	conn *net.UDPConn
	buf  []byte
}

func NewUDPTransport() *UDPTransport {
	return &UDPTransport{buf: make([]byte, proto.MaxDatagramSize+1)}
}

func (t *UDPTransport) Connect(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	t.conn = conn
	return nil
}

func (t *UDPTransport) Send(msg proto.Message) error {
	buf, err := proto.MarshalDatagram(msg)
	if err != nil {
		return err
	}
	_, err = t.conn.Write(buf)
	return err
}

func (t *UDPTransport) Recv() (proto.Message, error) {
	n, err := t.conn.Read(t.buf)
	if err != nil {
		return proto.Message{}, err
	}
	return proto.UnmarshalDatagram(t.buf[:n])
}

func (t *UDPTransport) SetRecvDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *UDPTransport) Reliable() bool {
	return false
}

func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
