package client

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/mkarlsen/busline/proto"
)

// TCPTransport is the stream connection to the broker.
type TCPTransport struct {
	conn   net.Conn
	reader *bufio.Reader
}

func NewTCPTransport() *TCPTransport {
	return &TCPTransport{}
}

func (t *TCPTransport) Connect(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	return nil
}

func (t *TCPTransport) Send(msg proto.Message) error {
	return proto.WriteFrame(t.conn, msg)
}

func (t *TCPTransport) Recv() (proto.Message, error) {
	return proto.ReadFrame(t.reader)
}

func (t *TCPTransport) SetRecvDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *TCPTransport) Reliable() bool {
	return true
}

func (t *TCPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
