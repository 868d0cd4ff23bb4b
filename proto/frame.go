package proto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire layout, identical for both transports: a 12-byte header holding
// (type, topicLen, payloadLen) as big-endian uint32s, followed by
// topicLen raw topic bytes, followed by payloadLen raw payload bytes.
// A stream carries frames back to back; a datagram carries exactly one.
const (
	HeaderSize = 12

	MaxTopicLen   = 64 << 10
	MaxPayloadLen = 1 << 20

	// MaxDatagramSize bounds the single-buffer form. Stays under the
	// practical UDP payload ceiling.
	MaxDatagramSize = 60 << 10
)

func putHeader(buf []byte, msg Message) {
	binary.BigEndian.PutUint32(buf[0:4], msg.Type)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(msg.Topic)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(msg.Payload)))
}

func checkLengths(topicLen, payloadLen uint32) error {
	if topicLen > MaxTopicLen || payloadLen > MaxPayloadLen {
		return fmt.Errorf("topic %d / payload %d bytes: %w", topicLen, payloadLen, ErrFrameTooLarge)
	}
	return nil
}

// WriteFrame writes msg in stream form. The whole frame is assembled
// first and written with a single Write call.
func WriteFrame(w io.Writer, msg Message) error {
	if err := checkLengths(uint32(len(msg.Topic)), uint32(len(msg.Payload))); err != nil {
		return err
	}
	buf := make([]byte, HeaderSize+len(msg.Topic)+len(msg.Payload))
	putHeader(buf, msg)
	copy(buf[HeaderSize:], msg.Topic)
	copy(buf[HeaderSize+len(msg.Topic):], msg.Payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame in stream form. io.ReadFull retries partial
// reads until every declared byte arrives. An EOF on the first header
// byte is an orderly close and returns ErrConnectionClosed unwrapped;
// EOF anywhere later means the peer closed mid-frame and returns a
// wrapped ErrConnectionClosed.
func ReadFrame(r io.Reader) (Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return Message{}, ErrConnectionClosed
		}
		if err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("stream closed mid-header: %w", ErrConnectionClosed)
		}
		return Message{}, fmt.Errorf("reading frame header: %w", err)
	}

	msgType := binary.BigEndian.Uint32(hdr[0:4])
	topicLen := binary.BigEndian.Uint32(hdr[4:8])
	payloadLen := binary.BigEndian.Uint32(hdr[8:12])
	if err := checkLengths(topicLen, payloadLen); err != nil {
		return Message{}, err
	}

	body := make([]byte, topicLen+payloadLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("stream closed mid-frame: %w", ErrConnectionClosed)
		}
		return Message{}, fmt.Errorf("reading frame body: %w", err)
	}

	return Message{
		Type:    msgType,
		Topic:   string(body[:topicLen]),
		Payload: body[topicLen:],
	}, nil
}

// MarshalDatagram packs msg into a single buffer in datagram form.
func MarshalDatagram(msg Message) ([]byte, error) {
	total := HeaderSize + len(msg.Topic) + len(msg.Payload)
	if total > MaxDatagramSize {
		return nil, fmt.Errorf("datagram of %d bytes: %w", total, ErrFrameTooLarge)
	}
	buf := make([]byte, total)
	putHeader(buf, msg)
	copy(buf[HeaderSize:], msg.Topic)
	copy(buf[HeaderSize+len(msg.Topic):], msg.Payload)
	return buf, nil
}

// UnmarshalDatagram parses one received datagram. A buffer shorter than
// the header, or shorter than the lengths the header declares, yields a
// *MalformedFrameError; the caller drops the datagram and continues.
func UnmarshalDatagram(buf []byte) (Message, error) {
	if len(buf) < HeaderSize {
		return Message{}, &MalformedFrameError{Have: len(buf), Want: HeaderSize}
	}
	msgType := binary.BigEndian.Uint32(buf[0:4])
	topicLen := binary.BigEndian.Uint32(buf[4:8])
	payloadLen := binary.BigEndian.Uint32(buf[8:12])
	if err := checkLengths(topicLen, payloadLen); err != nil {
		return Message{}, err
	}
	want := HeaderSize + int(topicLen) + int(payloadLen)
	if len(buf) < want {
		return Message{}, &MalformedFrameError{Have: len(buf), Want: want}
	}
	body := buf[HeaderSize:want]
	payload := make([]byte, payloadLen)
	copy(payload, body[topicLen:])
	return Message{
		Type:    msgType,
		Topic:   string(body[:topicLen]),
		Payload: payload,
	}, nil
}
