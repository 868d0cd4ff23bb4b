package proto

// Message type tags, shared by the stream and datagram wire forms.
const (
	TypeSubscribe uint32 = 1
	TypePublish   uint32 = 2
	TypeMsg       uint32 = 3
	TypeAck       uint32 = 4
	TypeTerminate uint32 = 5
)

// Message is one logical protocol frame. Topic and payload lengths are
// always carried explicitly on the wire, so both may contain arbitrary
// bytes, including zeros.
type Message struct {
	Type    uint32
	Topic   string
	Payload []byte
}

// TypeName returns a short human-readable name for a type tag, for logs.
func TypeName(t uint32) string {
	switch t {
	case TypeSubscribe:
		return "subscribe"
	case TypePublish:
		return "publish"
	case TypeMsg:
		return "msg"
	case TypeAck:
		return "ack"
	case TypeTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// ValidType reports whether t is one of the defined message type tags.
func ValidType(t uint32) bool {
	return t >= TypeSubscribe && t <= TypeTerminate
}
